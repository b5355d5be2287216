package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/orderrelay/internal/config"
	"github.com/smallbiznis/orderrelay/internal/webhook/signature"
)

const defaultEvent = "currency.order.purchased"

type sender struct {
	url       string
	secret    string
	userAgent string
	client    *http.Client
	out       io.Writer
	now       func() time.Time
}

func main() {
	_ = godotenv.Load()

	url := flag.String("url", os.Getenv("WEBHOOK_URL"), "webhook endpoint")
	secret := flag.String("secret", os.Getenv("GAMEBOOST_WEBHOOK_SECRET"), "shared HMAC secret")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if strings.TrimSpace(*url) == "" {
		fmt.Fprintln(os.Stderr, "webhook url is required (-url or WEBHOOK_URL)")
		os.Exit(1)
	}

	s := &sender{
		url:       *url,
		secret:    *secret,
		userAgent: config.DefaultUserAgent,
		client:    &http.Client{Timeout: *timeout},
		out:       os.Stdout,
		now:       time.Now,
	}

	if err := s.run(context.Background(), flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			usage()
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("unknown command")

func (s *sender) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	event := defaultEvent
	if len(args) > 1 {
		event = args[1]
	}

	fmt.Fprintln(s.out, "GameBoost Webhook Tester")
	fmt.Fprintln(s.out, "================================")

	switch args[0] {
	case "send":
		_, err := s.send(ctx, event)
		return err
	case "invalid":
		return s.invalid(ctx)
	case "duplicate":
		return s.duplicate(ctx, event, time.Second)
	case "all":
		return s.all(ctx, 500*time.Millisecond)
	default:
		return errUsage
	}
}

// send posts a signed sample delivery and returns the response status.
func (s *sender) send(ctx context.Context, event string) (int, error) {
	body, err := samplePayload(event, s.now())
	if err != nil {
		return 0, err
	}
	sig := signature.Sign(body, s.secret)

	fmt.Fprintln(s.out, "\nSending webhook...")
	fmt.Fprintln(s.out, "Event:", event)
	fmt.Fprintln(s.out, "URL:", s.url)
	fmt.Fprintln(s.out, "Signature:", sig)

	status, respBody, err := s.post(ctx, body, sig)
	if err != nil {
		return 0, fmt.Errorf("send webhook: %w", err)
	}
	fmt.Fprintln(s.out, "Status:", status, http.StatusText(status))
	fmt.Fprintln(s.out, "Body:", respBody)
	if status >= 200 && status < 300 {
		fmt.Fprintln(s.out, "Webhook sent successfully")
	} else {
		fmt.Fprintln(s.out, "Webhook failed with status:", status)
	}
	return status, nil
}

func (s *sender) invalid(ctx context.Context) error {
	body, err := samplePayload(defaultEvent, s.now())
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, "\nTesting invalid signature...")
	status, _, err := s.post(ctx, body, "invalid_signature_12345")
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	fmt.Fprintln(s.out, "Status:", status)
	if status == http.StatusUnauthorized {
		fmt.Fprintln(s.out, "Invalid signature correctly rejected")
	} else {
		fmt.Fprintln(s.out, "Expected 401, got:", status)
	}
	return nil
}

// duplicate sends the same delivery twice. The payload id is fixed up front
// so the second request has the same dedup key.
func (s *sender) duplicate(ctx context.Context, event string, gap time.Duration) error {
	fixed := s.now()
	restore := s.now
	s.now = func() time.Time { return fixed }
	defer func() { s.now = restore }()

	fmt.Fprintln(s.out, "\nTesting duplicate webhook...")
	if _, err := s.send(ctx, event); err != nil {
		return err
	}
	if err := sleep(ctx, gap); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "\nSending duplicate...")
	_, err := s.send(ctx, event)
	return err
}

func (s *sender) all(ctx context.Context, gap time.Duration) error {
	fmt.Fprintln(s.out, "\nTesting all webhook types...")
	for _, event := range eventNames() {
		if _, err := s.send(ctx, event); err != nil {
			return err
		}
		if err := sleep(ctx, gap); err != nil {
			return err
		}
	}
	return nil
}

func (s *sender) post(ctx context.Context, body []byte, sig string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Signature", sig)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(respBody), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func eventNames() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  webhook-sender [flags] send [event-type]")
	fmt.Fprintln(out, "  webhook-sender [flags] invalid")
	fmt.Fprintln(out, "  webhook-sender [flags] duplicate [event-type]")
	fmt.Fprintln(out, "  webhook-sender [flags] all")
	fmt.Fprintln(out, "\nAvailable event types:")
	for _, name := range eventNames() {
		fmt.Fprintln(out, "  -", name)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

// samplePayload builds the JSON body for event with an id and timestamps
// taken from now in milliseconds.
func samplePayload(event string, now time.Time) ([]byte, error) {
	build, ok := samples[event]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q, available: %s", event, strings.Join(eventNames(), ", "))
	}
	ms := now.UnixMilli()
	payload := build()
	payload["id"] = ms
	payload["created_at"] = ms
	payload["updated_at"] = ms
	return json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
}

var samples = map[string]func() map[string]any{
	"currency.order.purchased": func() map[string]any {
		return map[string]any{
			"currency_offer_id": 789,
			"game":              map[string]any{"id": 1, "name": "Genshin Impact", "slug": "genshin-impact"},
			"buyer":             map[string]any{"id": 456, "username": "test_buyer"},
			"title":             "1000 Genesis Crystals",
			"description":       "Fast delivery",
			"quantity":          1000,
			"currency_unit": map[string]any{
				"slug":          "genesis-crystals",
				"currency_name": "Genesis Crystals",
				"name":          "Genesis Crystals",
				"symbol":        "GC",
				"multiplier":    1,
			},
			"parameters": map[string]any{},
			"status":     "pending",
			"delivery_time": map[string]any{
				"duration":    30,
				"unit":        "minutes",
				"format":      "30m",
				"format_long": "30 minutes",
				"seconds":     1800,
			},
			"credentials":    map[string]any{"uid": 123456789},
			"price_eur":      "15.99",
			"price_usd":      "17.99",
			"unit_price_eur": "0.01599",
			"unit_price_usd": "0.01799",
		}
	},
	"account.order.purchased": func() map[string]any {
		return map[string]any{"status": "pending", "price_eur": "49.99", "price_usd": "54.99"}
	},
	"item.order.purchased": func() map[string]any {
		return map[string]any{"status": "pending", "price_eur": "9.99", "price_usd": "10.99"}
	},
	"order.report.issued": func() map[string]any {
		return map[string]any{"status": "in_delivery", "price_eur": "25.99", "price_usd": "28.99"}
	},
}
