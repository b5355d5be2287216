package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the event tag carried in the "event" field of a delivery.
type Kind string

const (
	KindCurrencyOrderPurchased Kind = "currency.order.purchased"
	KindAccountOrderPurchased  Kind = "account.order.purchased"
	KindItemOrderPurchased     Kind = "item.order.purchased"
	KindOrderReportIssued      Kind = "order.report.issued"
)

// Known reports whether the kind is one of the modeled variants.
func (k Kind) Known() bool {
	switch k {
	case KindCurrencyOrderPurchased, KindAccountOrderPurchased, KindItemOrderPurchased, KindOrderReportIssued:
		return true
	default:
		return false
	}
}

// MetricLabel bounds label cardinality: unmodeled kinds collapse to "unknown".
func (k Kind) MetricLabel() string {
	if k.Known() {
		return string(k)
	}
	return "unknown"
}

func (k Kind) String() string { return string(k) }

// Status is the order status reported by the provider. Values outside the
// constants below are kept as received.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInDelivery Status = "in_delivery"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusRefunded   Status = "refunded"
	StatusDisputed   Status = "disputed"
	StatusCancelled  Status = "cancelled"
)

// Payload holds the fields every event variant carries.
type Payload struct {
	ID        int64  `json:"id" validate:"required"`
	Status    Status `json:"status"`
	PriceEUR  string `json:"price_eur"`
	PriceUSD  string `json:"price_usd"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// CurrencyOrder holds the fields specific to currency.order.purchased.
type CurrencyOrder struct {
	CurrencyOfferID    int64          `json:"currency_offer_id"`
	Game               Game           `json:"game"`
	Buyer              Buyer          `json:"buyer"`
	Rating             *Rating        `json:"rating,omitempty"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Quantity           int64          `json:"quantity"`
	CurrencyUnit       CurrencyUnit   `json:"currency_unit"`
	Parameters         map[string]any `json:"parameters"`
	DeliveryTime       DeliveryTime   `json:"delivery_time"`
	Credentials        *Credentials   `json:"credentials,omitempty"`
	CompletionProofURL string         `json:"completion_proof_url,omitempty"`
	UnitPriceEUR       string         `json:"unit_price_eur"`
	UnitPriceUSD       string         `json:"unit_price_usd"`
}

type Game struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Buyer struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Rating struct {
	ID        int64    `json:"id"`
	Labels    []string `json:"labels"`
	Rating    float64  `json:"rating"`
	Comment   string   `json:"comment"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

type CurrencyUnit struct {
	Slug         string  `json:"slug"`
	CurrencyName string  `json:"currency_name"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Multiplier   float64 `json:"multiplier"`
}

type DeliveryTime struct {
	Duration   int64  `json:"duration"`
	Unit       string `json:"unit"`
	Format     string `json:"format"`
	FormatLong string `json:"format_long"`
	Seconds    int64  `json:"seconds"`
}

type Credentials struct {
	UID int64 `json:"uid"`
}

// Event is one decoded webhook delivery. Currency is set only for
// KindCurrencyOrderPurchased.
type Event struct {
	Kind     Kind
	Payload  Payload
	Currency *CurrencyOrder
	Raw      json.RawMessage
}

// DedupKey identifies the logical occurrence across redeliveries.
func (e Event) DedupKey() string {
	return string(e.Kind) + "_" + strconv.FormatInt(e.Payload.ID, 10)
}

type envelope struct {
	Event   Kind            `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

var validate = validator.New()

// Decode parses a verified request body. Unknown kinds decode to an Event with
// only the common payload set.
func Decode(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	env.Event = Kind(strings.TrimSpace(string(env.Event)))
	if err := validate.Struct(env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var payload Payload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Event{}, fmt.Errorf("%w: payload: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return Event{}, fmt.Errorf("%w: payload: %v", ErrInvalidPayload, err)
	}

	event := Event{
		Kind:    env.Event,
		Payload: payload,
		Raw:     env.Payload,
	}

	if env.Event == KindCurrencyOrderPurchased {
		var currency CurrencyOrder
		if err := json.Unmarshal(env.Payload, &currency); err != nil {
			return Event{}, fmt.Errorf("%w: currency order: %v", ErrInvalidPayload, err)
		}
		event.Currency = &currency
	}

	return event, nil
}
