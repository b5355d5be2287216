package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
	"go.uber.org/zap"
)

// Sign returns the hex-encoded HMAC-SHA256 of body keyed by secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is exactly the signature of body under
// secret. The comparison runs in constant time for equal-length inputs.
func Verify(body []byte, provided, secret string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	expected := Sign(body, secret)
	return hmac.Equal([]byte(provided), []byte(expected))
}

// Verifier checks inbound deliveries against one shared secret.
type Verifier struct {
	secret string
	log    *zap.Logger
}

func NewVerifier(secret string, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		secret: strings.TrimSpace(secret),
		log:    log.Named("webhook.signature"),
	}
}

// Configured reports whether a secret is available.
func (v *Verifier) Configured() bool {
	return v != nil && v.secret != ""
}

// VerifyRequest validates the signature header value for body.
func (v *Verifier) VerifyRequest(body []byte, provided string) error {
	if !v.Configured() {
		return domain.ErrNotConfigured
	}
	if provided == "" {
		v.log.Warn("missing signature header")
		return domain.ErrMissingSignature
	}
	if !Verify(body, provided, v.secret) {
		v.log.Warn("invalid webhook signature",
			zap.String("signature", provided),
			zap.Int("body_bytes", len(body)),
		)
		return domain.ErrInvalidSignature
	}
	return nil
}
