package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type receivedResponse struct {
	Received bool   `json:"received"`
	Error    string `json:"error,omitempty"`
}

var (
	ErrMethodNotAllowed = errors.New("method_not_allowed")
	ErrRateLimited      = errors.New("rate_limited")
	ErrInternal         = errors.New("internal_error")
)

// ErrorHandlingMiddleware renders the last error attached to the context when
// the handler did not write a response itself.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError converts an error into the response GameBoost expects. Failures
// after authentication are acknowledged with a 200 so the sender does not
// start redelivering.
func mapError(err error) (int, any) {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, errorResponse{Error: "Webhook not configured"}
	case errors.Is(err, domain.ErrInvalidClient):
		return http.StatusUnauthorized, errorResponse{Error: "Invalid User-Agent"}
	case errors.Is(err, domain.ErrMissingSignature):
		return http.StatusUnauthorized, errorResponse{Error: "Missing signature"}
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorResponse{Error: "Invalid signature"}
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "Too many requests"}
	default:
		return http.StatusOK, receivedResponse{Received: true, Error: "Internal error"}
	}
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return "configuration", "webhook_not_configured"
	case errors.Is(err, domain.ErrInvalidClient):
		return "authentication", "invalid_user_agent"
	case errors.Is(err, domain.ErrMissingSignature):
		return "authentication", "missing_signature"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "authentication", "invalid_signature"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "decode", "invalid_payload"
	case errors.Is(err, ErrMethodNotAllowed):
		return "client", "method_not_allowed"
	case errors.Is(err, ErrRateLimited):
		return "client", "rate_limited"
	default:
		return "internal", "internal_error"
	}
}
