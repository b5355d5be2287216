package domain

import "errors"

var (
	ErrNotConfigured    = errors.New("webhook not configured")
	ErrInvalidClient    = errors.New("invalid user agent")
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid payload")
)
