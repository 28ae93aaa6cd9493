package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrExhausted   = errors.New("too many failed attempts")
	ErrInvalidCode = errors.New("invalid code")
	ErrCooldown    = errors.New("cooldown active")
	ErrBadRequest  = errors.New("bad request")
	ErrDispatch    = errors.New("dispatch failed")
)

// InvalidCodeError is returned on a code mismatch and carries the number of
// verification attempts the caller has left before the record is destroyed.
type InvalidCodeError struct {
	AttemptsLeft int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code: %d attempts left", e.AttemptsLeft)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }
