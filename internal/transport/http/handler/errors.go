package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-otp-api/internal/domain"
)

// httpError maps domain errors to HTTP responses. Unrecognized errors become
// a 500 with the given fallback message; internal detail stays server-side.
func httpError(w http.ResponseWriter, err error, fallback string) {
	var ice *domain.InvalidCodeError
	switch {
	case errors.As(err, &ice):
		writeJSON(w, http.StatusBadRequest, AuthEnvelope{
			Success:      false,
			Message:      "Invalid OTP",
			AttemptsLeft: &ice.AttemptsLeft,
		})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "Invalid email address")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusBadRequest, "OTP expired or not found")
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusBadRequest, "OTP has expired")
	case errors.Is(err, domain.ErrExhausted):
		writeError(w, http.StatusBadRequest, "Too many failed attempts")
	case errors.Is(err, domain.ErrCooldown):
		writeError(w, http.StatusTooManyRequests, "Please wait before requesting another code")
	default:
		slog.Error("unhandled auth error", "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
