package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-otp-api/internal/application/otp"
)

// AuthHandler handles the OTP login endpoints.
type AuthHandler struct {
	svc otp.Service
}

func NewAuthHandler(svc otp.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Issue(r.Context(), req.Email); err != nil {
		httpError(w, err, "Failed to send OTP. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Message: "OTP sent successfully"})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}
	res, err := h.svc.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err, "Verification failed. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		Success: true,
		Message: "Login successful",
		Token:   res.Token,
		User:    &UserPayload{Email: res.Email},
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Resend(r.Context(), req.Email); err != nil {
		httpError(w, err, "Failed to resend OTP")
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Success: true, Message: "New OTP sent successfully"})
}
