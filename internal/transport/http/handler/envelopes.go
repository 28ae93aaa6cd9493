package handler

import (
	"encoding/json"
	"net/http"
)

// UserPayload is the public view of the authenticated identity.
type UserPayload struct {
	Email string `json:"email"`
}

// AuthEnvelope is the uniform response wrapper for the auth endpoints.
// Token, User and AttemptsLeft appear only when the operation sets them.
type AuthEnvelope struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	Token        string       `json:"token,omitempty"`
	User         *UserPayload `json:"user,omitempty"`
	AttemptsLeft *int         `json:"attemptsLeft,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, AuthEnvelope{Success: false, Message: msg})
}
