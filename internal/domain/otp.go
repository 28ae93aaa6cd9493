package domain

import "time"

// OTP is the active one-time-password record for one email address.
// At most one record exists per email; issuing a new code replaces it.
// IssueID changes on every issuance so delayed cleanup can tell whether
// the record it was scheduled against has been superseded.
type OTP struct {
	Email        string    `json:"email"`
	Code         string    `json:"code"`
	Attempts     int       `json:"attempts"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastIssuedAt time.Time `json:"last_issued_at"`
	IssueID      string    `json:"issue_id"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
