package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-otp-api/internal/domain"
)

// Store is the in-memory OTP repository. Records are reclaimed two ways:
// a lazy expiry check on Get treats a record past its expiry as absent and
// removes it, and a one-shot timer per issuance reclaims the record at expiry.
// The timer deletes only when the stored IssueID still matches the one it was
// scheduled for, so it can never remove a record written by a later issuance.
type Store struct {
	mu      sync.Mutex
	records map[string]domain.OTP
	timers  map[string]*time.Timer

	// now is swapped in tests to step through expiry windows.
	now func() time.Time
}

func New() *Store {
	return &Store{
		records: make(map[string]domain.OTP),
		timers:  make(map[string]*time.Timer),
		now:     time.Now,
	}
}

// Put stores the record for its email, replacing any previous one and
// rescheduling reclamation for the new expiry.
func (s *Store) Put(_ context.Context, o *domain.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[o.Email] = *o

	if t, ok := s.timers[o.Email]; ok {
		t.Stop()
	}
	email, issueID := o.Email, o.IssueID
	s.timers[o.Email] = time.AfterFunc(o.ExpiresAt.Sub(s.now()), func() {
		s.reap(email, issueID)
	})
	return nil
}

// Get returns the record for email, or domain.ErrNotFound when none exists.
// A record past its expiry is removed and reported absent.
func (s *Store) Get(_ context.Context, email string) (*domain.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.records[email]
	if !ok {
		return nil, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
	}
	if o.Expired(s.now()) {
		s.remove(email)
		return nil, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
	}
	out := o
	return &out, nil
}

// Delete removes the record for email. Deleting an absent record is a no-op.
func (s *Store) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(email)
	return nil
}

// IncrementAttempts bumps the failed-attempt counter and returns the new count.
func (s *Store) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.records[email]
	if !ok {
		return 0, fmt.Errorf("otp for %s: %w", email, domain.ErrNotFound)
	}
	o.Attempts++
	s.records[email] = o
	return o.Attempts, nil
}

// reap is the scheduled reclamation. It only removes the record when the
// issuance it was scheduled for is still the live one.
func (s *Store) reap(email, issueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.records[email]
	if !ok || o.IssueID != issueID {
		return
	}
	s.remove(email)
}

// remove deletes the record and its timer. Caller holds s.mu.
func (s *Store) remove(email string) {
	delete(s.records, email)
	if t, ok := s.timers[email]; ok {
		t.Stop()
		delete(s.timers, email)
	}
}
