package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-api/internal/domain"
	"github.com/go-otp-api/internal/pkg/id"
	"github.com/go-otp-api/internal/pkg/keylock"
	"github.com/go-otp-api/internal/pkg/otpcode"
	"github.com/go-otp-api/internal/pkg/validate"
)

// Repository is the minimal interface the service requires from an OTP store.
// Get must treat a record past its expiry as absent.
type Repository interface {
	Put(ctx context.Context, o *domain.OTP) error
	Get(ctx context.Context, email string) (*domain.OTP, error)
	Delete(ctx context.Context, email string) error
	IncrementAttempts(ctx context.Context, email string) (int, error)
}

// Mailer delivers the generated code to the user.
type Mailer interface {
	SendOTP(to, code string) error
}

// Signer mints the session token granted on successful verification.
type Signer interface {
	Sign(email string) (string, error)
}

// VerifyResult is returned on successful verification.
type VerifyResult struct {
	Email string
	Token string
}

type Service interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) (*VerifyResult, error)
	Resend(ctx context.Context, email string) error
}

type ServiceDeps struct {
	Repo   Repository
	Mailer Mailer
	Signer Signer
	Codes  otpcode.Generator

	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration

	// Now is swapped in tests; defaults to time.Now.
	Now func() time.Time
}

type service struct {
	repo   Repository
	mailer Mailer
	signer Signer
	codes  otpcode.Generator

	ttl         time.Duration
	maxAttempts int
	cooldown    time.Duration

	locks *keylock.KeyLock
	now   func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        deps.Repo,
		mailer:      deps.Mailer,
		signer:      deps.Signer,
		codes:       deps.Codes,
		ttl:         deps.TTL,
		maxAttempts: deps.MaxAttempts,
		cooldown:    deps.ResendCooldown,
		locks:       keylock.New(),
		now:         now,
	}
}

// Issue generates a fresh code for email, replacing any live record, and
// hands it to the mailer. The record is committed before delivery; a failed
// send leaves it in place until expiry or a superseding issue.
func (s *service) Issue(ctx context.Context, email string) error {
	if err := validate.Email(email); err != nil {
		return fmt.Errorf("invalid email address: %w", domain.ErrBadRequest)
	}

	rec, err := s.newRecord(email)
	if err != nil {
		return err
	}

	s.locks.Lock(email)
	err = s.repo.Put(ctx, rec)
	s.locks.Unlock(email)
	if err != nil {
		return err
	}

	return s.dispatch(rec)
}

// Resend behaves like Issue but rejects when the live record was issued less
// than the cooldown ago. A rejected resend changes no state.
func (s *service) Resend(ctx context.Context, email string) error {
	if err := validate.Email(email); err != nil {
		return fmt.Errorf("invalid email address: %w", domain.ErrBadRequest)
	}

	rec, err := s.newRecord(email)
	if err != nil {
		return err
	}

	s.locks.Lock(email)
	cur, err := s.repo.Get(ctx, email)
	switch {
	case err == nil:
		if s.now().Sub(cur.LastIssuedAt) < s.cooldown {
			s.locks.Unlock(email)
			return fmt.Errorf("please wait before requesting another code: %w", domain.ErrCooldown)
		}
	case !errors.Is(err, domain.ErrNotFound):
		// A store fault is not "no record"; issuing here would skip the
		// cooldown check.
		s.locks.Unlock(email)
		slog.Error("read OTP record", "email", email, "err", err)
		return fmt.Errorf("read OTP record: %w", domain.ErrDispatch)
	}
	err = s.repo.Put(ctx, rec)
	s.locks.Unlock(email)
	if err != nil {
		return err
	}

	return s.dispatch(rec)
}

// Verify checks a submitted code. Checks run in fixed order, each terminal:
// absence, expiry, exhaustion, then exact string equality. The record is
// destroyed on success, on expiry, and once attempts reach the maximum.
func (s *service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	s.locks.Lock(email)
	defer s.locks.Unlock(email)

	rec, err := s.repo.Get(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("OTP expired or not found: %w", domain.ErrNotFound)
		}
		slog.Error("read OTP record", "email", email, "err", err)
		return nil, fmt.Errorf("read OTP record: %w", domain.ErrDispatch)
	}

	if rec.Expired(s.now()) {
		s.deleteRecord(ctx, email)
		return nil, fmt.Errorf("OTP has expired: %w", domain.ErrExpired)
	}

	if rec.Attempts >= s.maxAttempts {
		s.deleteRecord(ctx, email)
		return nil, fmt.Errorf("too many failed attempts: %w", domain.ErrExhausted)
	}

	if rec.Code != code {
		n, err := s.repo.IncrementAttempts(ctx, email)
		if err != nil {
			return nil, err
		}
		left := s.maxAttempts - n
		if left <= 0 {
			left = 0
			s.deleteRecord(ctx, email)
		}
		return nil, &domain.InvalidCodeError{AttemptsLeft: left}
	}

	s.deleteRecord(ctx, email)

	token, err := s.signer.Sign(email)
	if err != nil {
		slog.Error("sign session token", "email", email, "err", err)
		return nil, fmt.Errorf("sign session token: %w", domain.ErrDispatch)
	}
	return &VerifyResult{Email: email, Token: token}, nil
}

func (s *service) newRecord(email string) (*domain.OTP, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &domain.OTP{
		Email:        email,
		Code:         code,
		ExpiresAt:    now.Add(s.ttl),
		LastIssuedAt: now,
		IssueID:      id.New(),
	}, nil
}

func (s *service) dispatch(rec *domain.OTP) error {
	if err := s.mailer.SendOTP(rec.Email, rec.Code); err != nil {
		slog.Error("send OTP email", "email", rec.Email, "err", err)
		return fmt.Errorf("send OTP email: %w", domain.ErrDispatch)
	}
	return nil
}

func (s *service) deleteRecord(ctx context.Context, email string) {
	if err := s.repo.Delete(ctx, email); err != nil {
		slog.Warn("failed to delete OTP record", "email", email, "err", err)
	}
}
