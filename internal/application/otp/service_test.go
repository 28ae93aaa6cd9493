package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-otp-api/internal/domain"
	"github.com/go-otp-api/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Put(ctx context.Context, o *domain.OTP) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockRepo) Get(ctx context.Context, email string) (*domain.OTP, error) {
	args := m.Called(ctx, email)
	if o, _ := args.Get(0).(*domain.OTP); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockRepo) IncrementAttempts(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendOTP(to, code string) error {
	return m.Called(to, code).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(email string) (string, error) {
	args := m.Called(email)
	return args.String(0), args.Error(1)
}

// fixedCodes always generates the same code.
type fixedCodes struct{ code string }

func (f fixedCodes) Generate() (string, error) { return f.code, nil }

// --- builder ---

func newService(repo Repository, ml *mockMailer, sg *mockSigner, code string, now func() time.Time) Service {
	return NewService(ServiceDeps{
		Repo:           repo,
		Mailer:         ml,
		Signer:         sg,
		Codes:          fixedCodes{code: code},
		TTL:            5 * time.Minute,
		MaxAttempts:    3,
		ResendCooldown: 60 * time.Second,
		Now:            now,
	})
}

// --- Issue ---

func TestIssue_InvalidEmail(t *testing.T) {
	repo := &mockRepo{}
	svc := newService(repo, nil, nil, "482913", nil)

	for _, email := range []string{"", "not-an-email", "a@b", "a b@c.com"} {
		err := svc.Issue(context.Background(), email)
		assert.ErrorIs(t, err, domain.ErrBadRequest, "email %q", email)
	}
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestIssue_StoresRecordAndSends(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Put", mock.Anything, mock.MatchedBy(func(o *domain.OTP) bool {
		return o.Email == "a@b.com" &&
			o.Code == "482913" &&
			o.Attempts == 0 &&
			o.ExpiresAt.Equal(base.Add(5*time.Minute)) &&
			o.LastIssuedAt.Equal(base) &&
			o.IssueID != ""
	})).Return(nil)

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "482913").Return(nil)

	svc := newService(repo, ml, nil, "482913", func() time.Time { return base })
	require.NoError(t, svc.Issue(context.Background(), "a@b.com"))

	repo.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestIssue_DeliveryFailure(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "482913").Return(errors.New("smtp: connection refused"))

	svc := newService(repo, ml, nil, "482913", nil)
	err := svc.Issue(context.Background(), "a@b.com")

	assert.ErrorIs(t, err, domain.ErrDispatch)
	// Commit-then-send: the record was stored before the failed delivery.
	repo.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- Verify ---

func TestVerify_NotFound(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(nil, domain.ErrNotFound)

	svc := newService(repo, nil, nil, "482913", nil)
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_StoreFaultIsNotNotFound(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(nil, errors.New("dynamodb: connection refused"))

	svc := newService(repo, nil, nil, "482913", nil)
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	// An infrastructure fault must not be reported as a user-correctable
	// "not found", which the handler would map to a 400.
	assert.ErrorIs(t, err, domain.ErrDispatch)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_Expired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		ExpiresAt: base.Add(-time.Second),
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := newService(repo, nil, nil, "482913", func() time.Time { return base })
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	assert.ErrorIs(t, err, domain.ErrExpired)
	repo.AssertCalled(t, "Delete", mock.Anything, "a@b.com")
}

func TestVerify_ExpiryBoundaryIsExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		ExpiresAt: base, // now == expiresAt
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := newService(repo, nil, nil, "482913", func() time.Time { return base })
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestVerify_Exhausted(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		Attempts:  3,
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := newService(repo, nil, nil, "482913", nil)
	// Even the correct code fails once attempts are exhausted.
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	assert.ErrorIs(t, err, domain.ErrExhausted)
	repo.AssertCalled(t, "Delete", mock.Anything, "a@b.com")
}

func TestVerify_ExpiredRecordWithExhaustedAttempts_ReportsExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		Attempts:  3,
		ExpiresAt: base.Add(-time.Second),
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := newService(repo, nil, nil, "482913", func() time.Time { return base })
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	// Expiry check precedes the attempts check.
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestVerify_WrongCode(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		Attempts:  0,
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	repo.On("IncrementAttempts", mock.Anything, "a@b.com").Return(1, nil)

	svc := newService(repo, nil, nil, "482913", nil)
	_, err := svc.Verify(context.Background(), "a@b.com", "000000")

	var ice *domain.InvalidCodeError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 2, ice.AttemptsLeft)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestVerify_ThirdWrongCodeDestroysRecord(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		Attempts:  2,
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	repo.On("IncrementAttempts", mock.Anything, "a@b.com").Return(3, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := newService(repo, nil, nil, "482913", nil)
	_, err := svc.Verify(context.Background(), "a@b.com", "000000")

	var ice *domain.InvalidCodeError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 0, ice.AttemptsLeft)
	repo.AssertCalled(t, "Delete", mock.Anything, "a@b.com")
}

func TestVerify_CorrectCode(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	sg := &mockSigner{}
	sg.On("Sign", "a@b.com").Return("signed.jwt.token", nil)

	svc := newService(repo, nil, sg, "482913", nil)
	res, err := svc.Verify(context.Background(), "a@b.com", "482913")

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.Email)
	assert.Equal(t, "signed.jwt.token", res.Token)
	repo.AssertCalled(t, "Delete", mock.Anything, "a@b.com")
}

func TestVerify_SignerFailure(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:     "a@b.com",
		Code:      "482913",
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	repo.On("Delete", mock.Anything, "a@b.com").Return(nil)

	sg := &mockSigner{}
	sg.On("Sign", "a@b.com").Return("", errors.New("no key"))

	svc := newService(repo, nil, sg, "482913", nil)
	_, err := svc.Verify(context.Background(), "a@b.com", "482913")

	assert.ErrorIs(t, err, domain.ErrDispatch)
}

// --- Resend ---

func TestResend_CooldownActive(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:        "a@b.com",
		Code:         "482913",
		ExpiresAt:    base.Add(4 * time.Minute),
		LastIssuedAt: base.Add(-30 * time.Second),
	}, nil)

	ml := &mockMailer{}
	svc := newService(repo, ml, nil, "999999", func() time.Time { return base })
	err := svc.Resend(context.Background(), "a@b.com")

	assert.ErrorIs(t, err, domain.ErrCooldown)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestResend_AfterCooldown(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(&domain.OTP{
		Email:        "a@b.com",
		Code:         "482913",
		ExpiresAt:    base.Add(4 * time.Minute),
		LastIssuedAt: base.Add(-61 * time.Second),
	}, nil)
	repo.On("Put", mock.Anything, mock.MatchedBy(func(o *domain.OTP) bool {
		return o.Code == "999999" && o.Attempts == 0
	})).Return(nil)

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "999999").Return(nil)

	svc := newService(repo, ml, nil, "999999", func() time.Time { return base })
	require.NoError(t, svc.Resend(context.Background(), "a@b.com"))

	repo.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestResend_StoreFaultDoesNotBypassCooldown(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(nil, errors.New("dynamodb: connection refused"))

	ml := &mockMailer{}
	svc := newService(repo, ml, nil, "999999", nil)
	err := svc.Resend(context.Background(), "a@b.com")

	// When the cooldown state is unreadable, no new code may be issued.
	assert.ErrorIs(t, err, domain.ErrDispatch)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestResend_NoExistingRecord(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Get", mock.Anything, "a@b.com").Return(nil, domain.ErrNotFound)
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "999999").Return(nil)

	svc := newService(repo, ml, nil, "999999", nil)
	require.NoError(t, svc.Resend(context.Background(), "a@b.com"))
}

// --- full lifecycle against the real in-memory store ---

func TestLifecycle_IssueVerifyOnce(t *testing.T) {
	ctx := context.Background()

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "482913").Return(nil)
	sg := &mockSigner{}
	sg.On("Sign", "a@b.com").Return("signed.jwt.token", nil)

	svc := newService(memstore.New(), ml, sg, "482913", nil)

	require.NoError(t, svc.Issue(ctx, "a@b.com"))

	res, err := svc.Verify(ctx, "a@b.com", "482913")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", res.Token)

	// Single use: the same code never verifies twice.
	_, err = svc.Verify(ctx, "a@b.com", "482913")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycle_ThreeWrongAttemptsThenCorrect(t *testing.T) {
	ctx := context.Background()

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", "482913").Return(nil)
	sg := &mockSigner{}

	svc := newService(memstore.New(), ml, sg, "482913", nil)
	require.NoError(t, svc.Issue(ctx, "a@b.com"))

	for want := 2; want >= 0; want-- {
		_, err := svc.Verify(ctx, "a@b.com", "000000")
		var ice *domain.InvalidCodeError
		require.ErrorAs(t, err, &ice)
		assert.Equal(t, want, ice.AttemptsLeft)
	}

	// Record is gone; even the correct code fails now.
	_, err := svc.Verify(ctx, "a@b.com", "482913")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	sg.AssertNotCalled(t, "Sign", mock.Anything)
}

func TestLifecycle_ResendSupersedesOldCode(t *testing.T) {
	ctx := context.Background()
	// The real store's reclamation runs on wall-clock time, so the test clock
	// starts from the present.
	base := time.Now()
	now := base
	clock := func() time.Time { return now }

	ml := &mockMailer{}
	ml.On("SendOTP", "a@b.com", mock.Anything).Return(nil)
	sg := &mockSigner{}
	sg.On("Sign", "a@b.com").Return("signed.jwt.token", nil)

	store := memstore.New()
	svc := NewService(ServiceDeps{
		Repo:           store,
		Mailer:         ml,
		Signer:         sg,
		Codes:          &seqCodes{codes: []string{"111111", "222222"}},
		TTL:            5 * time.Minute,
		MaxAttempts:    3,
		ResendCooldown: 60 * time.Second,
		Now:            clock,
	})

	require.NoError(t, svc.Issue(ctx, "a@b.com"))

	// Within cooldown: rejected, old code still live.
	err := svc.Resend(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrCooldown)

	now = base.Add(61 * time.Second)
	require.NoError(t, svc.Resend(ctx, "a@b.com"))

	// Old code superseded.
	_, err = svc.Verify(ctx, "a@b.com", "111111")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	res, err := svc.Verify(ctx, "a@b.com", "222222")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", res.Token)
}

// seqCodes returns codes in sequence across calls.
type seqCodes struct {
	codes []string
	i     int
}

func (s *seqCodes) Generate() (string, error) {
	c := s.codes[s.i%len(s.codes)]
	s.i++
	return c, nil
}
