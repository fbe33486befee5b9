// Package otp proves that a respondent can read mail sent to an address.
//
// For a given address the flow is a small state machine: with no live code
// it awaits an email, after Request it awaits the code, and a successful
// Verify consumes the code. Nothing else (no account, no session) is
// created along the way.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/mailer"
	"github.com/mbolis/quick-survey/survey"
	"golang.org/x/crypto/bcrypt"
)

type State string

const (
	AwaitingEmail State = "awaiting_email"
	AwaitingCode  State = "awaiting_code"
	Verified      State = "verified"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidCode     = errors.New("code must be 6 digits")
	ErrCodeExpired     = errors.New("code expired or never requested")
	ErrCodeMismatch    = errors.New("wrong code")
	ErrTooManyAttempts = errors.New("too many wrong codes, request a new one")
	ErrCooldown        = errors.New("a code was sent recently")
)

// CooldownError matches ErrCooldown and tells when a resend is allowed.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrCooldown, e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

var reCode = regexp.MustCompile(`^\d{6}$`)

type Code struct {
	ID         string
	Email      string
	Hash       []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
}

// Store persists issued codes. InsertCode stores c unless the address
// already got a code after notSince, and reports whether it did. LatestCode
// returns nil when the address never received one. ReserveAttempt counts one guess against an unconsumed
// code atomically and reports false once max guesses were already counted.
type Store interface {
	InsertCode(ctx context.Context, c Code, notSince time.Time) (bool, error)
	LatestCode(ctx context.Context, email string) (*Code, error)
	ReserveAttempt(ctx context.Context, id string, max int) (bool, error)
	ConsumeCode(ctx context.Context, id string, at time.Time) error
	DeleteCode(ctx context.Context, id string) error
	DeleteExpiredCodes(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	CodeTTL     time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

type Challenge struct {
	Email       string    `json:"email"`
	State       State     `json:"state"`
	ExpiresAt   time.Time `json:"expires_at"`
	ResendAfter int       `json:"resend_after"`
}

type Service struct {
	store    Store
	mailer   mailer.Mailer
	opts     Options
	now      func() time.Time
	generate func() (string, error)
	hashCost int
}

func NewService(store Store, m mailer.Mailer, opts Options) *Service {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Service{
		store:    store,
		mailer:   m,
		opts:     opts,
		now:      time.Now,
		generate: generateCode,
		hashCost: bcrypt.DefaultCost,
	}
}

// Request mails a fresh code to email. The address is normalized first;
// the returned challenge carries the normalized form.
func (s *Service) Request(ctx context.Context, email string) (*Challenge, error) {
	email = survey.NormalizeEmail(email)
	if !survey.ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	now := s.now()
	last, err := s.store.LatestCode(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("otp: latest code: %w", err)
	}
	if last != nil {
		if wait := last.CreatedAt.Add(s.opts.Cooldown).Sub(now); wait > 0 {
			return nil, &CooldownError{RetryAfter: wait}
		}
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("otp: generate: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("otp: hash: %w", err)
	}

	c := Code{
		ID:        uuid.NewString(),
		Email:     email,
		Hash:      hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.CodeTTL),
	}
	inserted, err := s.store.InsertCode(ctx, c, now.Add(-s.opts.Cooldown))
	if err != nil {
		return nil, fmt.Errorf("otp: store code: %w", err)
	}
	if !inserted {
		// a concurrent request got there first
		return nil, &CooldownError{RetryAfter: s.opts.Cooldown}
	}

	body := fmt.Sprintf(
		"Your verification code is %s\n\nIt expires in %d minutes. If you did not ask for it, ignore this message.\n",
		code, int(s.opts.CodeTTL.Minutes()),
	)
	if err := s.mailer.Send(ctx, email, "Your verification code", body); err != nil {
		// a code nobody received must not hold the cooldown
		if derr := s.store.DeleteCode(ctx, c.ID); derr != nil {
			log.Errorf("otp.request.rollback: %s", derr)
		}
		return nil, fmt.Errorf("otp: send: %w", err)
	}

	return &Challenge{
		Email:       email,
		State:       AwaitingCode,
		ExpiresAt:   c.ExpiresAt,
		ResendAfter: int(s.opts.Cooldown / time.Second),
	}, nil
}

// Verify checks code against the most recent code sent to email and
// consumes it on success.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = survey.NormalizeEmail(email)
	if !survey.ValidEmail(email) {
		return ErrInvalidEmail
	}
	if !reCode.MatchString(code) {
		return ErrInvalidCode
	}

	c, err := s.store.LatestCode(ctx, email)
	if err != nil {
		return fmt.Errorf("otp: latest code: %w", err)
	}
	if c == nil || c.ConsumedAt != nil || !s.now().Before(c.ExpiresAt) {
		return ErrCodeExpired
	}
	if c.Attempts >= s.opts.MaxAttempts {
		return ErrTooManyAttempts
	}

	// reserve before comparing; parallel guesses draw from one budget
	reserved, err := s.store.ReserveAttempt(ctx, c.ID, s.opts.MaxAttempts)
	if err != nil {
		return fmt.Errorf("otp: count attempt: %w", err)
	}
	if !reserved {
		return ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword(c.Hash, []byte(code)); err != nil {
		return ErrCodeMismatch
	}

	if err := s.store.ConsumeCode(ctx, c.ID, s.now()); err != nil {
		return fmt.Errorf("otp: consume: %w", err)
	}
	return nil
}

// State reports where email currently stands in the verification flow.
func (s *Service) State(ctx context.Context, email string) (State, error) {
	c, err := s.store.LatestCode(ctx, survey.NormalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("otp: latest code: %w", err)
	}
	switch {
	case c == nil:
		return AwaitingEmail, nil
	case c.ConsumedAt != nil:
		return Verified, nil
	case !s.now().Before(c.ExpiresAt), c.Attempts >= s.opts.MaxAttempts:
		return AwaitingEmail, nil
	}
	return AwaitingCode, nil
}

// Cleanup drops codes that expired before now.
func (s *Service) Cleanup(ctx context.Context) {
	n, err := s.store.DeleteExpiredCodes(ctx, s.now())
	if err != nil {
		log.Errorf("otp.cleanup: %s", err)
		return
	}
	if n > 0 {
		log.Debugf("otp.cleanup: removed %d expired codes", n)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
