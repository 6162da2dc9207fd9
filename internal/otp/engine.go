// Package otp issues and verifies six-digit one-time passcodes for pending
// registrations and password resets.
//
// A pending registration lives under "reg:<phone>" as
// {"data": <payload>, "otp": "<code>"}. A pending reset lives under
// "reset:<phone>" as the bare code. Issuing always overwrites, so only the
// most recent code for a phone is ever valid. Nothing is deleted on a
// successful check; callers Discard once their own write has committed.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTTL is how long an issued code stays verifiable.
const DefaultTTL = 300 * time.Second

const (
	codeMin     = 100000
	codeSpan    = 900000
	regPrefix   = "reg:"
	resetPrefix = "reset:"
)

var (
	// ErrNotFound means there is no pending entry, or it expired.
	ErrNotFound = errors.New("otp: no pending entry")
	// ErrMismatch means an entry exists but the code differs.
	ErrMismatch = errors.New("otp: code mismatch")
)

type pending struct {
	Data json.RawMessage `json:"data"`
	OTP  string          `json:"otp"`
}

// Engine generates, stores and checks codes.
type Engine struct {
	store    Store
	ttl      time.Duration
	generate func() (string, error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithGenerator replaces the code source. Tests use it to make codes predictable.
func WithGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

// NewEngine builds an Engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, ttl: DefaultTTL, generate: GenerateCode}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateCode returns a uniformly random code in [100000, 999999] drawn from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// Issue stores payload with a fresh code under phone and returns the code.
func (e *Engine) Issue(ctx context.Context, phone string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("otp: encode payload: %w", err)
	}
	return e.put(ctx, phone, data)
}

// Resend replaces the code of an existing pending registration, keeping its
// payload and restarting its TTL.
func (e *Engine) Resend(ctx context.Context, phone string) (string, error) {
	entry, err := e.load(ctx, phone)
	if err != nil {
		return "", err
	}
	return e.put(ctx, phone, entry.Data)
}

// Verify checks code against the pending registration for phone and decodes
// its payload into into.
func (e *Engine) Verify(ctx context.Context, phone, code string, into any) error {
	entry, err := e.load(ctx, phone)
	if err != nil {
		return err
	}
	if !equal(entry.OTP, code) {
		return ErrMismatch
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(entry.Data, into); err != nil {
		return fmt.Errorf("otp: decode payload: %w", err)
	}
	return nil
}

// Discard removes the pending registration for phone.
func (e *Engine) Discard(ctx context.Context, phone string) error {
	return e.store.Del(ctx, regKey(phone))
}

// IssueReset stores a fresh password-reset code for phone and returns it.
func (e *Engine) IssueReset(ctx context.Context, phone string) (string, error) {
	code, err := e.generate()
	if err != nil {
		return "", err
	}
	if err := e.store.Set(ctx, resetKey(phone), []byte(code), e.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyReset checks code against the pending reset for phone.
func (e *Engine) VerifyReset(ctx context.Context, phone, code string) error {
	stored, err := e.store.Get(ctx, resetKey(phone))
	if errors.Is(err, ErrMissing) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !equal(string(stored), code) {
		return ErrMismatch
	}
	return nil
}

// DiscardReset removes the pending reset for phone.
func (e *Engine) DiscardReset(ctx context.Context, phone string) error {
	return e.store.Del(ctx, resetKey(phone))
}

func (e *Engine) put(ctx context.Context, phone string, data json.RawMessage) (string, error) {
	code, err := e.generate()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(pending{Data: data, OTP: code})
	if err != nil {
		return "", fmt.Errorf("otp: encode entry: %w", err)
	}
	if err := e.store.Set(ctx, regKey(phone), raw, e.ttl); err != nil {
		return "", err
	}
	return code, nil
}

func (e *Engine) load(ctx context.Context, phone string) (pending, error) {
	raw, err := e.store.Get(ctx, regKey(phone))
	if errors.Is(err, ErrMissing) {
		return pending{}, ErrNotFound
	}
	if err != nil {
		return pending{}, err
	}
	var entry pending
	if err := json.Unmarshal(raw, &entry); err != nil {
		return pending{}, fmt.Errorf("otp: decode entry: %w", err)
	}
	return entry, nil
}

func regKey(phone string) string {
	return regPrefix + phone
}

func resetKey(phone string) string {
	return resetPrefix + phone
}

func equal(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
