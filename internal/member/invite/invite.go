// Package invite mints the unique, URL-safe codes that identify a member as
// a referral source.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// CodeLength is fixed by the data model: invite codes are 8 URL-safe
// characters (6 random bytes, base64url, no padding).
const CodeLength = 8

const codeBytes = 6

// DefaultMaxAttempts bounds uniqueness retries. Collisions are
// astronomically unlikely at this code length; the bound is a circuit
// breaker, not an expected path.
const DefaultMaxAttempts = 10

// ErrCodeExhausted means every generation attempt collided. The caller must
// abort member creation; it must never fabricate a duplicate code.
var ErrCodeExhausted = errors.New("invite code space exhausted after max attempts")

// CodeChecker answers whether a code is already taken.
type CodeChecker interface {
	InviteCodeExists(ctx context.Context, code string) (bool, error)
}

// Generator produces collision-free invite codes under a bounded-retry
// policy.
type Generator struct {
	codes       CodeChecker
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides the retry bound.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func NewGenerator(codes CodeChecker, opts ...Option) *Generator {
	g := &Generator{codes: codes, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a fresh code that did not exist at check time, along with
// the number of attempts used. The store's unique index remains the final
// arbiter if two calls race.
func (g *Generator) Generate(ctx context.Context) (string, int, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", attempt, err
		}
		exists, err := g.codes.InviteCodeExists(ctx, code)
		if err != nil {
			return "", attempt, fmt.Errorf("check invite code: %w", err)
		}
		if !exists {
			return code, attempt, nil
		}
	}
	return "", g.maxAttempts, ErrCodeExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate invite code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
