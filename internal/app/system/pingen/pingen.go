// Package pingen mints six-digit PINs.
package pingen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Length is the number of digits in a PIN.
const Length = 6

// DefaultAttempts is how many candidates Unique draws before giving up.
const DefaultAttempts = 20

// ErrExhausted means every candidate drawn was already in use. Callers must
// treat it as a hard failure.
var ErrExhausted = errors.New("pingen: could not find an unused pin")

var space = big.NewInt(1_000_000)

// InUseFunc reports whether a candidate PIN already belongs to an account
// that can log in.
type InUseFunc func(ctx context.Context, pin string) (bool, error)

// Generator draws PINs uniformly from 000000-999999.
type Generator struct {
	rand     io.Reader
	attempts int
}

// New returns a Generator that tries up to attempts candidates per call.
func New(attempts int) *Generator {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Generator{rand: rand.Reader, attempts: attempts}
}

// Random returns one uniformly distributed PIN. Leading zeros are kept.
func (g *Generator) Random() (string, error) {
	n, err := rand.Int(g.rand, space)
	if err != nil {
		return "", fmt.Errorf("pingen: draw: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n.Int64()), nil
}

// Unique draws candidates until inUse reports one free. It returns
// ErrExhausted after the configured number of collisions and never returns
// a PIN that was not checked. The second return value counts collisions.
func (g *Generator) Unique(ctx context.Context, inUse InUseFunc) (string, int, error) {
	collisions := 0
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", collisions, err
		}
		pin, err := g.Random()
		if err != nil {
			return "", collisions, err
		}
		taken, err := inUse(ctx, pin)
		if err != nil {
			return "", collisions, fmt.Errorf("pingen: uniqueness check: %w", err)
		}
		if !taken {
			return pin, collisions, nil
		}
		collisions++
	}
	return "", collisions, ErrExhausted
}

// Valid reports whether s is exactly Length ASCII digits.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
