// Package lockout counts failed PIN attempts per client and imposes a
// time-boxed lockout once a threshold is reached.
package lockout

import (
	"context"
	"time"
)

// Defaults for Policy fields left at zero.
const (
	DefaultMaxFailures = 5
	DefaultLockout     = 5 * time.Minute
	DefaultWindow      = time.Hour
)

// Policy configures when a client is locked out.
type Policy struct {
	// MaxFailures is the number of consecutive failures that triggers a lockout.
	MaxFailures int
	// Lockout is how long a locked client is refused.
	Lockout time.Duration
	// Window bounds how long an unlocked failure streak is remembered.
	Window time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxFailures <= 0 {
		p.MaxFailures = DefaultMaxFailures
	}
	if p.Lockout <= 0 {
		p.Lockout = DefaultLockout
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

// State is the lockout status of one client key.
type State struct {
	Locked            bool
	RetryAfter        time.Duration
	AttemptsRemaining int
}

// Tracker is implemented by the memory and Redis backends.
type Tracker interface {
	// Check reports the current state without recording anything.
	Check(ctx context.Context, key string) (State, error)
	// Fail records one failed attempt and returns the resulting state. The
	// failure that reaches the threshold returns a locked state.
	Fail(ctx context.Context, key string) (State, error)
	// Reset clears the failure streak after a successful attempt.
	Reset(ctx context.Context, key string) error
}
