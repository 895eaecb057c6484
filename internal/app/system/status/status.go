// Package status defines the account lifecycle states and the transitions
// between them.
package status

import "strings"

const (
	Pending  = "pending"
	Approved = "approved"
	Rejected = "rejected"
	Revoked  = "revoked"

	// legacyActive is accepted on read and folded into Approved.
	legacyActive = "active"
	// unrequested is the state of an email with no account.
	unrequested = ""
)

// Action is an actor-initiated lifecycle step.
type Action string

const (
	Submit   Action = "submit"
	Approve  Action = "approve"
	Reject   Action = "reject"
	Revoke   Action = "revoke"
	RegenPin Action = "regenerate_pin"
	Reopen   Action = "reopen"
)

// transition is one edge of the lifecycle graph.
type transition struct {
	from []string
	to   string
	// admin reports whether only an admin may perform the action.
	admin bool
}

var transitions = map[Action]transition{
	Submit:   {from: []string{unrequested}, to: Pending},
	Approve:  {from: []string{Pending}, to: Approved, admin: true},
	Reject:   {from: []string{Pending}, to: Rejected, admin: true},
	Revoke:   {from: []string{Approved}, to: Revoked, admin: true},
	RegenPin: {from: []string{Approved}, to: Approved, admin: true},
	Reopen:   {from: []string{Rejected, Revoked}, to: Pending, admin: true},
}

// Normalize canonicalizes a stored status value. Unknown values are returned
// lowercased so callers can still reject them with IsValid.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == legacyActive {
		return Approved
	}
	return s
}

// IsValid reports whether s is one of the canonical states.
func IsValid(s string) bool {
	switch Normalize(s) {
	case Pending, Approved, Rejected, Revoked:
		return true
	}
	return false
}

// CanLogin reports whether an account in state s holds a usable credential.
func CanLogin(s string) bool {
	return Normalize(s) == Approved
}

// Next returns the state reached by applying a to an account in state from.
// ok is false when the transition is not legal.
func Next(from string, a Action) (to string, ok bool) {
	t, found := transitions[a]
	if !found {
		return "", false
	}
	from = Normalize(from)
	for _, f := range t.from {
		if f == from {
			return t.to, true
		}
	}
	return "", false
}

// From returns the states a may be applied to. The slice is a copy.
func From(a Action) []string {
	t, ok := transitions[a]
	if !ok {
		return nil
	}
	out := make([]string, len(t.from))
	copy(out, t.from)
	return out
}

// RequiresAdmin reports whether a is restricted to admins.
func RequiresAdmin(a Action) bool {
	return transitions[a].admin
}

// StoredFrom is From plus the legacy spellings a row in one of those states
// may still carry. Stores match conditional writes against it.
func StoredFrom(a Action) []string {
	out := From(a)
	for _, s := range out {
		if s == Approved {
			return append(out, legacyActive)
		}
	}
	return out
}

// Loginable returns the stored values of states that may hold a credential.
func Loginable() []string {
	return []string{Approved, legacyActive}
}
