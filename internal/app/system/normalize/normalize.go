// Package normalize canonicalizes user-supplied identity fields before they
// are compared or stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/domain/models"
)

// Email lowercases and trims an address. Every lookup by email goes through
// this first.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims and collapses runs of whitespace. Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Phone trims and collapses whitespace. Formatting characters are kept so
// the number reads the way the member typed it.
func Phone(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role lowercases a role and maps unknown values to member.
func Role(s string) string {
	if strings.ToLower(strings.TrimSpace(s)) == models.RoleAdmin {
		return models.RoleAdmin
	}
	return models.RoleMember
}

// Status canonicalizes a lifecycle status, folding legacy values.
func Status(s string) string {
	return status.Normalize(s)
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
