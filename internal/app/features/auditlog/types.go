// internal/app/features/auditlog/types.go
package auditlog

import "github.com/dalemusser/divehub/internal/app/store/audit"

type listResponse struct {
	Events []audit.Event `json:"events"`
	Total  int64         `json:"total"`
	Limit  int64         `json:"limit"`
	Offset int64         `json:"offset"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventAccessRequested,
		audit.EventAccessRequestDenied,
		audit.EventLoginSuccess,
		audit.EventLoginFailedPin,
		audit.EventLoginFailedLocked,
		audit.EventPinMigrated,
		audit.EventLogout,
	}

	adminEvents := []string{
		audit.EventAccountApproved,
		audit.EventAccountRejected,
		audit.EventAccountRevoked,
		audit.EventAccountReopened,
		audit.EventPinRegenerated,
		audit.EventAdminBootstrapped,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		return all
	default:
		return nil
	}
}

func knownEventType(category, eventType string) bool {
	for _, e := range eventTypesForCategory(category) {
		if e == eventType {
			return true
		}
	}
	return false
}
