// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON and form endpoints.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxIntakeBody bounds an access request (name, email, phone).
	MaxIntakeBody = 8 << 10 // 8 KB

	// MaxLoginBody bounds a PIN login; the payload is a single short field.
	MaxLoginBody = 1 << 10 // 1 KB

	// MaxAdminActionBody bounds admin action bodies such as a rejection
	// reason.
	MaxAdminActionBody = 4 << 10 // 4 KB
)
