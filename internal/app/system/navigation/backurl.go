// Package navigation provides helpers for safe URL navigation and redirects.
package navigation

import (
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// BackURLOptions configures the behavior of SafeBackURL.
type BackURLOptions struct {
	// AllowedPrefix is the required URL prefix. If empty, any safe local
	// URL is allowed.
	AllowedPrefix string

	// ExcludedPrefixes are paths a return URL may not start with.
	ExcludedPrefixes []string

	// Fallback is the default URL if no valid return URL is found.
	Fallback string
}

// SafeBackURL extracts and validates a return URL from the request.
//
// It checks the "return" query parameter, then the form value, rejects
// anything that is not a local path (no open redirects) and applies the
// prefix rules in opts.
func SafeBackURL(r *http.Request, opts BackURLOptions) string {
	ret := urlutil.SafeReturn(query.Get(r, "return"), "", "")
	if ret == "" {
		ret = urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "")
	}
	if ret == "" {
		return opts.Fallback
	}
	if opts.AllowedPrefix != "" && !strings.HasPrefix(ret, opts.AllowedPrefix) {
		return opts.Fallback
	}
	for _, p := range opts.ExcludedPrefixes {
		if strings.HasPrefix(ret, p) {
			return opts.Fallback
		}
	}
	return ret
}

// AfterLogout sends a signed-out browser back where it came from, but never
// into an area that needs a session.
var AfterLogout = BackURLOptions{
	ExcludedPrefixes: []string{"/admin", "/logout", "/api"},
	Fallback:         "/",
}
