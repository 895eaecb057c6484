// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// Page is a limit/offset window.
type Page struct {
	Limit  int64
	Offset int64
}

// Parse reads "limit" and "offset" query parameters. A missing or invalid
// limit becomes def; limits above max are clamped when max > 0. Negative or
// invalid offsets become 0.
func Parse(r *http.Request, def, max int64) Page {
	p := Page{Limit: def}
	if n, err := strconv.ParseInt(query.Get(r, "limit"), 10, 64); err == nil && n > 0 {
		p.Limit = n
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	if n, err := strconv.ParseInt(query.Get(r, "offset"), 10, 64); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

// HasMore reports whether rows exist past this page given a total count.
func (p Page) HasMore(total int64) bool {
	return p.Offset+p.Limit < total
}
