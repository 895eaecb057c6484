// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/paging"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /admin/audit. Query parameters:
// account_id, category, event_type, start_date, end_date (YYYY-MM-DD, UTC,
// end date inclusive), limit, offset.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.ErrLog.Write(w, r, "audit filter", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit list")
	defer cancel()

	events, err := h.Events.Query(ctx, f)
	if err != nil {
		h.ErrLog.Write(w, r, "audit query", apperr.Internal("could not load audit events", err))
		return
	}
	total, err := h.Events.CountByFilter(ctx, f)
	if err != nil {
		h.Log.Warn("audit count failed", zap.Error(err))
		total = int64(len(events)) + f.Offset
	}

	if events == nil {
		events = []audit.Event{}
	}
	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Events: events,
		Total:  total,
		Limit:  audit.EffectiveLimit(f.Limit),
		Offset: f.Offset,
	})
}

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	f := audit.QueryFilter{
		AccountID: normalize.QueryParam(q.Get("account_id")),
		Category:  normalize.QueryParam(q.Get("category")),
		EventType: normalize.QueryParam(q.Get("event_type")),
	}

	switch f.Category {
	case "", audit.CategoryAuth, audit.CategoryAdmin:
	default:
		return f, apperr.Validation("category", "Unknown category.")
	}
	if f.EventType != "" && !knownEventType(f.Category, f.EventType) {
		return f, apperr.Validation("event_type", "Unknown event type for this category.")
	}

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, apperr.Validation("start_date", "Use YYYY-MM-DD.")
		}
		f.StartTime = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, apperr.Validation("end_date", "Use YYYY-MM-DD.")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}
	if f.StartTime != nil && f.EndTime != nil && f.EndTime.Before(*f.StartTime) {
		return f, apperr.Validation("end_date", "End date is before start date.")
	}

	page := paging.Parse(r, 0, 0)
	f.Limit, f.Offset = page.Limit, page.Offset
	return f, nil
}
