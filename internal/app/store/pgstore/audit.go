package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dalemusser/divehub/internal/app/store/audit"
)

// AuditStore keeps audit events in the audit_events table.
type AuditStore struct {
	db DBTX
}

func NewAuditStore(db DBTX) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, e audit.Event) error {
	audit.Prepare(&e)

	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		details = b
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, ts, category, event_type, account_id, actor_id, ip, user_agent, success, failure_reason, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Timestamp, e.Category, e.EventType, e.AccountID, e.ActorID,
		e.IP, e.UserAgent, e.Success, e.FailureReason, details)
	return mapErr(err)
}

// auditWhere renders the filter as a WHERE clause and its arguments.
func auditWhere(f audit.QueryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.EventType != "" {
		add("event_type = $%d", f.EventType)
	}
	if f.StartTime != nil {
		add("ts >= $%d", *f.StartTime)
	}
	if f.EndTime != nil {
		add("ts <= $%d", *f.EndTime)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// CountByFilter counts events matching f, ignoring Limit and Offset.
func (s *AuditStore) CountByFilter(ctx context.Context, f audit.QueryFilter) (int64, error) {
	where, args := auditWhere(f)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM audit_events `+where, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *AuditStore) Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	where, args := auditWhere(f)
	args = append(args, audit.EffectiveLimit(f.Limit), f.Offset)
	query := fmt.Sprintf(`SELECT id, ts, category, event_type, account_id, actor_id, ip, user_agent, success, failure_reason, details
		FROM audit_events %s ORDER BY ts DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e       audit.Event
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Category, &e.EventType, &e.AccountID, &e.ActorID,
			&e.IP, &e.UserAgent, &e.Success, &e.FailureReason, &details); err != nil {
			return nil, mapErr(err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
