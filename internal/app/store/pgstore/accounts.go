package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
)

const accountColumns = `id, email, full_name, full_name_ci, phone, role, status,
	COALESCE(pin_hash, ''), COALESCE(pin_index, ''), COALESCE(pin_code, ''),
	created_at, updated_at,
	approved_at, approved_by, rejected_at, rejected_by, rejection_reason,
	revoked_at, revoked_by, last_login_at,
	credential_reset_at, credential_reset_by`

// AccountStore keeps accounts in the accounts table.
type AccountStore struct {
	db DBTX
}

func NewAccountStore(db DBTX) *AccountStore {
	return &AccountStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a                                         models.Account
		approvedAt, rejectedAt, revokedAt, ll, cr sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.FullName, &a.FullNameCI, &a.Phone, &a.Role, &a.Status,
		&a.PinHash, &a.PinIndex, &a.LegacyPin,
		&a.CreatedAt, &a.UpdatedAt,
		&approvedAt, &a.ApprovedBy, &rejectedAt, &a.RejectedBy, &a.RejectionReason,
		&revokedAt, &a.RevokedBy, &ll,
		&cr, &a.CredentialResetBy,
	)
	if err != nil {
		return nil, err
	}
	a.Status = status.Normalize(a.Status)
	a.ApprovedAt = timePtr(approvedAt)
	a.RejectedAt = timePtr(rejectedAt)
	a.RevokedAt = timePtr(revokedAt)
	a.LastLoginAt = timePtr(ll)
	a.CredentialResetAt = timePtr(cr)
	return &a, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *AccountStore) Create(ctx context.Context, a models.Account) (models.Account, error) {
	a.ID = uuid.NewString()
	a.Email = normalize.Email(a.Email)
	a.FullName = normalize.Name(a.FullName)
	a.FullNameCI = text.Fold(a.FullName)
	a.Role = normalize.Role(a.Role)
	if a.Status == "" {
		a.Status = status.Pending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	query := `INSERT INTO accounts (id, email, full_name, full_name_ci, phone, role, status, pin_hash, pin_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Email, a.FullName, a.FullNameCI, a.Phone, a.Role, a.Status,
		nullIfEmpty(a.PinHash), nullIfEmpty(a.PinIndex), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return models.Account{}, mapErr(err)
	}
	return a, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, normalize.Email(email)))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *AccountStore) List(ctx context.Context, f models.AccountFilter) ([]models.Account, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		where string
		args  []any
	)
	if f.Status != "" {
		vals := []string{status.Normalize(f.Status)}
		if vals[0] == status.Approved {
			vals = status.Loginable()
		}
		var ph string
		ph, args = inList(1, vals)
		where = "WHERE status IN (" + ph + ")"
	}
	n := len(args)
	args = append(args, limit, f.Offset)

	query := fmt.Sprintf(`SELECT %s FROM accounts %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		accountColumns, where, n+1, n+2)
	return s.queryAccounts(ctx, query, args...)
}

func (s *AccountStore) PinIndexInUse(ctx context.Context, index string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE pin_index = $1)`, index).Scan(&exists)
	if err != nil {
		return false, mapErr(err)
	}
	return exists, nil
}

func (s *AccountStore) FindByPinIndex(ctx context.Context, index string) (*models.Account, error) {
	ph, args := inList(2, status.Loginable())
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE pin_index = $1 AND status IN (`+ph+`)`,
		append([]any{index}, args...)...))
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *AccountStore) ListLegacyCredentials(ctx context.Context, limit int64) ([]models.Account, error) {
	ph, args := inList(1, status.Loginable())
	query := fmt.Sprintf(`SELECT %s FROM accounts
		WHERE status IN (%s) AND pin_index IS NULL
		AND (COALESCE(pin_hash, '') <> '' OR COALESCE(pin_code, '') <> '')
		ORDER BY created_at LIMIT $%d`, accountColumns, ph, len(args)+1)
	return s.queryAccounts(ctx, query, append(args, limit)...)
}

func (s *AccountStore) Approve(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return s.transition(ctx, status.Approve,
		`status = 'approved', pin_hash = $2, pin_index = $3, pin_code = NULL, approved_at = $4, approved_by = $5, updated_at = $4`,
		id, cred.Hash, cred.Index, at, actorID)
}

func (s *AccountStore) Reject(ctx context.Context, id, actorID, reason string, at time.Time) error {
	return s.transition(ctx, status.Reject,
		`status = 'rejected', rejected_at = $2, rejected_by = $3, rejection_reason = $4, updated_at = $2`,
		id, at, actorID, reason)
}

func (s *AccountStore) Revoke(ctx context.Context, id, actorID string, at time.Time) error {
	return s.transition(ctx, status.Revoke,
		`status = 'revoked', pin_hash = NULL, pin_index = NULL, pin_code = NULL, revoked_at = $2, revoked_by = $3, updated_at = $2`,
		id, at, actorID)
}

func (s *AccountStore) Reopen(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, status.Reopen,
		`status = 'pending', pin_hash = NULL, pin_index = NULL, pin_code = NULL,
		rejected_at = NULL, rejected_by = '', rejection_reason = '',
		revoked_at = NULL, revoked_by = '',
		credential_reset_at = NULL, credential_reset_by = '', updated_at = $2`,
		id, at)
}

func (s *AccountStore) ResetCredential(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return s.transition(ctx, status.RegenPin,
		`status = 'approved', pin_hash = $2, pin_index = $3, pin_code = NULL, credential_reset_by = $4, credential_reset_at = $5, updated_at = $5`,
		id, cred.Hash, cred.Index, actorID, at)
}

func (s *AccountStore) MigrateCredential(ctx context.Context, id string, cred models.Credential, at time.Time) error {
	ph, args := inList(5, status.Loginable())
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = 'approved', pin_hash = $2, pin_index = $3, pin_code = NULL, updated_at = $4
		WHERE id = $1 AND status IN (`+ph+`)`,
		append([]any{id, cred.Hash, cred.Index, at}, args...)...)
	return affected(res, err)
}

func (s *AccountStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	return mapErr(err)
}

// NormalizeLegacyStatuses is a no-op after migration 00002 but is kept so
// both backends honour the same startup contract.
func (s *AccountStore) NormalizeLegacyStatuses(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = 'approved', updated_at = now() WHERE status = 'active'`)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// transition runs UPDATE accounts SET <set> guarded by the legal source
// states of a. args[0] must be the id; set may reference $2.. from args.
func (s *AccountStore) transition(ctx context.Context, a status.Action, set string, args ...any) error {
	ph, statusArgs := inList(len(args)+1, status.StoredFrom(a))
	query := `UPDATE accounts SET ` + set + ` WHERE id = $1 AND status IN (` + ph + `)`
	res, err := s.db.ExecContext(ctx, query, append(args, statusArgs...)...)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return storeerr.ErrStatusChanged
	}
	return nil
}

func (s *AccountStore) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
