package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{
	"id", "email", "full_name", "full_name_ci", "phone", "role", "status",
	"pin_hash", "pin_index", "pin_code",
	"created_at", "updated_at",
	"approved_at", "approved_by", "rejected_at", "rejected_by", "rejection_reason",
	"revoked_at", "revoked_by", "last_login_at",
	"credential_reset_at", "credential_reset_by",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func pinIndex() string { return strings.Repeat("a", 64) }

func TestAccountStore_Create(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*email,.*VALUES\s*\(\$1,.*\$11\)$`).
		WithArgs(sqlmock.AnyArg(), "diver@example.com", "Reef Diver", sqlmock.AnyArg(), "", "member", "pending",
			nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := store.Create(context.Background(), models.Account{Email: " Diver@Example.com", FullName: "Reef  Diver"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "pending", got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_accounts_email"})

	_, err := store.Create(context.Background(), models.Account{Email: "diver@example.com", FullName: "Reef Diver"})
	assert.ErrorIs(t, err, storeerr.ErrDuplicateEmail)
}

func TestAccountStore_Approve(t *testing.T) {
	q := `(?s)^UPDATE\s+accounts\s+SET\s+status\s*=\s*'approved',\s*pin_hash\s*=\s*\$2,.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s+IN\s*\(\$6\)$`

	tests := []struct {
		name    string
		result  sql.Result
		err     error
		wantErr error
	}{
		{name: "applied", result: sqlmock.NewResult(0, 1)},
		{name: "status changed", result: sqlmock.NewResult(0, 0), wantErr: storeerr.ErrStatusChanged},
		{name: "pin collision", err: &pgconn.PgError{Code: "23505", ConstraintName: pinIndexConstraint}, wantErr: storeerr.ErrDuplicatePin},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			store := NewAccountStore(db)

			exp := mock.ExpectExec(q).
				WithArgs("acct-1", "hash", pinIndex(), sqlmock.AnyArg(), "admin-1", "pending")
			if tc.err != nil {
				exp.WillReturnError(tc.err)
			} else {
				exp.WillReturnResult(tc.result)
			}

			err := store.Approve(context.Background(), "acct-1",
				models.Credential{Hash: "hash", Index: pinIndex()}, "admin-1", time.Now())
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountStore_Revoke_MatchesLegacyActive(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+status\s*=\s*'revoked',\s*pin_hash\s*=\s*NULL,\s*pin_index\s*=\s*NULL,.*status\s+IN\s*\(\$4,\s*\$5\)$`).
		WithArgs("acct-1", sqlmock.AnyArg(), "admin-1", "approved", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Revoke(context.Background(), "acct-1", "admin-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_ResetCredential_KeepsApprover(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+status\s*=\s*'approved',.*credential_reset_by\s*=\s*\$4,\s*credential_reset_at\s*=\s*\$5,.*status\s+IN\s*\(\$6,\s*\$7\)$`).
		WithArgs("acct-1", "hash", pinIndex(), "admin-2", at, "approved", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cred := models.Credential{Hash: "hash", Index: pinIndex()}
	require.NoError(t, store.ResetCredential(context.Background(), "acct-1", cred, "admin-2", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storeerr.ErrNotFound)
}

func TestAccountStore_FindByPinIndex(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accountCols).AddRow(
		"acct-1", "diver@example.com", "Reef Diver", "reef diver", "", "member", "active",
		"hash", pinIndex(), "",
		created, created,
		created, "admin-1", nil, "", "",
		nil, "", nil,
		nil, "",
	)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+pin_index\s*=\s*\$1\s+AND\s+status\s+IN\s*\(\$2,\s*\$3\)$`).
		WithArgs(pinIndex(), "approved", "active").
		WillReturnRows(rows)

	got, err := store.FindByPinIndex(context.Background(), pinIndex())
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.ID)
	assert.Equal(t, "approved", got.Status, "legacy status folds to approved on read")
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(created))
	assert.Nil(t, got.RevokedAt)
}

func TestAccountStore_ListLegacyCredentials(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accountCols).AddRow(
		"old-1", "old@example.com", "Old Timer", "old timer", "", "member", "active",
		"", "", "123456",
		created, created,
		nil, "", nil, "", "",
		nil, "", nil,
		nil, "",
	)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+status\s+IN\s*\(\$1,\s*\$2\)\s+AND\s+pin_index\s+IS\s+NULL.*LIMIT\s+\$3$`).
		WithArgs("approved", "active", int64(100)).
		WillReturnRows(rows)

	got, err := store.ListLegacyCredentials(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "123456", got[0].LegacyPin)
}

func TestAccountStore_List_ByStatus(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+status\s+IN\s*\(\$1\)\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+LIMIT\s+\$2\s+OFFSET\s+\$3$`).
		WithArgs("pending", int64(50), int64(0)).
		WillReturnRows(sqlmock.NewRows(accountCols))

	got, err := store.List(context.Background(), models.AccountFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_PinIndexInUse(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectQuery(`(?s)^SELECT\s+EXISTS`).
		WithArgs(pinIndex()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	inUse, err := store.PinIndexInUse(context.Background(), pinIndex())
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestAccountStore_DBErrorWrapped(t *testing.T) {
	db, mock := newMock(t)
	store := NewAccountStore(db)

	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+last_login_at`).
		WillReturnError(errors.New("connection reset"))

	err := store.TouchLastLogin(context.Background(), "acct-1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: connection reset")
}

func TestRequestStore_LatestByEmail(t *testing.T) {
	db, mock := newMock(t)
	store := NewRequestStore(db)

	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+access_requests\s+WHERE\s+email\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+1$`).
		WithArgs("diver@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "account_id", "full_name", "phone", "ip", "created_at"}).
			AddRow("r-1", "diver@example.com", "acct-1", "Reef Diver", "", "10.0.0.1", at))

	got, err := store.LatestByEmail(context.Background(), "Diver@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", got.AccountID)
	assert.True(t, got.CreatedAt.Equal(at))
}

func TestAuditStore_LogAndQuery(t *testing.T) {
	db, mock := newMock(t)
	store := NewAuditStore(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+audit_events`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "admin", "account_approved", "acct-1", "admin-1",
			"10.0.0.1", "", true, "", []byte(`{"reason":"ok"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Log(context.Background(), audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventAccountApproved,
		AccountID: "acct-1",
		ActorID:   "admin-1",
		IP:        "10.0.0.1",
		Success:   true,
		Details:   map[string]string{"reason": "ok"},
	}))

	ts := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*ts,.*FROM\s+audit_events\s+WHERE\s+category\s*=\s*\$1\s+ORDER\s+BY\s+ts\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3$`).
		WithArgs("admin", int64(100), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts", "category", "event_type", "account_id", "actor_id", "ip", "user_agent", "success", "failure_reason", "details"}).
			AddRow("e-1", ts, "admin", "account_approved", "acct-1", "admin-1", "10.0.0.1", "", true, "", []byte(`{"reason":"ok"}`)))

	events, err := store.Query(context.Background(), audit.QueryFilter{Category: audit.CategoryAdmin})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Details["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStore_CountByFilter(t *testing.T) {
	db, mock := newMock(t)
	store := NewAuditStore(db)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+audit_events\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+ts\s*>=\s*\$2$`).
		WithArgs("acct-1", start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := store.CountByFilter(context.Background(), audit.QueryFilter{AccountID: "acct-1", StartTime: &start, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	mock.ExpectQuery(`(?s)^SELECT\s+count\(\*\)\s+FROM\s+audit_events\s*$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	n, err = store.CountByFilter(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_init.sql", entries[0].Name())

	b, err := migrationsFS.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "CREATE UNIQUE INDEX IF NOT EXISTS "+pinIndexConstraint)
}
