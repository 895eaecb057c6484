package pinauth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/lockout"
	"github.com/dalemusser/divehub/internal/app/system/pinhash"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/google/uuid"
)

// memStore is an in-memory AccountStore with the same conditional-write
// and uniqueness behaviour as the real stores.
type memStore struct {
	mu   sync.Mutex
	rows map[string]models.Account

	reads  atomic.Int64
	writes atomic.Int64

	// fault, when set, runs before each conditional write (op is the action
	// name) and each GetByID (op "get"). A non-nil error fails the call;
	// land applies the write first, as a write whose reply was lost.
	fault func(op string) (land bool, err error)
}

func (m *memStore) injected(op string) (bool, error) {
	if m.fault == nil {
		return false, nil
	}
	return m.fault(op)
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]models.Account{}}
}

func (m *memStore) put(a models.Account) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.rows[a.ID] = a
	return a
}

func (m *memStore) get(id string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memStore) Create(_ context.Context, a models.Account) (models.Account, error) {
	m.writes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == a.Email {
			return models.Account{}, storeerr.ErrDuplicateEmail
		}
	}
	a.ID = uuid.NewString()
	if a.Status == "" {
		a.Status = status.Pending
	}
	a.UpdatedAt = a.CreatedAt
	m.rows[a.ID] = a
	return a, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.reads.Add(1)
	if _, err := m.injected("get"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, storeerr.ErrNotFound
	}
	a.Status = status.Normalize(a.Status)
	return &a, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Email == strings.ToLower(strings.TrimSpace(email)) {
			a.Status = status.Normalize(a.Status)
			return &a, nil
		}
	}
	return nil, storeerr.ErrNotFound
}

func (m *memStore) List(_ context.Context, f models.AccountFilter) ([]models.Account, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.rows {
		a.Status = status.Normalize(a.Status)
		if f.Status == "" || a.Status == f.Status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > f.Limit && f.Limit > 0 {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) PinIndexInUse(_ context.Context, index string) (bool, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.PinIndex == index {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindByPinIndex(_ context.Context, index string) (*models.Account, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.PinIndex == index && status.CanLogin(a.Status) {
			a.Status = status.Normalize(a.Status)
			return &a, nil
		}
	}
	return nil, storeerr.ErrNotFound
}

func (m *memStore) ListLegacyCredentials(_ context.Context, limit int64) ([]models.Account, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.rows {
		if status.CanLogin(a.Status) && a.PinIndex == "" && a.HasCredential() {
			out = append(out, a)
		}
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// update applies fn to id when its stored status is one of from. fn runs
// under the lock.
func (m *memStore) update(op, id string, from []string, fn func(a *models.Account) error) error {
	m.writes.Add(1)
	land, ferr := m.injected(op)
	if ferr != nil && !land {
		return ferr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || !contains(from, a.Status) {
		return storeerr.ErrStatusChanged
	}
	if err := fn(&a); err != nil {
		return err
	}
	m.rows[id] = a
	return ferr
}

func (m *memStore) indexTakenLocked(id, index string) bool {
	for _, r := range m.rows {
		if r.ID != id && r.PinIndex == index {
			return true
		}
	}
	return false
}

func (m *memStore) setCred(a *models.Account, cred models.Credential) error {
	if m.indexTakenLocked(a.ID, cred.Index) {
		return storeerr.ErrDuplicatePin
	}
	a.Status = status.Approved
	a.PinHash, a.PinIndex, a.LegacyPin = cred.Hash, cred.Index, ""
	return nil
}

func (m *memStore) Approve(_ context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return m.update("approve", id, status.StoredFrom(status.Approve), func(a *models.Account) error {
		if err := m.setCred(a, cred); err != nil {
			return err
		}
		a.ApprovedAt, a.ApprovedBy, a.UpdatedAt = &at, actorID, at
		return nil
	})
}

func (m *memStore) Reject(_ context.Context, id, actorID, reason string, at time.Time) error {
	return m.update("reject", id, status.StoredFrom(status.Reject), func(a *models.Account) error {
		a.Status = status.Rejected
		a.RejectedAt, a.RejectedBy, a.RejectionReason, a.UpdatedAt = &at, actorID, reason, at
		return nil
	})
}

func (m *memStore) Revoke(_ context.Context, id, actorID string, at time.Time) error {
	return m.update("revoke", id, status.StoredFrom(status.Revoke), func(a *models.Account) error {
		a.Status = status.Revoked
		a.PinHash, a.PinIndex, a.LegacyPin = "", "", ""
		a.RevokedAt, a.RevokedBy, a.UpdatedAt = &at, actorID, at
		return nil
	})
}

func (m *memStore) Reopen(_ context.Context, id string, at time.Time) error {
	return m.update("reopen", id, status.StoredFrom(status.Reopen), func(a *models.Account) error {
		a.Status = status.Pending
		a.PinHash, a.PinIndex, a.LegacyPin = "", "", ""
		a.RejectedAt, a.RejectedBy, a.RejectionReason = nil, "", ""
		a.RevokedAt, a.RevokedBy = nil, ""
		a.CredentialResetAt, a.CredentialResetBy = nil, ""
		a.UpdatedAt = at
		return nil
	})
}

func (m *memStore) ResetCredential(_ context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return m.update("regenerate", id, status.StoredFrom(status.RegenPin), func(a *models.Account) error {
		if err := m.setCred(a, cred); err != nil {
			return err
		}
		a.CredentialResetAt, a.CredentialResetBy, a.UpdatedAt = &at, actorID, at
		return nil
	})
}

func (m *memStore) MigrateCredential(_ context.Context, id string, cred models.Credential, at time.Time) error {
	return m.update("migrate", id, status.Loginable(), func(a *models.Account) error {
		if err := m.setCred(a, cred); err != nil {
			return err
		}
		a.UpdatedAt = at
		return nil
	})
}

func (m *memStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return storeerr.ErrNotFound
	}
	a.LastLoginAt = &at
	m.rows[id] = a
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memRequests struct {
	mu   sync.Mutex
	rows []models.AccessRequest
}

func (r *memRequests) Record(_ context.Context, req models.AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, req)
	return nil
}

func (r *memRequests) LatestByEmail(_ context.Context, email string) (*models.AccessRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.AccessRequest
	for i := range r.rows {
		if r.rows[i].Email != email {
			continue
		}
		if latest == nil || r.rows[i].CreatedAt.After(latest.CreatedAt) {
			latest = &r.rows[i]
		}
	}
	if latest == nil {
		return nil, storeerr.ErrNotFound
	}
	out := *latest
	return &out, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc      *Service
	accounts *memStore
	requests *memRequests
	clock    *fakeClock
	hasher   *pinhash.Hasher
	indexer  *pinhash.Indexer
	admin    models.Account
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	h := &harness{
		accounts: newMemStore(),
		requests: &memRequests{},
		clock:    clock,
		hasher:   pinhash.New(pinhash.MinIterations, nil),
	}
	ix, err := pinhash.NewIndexer([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	h.indexer = ix

	svc, err := New(Deps{
		Accounts: h.accounts,
		Requests: h.requests,
		Lockout:  lockout.NewMemory(lockout.Policy{}, clock.Now),
		Hasher:   h.hasher,
		Indexer:  h.indexer,
		Now:      clock.Now,
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Wait)
	h.svc = svc

	h.admin = h.accounts.put(models.Account{
		Email:     "admin@divehub.test",
		FullName:  "Ada Admin",
		Role:      models.RoleAdmin,
		Status:    status.Approved,
		CreatedAt: clock.Now(),
	})
	return h
}

func (h *harness) pending(t *testing.T, email string) models.Account {
	t.Helper()
	return h.accounts.put(models.Account{
		Email:     email,
		FullName:  "Pat Pending",
		Role:      models.RoleMember,
		Status:    status.Pending,
		CreatedAt: h.clock.Now(),
	})
}

func (h *harness) approved(t *testing.T, email string) Issued {
	t.Helper()
	acct := h.pending(t, email)
	iss, err := h.svc.ApproveAndIssuePin(context.Background(), acct.ID, h.admin.ID)
	if err != nil {
		t.Fatalf("ApproveAndIssuePin(%s): %v", email, err)
	}
	return iss
}
