package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/store/accessrequests"
	"github.com/dalemusser/divehub/internal/app/store/accounts"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/indexes"
	"github.com/dalemusser/divehub/internal/app/system/lockout"
	"github.com/dalemusser/divehub/internal/app/system/pinhash"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TestIndexKey is the PIN index key used by every test stack.
const TestIndexKey = "divehub-test-index-key-0123456789"

// Stack is a pinauth.Service over the MongoDB stores of a test database.
type Stack struct {
	Service *pinauth.Service
	Hasher  *pinhash.Hasher
	Indexer *pinhash.Indexer
	Audit   *audit.Store
}

// NewStack builds the service the way bootstrap does, with an in-memory
// lockout tracker and indexes in place.
func NewStack(t *testing.T, db *mongo.Database) *Stack {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	ix, err := pinhash.NewIndexer([]byte(TestIndexKey))
	if err != nil {
		t.Fatalf("indexer: %v", err)
	}
	hasher := pinhash.New(pinhash.MinIterations, nil)
	auditStore := audit.New(db)

	svc, err := pinauth.New(pinauth.Deps{
		Accounts: accounts.New(db),
		Requests: accessrequests.New(db),
		Lockout:  lockout.NewMemory(lockout.Policy{}, nil),
		Hasher:   hasher,
		Indexer:  ix,
		Audit:    auditlog.New(auditStore, zap.NewNop(), auditlog.Config{}),
		Logger:   zap.NewNop(),
	}, pinauth.Config{})
	if err != nil {
		t.Fatalf("pinauth.New: %v", err)
	}
	t.Cleanup(svc.Wait)

	return &Stack{Service: svc, Hasher: hasher, Indexer: ix, Audit: auditStore}
}

// Credential hashes and indexes pin for use with Fixtures.CreateApproved.
func (s *Stack) Credential(t *testing.T, pin string) models.Credential {
	t.Helper()
	h, err := s.Hasher.Hash(pin)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	return models.Credential{Hash: h, Index: s.Indexer.Index(pin)}
}

// Approved inserts an approved account holding pin.
func (s *Stack) Approved(ctx context.Context, t *testing.T, f *Fixtures, name, email, role, pin string) models.Account {
	t.Helper()
	return f.CreateApproved(ctx, name, email, role, s.Credential(t, pin))
}
