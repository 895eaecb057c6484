package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAccount inserts an account with the given role and status and no
// credential.
func (f *Fixtures) CreateAccount(ctx context.Context, fullName, email, role, status string) models.Account {
	f.t.Helper()
	return f.insert(ctx, models.Account{
		FullName: fullName,
		Email:    email,
		Role:     role,
		Status:   status,
	})
}

// CreatePending inserts a member account awaiting review.
func (f *Fixtures) CreatePending(ctx context.Context, fullName, email string) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, fullName, email, models.RoleMember, "pending")
}

// CreateApproved inserts an approved account holding cred.
func (f *Fixtures) CreateApproved(ctx context.Context, fullName, email, role string, cred models.Credential) models.Account {
	f.t.Helper()
	now := time.Now().UTC()
	return f.insert(ctx, models.Account{
		FullName:   fullName,
		Email:      email,
		Role:       role,
		Status:     "approved",
		PinHash:    cred.Hash,
		PinIndex:   cred.Index,
		ApprovedAt: &now,
	})
}

// CreateLegacy inserts an account in the pre-hashing shape: status
// "active" with the PIN stored as written.
func (f *Fixtures) CreateLegacy(ctx context.Context, fullName, email, pin string) models.Account {
	f.t.Helper()
	return f.insert(ctx, models.Account{
		FullName:  fullName,
		Email:     email,
		Role:      models.RoleMember,
		Status:    "active",
		LegacyPin: pin,
	})
}

func (f *Fixtures) insert(ctx context.Context, a models.Account) models.Account {
	f.t.Helper()

	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.FullNameCI = text.Fold(a.FullName)
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := f.db.Collection("accounts").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test account: %v", err)
	}
	return a
}
