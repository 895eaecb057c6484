// internal/app/store/accounts/store.go
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// pinIndexName must match the unique index created in system/indexes.
const pinIndexName = "uniq_accounts_pin_index"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

// Create inserts a new pending account. ID, timestamps and the folded name
// are filled in here.
func (s *Store) Create(ctx context.Context, a models.Account) (models.Account, error) {
	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.Email = normalize.Email(a.Email)
	a.FullName = normalize.Name(a.FullName)
	a.FullNameCI = text.Fold(a.FullName)
	a.Role = normalize.Role(a.Role)
	if a.Status == "" {
		a.Status = status.Pending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Account{}, mapWriteErr(err)
	}
	return a, nil
}

// GetByID loads an account by ID.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up an account by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// List returns accounts newest first.
func (s *Store) List(ctx context.Context, f models.AccountFilter) ([]models.Account, error) {
	q := bson.M{}
	if f.Status != "" {
		st := status.Normalize(f.Status)
		if st == status.Approved {
			q["status"] = bson.M{"$in": status.Loginable()}
		} else {
			q["status"] = st
		}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(f.Offset)

	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Status = status.Normalize(out[i].Status)
	}
	return out, nil
}

// PinIndexInUse reports whether any account holds the given PIN index.
func (s *Store) PinIndexInUse(ctx context.Context, index string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"pin_index": index}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindByPinIndex returns the loginable account holding index.
func (s *Store) FindByPinIndex(ctx context.Context, index string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{
		"pin_index": index,
		"status":    bson.M{"$in": status.Loginable()},
	})
}

// ListLegacyCredentials returns loginable accounts whose credential predates
// the PIN index: either a hash without an index or a plaintext PIN.
func (s *Store) ListLegacyCredentials(ctx context.Context, limit int64) ([]models.Account, error) {
	q := bson.M{
		"status":    bson.M{"$in": status.Loginable()},
		"pin_index": bson.M{"$exists": false},
		"$or": bson.A{
			bson.M{"pin_hash": bson.M{"$exists": true, "$ne": ""}},
			bson.M{"pin_code": bson.M{"$exists": true, "$ne": ""}},
		},
	}
	cur, err := s.c.Find(ctx, q, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Approve moves a pending account to approved and stores cred in the same
// write. ErrStatusChanged means the account was no longer pending.
func (s *Store) Approve(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return s.transition(ctx, id, status.Approve, bson.M{
		"$set": bson.M{
			"status":      status.Approved,
			"pin_hash":    cred.Hash,
			"pin_index":   cred.Index,
			"approved_at": at,
			"approved_by": actorID,
			"updated_at":  at,
		},
		"$unset": bson.M{"pin_code": ""},
	})
}

// Reject moves a pending account to rejected.
func (s *Store) Reject(ctx context.Context, id, actorID, reason string, at time.Time) error {
	set := bson.M{
		"status":      status.Rejected,
		"rejected_at": at,
		"rejected_by": actorID,
		"updated_at":  at,
	}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	return s.transition(ctx, id, status.Reject, bson.M{"$set": set})
}

// Revoke moves an approved account to revoked and clears every credential
// form it holds.
func (s *Store) Revoke(ctx context.Context, id, actorID string, at time.Time) error {
	return s.transition(ctx, id, status.Revoke, bson.M{
		"$set": bson.M{
			"status":     status.Revoked,
			"revoked_at": at,
			"revoked_by": actorID,
			"updated_at": at,
		},
		"$unset": bson.M{"pin_hash": "", "pin_index": "", "pin_code": ""},
	})
}

// Reopen returns a rejected or revoked account to pending. The actor is
// recorded only in the audit trail.
func (s *Store) Reopen(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, status.Reopen, bson.M{
		"$set": bson.M{
			"status":     status.Pending,
			"updated_at": at,
		},
		"$unset": bson.M{
			"rejected_at": "", "rejected_by": "", "rejection_reason": "",
			"revoked_at": "", "revoked_by": "",
			"credential_reset_at": "", "credential_reset_by": "",
			"pin_hash": "", "pin_index": "", "pin_code": "",
		},
	})
}

// ResetCredential replaces the credential of an approved account. The
// original approver is kept; the reset is recorded separately.
func (s *Store) ResetCredential(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error {
	return s.transition(ctx, id, status.RegenPin, bson.M{
		"$set": bson.M{
			"status":              status.Approved,
			"pin_hash":            cred.Hash,
			"pin_index":           cred.Index,
			"credential_reset_at": at,
			"credential_reset_by": actorID,
			"updated_at":          at,
		},
		"$unset": bson.M{"pin_code": ""},
	})
}

// MigrateCredential upgrades a legacy credential in place after a
// successful login and folds a legacy "active" status into approved.
func (s *Store) MigrateCredential(ctx context.Context, id string, cred models.Credential, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": status.Loginable()}},
		bson.M{
			"$set": bson.M{
				"status":     status.Approved,
				"pin_hash":   cred.Hash,
				"pin_index":  cred.Index,
				"updated_at": at,
			},
			"$unset": bson.M{"pin_code": ""},
		})
	if err != nil {
		return mapWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return storeerr.ErrStatusChanged
	}
	return nil
}

// TouchLastLogin records a successful login time.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": at}})
	return err
}

// NormalizeLegacyStatuses rewrites "active" rows to approved.
func (s *Store) NormalizeLegacyStatuses(ctx context.Context) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"status": "active"},
		bson.M{"$set": bson.M{"status": status.Approved, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) transition(ctx context.Context, id string, a status.Action, update bson.M) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": status.StoredFrom(a)}},
		update)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return storeerr.ErrStatusChanged
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var a models.Account
	if err := s.c.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeerr.ErrNotFound
		}
		return nil, err
	}
	a.Status = status.Normalize(a.Status)
	return &a, nil
}

// mapWriteErr translates duplicate-key errors to the storeerr sentinels by
// the index that fired.
func mapWriteErr(err error) error {
	if !wafflemongo.IsDup(err) {
		return err
	}
	if strings.Contains(err.Error(), pinIndexName) {
		return storeerr.ErrDuplicatePin
	}
	return storeerr.ErrDuplicateEmail
}
