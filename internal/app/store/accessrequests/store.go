// internal/app/store/accessrequests/store.go
package accessrequests

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store keeps the append-only log of accepted access requests.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("access_requests")}
}

// Record appends r, filling in ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, r models.AccessRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Email = normalize.Email(r.Email)
	_, err := s.c.InsertOne(ctx, r)
	return err
}

// LatestByEmail returns the most recent request for email.
func (s *Store) LatestByEmail(ctx context.Context, email string) (*models.AccessRequest, error) {
	var r models.AccessRequest
	err := s.c.FindOne(ctx,
		bson.M{"email": normalize.Email(email)},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storeerr.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}
