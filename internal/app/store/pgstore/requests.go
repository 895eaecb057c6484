package pgstore

import (
	"context"
	"time"

	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/google/uuid"
)

// RequestStore keeps the access_requests log.
type RequestStore struct {
	db DBTX
}

func NewRequestStore(db DBTX) *RequestStore {
	return &RequestStore{db: db}
}

func (s *RequestStore) Record(ctx context.Context, r models.AccessRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_requests (id, email, account_id, full_name, phone, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, normalize.Email(r.Email), r.AccountID, r.FullName, r.Phone, r.IP, r.CreatedAt)
	return mapErr(err)
}

func (s *RequestStore) LatestByEmail(ctx context.Context, email string) (*models.AccessRequest, error) {
	var r models.AccessRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, account_id, full_name, phone, ip, created_at FROM access_requests
		WHERE email = $1 ORDER BY created_at DESC LIMIT 1`, normalize.Email(email)).
		Scan(&r.ID, &r.Email, &r.AccountID, &r.FullName, &r.Phone, &r.IP, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}
