// internal/domain/models/accessrequest.go
package models

import "time"

// AccessRequest records one accepted self-service submission. Rows are kept
// regardless of what later happens to the account and drive the resubmission
// cooldown.
type AccessRequest struct {
	ID        string    `bson:"_id" json:"id"`
	Email     string    `bson:"email" json:"email"`
	AccountID string    `bson:"account_id" json:"account_id"`
	FullName  string    `bson:"full_name" json:"full_name"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	IP        string    `bson:"ip,omitempty" json:"ip,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
