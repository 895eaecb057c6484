// internal/domain/models/account.go
package models

import "time"

// Account roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Account is a prospective or approved member of the community.
//
// NOTE:
//   - PinHash and PinIndex are set together by issuance and cleared together
//     by revocation. PinIndex carries a store-level unique index.
//   - LegacyPin is only ever read. Rows written before hashing was introduced
//     carry it until their owner's next successful login migrates them.
type Account struct {
	ID         string `bson:"_id" json:"id"`
	Email      string `bson:"email" json:"email"`
	FullName   string `bson:"full_name" json:"full_name"`
	FullNameCI string `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Role       string `bson:"role" json:"role"`     // member | admin
	Status     string `bson:"status" json:"status"` // pending | approved | rejected | revoked

	PinHash   string `bson:"pin_hash,omitempty" json:"-"`
	PinIndex  string `bson:"pin_index,omitempty" json:"-"`
	LegacyPin string `bson:"pin_code,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	ApprovedAt      *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy      string     `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	RejectedAt      *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectedBy      string     `bson:"rejected_by,omitempty" json:"rejected_by,omitempty"`
	RejectionReason string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	RevokedAt       *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	RevokedBy       string     `bson:"revoked_by,omitempty" json:"revoked_by,omitempty"`
	LastLoginAt     *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`

	// Set by PIN regeneration; ApprovedBy keeps the original approver.
	CredentialResetAt *time.Time `bson:"credential_reset_at,omitempty" json:"credential_reset_at,omitempty"`
	CredentialResetBy string     `bson:"credential_reset_by,omitempty" json:"credential_reset_by,omitempty"`
}

// IsAdmin reports whether the account carries the admin role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// HasCredential reports whether any stored credential form is present.
func (a Account) HasCredential() bool {
	return a.PinHash != "" || a.LegacyPin != ""
}

// Credential is the stored form of an issued PIN.
type Credential struct {
	Hash  string
	Index string
}
