// internal/app/features/members/types.go
package members

import (
	"time"

	"github.com/dalemusser/divehub/internal/domain/models"
)

// accountView is an account as shown to admins. Credential fields never
// leave the service.
type accountView struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"full_name"`
	Phone           string     `json:"phone,omitempty"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	HasPin          bool       `json:"has_pin"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

func toView(a *models.Account) accountView {
	return accountView{
		ID:              a.ID,
		Email:           a.Email,
		FullName:        a.FullName,
		Phone:           a.Phone,
		Role:            a.Role,
		Status:          a.Status,
		HasPin:          a.HasCredential(),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		ApprovedAt:      a.ApprovedAt,
		ApprovedBy:      a.ApprovedBy,
		RejectedAt:      a.RejectedAt,
		RejectionReason: a.RejectionReason,
		RevokedAt:       a.RevokedAt,
		LastLoginAt:     a.LastLoginAt,
	}
}

type listResponse struct {
	Accounts []accountView `json:"accounts"`
	Limit    int64         `json:"limit"`
	Offset   int64         `json:"offset"`
}

// issuedResponse carries a freshly issued PIN. It is the only time the
// plaintext is ever sent.
type issuedResponse struct {
	PIN     string      `json:"pin"`
	Account accountView `json:"account"`
}
