package pinauth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

const (
	maxNameLen  = 120
	maxEmailLen = 254
	maxPhoneLen = 40
)

var (
	emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRE = regexp.MustCompile(`^[0-9+().\- ]*$`)
)

// Access request outcomes, used as metric labels.
const (
	outcomeAccepted = "accepted"
	outcomeInvalid  = "invalid"
	outcomeCooldown = "cooldown"
	outcomeExisting = "existing"
)

// Submission is a prospective member's self-service request.
type Submission struct {
	Name      string
	Email     string
	Phone     string
	IP        string
	UserAgent string
}

// SubmitAccessRequest creates a pending account for a new email.
//
// Order of checks: input validation, then the resubmission cooldown, then
// the state of any existing account with the email. The unique email index
// is the backstop when two submissions race.
func (s *Service) SubmitAccessRequest(ctx context.Context, sub Submission) (*models.Account, error) {
	name, email, phone, err := validateSubmission(sub)
	if err != nil {
		s.metrics.AccessRequest(outcomeInvalid)
		return nil, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "submit access request")
	defer cancel()

	now := s.clock()

	last, err := s.requests.LatestByEmail(ctx, email)
	switch {
	case err == nil:
		if wait := s.cfg.RequestCooldown - now.Sub(last.CreatedAt); wait > 0 {
			s.metrics.AccessRequest(outcomeCooldown)
			s.audit.AccessRequestDenied(ctx, email, "cooldown")
			return nil, apperr.RateLimited(cooldownMessage(wait), wait)
		}
	case !errors.Is(err, storeerr.ErrNotFound):
		return nil, s.storeFailure("latest access request", err)
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.metrics.AccessRequest(outcomeExisting)
		s.audit.AccessRequestDenied(ctx, email, "existing account "+existing.Status)
		return nil, existingAccountError(existing.Status)
	case !errors.Is(err, storeerr.ErrNotFound):
		return nil, s.storeFailure("lookup by email", err)
	}

	acct, err := s.accounts.Create(ctx, models.Account{
		Email:     email,
		FullName:  name,
		Phone:     phone,
		Role:      models.RoleMember,
		Status:    status.Pending,
		CreatedAt: now,
	})
	if err != nil {
		if errors.Is(err, storeerr.ErrDuplicateEmail) {
			s.metrics.AccessRequest(outcomeExisting)
			return nil, existingAccountError(status.Pending)
		}
		return nil, s.storeFailure("create account", err)
	}

	if err := s.requests.Record(ctx, models.AccessRequest{
		Email:     email,
		AccountID: acct.ID,
		FullName:  name,
		Phone:     phone,
		IP:        sub.IP,
		CreatedAt: now,
	}); err != nil {
		// The account exists; a missing log row only weakens the cooldown.
		s.log.Warn("failed to record access request",
			zap.String("account_id", acct.ID), zap.Error(err))
	}

	s.metrics.AccessRequest(outcomeAccepted)
	s.audit.AccessRequested(ctx, acct.ID, email)
	s.log.Info("access request accepted", zap.String("account_id", acct.ID))
	return &acct, nil
}

func validateSubmission(sub Submission) (name, email, phone string, err error) {
	if strings.ContainsAny(sub.Name, "<>") {
		return "", "", "", apperr.Validation("name", "Name must not contain < or >.")
	}
	name = normalize.Name(htmlsanitize.PlainText(sub.Name))
	if name == "" {
		return "", "", "", apperr.Validation("name", "Name is required.")
	}
	if len(name) > maxNameLen {
		return "", "", "", apperr.Validation("name", fmt.Sprintf("Name must be at most %d characters.", maxNameLen))
	}

	email = normalize.Email(sub.Email)
	if email == "" {
		return "", "", "", apperr.Validation("email", "Email is required.")
	}
	if len(email) > maxEmailLen || !emailRE.MatchString(email) {
		return "", "", "", apperr.Validation("email", "Enter a valid email address.")
	}

	phone = normalize.Phone(sub.Phone)
	if len(phone) > maxPhoneLen || !phoneRE.MatchString(phone) {
		return "", "", "", apperr.Validation("phone", "Phone may contain only digits, spaces and + ( ) - .")
	}
	return name, email, phone, nil
}

func existingAccountError(st string) error {
	switch status.Normalize(st) {
	case status.Pending:
		return apperr.Conflict("A request for this email is already pending. Please wait for approval.")
	case status.Approved:
		return apperr.Conflict("This email is already approved. Log in with your PIN.")
	default:
		return apperr.Conflict("This request cannot be resubmitted. Please contact an administrator.")
	}
}

// cooldownMessage rounds the remaining wait up to whole hours.
func cooldownMessage(wait time.Duration) string {
	hours := int(math.Ceil(wait.Hours()))
	if hours <= 1 {
		return "A request for this email was submitted recently. Please wait 1 hour before trying again."
	}
	return fmt.Sprintf("A request for this email was submitted recently. Please wait %d hours before trying again.", hours)
}
