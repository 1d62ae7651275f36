// Package account models the service accounts discovered in a user's mailbox.
package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Category is the coarse kind of mail that revealed the account.
type Category string

const (
	CategorySignup         Category = "signup"
	CategoryReceipt        Category = "receipt"
	CategoryAuthentication Category = "authentication"
	CategoryOther          Category = "other"
)

// Categories lists every category in classification priority order.
func Categories() []Category {
	return []Category{CategorySignup, CategoryReceipt, CategoryAuthentication, CategoryOther}
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySignup, CategoryReceipt, CategoryAuthentication, CategoryOther:
		return true
	default:
		return false
	}
}

// Status is the user-controlled lifecycle state of an account.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusDeleted:
		return true
	default:
		return false
	}
}

// ParseStatus validates a user supplied status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

// Checklist tracks the clean-up steps a user ticked for an account.
type Checklist struct {
	PasswordChanged  bool `json:"password_changed"`
	TwoFactorEnabled bool `json:"two_factor_enabled"`
	AccountDeleted   bool `json:"account_deleted"`
	ReviewedTerms    bool `json:"reviewed_terms"`
}

// ChecklistPatch carries a partial checklist update; nil fields are left alone.
type ChecklistPatch struct {
	PasswordChanged  *bool
	TwoFactorEnabled *bool
	AccountDeleted   *bool
	ReviewedTerms    *bool
}

// Apply returns c with the non-nil fields of p applied.
func (p ChecklistPatch) Apply(c Checklist) Checklist {
	if p.PasswordChanged != nil {
		c.PasswordChanged = *p.PasswordChanged
	}
	if p.TwoFactorEnabled != nil {
		c.TwoFactorEnabled = *p.TwoFactorEnabled
	}
	if p.AccountDeleted != nil {
		c.AccountDeleted = *p.AccountDeleted
	}
	if p.ReviewedTerms != nil {
		c.ReviewedTerms = *p.ReviewedTerms
	}
	return c
}

// Account is one discovered service account owned by a user. The pair
// (UserID, ServiceDomain) is unique.
type Account struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ServiceDomain    string    `json:"service_domain"`
	ServiceName      string    `json:"service_name"`
	Category         Category  `json:"category"`
	FirstSeenDate    time.Time `json:"first_seen_date"`
	LastActivityDate time.Time `json:"last_activity_date"`
	InactivityDays   int       `json:"inactivity_days"`
	EvidenceTitle    string    `json:"evidence_title"`
	EvidenceSource   string    `json:"evidence_source"`
	UserConfirmed    bool      `json:"user_confirmed"`
	Checklist        Checklist `json:"checklist"`
	Status           Status    `json:"status"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks the invariants every persisted account must hold.
func (a Account) Validate() error {
	switch {
	case strings.TrimSpace(a.UserID) == "":
		return errors.New("user id is required")
	case a.ServiceDomain == "" || a.ServiceDomain != strings.ToLower(a.ServiceDomain):
		return fmt.Errorf("service domain %q must be a non-empty lowercase hostname", a.ServiceDomain)
	case !a.Category.Valid():
		return fmt.Errorf("invalid category %q", a.Category)
	case !a.Status.Valid():
		return fmt.Errorf("invalid status %q", a.Status)
	case !a.FirstSeenDate.IsZero() && !a.LastActivityDate.IsZero() && a.FirstSeenDate.After(a.LastActivityDate):
		return fmt.Errorf("first seen %s is after last activity %s", a.FirstSeenDate, a.LastActivityDate)
	}
	return nil
}

// NewID returns a fresh account identifier.
func NewID() string { return uuid.NewString() }
