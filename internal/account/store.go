package account

import "context"

// Store persists accounts. Implementations must treat (userID, domain) as a
// unique key so concurrent discovery runs never create duplicates.
type Store interface {
	FindByUserAndDomain(ctx context.Context, userID, domain string) (Account, bool, error)
	Upsert(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, userID, id string) (Account, error)
	// List returns the user's accounts, newest first. An empty status lists all.
	List(ctx context.Context, userID string, status Status, limit int) ([]Account, error)
	Confirm(ctx context.Context, userID, id string) (Account, error)
	UpdateChecklist(ctx context.Context, userID, id string, patch ChecklistPatch) (Account, error)
	SetStatus(ctx context.Context, userID, id string, status Status) (Account, error)
}

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 200
