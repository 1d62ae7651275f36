package account

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by dry runs and tests.
type MemoryStore struct {
	Clock func() time.Time

	mu       sync.RWMutex
	byID     map[string]*Account
	byDomain map[string]string // userID + "\x00" + domain -> id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Clock:    time.Now,
		byID:     map[string]*Account{},
		byDomain: map[string]string{},
	}
}

func domainKey(userID, domain string) string { return userID + "\x00" + domain }

func (m *MemoryStore) FindByUserAndDomain(ctx context.Context, userID, domain string) (Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDomain[domainKey(userID, domain)]
	if !ok {
		return Account{}, false, nil
	}
	return *m.byID[id], true, nil
}

// Upsert inserts a or folds it into the record holding the same (user, domain)
// key. Only discovery-owned fields change on an existing record; see
// mergeDiscovered.
func (m *MemoryStore) Upsert(ctx context.Context, a Account) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if err := a.Validate(); err != nil {
		return Account{}, fmt.Errorf("upsert account: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domainKey(a.UserID, a.ServiceDomain)
	if id, ok := m.byDomain[key]; ok {
		a = mergeDiscovered(*m.byID[id], a)
	} else if a.ID == "" {
		a.ID = NewID()
	}
	stored := a
	m.byID[a.ID] = &stored
	m.byDomain[key] = a.ID
	return a, nil
}

func (m *MemoryStore) Get(ctx context.Context, userID, id string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return Account{}, ErrNotFound
	}
	return *a, nil
}

func (m *MemoryStore) List(ctx context.Context, userID string, status Status, limit int) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	out := make([]Account, 0, len(m.byID))
	for _, a := range m.byID {
		if a.UserID != userID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ServiceDomain < out[j].ServiceDomain
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Confirm(ctx context.Context, userID, id string) (Account, error) {
	return m.mutate(ctx, userID, id, func(a *Account) { a.UserConfirmed = true })
}

func (m *MemoryStore) UpdateChecklist(ctx context.Context, userID, id string, patch ChecklistPatch) (Account, error) {
	return m.mutate(ctx, userID, id, func(a *Account) { a.Checklist = patch.Apply(a.Checklist) })
}

func (m *MemoryStore) SetStatus(ctx context.Context, userID, id string, status Status) (Account, error) {
	if !status.Valid() {
		return Account{}, fmt.Errorf("set status: invalid status %q", status)
	}
	return m.mutate(ctx, userID, id, func(a *Account) { a.Status = status })
}

func (m *MemoryStore) mutate(ctx context.Context, userID, id string, fn func(*Account)) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return Account{}, ErrNotFound
	}
	fn(a)
	a.UpdatedAt = m.Clock()
	return *a, nil
}

var _ Store = (*MemoryStore)(nil)

// mergeDiscovered applies the discovery-owned fields of in to prev. The seen
// range only widens, name and category are filled when empty, evidence
// follows in. Identity, user confirmation, checklist, status and notes stay
// as stored so a concurrent user action is never reverted.
func mergeDiscovered(prev, in Account) Account {
	out := prev
	if out.FirstSeenDate.IsZero() || (!in.FirstSeenDate.IsZero() && in.FirstSeenDate.Before(out.FirstSeenDate)) {
		out.FirstSeenDate = in.FirstSeenDate
	}
	if in.LastActivityDate.After(out.LastActivityDate) {
		out.LastActivityDate = in.LastActivityDate
	}
	if out.ServiceName == "" {
		out.ServiceName = in.ServiceName
	}
	if out.Category == "" {
		out.Category = in.Category
	}
	out.EvidenceTitle = in.EvidenceTitle
	out.EvidenceSource = in.EvidenceSource
	out.InactivityDays = in.InactivityDays
	if !in.UpdatedAt.IsZero() {
		out.InactivityDays = InactivityDays(out.LastActivityDate, in.UpdatedAt)
	}
	out.UpdatedAt = in.UpdatedAt
	return out
}
