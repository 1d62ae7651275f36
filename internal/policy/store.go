package policy

import (
	"context"
	"sort"
	"sync"
)

// DefaultHistoryLimit is the number of analyses History returns by default.
const DefaultHistoryLimit = 20

// Store persists analyses. Records are immutable apart from Feedback.
type Store interface {
	Create(ctx context.Context, a Analysis) (Analysis, error)
	Get(ctx context.Context, userID, id string) (Analysis, error)
	// FindByHash returns the user's newest analysis of identical policy text.
	FindByHash(ctx context.Context, userID, hash string) (Analysis, bool, error)
	// History returns the user's analyses, newest first.
	History(ctx context.Context, userID string, limit int) ([]Analysis, error)
	SetFeedback(ctx context.Context, userID, id string, fb Feedback) (Analysis, error)
}

// MemoryStore is an in-process Store used by dry runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Analysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Analysis{}}
}

func (m *MemoryStore) Create(ctx context.Context, a Analysis) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = clone(a)
	return a, nil
}

func (m *MemoryStore) Get(ctx context.Context, userID, id string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return clone(a), nil
}

func (m *MemoryStore) FindByHash(ctx context.Context, userID, hash string) (Analysis, bool, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		best  Analysis
		found bool
	)
	for _, a := range m.byID {
		if a.UserID != userID || a.Hash != hash {
			continue
		}
		if !found || newer(a, best) {
			best, found = a, true
		}
	}
	if !found {
		return Analysis{}, false, nil
	}
	return clone(best), true, nil
}

func (m *MemoryStore) History(ctx context.Context, userID string, limit int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m.mu.RLock()
	out := make([]Analysis, 0, len(m.byID))
	for _, a := range m.byID {
		if a.UserID == userID {
			out = append(out, clone(a))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SetFeedback(ctx context.Context, userID, id string, fb Feedback) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	a.Feedback = &fb
	m.byID[id] = a
	return clone(a), nil
}

func newer(a, b Analysis) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func clone(a Analysis) Analysis {
	a.RiskFlags = append(a.RiskFlags[:0:0], a.RiskFlags...)
	a.QAAnswers = append(a.QAAnswers[:0:0], a.QAAnswers...)
	ev := make([]Evidence, len(a.Evidence))
	for i, e := range a.Evidence {
		e.Sentences = append(e.Sentences[:0:0], e.Sentences...)
		ev[i] = e
	}
	a.Evidence = ev
	if a.Feedback != nil {
		fb := *a.Feedback
		a.Feedback = &fb
	}
	return a
}

var _ Store = (*MemoryStore)(nil)
