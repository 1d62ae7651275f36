package discovery

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/footprint/internal/account"
)

// DefaultConcurrency bounds the number of domains merged at once.
const DefaultConcurrency = 4

// Outcome describes what a merge did to one account.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Merger reconciles in-batch domains with the persisted accounts of a user.
type Merger struct {
	Store       account.Store
	Logger      *slog.Logger
	Clock       func() time.Time
	Concurrency int
}

// NewMerger constructs a Merger with the default clock and concurrency.
func NewMerger(store account.Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Merger{Store: store, Logger: logger, Clock: time.Now, Concurrency: DefaultConcurrency}
}

// MergeResult lists the resulting account per input domain, in input order.
// Failed domains are absent from Accounts and present in Failures.
type MergeResult struct {
	Accounts  []account.Account
	Outcomes  []Outcome
	Created   int
	Updated   int
	Unchanged int
	Failures  []error
}

type mergeSlot struct {
	acct    account.Account
	outcome Outcome
	err     error
}

// Merge upserts every domain for userID. Distinct domains run concurrently;
// repeated entries for one domain are applied in order by a single worker.
// Store failures are collected as *StoreError and never stop other domains.
func (m *Merger) Merge(ctx context.Context, userID string, domains []Domain) MergeResult {
	groups, order := groupByDomain(domains)
	slots := make([]mergeSlot, len(order))
	now := m.now()

	limit := m.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, key := range order {
		g.Go(func() error {
			for _, d := range groups[key] {
				acct, outcome, err := m.mergeOne(ctx, userID, d, now)
				if err != nil {
					slots[i] = mergeSlot{outcome: OutcomeFailed, err: err}
					return nil
				}
				if slots[i].outcome == OutcomeCreated && outcome != OutcomeCreated {
					outcome = OutcomeCreated
				}
				slots[i] = mergeSlot{acct: acct, outcome: outcome}
			}
			return nil
		})
	}
	_ = g.Wait()

	var res MergeResult
	for _, slot := range slots {
		res.Outcomes = append(res.Outcomes, slot.outcome)
		switch slot.outcome {
		case OutcomeFailed:
			res.Failures = append(res.Failures, slot.err)
			m.Logger.WarnContext(ctx, "merge failed", "error", slot.err)
			continue
		case OutcomeCreated:
			res.Created++
		case OutcomeUpdated:
			res.Updated++
		case OutcomeUnchanged:
			res.Unchanged++
		}
		res.Accounts = append(res.Accounts, slot.acct)
	}
	return res
}

func (m *Merger) mergeOne(ctx context.Context, userID string, d Domain, now time.Time) (account.Account, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, OutcomeFailed, &StoreError{Domain: d.Domain, Op: "lookup", Err: err}
	}
	existing, found, err := m.Store.FindByUserAndDomain(ctx, userID, d.Domain)
	if err != nil {
		return account.Account{}, OutcomeFailed, &StoreError{Domain: d.Domain, Op: "lookup", Err: err}
	}
	if !found {
		fresh := newAccount(userID, d, now)
		saved, upsertErr := m.Store.Upsert(ctx, fresh)
		if upsertErr != nil {
			return account.Account{}, OutcomeFailed, &StoreError{Domain: d.Domain, Op: "insert", Err: upsertErr}
		}
		return saved, OutcomeCreated, nil
	}
	merged := MergeAccount(existing, d, now)
	if sameDiscoveryFields(existing, merged) {
		return existing, OutcomeUnchanged, nil
	}
	merged.UpdatedAt = now
	saved, err := m.Store.Upsert(ctx, merged)
	if err != nil {
		return account.Account{}, OutcomeFailed, &StoreError{Domain: d.Domain, Op: "update", Err: err}
	}
	return saved, OutcomeUpdated, nil
}

func (m *Merger) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock()
}

func newAccount(userID string, d Domain, now time.Time) account.Account {
	return account.Account{
		UserID:           userID,
		ServiceDomain:    d.Domain,
		ServiceName:      d.ServiceName,
		Category:         d.Category,
		FirstSeenDate:    d.FirstSeen,
		LastActivityDate: d.LastActivity,
		InactivityDays:   account.InactivityDays(d.LastActivity, now),
		EvidenceTitle:    d.EvidenceTitle,
		EvidenceSource:   d.EvidenceSource,
		Status:           account.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// MergeAccount widens existing with an incoming domain. The seen range only
// grows, descriptive fields are filled when empty, evidence always follows
// the incoming batch. now is used for inactivity only and never becomes an
// activity date.
func MergeAccount(existing account.Account, d Domain, now time.Time) account.Account {
	out := existing
	if out.FirstSeenDate.IsZero() || (!d.FirstSeen.IsZero() && d.FirstSeen.Before(out.FirstSeenDate)) {
		out.FirstSeenDate = d.FirstSeen
	}
	if d.LastActivity.After(out.LastActivityDate) {
		out.LastActivityDate = d.LastActivity
	}
	if out.ServiceName == "" {
		out.ServiceName = d.ServiceName
	}
	if out.Category == "" {
		out.Category = d.Category
	}
	out.EvidenceTitle = d.EvidenceTitle
	out.EvidenceSource = d.EvidenceSource
	out.InactivityDays = account.InactivityDays(out.LastActivityDate, now)
	return out
}

func sameDiscoveryFields(a, b account.Account) bool {
	return a.FirstSeenDate.Equal(b.FirstSeenDate) &&
		a.LastActivityDate.Equal(b.LastActivityDate) &&
		a.ServiceName == b.ServiceName &&
		a.Category == b.Category &&
		a.EvidenceTitle == b.EvidenceTitle &&
		a.EvidenceSource == b.EvidenceSource &&
		a.InactivityDays == b.InactivityDays
}

func groupByDomain(domains []Domain) (map[string][]Domain, []string) {
	groups := make(map[string][]Domain, len(domains))
	var order []string
	for _, d := range domains {
		if _, ok := groups[d.Domain]; !ok {
			order = append(order, d.Domain)
		}
		groups[d.Domain] = append(groups[d.Domain], d)
	}
	return groups, order
}
