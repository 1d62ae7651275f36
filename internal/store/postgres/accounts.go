package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joshsymonds/footprint/internal/account"
)

const accountColumns = `id, user_id, service_domain, service_name, category, first_seen_date,
	last_activity_date, inactivity_days, evidence_title, evidence_source, user_confirmed,
	checklist, status, notes, created_at, updated_at`

// AccountStore implements account.Store. The (user_id, service_domain)
// unique key makes concurrent upserts converge on one row, and the upsert
// itself never narrows the seen-date range.
type AccountStore struct {
	db    *sql.DB
	Clock func() time.Time
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db, Clock: time.Now}
}

var _ account.Store = (*AccountStore)(nil)

func (s *AccountStore) FindByUserAndDomain(ctx context.Context, userID, domain string) (account.Account, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where user_id = $1 and service_domain = $2`,
		userID, domain)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, false, nil
	}
	if err != nil {
		return account.Account{}, false, fmt.Errorf("find account %s: %w", domain, err)
	}
	return a, true, nil
}

// upsertAccountSQL writes a discovered account. On conflict only
// discovery-owned columns change: the seen range widens, name and category
// are filled when empty, evidence follows the incoming row and inactivity is
// recomputed against the incoming updated_at. user_confirmed, checklist,
// status and notes belong to the user and are never overwritten here.
const upsertAccountSQL = `insert into accounts (` + accountColumns + `)
	values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	on conflict (user_id, service_domain) do update set
		service_name = coalesce(nullif(accounts.service_name, ''), excluded.service_name),
		category = coalesce(nullif(accounts.category, ''), excluded.category),
		first_seen_date = least(accounts.first_seen_date, excluded.first_seen_date),
		last_activity_date = greatest(accounts.last_activity_date, excluded.last_activity_date),
		inactivity_days = coalesce(greatest(0, floor(extract(epoch from
			excluded.updated_at - greatest(accounts.last_activity_date, excluded.last_activity_date)) / 86400))::integer, -1),
		evidence_title = excluded.evidence_title,
		evidence_source = excluded.evidence_source,
		updated_at = excluded.updated_at
	returning ` + accountColumns

// Upsert inserts a or folds its discovery fields into the existing row for
// (user_id, service_domain).
func (s *AccountStore) Upsert(ctx context.Context, a account.Account) (account.Account, error) {
	if err := a.Validate(); err != nil {
		return account.Account{}, fmt.Errorf("upsert account: %w", err)
	}
	if a.ID == "" {
		a.ID = account.NewID()
	}
	checklist, err := json.Marshal(a.Checklist)
	if err != nil {
		return account.Account{}, fmt.Errorf("encode checklist: %w", err)
	}
	row := s.db.QueryRowContext(ctx, upsertAccountSQL,
		a.ID, a.UserID, a.ServiceDomain, a.ServiceName, string(a.Category),
		nullTime(a.FirstSeenDate), nullTime(a.LastActivityDate), a.InactivityDays,
		a.EvidenceTitle, a.EvidenceSource, a.UserConfirmed, checklist, string(a.Status), a.Notes,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	saved, err := scanAccount(row)
	if err != nil {
		return account.Account{}, fmt.Errorf("upsert account %s: %w", a.ServiceDomain, err)
	}
	return saved, nil
}

func (s *AccountStore) Get(ctx context.Context, userID, id string) (account.Account, error) {
	id, ok := parseID(id)
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where user_id = $1 and id = $2`, userID, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (s *AccountStore) List(ctx context.Context, userID string, status account.Status, limit int) ([]account.Account, error) {
	if limit <= 0 {
		limit = account.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts
		where user_id = $1 and ($2 = '' or status = $2)
		order by created_at desc, service_domain
		limit $3`,
		userID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []account.Account
	for rows.Next() {
		a, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (s *AccountStore) Confirm(ctx context.Context, userID, id string) (account.Account, error) {
	return s.update(ctx, "confirm", `user_confirmed = true`, userID, id)
}

// UpdateChecklist merges only the fields set in patch into the stored
// checklist.
func (s *AccountStore) UpdateChecklist(ctx context.Context, userID, id string, patch account.ChecklistPatch) (account.Account, error) {
	raw, err := json.Marshal(patchFields(patch))
	if err != nil {
		return account.Account{}, fmt.Errorf("encode checklist patch: %w", err)
	}
	return s.update(ctx, "update checklist", `checklist = checklist || $4::jsonb`, userID, id, raw)
}

func (s *AccountStore) SetStatus(ctx context.Context, userID, id string, status account.Status) (account.Account, error) {
	if !status.Valid() {
		return account.Account{}, fmt.Errorf("set status: invalid status %q", status)
	}
	return s.update(ctx, "set status", `status = $4`, userID, id, string(status))
}

func (s *AccountStore) update(ctx context.Context, op, set, userID, id string, extra ...any) (account.Account, error) {
	id, ok := parseID(id)
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	args := append([]any{userID, id, s.now()}, extra...)
	row := s.db.QueryRowContext(ctx,
		`update accounts set `+set+`, updated_at = $3 where user_id = $1 and id = $2 returning `+accountColumns,
		args...)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return a, nil
}

// parseID canonicalizes an account id. Anything that is not a UUID cannot
// name a row.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func (s *AccountStore) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

func patchFields(p account.ChecklistPatch) map[string]bool {
	out := map[string]bool{}
	if p.PasswordChanged != nil {
		out["password_changed"] = *p.PasswordChanged
	}
	if p.TwoFactorEnabled != nil {
		out["two_factor_enabled"] = *p.TwoFactorEnabled
	}
	if p.AccountDeleted != nil {
		out["account_deleted"] = *p.AccountDeleted
	}
	if p.ReviewedTerms != nil {
		out["reviewed_terms"] = *p.ReviewedTerms
	}
	return out
}

func scanAccount(row scanner) (account.Account, error) {
	var (
		a                 account.Account
		category, status  string
		firstSeen, lastAt sql.NullTime
		checklist         []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ServiceDomain, &a.ServiceName, &category, &firstSeen,
		&lastAt, &a.InactivityDays, &a.EvidenceTitle, &a.EvidenceSource, &a.UserConfirmed,
		&checklist, &status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return account.Account{}, err
	}
	a.Category = account.Category(category)
	a.Status = account.Status(status)
	a.FirstSeenDate = fromNullTime(firstSeen)
	a.LastActivityDate = fromNullTime(lastAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if err := decodeJSON(checklist, &a.Checklist); err != nil {
		return account.Account{}, fmt.Errorf("decode checklist: %w", err)
	}
	return a, nil
}
