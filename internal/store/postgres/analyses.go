package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joshsymonds/footprint/internal/ids"
	"github.com/joshsymonds/footprint/internal/policy"
	"github.com/joshsymonds/footprint/internal/risk"
)

const analysisColumns = `id, user_id, service_name, service_url, policy_source, policy_hash, summary,
	risk_flags, evidence, qa_answers, risk_level, no_signal, meta, feedback, created_at`

// AnalysisStore implements policy.Store. Rows are written once; only the
// feedback column is ever updated.
type AnalysisStore struct {
	db *sql.DB
}

func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

var _ policy.Store = (*AnalysisStore)(nil)

func (s *AnalysisStore) Create(ctx context.Context, a policy.Analysis) (policy.Analysis, error) {
	if a.ID == "" {
		a.ID = ids.NewAt(a.CreatedAt)
	}
	if !a.Source.Valid() {
		return policy.Analysis{}, fmt.Errorf("create analysis: invalid source %q", a.Source)
	}
	if !a.RiskLevel.Valid() {
		return policy.Analysis{}, fmt.Errorf("create analysis: invalid risk level %q", a.RiskLevel)
	}
	flags, evidence, answers, meta, err := encodeAnalysis(a)
	if err != nil {
		return policy.Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	var feedback any
	if a.Feedback != nil {
		raw, fbErr := json.Marshal(a.Feedback)
		if fbErr != nil {
			return policy.Analysis{}, fmt.Errorf("create analysis: encode feedback: %w", fbErr)
		}
		feedback = raw
	}
	row := s.db.QueryRowContext(ctx, `insert into policy_analyses (`+analysisColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		returning `+analysisColumns,
		a.ID, a.UserID, a.ServiceName, a.ServiceURL, string(a.Source), a.Hash, a.Summary,
		flags, evidence, answers, string(a.RiskLevel), a.NoSignal, meta, feedback, a.CreatedAt.UTC(),
	)
	saved, err := scanAnalysis(row)
	if err != nil {
		return policy.Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	return saved, nil
}

func (s *AnalysisStore) Get(ctx context.Context, userID, id string) (policy.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+analysisColumns+` from policy_analyses where user_id = $1 and id = $2`, userID, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Analysis{}, policy.ErrNotFound
	}
	if err != nil {
		return policy.Analysis{}, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return a, nil
}

func (s *AnalysisStore) FindByHash(ctx context.Context, userID, hash string) (policy.Analysis, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+analysisColumns+` from policy_analyses
		where user_id = $1 and policy_hash = $2
		order by created_at desc, id desc
		limit 1`, userID, hash)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Analysis{}, false, nil
	}
	if err != nil {
		return policy.Analysis{}, false, fmt.Errorf("find analysis by hash: %w", err)
	}
	return a, true, nil
}

func (s *AnalysisStore) History(ctx context.Context, userID string, limit int) ([]policy.Analysis, error) {
	if limit <= 0 {
		limit = policy.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+analysisColumns+` from policy_analyses
		where user_id = $1
		order by created_at desc, id desc
		limit $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []policy.Analysis
	for rows.Next() {
		a, scanErr := scanAnalysis(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan analysis: %w", scanErr)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

func (s *AnalysisStore) SetFeedback(ctx context.Context, userID, id string, fb policy.Feedback) (policy.Analysis, error) {
	raw, err := json.Marshal(fb)
	if err != nil {
		return policy.Analysis{}, fmt.Errorf("encode feedback: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`update policy_analyses set feedback = $3 where user_id = $1 and id = $2 returning `+analysisColumns,
		userID, id, raw)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Analysis{}, policy.ErrNotFound
	}
	if err != nil {
		return policy.Analysis{}, fmt.Errorf("set feedback %s: %w", id, err)
	}
	return a, nil
}

func encodeAnalysis(a policy.Analysis) (flags, evidence, answers, meta []byte, err error) {
	if a.RiskFlags == nil {
		a.RiskFlags = []risk.Category{}
	}
	if a.Evidence == nil {
		a.Evidence = []policy.Evidence{}
	}
	if a.QAAnswers == nil {
		a.QAAnswers = []policy.QA{}
	}
	if flags, err = json.Marshal(a.RiskFlags); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode risk flags: %w", err)
	}
	if evidence, err = json.Marshal(a.Evidence); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode evidence: %w", err)
	}
	if answers, err = json.Marshal(a.QAAnswers); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	if meta, err = json.Marshal(a.Meta); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode meta: %w", err)
	}
	return flags, evidence, answers, meta, nil
}

func scanAnalysis(row scanner) (policy.Analysis, error) {
	var (
		a                                      policy.Analysis
		source, level                          string
		flags, evidence, answers, meta, fbJSON []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &a.ServiceName, &a.ServiceURL, &source, &a.Hash, &a.Summary,
		&flags, &evidence, &answers, &level, &a.NoSignal, &meta, &fbJSON, &a.CreatedAt)
	if err != nil {
		return policy.Analysis{}, err
	}
	a.Source = policy.Source(source)
	a.RiskLevel = policy.RiskLevel(level)
	a.CreatedAt = a.CreatedAt.UTC()
	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"risk_flags", flags, &a.RiskFlags},
		{"evidence", evidence, &a.Evidence},
		{"qa_answers", answers, &a.QAAnswers},
		{"meta", meta, &a.Meta},
	} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return policy.Analysis{}, fmt.Errorf("decode %s: %w", col.name, err)
		}
	}
	for _, f := range a.RiskFlags {
		if !f.Valid() {
			return policy.Analysis{}, fmt.Errorf("decode risk_flags: unknown category %q", f)
		}
	}
	if len(fbJSON) > 0 {
		var fb policy.Feedback
		if err := decodeJSON(fbJSON, &fb); err != nil {
			return policy.Analysis{}, fmt.Errorf("decode feedback: %w", err)
		}
		a.Feedback = &fb
	}
	return a, nil
}
