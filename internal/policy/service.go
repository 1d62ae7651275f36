package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joshsymonds/footprint/internal/ids"
	"github.com/joshsymonds/footprint/internal/obs"
	"github.com/joshsymonds/footprint/internal/risk"
	"github.com/joshsymonds/footprint/internal/textnorm"
)

// MinPolicyTextRunes is the shortest pasted policy text worth analyzing.
const MinPolicyTextRunes = 100

// Input is one analysis request.
type Input struct {
	UserID      string
	ServiceName string
	ServiceURL  string
	Text        string
}

// Service runs the candidate engine, the classifier and validation, and
// stores the result.
type Service struct {
	Classifier Classifier
	Fetcher    Fetcher
	Store      Store
	Taxonomy   *risk.Taxonomy
	Logger     *slog.Logger
	Clock      func() time.Time
	Metrics    *obs.Metrics
	// Reuse returns the user's previous analysis of identical text instead
	// of classifying again.
	Reuse bool
}

// NewService constructs a Service with the embedded taxonomy.
func NewService(classifier Classifier, fetcher Fetcher, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Classifier: classifier,
		Fetcher:    fetcher,
		Store:      store,
		Taxonomy:   risk.Default(),
		Logger:     logger,
		Clock:      time.Now,
		Reuse:      true,
	}
}

// Hash fingerprints policy text. Case and whitespace differences do not
// change the hash.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(textnorm.Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Sentences splits policy text into candidate sentences, keeping the
// original casing so evidence quotes the source verbatim.
func Sentences(text string) []string {
	return textnorm.SplitSentences(textnorm.CollapseSpace(text))
}

// AnalyzeURL fetches the policy at in.ServiceURL and analyzes it.
func (s *Service) AnalyzeURL(ctx context.Context, in Input) (Analysis, error) {
	if s.Fetcher == nil {
		return Analysis{}, errors.New("analyze url: no fetcher configured")
	}
	text, err := s.Fetcher.FetchText(ctx, in.ServiceURL)
	if err != nil {
		s.Metrics.Analysis(obs.OutcomeFailed)
		return Analysis{}, fmt.Errorf("analyze url: %w", err)
	}
	in.Text = text
	return s.analyze(ctx, in, SourceURL)
}

// Analyze analyzes policy text supplied directly.
func (s *Service) Analyze(ctx context.Context, in Input) (Analysis, error) {
	return s.analyze(ctx, in, SourceText)
}

func (s *Service) analyze(ctx context.Context, in Input, source Source) (Analysis, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Analysis{}, errors.New("analyze policy: user id is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return Analysis{}, errors.New("analyze policy: policy text is empty")
	}
	if source == SourceText {
		if n := utf8.RuneCountInString(textnorm.CollapseSpace(in.Text)); n < MinPolicyTextRunes {
			return Analysis{}, fmt.Errorf("analyze policy: text has %d characters, need at least %d", n, MinPolicyTextRunes)
		}
	}
	start := s.Clock()
	hash := Hash(in.Text)
	logger := s.Logger.With("user", in.UserID, "service", in.ServiceName)

	if s.Reuse {
		prev, found, err := s.Store.FindByHash(ctx, in.UserID, hash)
		if err != nil {
			return Analysis{}, fmt.Errorf("find analysis by hash: %w", err)
		}
		if found {
			logger.InfoContext(ctx, "reusing analysis", "id", prev.ID)
			s.Metrics.Analysis(obs.OutcomeReused)
			return prev, nil
		}
	}

	tax := s.Taxonomy
	if tax == nil {
		tax = risk.Default()
	}
	cands := tax.BuildCandidates(Sentences(in.Text))
	for _, c := range risk.Categories() {
		s.Metrics.Candidates(string(c), len(cands[c]))
	}

	a := Analysis{
		ID:          ids.NewAt(start),
		UserID:      in.UserID,
		ServiceName: in.ServiceName,
		ServiceURL:  in.ServiceURL,
		Source:      source,
		Hash:        hash,
		CreatedAt:   start,
	}

	outcome := obs.OutcomeAnalyzed
	if cands.Empty() {
		a.NoSignal = true
		a.RiskLevel = RiskLow
		a.RiskFlags = []risk.Category{}
		a.Evidence = []Evidence{}
		a.QAAnswers = []QA{}
		outcome = obs.OutcomeNoSignal
		logger.InfoContext(ctx, "no risk signal found")
	} else {
		c, err := s.classify(ctx, in.ServiceName, cands)
		if err != nil {
			s.Metrics.Analysis(obs.OutcomeFailed)
			return Analysis{}, err
		}
		a.Summary = strings.TrimSpace(c.Summary)
		a.RiskFlags = c.RiskFlags
		a.Evidence = c.Evidence
		a.QAAnswers = orderAnswers(c.QAAnswers)
		a.RiskLevel = c.RiskLevel
		a.Meta.Model = c.Model
		a.Meta.PromptVersion = c.PromptVersion
	}
	a.Meta.ProcessingTime = s.Clock().Sub(start).Milliseconds()

	saved, err := s.Store.Create(ctx, a)
	if err != nil {
		s.Metrics.Analysis(obs.OutcomeFailed)
		return Analysis{}, fmt.Errorf("store analysis: %w", err)
	}
	s.Metrics.Analysis(outcome)
	logger.InfoContext(ctx, "policy analyzed", "id", saved.ID, "risk_level", saved.RiskLevel, "flags", len(saved.RiskFlags))
	return saved, nil
}

func (s *Service) classify(ctx context.Context, serviceName string, cands risk.Candidates) (Classification, error) {
	if s.Classifier == nil {
		return Classification{}, fmt.Errorf("classify policy: %w", ErrClassifierUnavailable)
	}
	c, err := s.Classifier.Classify(ctx, Request{ServiceName: serviceName, Candidates: cands})
	if err != nil {
		if errors.Is(err, ErrClassifierUnavailable) {
			return Classification{}, fmt.Errorf("classify policy: %w", err)
		}
		return Classification{}, fmt.Errorf("classify policy: %w: %w", ErrClassifierUnavailable, err)
	}
	if err := Validate(c, cands); err != nil {
		return Classification{}, fmt.Errorf("classify policy: %w", err)
	}
	return c, nil
}

// History returns the user's most recent analyses.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out, err := s.Store.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

// Get returns one analysis owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (Analysis, error) {
	a, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Analysis{}, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return a, nil
}

// SetFeedback attaches the user's feedback to an analysis.
func (s *Service) SetFeedback(ctx context.Context, userID, id string, fb Feedback) (Analysis, error) {
	fb.Notes = strings.TrimSpace(fb.Notes)
	a, err := s.Store.SetFeedback(ctx, userID, id, fb)
	if err != nil {
		return Analysis{}, fmt.Errorf("set feedback %s: %w", id, err)
	}
	return a, nil
}

// Guidance returns the configured advice for each flag of a.
func (s *Service) Guidance(a Analysis) map[risk.Category]risk.Guidance {
	tax := s.Taxonomy
	if tax == nil {
		tax = risk.Default()
	}
	out := make(map[risk.Category]risk.Guidance, len(a.RiskFlags))
	for _, f := range a.RiskFlags {
		if g, ok := tax.Guidance(f); ok {
			out[f] = g
		}
	}
	return out
}
