package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/joshsymonds/footprint/internal/obs"
	"github.com/joshsymonds/footprint/internal/risk"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pickingClassifier quotes the first candidates it is offered.
type pickingClassifier struct {
	calls int
	last  Request
	err   error
	edit  func(*Classification)
}

func (p *pickingClassifier) Classify(ctx context.Context, req Request) (Classification, error) {
	_ = ctx
	p.calls++
	p.last = req
	if p.err != nil {
		return Classification{}, p.err
	}
	c := Classification{
		Summary:       "요약",
		RiskLevel:     RiskMedium,
		QAAnswers:     answers(),
		Model:         "fake",
		PromptVersion: "test",
	}
	for _, cat := range risk.Categories() {
		list := req.Candidates[cat]
		if len(list) == 0 {
			continue
		}
		n := len(list)
		if n > 2 {
			n = 2
		}
		var quotes []string
		for _, cand := range list[:n] {
			quotes = append(quotes, cand.Text)
		}
		c.RiskFlags = append(c.RiskFlags, cat)
		c.Evidence = append(c.Evidence, Evidence{Flag: cat, Sentences: quotes, Confidence: 80})
	}
	if p.edit != nil {
		p.edit(&c)
	}
	return c, nil
}

type staticFetcher struct {
	text string
	err  error
}

func (f staticFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	_ = ctx
	_ = rawURL
	return f.text, f.err
}

const samplePolicy = "A사는 제3자에게 정보를 제공한다. 이 문서는 회원 여러분이 서비스를 이용할 때 알아야 할 내용을 담고 있습니다. " +
	"보관 기간은 영구적이다. 궁금한 점이 있으면 고객센터로 연락해 주세요. 짧은 문장."

func newTestService(cl Classifier) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc := NewService(cl, nil, store, slogDiscard())
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.Clock = func() time.Time { return now }
	return svc, store
}

func TestAnalyzeStoresValidatedResult(t *testing.T) {
	cl := &pickingClassifier{}
	svc, store := newTestService(cl)
	reg := prometheus.NewRegistry()
	m, err := obs.NewMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	svc.Metrics = m

	got, err := svc.Analyze(context.Background(), Input{UserID: "u1", ServiceName: "A사", Text: samplePolicy})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.ID == "" || got.Source != SourceText || got.NoSignal || got.Hash != Hash(samplePolicy) {
		t.Fatalf("analysis = %+v", got)
	}
	if got.Meta.Model != "fake" || got.RiskLevel != RiskMedium {
		t.Fatalf("meta = %+v level = %s", got.Meta, got.RiskLevel)
	}
	if got.QAAnswers[0].Question != QuestionWhereDataGoes {
		t.Fatalf("answers not in fixed order: %+v", got.QAAnswers)
	}
	if cl.last.ServiceName != "A사" || len(cl.last.Candidates[risk.ThirdPartySharing]) == 0 {
		t.Fatalf("request = %+v", cl.last)
	}
	for _, list := range cl.last.Candidates {
		for _, c := range list {
			if c.Text == "짧은 문장." {
				t.Fatalf("short fragment offered as candidate")
			}
		}
	}
	stored, err := store.Get(context.Background(), "u1", got.ID)
	if err != nil || stored.Hash != got.Hash {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
	if v := testutil.ToFloat64(m.PolicyAnalyses.WithLabelValues(obs.OutcomeAnalyzed)); v != 1 {
		t.Fatalf("analyzed metric = %v", v)
	}
}

func TestAnalyzeReusesByHash(t *testing.T) {
	cl := &pickingClassifier{}
	svc, _ := newTestService(cl)
	first, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: samplePolicy})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: "  " + strings.ReplaceAll(strings.ToLower(samplePolicy), " ", "\n  ") + "  "})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.ID != first.ID || cl.calls != 1 {
		t.Fatalf("expected reuse, ids %s/%s calls %d", first.ID, second.ID, cl.calls)
	}
	other, err := svc.Analyze(context.Background(), Input{UserID: "u2", Text: samplePolicy})
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if other.ID == first.ID || cl.calls != 2 {
		t.Fatalf("reuse leaked across users")
	}
}

func TestAnalyzeNoSignalSkipsClassifier(t *testing.T) {
	cl := &pickingClassifier{}
	svc, _ := newTestService(cl)
	got, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: "오늘 날씨가 맑고 화창합니다. 산책하기 좋은 날입니다. 공원에는 아이들이 뛰어놀고 있습니다. " +
		"저녁에는 친구들과 함께 맛있는 음식을 먹을 계획입니다. 내일도 날씨가 좋기를 바랍니다. 모두 좋은 하루 보내세요."})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !got.NoSignal || cl.calls != 0 || len(got.RiskFlags) != 0 || got.RiskLevel != RiskLow {
		t.Fatalf("analysis = %+v calls = %d", got, cl.calls)
	}
}

func TestAnalyzeClassifierErrors(t *testing.T) {
	tests := []struct {
		name      string
		cl        Classifier
		wantUnav  bool
		wantValid bool
	}{
		{name: "no classifier", cl: nil, wantUnav: true},
		{name: "transport failure", cl: &pickingClassifier{err: errors.New("503")}, wantUnav: true},
		{
			name: "invented evidence",
			cl: &pickingClassifier{edit: func(c *Classification) {
				c.Evidence[0].Sentences[0] = "We sell all your data."
			}},
			wantValid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(tt.cl)
			_, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: samplePolicy})
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, ErrClassifierUnavailable); got != tt.wantUnav {
				t.Fatalf("errors.Is unavailable = %v: %v", got, err)
			}
			var ve *ValidationError
			if got := errors.As(err, &ve); got != tt.wantValid {
				t.Fatalf("errors.As validation = %v: %v", got, err)
			}
			if hist, _ := store.History(context.Background(), "u1", 0); len(hist) != 0 {
				t.Fatalf("failed analysis was stored")
			}
		})
	}
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(&pickingClassifier{})
	if _, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: "   "}); err == nil {
		t.Fatalf("expected error for empty text")
	}
	if _, err := svc.Analyze(context.Background(), Input{Text: samplePolicy}); err == nil {
		t.Fatalf("expected error for missing user")
	}
	if _, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: "A사는 제3자에게 정보를 제공한다."}); err == nil {
		t.Fatalf("expected error for text shorter than %d characters", MinPolicyTextRunes)
	}
}

func TestAnalyzeURL(t *testing.T) {
	svc, _ := newTestService(&pickingClassifier{})
	svc.Fetcher = staticFetcher{text: samplePolicy}
	got, err := svc.AnalyzeURL(context.Background(), Input{UserID: "u1", ServiceURL: "https://a.example/privacy"})
	if err != nil {
		t.Fatalf("AnalyzeURL: %v", err)
	}
	if got.Source != SourceURL || got.ServiceURL != "https://a.example/privacy" {
		t.Fatalf("analysis = %+v", got)
	}

	svc.Fetcher = staticFetcher{err: errors.New("timeout")}
	if _, err := svc.AnalyzeURL(context.Background(), Input{UserID: "u1", ServiceURL: "https://b.example"}); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestFeedbackAndHistory(t *testing.T) {
	svc, _ := newTestService(&pickingClassifier{})
	a, err := svc.Analyze(context.Background(), Input{UserID: "u1", Text: samplePolicy})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	updated, err := svc.SetFeedback(context.Background(), "u1", a.ID, Feedback{Helpful: true, Notes: " thanks "})
	if err != nil {
		t.Fatalf("SetFeedback: %v", err)
	}
	if updated.Feedback == nil || !updated.Feedback.Helpful || updated.Feedback.Notes != "thanks" {
		t.Fatalf("feedback = %+v", updated.Feedback)
	}
	if updated.Summary != a.Summary || updated.Hash != a.Hash {
		t.Fatalf("feedback changed immutable fields")
	}
	if _, err := svc.SetFeedback(context.Background(), "u2", a.ID, Feedback{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user feedback err = %v", err)
	}
	hist, err := svc.History(context.Background(), "u1", 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history = %d, %v", len(hist), err)
	}
	guide := svc.Guidance(a)
	if _, ok := guide[risk.ThirdPartySharing]; !ok {
		t.Fatalf("guidance = %+v", guide)
	}
}

func TestHashIgnoresCaseAndSpacing(t *testing.T) {
	if Hash("We  Share\nData.") != Hash("we share data.") {
		t.Fatalf("hash should ignore case and spacing")
	}
	if Hash("we share data.") == Hash("we sell data.") {
		t.Fatalf("distinct text must hash differently")
	}
}
