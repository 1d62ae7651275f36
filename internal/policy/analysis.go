// Package policy analyzes privacy policies: it builds evidence candidates,
// asks a classifier to choose among them and stores the checked result.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/joshsymonds/footprint/internal/risk"
)

// ErrNotFound is returned when no analysis matches the lookup.
var ErrNotFound = errors.New("policy analysis not found")

// Source records how the policy text was supplied.
type Source string

const (
	SourceURL  Source = "url"
	SourceText Source = "text"
)

func (s Source) Valid() bool {
	switch s {
	case SourceURL, SourceText:
		return true
	default:
		return false
	}
}

// RiskLevel is the overall verdict for a policy.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// ParseRiskLevel validates a risk level name.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	l := RiskLevel(raw)
	if !l.Valid() {
		return "", fmt.Errorf("invalid risk level %q", raw)
	}
	return l, nil
}

// Fixed questions every analysis answers, in display order.
const (
	QuestionWhereDataGoes = "이 약관을 동의하면 내 정보가 어디로 갈 수 있어?"
	QuestionDeletion      = "탈퇴하면 언제 삭제돼?"
	QuestionMarketingOpt  = "마케팅 수신 거부할 수 있어?"
)

// Questions returns the fixed questions in display order.
func Questions() []string {
	return []string{QuestionWhereDataGoes, QuestionDeletion, QuestionMarketingOpt}
}

// Evidence is the set of sentences supporting one risk flag.
type Evidence struct {
	Flag       risk.Category `json:"flag"`
	Sentences  []string      `json:"sentences"`
	Confidence int           `json:"confidence"`
}

type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Feedback is the only part of a stored analysis that may change.
type Feedback struct {
	Helpful bool   `json:"helpful"`
	Notes   string `json:"notes,omitempty"`
}

// Meta describes how an analysis was produced.
type Meta struct {
	Model          string `json:"model"`
	PromptVersion  string `json:"prompt_version"`
	ProcessingTime int64  `json:"processing_time_ms"`
}

// Analysis is a persisted policy analysis.
type Analysis struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	ServiceName string          `json:"service_name"`
	ServiceURL  string          `json:"service_url,omitempty"`
	Source      Source          `json:"policy_source"`
	Hash        string          `json:"policy_hash"`
	Summary     string          `json:"summary"`
	RiskFlags   []risk.Category `json:"risk_flags"`
	Evidence    []Evidence      `json:"evidence"`
	QAAnswers   []QA            `json:"qa_answers"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	NoSignal    bool            `json:"no_signal"`
	Meta        Meta            `json:"meta"`
	Feedback    *Feedback       `json:"feedback,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
