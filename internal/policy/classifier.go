package policy

import (
	"context"
	"errors"

	"github.com/joshsymonds/footprint/internal/risk"
)

// ErrClassifierUnavailable wraps every failure to obtain a classification:
// no classifier configured, transport errors, unreadable responses.
var ErrClassifierUnavailable = errors.New("risk classifier unavailable")

// Request is what a classifier sees. It never receives the raw policy, only
// the candidate sentences.
type Request struct {
	ServiceName string
	Candidates  risk.Candidates
}

// Classification is the classifier's verdict before validation.
type Classification struct {
	Summary       string
	RiskFlags     []risk.Category
	Evidence      []Evidence
	QAAnswers     []QA
	RiskLevel     RiskLevel
	Model         string
	PromptVersion string
}

// Classifier picks risk flags and evidence from the offered candidates.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Classification, error)
}
