package policy

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/footprint/internal/risk"
)

// Evidence sentence bounds per flag.
const (
	MinEvidenceSentences = 2
	MaxEvidenceSentences = 5
)

// ValidationError lists every way a classification broke its contract.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid classification: " + strings.Join(e.Problems, "; ")
}

// Validate checks a classification against the candidates it was offered.
// Evidence must quote candidates of its own flag verbatim, and the fixed
// questions must each be answered exactly once.
func Validate(c Classification, cands risk.Candidates) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !c.RiskLevel.Valid() {
		add("risk level %q is not low, medium or high", c.RiskLevel)
	}

	flagged := map[risk.Category]bool{}
	for _, f := range c.RiskFlags {
		switch {
		case !f.Valid():
			add("unknown risk flag %q", f)
		case flagged[f]:
			add("risk flag %s repeated", f)
		case len(cands[f]) == 0:
			add("risk flag %s has no candidates", f)
		}
		flagged[f] = true
	}

	withEvidence := map[risk.Category]bool{}
	for _, ev := range c.Evidence {
		if !ev.Flag.Valid() {
			add("evidence for unknown flag %q", ev.Flag)
			continue
		}
		if withEvidence[ev.Flag] {
			add("evidence for %s repeated", ev.Flag)
			continue
		}
		withEvidence[ev.Flag] = true
		if !flagged[ev.Flag] {
			add("evidence for %s which is not flagged", ev.Flag)
		}
		problems = append(problems, checkEvidence(ev, cands[ev.Flag])...)
	}
	for _, f := range c.RiskFlags {
		if f.Valid() && !withEvidence[f] {
			add("risk flag %s has no evidence", f)
			withEvidence[f] = true
		}
	}

	problems = append(problems, checkAnswers(c.QAAnswers)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkEvidence(ev Evidence, offered []risk.Candidate) []string {
	var problems []string
	if ev.Confidence < 0 || ev.Confidence > 100 {
		problems = append(problems, fmt.Sprintf("%s confidence %d outside 0-100", ev.Flag, ev.Confidence))
	}
	minimum := MinEvidenceSentences
	if len(offered) < minimum {
		minimum = len(offered)
	}
	if n := len(ev.Sentences); n < minimum || n > MaxEvidenceSentences {
		problems = append(problems, fmt.Sprintf("%s has %d sentences, want %d-%d", ev.Flag, n, minimum, MaxEvidenceSentences))
	}
	texts := make(map[string]bool, len(offered))
	for _, c := range offered {
		texts[c.Text] = true
	}
	used := map[string]bool{}
	for _, s := range ev.Sentences {
		if !texts[s] {
			problems = append(problems, fmt.Sprintf("%s quotes a sentence that was not offered: %q", ev.Flag, s))
			continue
		}
		if used[s] {
			problems = append(problems, fmt.Sprintf("%s quotes %q twice", ev.Flag, s))
		}
		used[s] = true
	}
	return problems
}

func checkAnswers(answers []QA) []string {
	questions := Questions()
	if len(answers) != len(questions) {
		return []string{fmt.Sprintf("%d answers, want %d", len(answers), len(questions))}
	}
	want := make(map[string]bool, len(questions))
	for _, q := range questions {
		want[q] = true
	}
	var problems []string
	seen := map[string]bool{}
	for _, a := range answers {
		q := strings.TrimSpace(a.Question)
		switch {
		case !want[q]:
			problems = append(problems, fmt.Sprintf("unexpected question %q", a.Question))
		case seen[q]:
			problems = append(problems, fmt.Sprintf("question %q answered twice", q))
		case strings.TrimSpace(a.Answer) == "":
			problems = append(problems, fmt.Sprintf("question %q has an empty answer", q))
		}
		seen[q] = true
	}
	return problems
}

// orderAnswers returns the answers in the fixed question order. It assumes
// Validate accepted them.
func orderAnswers(answers []QA) []QA {
	byQ := make(map[string]QA, len(answers))
	for _, a := range answers {
		byQ[strings.TrimSpace(a.Question)] = QA{Question: strings.TrimSpace(a.Question), Answer: strings.TrimSpace(a.Answer)}
	}
	out := make([]QA, 0, len(answers))
	for _, q := range Questions() {
		out = append(out, byQ[q])
	}
	return out
}
