package policy

import (
	"errors"
	"strings"
	"testing"

	"github.com/joshsymonds/footprint/internal/risk"
)

func sampleCandidates() risk.Candidates {
	return risk.Candidates{
		risk.ThirdPartySharing: {
			{SentenceIndex: 0, Text: "A사는 제3자에게 정보를 제공한다.", Score: 2},
			{SentenceIndex: 2, Text: "파트너사와 정보를 공유할 수 있습니다.", Score: 1},
			{SentenceIndex: 3, Text: "광고주에게 정보를 제공할 수 있습니다.", Score: 1},
		},
		risk.LongRetention: {
			{SentenceIndex: 1, Text: "보관 기간은 영구적이다.", Score: 3},
		},
	}
}

func answers() []QA {
	return []QA{
		{Question: QuestionMarketingOpt, Answer: "설정에서 거부할 수 있어요."},
		{Question: QuestionWhereDataGoes, Answer: "파트너사와 광고주에게 갈 수 있어요."},
		{Question: QuestionDeletion, Answer: "명시되어 있지 않아요."},
	}
}

func validClassification() Classification {
	return Classification{
		Summary:   "제3자 제공과 영구 보관이 있습니다.",
		RiskFlags: []risk.Category{risk.ThirdPartySharing, risk.LongRetention},
		Evidence: []Evidence{
			{Flag: risk.ThirdPartySharing, Confidence: 90, Sentences: []string{
				"A사는 제3자에게 정보를 제공한다.", "파트너사와 정보를 공유할 수 있습니다.",
			}},
			{Flag: risk.LongRetention, Confidence: 70, Sentences: []string{"보관 기간은 영구적이다."}},
		},
		QAAnswers: answers(),
		RiskLevel: RiskHigh,
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validClassification(), sampleCandidates()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Classification)
		want   string
	}{
		{
			name:   "invented sentence",
			mutate: func(c *Classification) { c.Evidence[0].Sentences[1] = "We sell everything." },
			want:   "not offered",
		},
		{
			name: "sentence from another category",
			mutate: func(c *Classification) {
				c.Evidence[0].Sentences[1] = "보관 기간은 영구적이다."
			},
			want: "not offered",
		},
		{
			name:   "too few sentences",
			mutate: func(c *Classification) { c.Evidence[0].Sentences = c.Evidence[0].Sentences[:1] },
			want:   "has 1 sentences",
		},
		{
			name: "too many sentences",
			mutate: func(c *Classification) {
				s := c.Evidence[0].Sentences
				c.Evidence[0].Sentences = []string{s[0], s[1], s[0], s[1], s[0], s[1]}
			},
			want: "has 6 sentences",
		},
		{
			name:   "duplicate sentence",
			mutate: func(c *Classification) { c.Evidence[0].Sentences[1] = c.Evidence[0].Sentences[0] },
			want:   "twice",
		},
		{
			name:   "confidence",
			mutate: func(c *Classification) { c.Evidence[1].Confidence = 101 },
			want:   "outside 0-100",
		},
		{
			name:   "risk level",
			mutate: func(c *Classification) { c.RiskLevel = "severe" },
			want:   "risk level",
		},
		{
			name:   "unknown flag",
			mutate: func(c *Classification) { c.RiskFlags = append(c.RiskFlags, "cookies") },
			want:   "unknown risk flag",
		},
		{
			name:   "flag without candidates",
			mutate: func(c *Classification) { c.RiskFlags = append(c.RiskFlags, risk.SensitiveData) },
			want:   "no candidates",
		},
		{
			name:   "evidence for unflagged category",
			mutate: func(c *Classification) { c.RiskFlags = c.RiskFlags[:1] },
			want:   "not flagged",
		},
		{
			name:   "flag without evidence",
			mutate: func(c *Classification) { c.Evidence = c.Evidence[:1] },
			want:   "long_retention has no evidence",
		},
		{
			name:   "missing answer",
			mutate: func(c *Classification) { c.QAAnswers = c.QAAnswers[:2] },
			want:   "2 answers",
		},
		{
			name:   "foreign question",
			mutate: func(c *Classification) { c.QAAnswers[0].Question = "좋은 서비스야?" },
			want:   "unexpected question",
		},
		{
			name:   "empty answer",
			mutate: func(c *Classification) { c.QAAnswers[2].Answer = " " },
			want:   "empty answer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClassification()
			tt.mutate(&c)
			err := Validate(c, sampleCandidates())
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestOrderAnswers(t *testing.T) {
	got := orderAnswers(answers())
	for i, q := range Questions() {
		if got[i].Question != q {
			t.Fatalf("answer %d = %q, want %q", i, got[i].Question, q)
		}
	}
}
