package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joshsymonds/footprint/internal/policy"
	"github.com/joshsymonds/footprint/internal/risk"
)

// PromptVersion is recorded in every analysis this package produces.
const PromptVersion = "2"

// SystemInstruction frames the model as a privacy reviewer that may only
// quote by id.
const SystemInstruction = `당신은 개인정보 보호 법률 전문가입니다.
사용자가 보낸 후보 문장만 근거로 개인정보 처리 위험을 한국어로 쉽게 설명합니다.
근거는 반드시 후보 문장의 id로만 선택하고, 문장을 새로 쓰거나 바꾸지 않습니다.

응답은 반드시 다음 JSON 형식만 사용합니다:
{
  "summary": "한 줄 요약 (60자 이내)",
  "risk_level": "low | medium | high",
  "flags": [
    {"flag": "third_party_sharing", "confidence": 85, "sentence_ids": [0, 2]}
  ],
  "qa": [
    {"question": "질문 그대로", "answer": "쉬운 말로 설명"}
  ]
}`

// BuildPrompt lists the candidates per category with their ids. Ids index
// the category's candidate list.
func BuildPrompt(req policy.Request) string {
	var b strings.Builder
	name := strings.TrimSpace(req.ServiceName)
	if name == "" {
		name = "서비스"
	}
	fmt.Fprintf(&b, "다음은 %s 개인정보 처리방침에서 뽑은 위험 후보 문장입니다.\n\n", name)
	for _, c := range risk.Categories() {
		list := req.Candidates[c]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n", c)
		for i, cand := range list {
			fmt.Fprintf(&b, "%d: %s\n", i, cand.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "규칙:\n- flags에는 위 목록에 있는 카테고리만 넣습니다.\n")
	fmt.Fprintf(&b, "- 각 flag마다 sentence_ids를 %d~%d개 고릅니다 (후보가 더 적으면 전부).\n",
		policy.MinEvidenceSentences, policy.MaxEvidenceSentences)
	b.WriteString("- confidence는 0~100 정수입니다.\n")
	b.WriteString("- qa에는 다음 세 질문에 모두 답합니다:\n")
	for _, q := range policy.Questions() {
		fmt.Fprintf(&b, "  - %q\n", q)
	}
	return b.String()
}

type response struct {
	Summary   string         `json:"summary"`
	RiskLevel string         `json:"risk_level"`
	Flags     []flagResponse `json:"flags"`
	QA        []qaResponse   `json:"qa"`
}

type flagResponse struct {
	Flag        string `json:"flag"`
	Confidence  int    `json:"confidence"`
	SentenceIDs []int  `json:"sentence_ids"`
}

type qaResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// decodeResponse parses the model output and maps sentence ids back to the
// candidate text. The result still goes through policy.Validate.
func decodeResponse(raw string, req policy.Request) (policy.Classification, error) {
	clean := stripFences(raw)
	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.DisallowUnknownFields()
	var resp response
	if err := dec.Decode(&resp); err != nil {
		return policy.Classification{}, fmt.Errorf("decode gemini response: %w", err)
	}
	out := policy.Classification{
		Summary:       resp.Summary,
		RiskLevel:     policy.RiskLevel(strings.ToLower(strings.TrimSpace(resp.RiskLevel))),
		PromptVersion: PromptVersion,
	}
	for _, f := range resp.Flags {
		cat, err := risk.ParseCategory(strings.TrimSpace(f.Flag))
		if err != nil {
			return policy.Classification{}, fmt.Errorf("decode gemini response: %w", err)
		}
		list := req.Candidates[cat]
		ev := policy.Evidence{Flag: cat, Confidence: f.Confidence}
		for _, id := range f.SentenceIDs {
			if id < 0 || id >= len(list) {
				return policy.Classification{}, fmt.Errorf("decode gemini response: %s sentence id %d out of range", cat, id)
			}
			ev.Sentences = append(ev.Sentences, list[id].Text)
		}
		out.RiskFlags = append(out.RiskFlags, cat)
		out.Evidence = append(out.Evidence, ev)
	}
	for _, qa := range resp.QA {
		out.QAAnswers = append(out.QAAnswers, policy.QA{Question: qa.Question, Answer: qa.Answer})
	}
	return out, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
