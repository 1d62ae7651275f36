package risk

import (
	"sort"
	"strings"
)

// MaxCandidates bounds the candidates kept per category.
const MaxCandidates = 30

// Candidate is a policy sentence offered as evidence for a category.
type Candidate struct {
	SentenceIndex int    `json:"sentence_index"`
	Text          string `json:"text"`
	Score         int    `json:"score"`
}

// Candidates maps each category with at least one hit to its ranked list.
type Candidates map[Category][]Candidate

// Empty reports whether no category has any candidate.
func (c Candidates) Empty() bool {
	for _, list := range c {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// BuildCandidates scores every sentence against every category. A sentence's
// score is the number of distinct cues it contains. Lists are sorted by
// descending score, ties keep sentence order, and are capped at
// MaxCandidates. Text is returned exactly as given.
func (t *Taxonomy) BuildCandidates(sentences []string) Candidates {
	lowered := make([]string, len(sentences))
	for i, s := range sentences {
		lowered[i] = strings.ToLower(s)
	}
	out := Candidates{}
	for _, c := range Categories() {
		cues := t.cues[c]
		if len(cues) == 0 {
			continue
		}
		var list []Candidate
		for i, s := range lowered {
			if score := countCues(s, cues); score > 0 {
				list = append(list, Candidate{SentenceIndex: i, Text: sentences[i], Score: score})
			}
		}
		if len(list) == 0 {
			continue
		}
		sort.SliceStable(list, func(a, b int) bool { return list[a].Score > list[b].Score })
		if len(list) > MaxCandidates {
			list = list[:MaxCandidates]
		}
		out[c] = list
	}
	return out
}

// BuildCandidates scores with the embedded taxonomy.
func BuildCandidates(sentences []string) Candidates {
	return Default().BuildCandidates(sentences)
}

func countCues(sentence string, cues []string) int {
	n := 0
	for _, cue := range cues {
		if strings.Contains(sentence, cue) {
			n++
		}
	}
	return n
}
