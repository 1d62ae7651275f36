package extract

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/footprint/internal/account"
)

//go:embed categories.yaml
var defaultCategories []byte

// Rules holds the subject cues for each account category.
type Rules struct {
	cues map[account.Category][]string
}

type rulesFile struct {
	Signup         []string `yaml:"signup"`
	Receipt        []string `yaml:"receipt"`
	Authentication []string `yaml:"authentication"`
}

var (
	defaultOnce  sync.Once
	defaultRules *Rules
)

// Default returns the embedded rules, parsed once per process.
func Default() *Rules {
	defaultOnce.Do(func() {
		r, err := LoadRules(bytes.NewReader(defaultCategories))
		if err != nil {
			panic(fmt.Sprintf("embedded categories.yaml: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// LoadRules parses a category cue table. Unknown keys are rejected.
func LoadRules(r io.Reader) (*Rules, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f rulesFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode category rules: %w", err)
	}
	return &Rules{cues: map[account.Category][]string{
		account.CategorySignup:         lowerAll(f.Signup),
		account.CategoryReceipt:        lowerAll(f.Receipt),
		account.CategoryAuthentication: lowerAll(f.Authentication),
	}}, nil
}

// Categorize classifies a subject line. Categories are tried in priority
// order and the first one with a matching cue wins.
func (r *Rules) Categorize(subject, _ string) account.Category {
	s := strings.ToLower(subject)
	for _, c := range account.Categories() {
		switch c {
		case account.CategorySignup, account.CategoryReceipt, account.CategoryAuthentication:
			if containsAny(s, r.cues[c]) {
				return c
			}
		case account.CategoryOther:
		}
	}
	return account.CategoryOther
}

// Categorize classifies with the embedded rules.
func Categorize(subject, domain string) account.Category {
	return Default().Categorize(subject, domain)
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if cue != "" && strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
