package risk

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Guidance is the user-facing advice attached to a category.
type Guidance struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Action      string `yaml:"action" json:"action"`
}

type entry struct {
	Cues     []string `yaml:"cues"`
	Guidance Guidance `yaml:"guidance"`
}

// Taxonomy maps each category to its cues and guidance. It is read-only
// after loading.
type Taxonomy struct {
	cues     map[Category][]string
	guidance map[Category]Guidance
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded taxonomy, parsed once per process.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := LoadTaxonomy(bytes.NewReader(defaultTaxonomy))
		if err != nil {
			panic(fmt.Sprintf("embedded taxonomy.yaml: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// LoadTaxonomy parses a taxonomy document. Unknown categories and fields are
// rejected; missing categories simply have no cues.
func LoadTaxonomy(r io.Reader) (*Taxonomy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	raw := map[string]entry{}
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	t := &Taxonomy{
		cues:     make(map[Category][]string, len(raw)),
		guidance: make(map[Category]Guidance, len(raw)),
	}
	for name, e := range raw {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("decode taxonomy: %w", err)
		}
		t.cues[c] = normalizeCues(e.Cues)
		t.guidance[c] = e.Guidance
	}
	return t, nil
}

// Cues returns the lower-cased, de-duplicated cues of c in file order.
func (t *Taxonomy) Cues(c Category) []string {
	return append([]string(nil), t.cues[c]...)
}

// Guidance returns the advice for c and whether any is configured.
func (t *Taxonomy) Guidance(c Category) (Guidance, bool) {
	g, ok := t.guidance[c]
	return g, ok && g.Title != ""
}

// GuidanceFor looks up advice in the embedded taxonomy.
func GuidanceFor(c Category) (Guidance, bool) {
	return Default().Guidance(c)
}

func normalizeCues(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, cue := range in {
		cue = strings.ToLower(strings.TrimSpace(cue))
		if cue == "" {
			continue
		}
		if _, dup := seen[cue]; dup {
			continue
		}
		seen[cue] = struct{}{}
		out = append(out, cue)
	}
	return out
}
