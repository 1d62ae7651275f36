package textnorm

import (
	"strings"

	"golang.org/x/net/html"
)

var hiddenTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

// StripMarkup returns the visible text of an HTML document with whitespace
// collapsed. Script and style bodies are dropped. Plain text passes through.
func StripMarkup(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		b      strings.Builder
		hidden int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read
			return CollapseSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if hiddenTags[string(name)] {
				hidden++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if hiddenTags[string(name)] && hidden > 0 {
				hidden--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}
