package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxServiceNameRunes = 60

var (
	bracketRe = regexp.MustCompile(`\[([^\]]+)\]`)
	welcomeRe = regexp.MustCompile(`(?i)welcome\s+to\s+([^,.\n]+)`)
	joinedRe  = regexp.MustCompile(`([^\s,.\n\[\]:]+)\s+(?:회원가입|가입)`)
)

// ServiceNameFromSubject guesses a service name from a subject line. Bracketed
// text wins, then "Welcome to X", then "X 가입" / "X 회원가입".
func ServiceNameFromSubject(subject string) (string, bool) {
	if strings.TrimSpace(subject) == "" {
		return "", false
	}
	for _, re := range []*regexp.Regexp{bracketRe, welcomeRe, joinedRe} {
		m := re.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		if name := clip(strings.TrimSpace(m[1]), maxServiceNameRunes); name != "" {
			return name, true
		}
	}
	return "", false
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
