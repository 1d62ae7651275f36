package discovery

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/joshsymonds/footprint/internal/account"
	"github.com/joshsymonds/footprint/internal/extract"
)

// MaxEvidenceTitleRunes bounds the subject stored as evidence.
const MaxEvidenceTitleRunes = 100

// Domain is the in-batch summary of every signal that resolved to one domain.
// FirstSeen never exceeds LastActivity.
type Domain struct {
	Domain         string           `json:"domain"`
	ServiceName    string           `json:"service_name"`
	Category       account.Category `json:"category"`
	FirstSeen      time.Time        `json:"first_seen"`
	LastActivity   time.Time        `json:"last_activity"`
	EvidenceTitle  string           `json:"evidence_title"`
	EvidenceSource string           `json:"evidence_source"`
}

// AggregateOptions tunes Phase A.
type AggregateOptions struct {
	// GroupByRegistrable folds subdomains into their registrable domain
	// (mail.acme.com and acme.com become acme.com).
	GroupByRegistrable bool
	// Rules overrides the embedded category cues.
	Rules *extract.Rules
}

// Aggregate folds signals into one Domain per resolved domain, in order of
// first appearance. Signals without a domain or a parsable date are skipped
// and counted.
func Aggregate(signals []Signal, opts AggregateOptions) ([]Domain, int) {
	rules := opts.Rules
	if rules == nil {
		rules = extract.Default()
	}
	var (
		out     []Domain
		index   = map[string]int{}
		skipped int
	)
	for _, sig := range signals {
		domain, ok := extract.ResolveDomain(sig.From, sig.Unsubscribe)
		if !ok {
			skipped++
			continue
		}
		if opts.GroupByRegistrable {
			domain = registrable(domain)
		}
		date, ok := ParseMailDate(sig.Date)
		if !ok {
			skipped++
			continue
		}
		i, seen := index[domain]
		if !seen {
			index[domain] = len(out)
			out = append(out, seed(domain, date, sig, rules))
			continue
		}
		widen(&out[i], date, sig)
	}
	for i := range out {
		if out[i].ServiceName == "" {
			out[i].ServiceName = out[i].Domain
		}
	}
	return out, skipped
}

func seed(domain string, date time.Time, sig Signal, rules *extract.Rules) Domain {
	d := Domain{
		Domain:       domain,
		Category:     rules.Categorize(sig.Subject, domain),
		FirstSeen:    date,
		LastActivity: date,
	}
	d.ServiceName, _ = extract.ServiceNameFromSubject(sig.Subject)
	d.EvidenceTitle, d.EvidenceSource = evidence(domain, sig)
	return d
}

func widen(d *Domain, date time.Time, sig Signal) {
	if date.Before(d.FirstSeen) {
		d.FirstSeen = date
	}
	if d.ServiceName == "" {
		d.ServiceName, _ = extract.ServiceNameFromSubject(sig.Subject)
	}
	if date.After(d.LastActivity) {
		d.LastActivity = date
		d.EvidenceTitle, d.EvidenceSource = evidence(d.Domain, sig)
	}
}

// evidence returns the clipped subject and the sender's own domain, which
// may differ from the aggregation key.
func evidence(domain string, sig Signal) (string, string) {
	source, ok := extract.DomainFromAddress(sig.From)
	if !ok {
		source = domain
	}
	return clipRunes(strings.TrimSpace(sig.Subject), MaxEvidenceTitleRunes), source
}

func registrable(domain string) string {
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		return etld1
	}
	return domain
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
