// Package report renders discovery runs, accounts and policy analyses for
// the terminal and as JSON files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joshsymonds/footprint/internal/account"
	"github.com/joshsymonds/footprint/internal/discovery"
	"github.com/joshsymonds/footprint/internal/policy"
	"github.com/joshsymonds/footprint/internal/risk"
)

const (
	titleDisplayLimit = 48
	dateLayout        = "2006-01-02"
)

// PrintDiscovery writes a readable summary of a discovery run.
func PrintDiscovery(rep discovery.Report, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "footprint discovery %s: %d scanned, %d fetch failures, %d skipped\n",
		rep.RunID, rep.Scanned, rep.FetchFailures, rep.Skipped)
	if rep.DryRun {
		fmt.Fprintf(&b, "\nDiscovered domains (dry run, nothing stored):\n")
		for _, d := range rep.Domains {
			fmt.Fprintf(&b, "  %-30s %-14s %s..%s %s\n",
				d.Domain, d.Category, day(d.FirstSeen), day(d.LastActivity),
				truncate(d.EvidenceTitle, titleDisplayLimit))
		}
		return write(w, b.String())
	}
	fmt.Fprintf(&b, "accounts: %d created, %d updated, %d unchanged\n", rep.Created, rep.Updated, rep.Unchanged)
	writeAccounts(&b, rep.Accounts)
	if len(rep.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}
	return write(w, b.String())
}

// PrintAccounts writes an account table.
func PrintAccounts(accts []account.Account, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d accounts\n", len(accts))
	writeAccounts(&b, accts)
	return write(w, b.String())
}

func writeAccounts(b *strings.Builder, accts []account.Account) {
	if len(accts) == 0 {
		return
	}
	b.WriteString("\n")
	for _, a := range accts {
		confirmed := " "
		if a.UserConfirmed {
			confirmed = "✓"
		}
		fmt.Fprintf(b, "  %s %-30s %-24s %-14s %-8s last %s (%s)\n",
			confirmed, a.ServiceDomain, truncate(a.ServiceName, 24), a.Category, a.Status,
			day(a.LastActivityDate), inactivity(a.InactivityDays))
		if a.EvidenceTitle != "" {
			fmt.Fprintf(b, "      %s\n", truncate(a.EvidenceTitle, titleDisplayLimit))
		}
	}
}

// PrintAnalysis writes one analysis with its evidence, answers and advice.
func PrintAnalysis(a policy.Analysis, guidance map[risk.Category]risk.Guidance, w io.Writer) error {
	var b strings.Builder
	name := a.ServiceName
	if name == "" {
		name = a.ServiceURL
	}
	fmt.Fprintf(&b, "policy analysis %s (%s): risk %s\n", a.ID, name, a.RiskLevel)
	if a.NoSignal {
		b.WriteString("no risk signal found in the policy text\n")
		return write(w, b.String())
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "%s\n", a.Summary)
	}
	for _, ev := range a.Evidence {
		fmt.Fprintf(&b, "\n[%s] confidence %d\n", ev.Flag, ev.Confidence)
		for _, s := range ev.Sentences {
			fmt.Fprintf(&b, "  > %s\n", s)
		}
		if g, ok := guidance[ev.Flag]; ok {
			fmt.Fprintf(&b, "  %s: %s\n  %s\n", g.Title, g.Description, g.Action)
		}
	}
	if len(a.QAAnswers) > 0 {
		b.WriteString("\nQ&A:\n")
		for _, qa := range a.QAAnswers {
			fmt.Fprintf(&b, "  Q. %s\n  A. %s\n", qa.Question, qa.Answer)
		}
	}
	return write(w, b.String())
}

// PrintHistory writes one line per analysis.
func PrintHistory(list []policy.Analysis, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d analyses\n", len(list))
	for _, a := range list {
		flags := make([]string, 0, len(a.RiskFlags))
		for _, f := range a.RiskFlags {
			flags = append(flags, string(f))
		}
		fmt.Fprintf(&b, "  %s %s %-6s %-24s %s\n",
			a.ID, day(a.CreatedAt), a.RiskLevel, truncate(a.ServiceName, 24), strings.Join(flags, ","))
	}
	return write(w, b.String())
}

// WriteJSON serializes v to a path relative to the working directory.
func WriteJSON(v any, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func write(w io.Writer, s string) error {
	if w == nil {
		w = os.Stdout
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func day(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(dateLayout)
}

func inactivity(days int) string {
	if days == account.UnknownInactivity {
		return "inactivity unknown"
	}
	return fmt.Sprintf("%dd idle", days)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
