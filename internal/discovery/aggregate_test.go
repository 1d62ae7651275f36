package discovery

import (
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/footprint/internal/account"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregateWidensAndKeepsLatestEvidence(t *testing.T) {
	signals := []Signal{
		{From: "ACME <hello@acme.com>", Subject: "[ACME] 회원가입을 환영합니다", Date: "2023-01-10"},
		{From: "billing@acme.com", Subject: "영수증: 주문 완료", Date: "2023-06-01"},
		{From: "news@acme.com", Subject: "older newsletter", Date: "2023-03-01"},
	}
	got, skipped := Aggregate(signals, AggregateOptions{})
	if skipped != 0 {
		t.Fatalf("skipped = %d", skipped)
	}
	if len(got) != 1 {
		t.Fatalf("domains = %d, want 1", len(got))
	}
	d := got[0]
	if d.Domain != "acme.com" {
		t.Fatalf("domain = %q", d.Domain)
	}
	if !d.FirstSeen.Equal(day("2023-01-10")) || !d.LastActivity.Equal(day("2023-06-01")) {
		t.Fatalf("range = %s..%s", d.FirstSeen, d.LastActivity)
	}
	if d.EvidenceTitle != "영수증: 주문 완료" || d.EvidenceSource != "acme.com" {
		t.Fatalf("evidence = %q / %q", d.EvidenceTitle, d.EvidenceSource)
	}
	if d.ServiceName != "ACME" || d.Category != account.CategorySignup {
		t.Fatalf("seed fields = %q / %q", d.ServiceName, d.Category)
	}
}

func TestAggregateOrderIndependentBounds(t *testing.T) {
	a := Signal{From: "x@shop.com", Subject: "first", Date: "2023-01-10"}
	b := Signal{From: "y@shop.com", Subject: "second", Date: "2023-06-01"}
	forward, _ := Aggregate([]Signal{a, b}, AggregateOptions{})
	backward, _ := Aggregate([]Signal{b, a}, AggregateOptions{})
	for _, got := range [][]Domain{forward, backward} {
		d := got[0]
		if !d.FirstSeen.Equal(day("2023-01-10")) || !d.LastActivity.Equal(day("2023-06-01")) {
			t.Fatalf("range = %s..%s", d.FirstSeen, d.LastActivity)
		}
		if d.EvidenceTitle != "second" {
			t.Fatalf("evidence = %q", d.EvidenceTitle)
		}
	}
}

func TestAggregateSameDateKeepsFirstEvidence(t *testing.T) {
	got, _ := Aggregate([]Signal{
		{From: "a@shop.com", Subject: "one", Date: "2023-06-01"},
		{From: "b@shop.com", Subject: "two", Date: "2023-06-01"},
	}, AggregateOptions{})
	if got[0].EvidenceTitle != "one" {
		t.Fatalf("evidence = %q, want first of tied dates", got[0].EvidenceTitle)
	}
}

func TestAggregateSkipsUnusableSignals(t *testing.T) {
	signals := []Signal{
		{From: "not-an-email", Subject: "x", Date: "2023-01-01"},
		{From: "a@shop.com", Subject: "bad date", Date: "someday"},
		{From: "a@shop.com", Subject: "good", Date: "2023-02-01"},
		{From: "nobody", Unsubscribe: "<https://links.news.io/u>", Subject: "news", Date: "2023-02-02"},
	}
	got, skipped := Aggregate(signals, AggregateOptions{})
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	if len(got) != 2 || got[0].Domain != "shop.com" || got[1].Domain != "links.news.io" {
		t.Fatalf("domains = %+v", got)
	}
	if got[0].EvidenceTitle != "good" {
		t.Fatalf("bad-date signal leaked into evidence: %q", got[0].EvidenceTitle)
	}
	if got[1].EvidenceSource != "links.news.io" {
		t.Fatalf("evidence source = %q", got[1].EvidenceSource)
	}
}

func TestAggregateServiceNameFallsBackToDomain(t *testing.T) {
	got, _ := Aggregate([]Signal{
		{From: "a@plain.com", Subject: "your code", Date: "2023-01-01"},
	}, AggregateOptions{})
	if got[0].ServiceName != "plain.com" {
		t.Fatalf("service name = %q", got[0].ServiceName)
	}
	if got[0].Category != account.CategoryAuthentication {
		t.Fatalf("category = %q", got[0].Category)
	}
}

func TestAggregateGroupByRegistrable(t *testing.T) {
	signals := []Signal{
		{From: "a@mail.acme.co.uk", Subject: "one", Date: "2023-01-01"},
		{From: "b@acme.co.uk", Subject: "two", Date: "2023-02-01"},
	}
	plain, _ := Aggregate(signals, AggregateOptions{})
	if len(plain) != 2 {
		t.Fatalf("plain domains = %d, want 2", len(plain))
	}
	folded, _ := Aggregate(signals, AggregateOptions{GroupByRegistrable: true})
	if len(folded) != 1 || folded[0].Domain != "acme.co.uk" {
		t.Fatalf("folded = %+v", folded)
	}
	if folded[0].EvidenceSource != "acme.co.uk" {
		t.Fatalf("evidence source = %q", folded[0].EvidenceSource)
	}
}

func TestAggregateClipsEvidenceTitle(t *testing.T) {
	subject := strings.Repeat("가", MaxEvidenceTitleRunes+20)
	got, _ := Aggregate([]Signal{{From: "a@b.com", Subject: subject, Date: "2023-01-01"}}, AggregateOptions{})
	if n := len([]rune(got[0].EvidenceTitle)); n != MaxEvidenceTitleRunes {
		t.Fatalf("title runes = %d", n)
	}
}
