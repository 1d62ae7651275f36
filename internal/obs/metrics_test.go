package obs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.Fetched()
	m.Fetched()
	m.FetchFailed()
	m.Skipped(3)
	m.Skipped(0)
	m.Merged(2, 1, 0)
	m.Analysis(OutcomeReused)
	m.Analysis(OutcomeReused)
	m.Candidates("sensitive_data", 4)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"fetched", m.MessagesFetched, 2},
		{"failed", m.MessagesFailed, 1},
		{"skipped", m.MessagesSkipped, 3},
		{"created", m.AccountsCreated, 2},
		{"updated", m.AccountsUpdated, 1},
		{"reused", m.PolicyAnalyses.WithLabelValues(OutcomeReused), 2},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.PolicyCandidates); n != 1 {
		t.Fatalf("candidate series = %d, want 1", n)
	}
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("first NewMetrics: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Fetched()
	m.FetchFailed()
	m.Skipped(1)
	m.Merged(1, 1, 1)
	m.Analysis(OutcomeFailed)
	m.Candidates("x", 1)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.Fetched()
	path := filepath.Join(t.TempDir(), "footprint.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "footprint_discovery_messages_fetched_total 1") {
		t.Fatalf("textfile missing counter:\n%s", raw)
	}
	if err := WriteTextfile("", reg); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
