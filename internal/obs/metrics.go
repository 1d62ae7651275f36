// Package obs holds the Prometheus collectors shared by the batch binaries.
package obs

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "footprint"

// Outcome labels for policy analyses.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeReused   = "reused"
	OutcomeNoSignal = "no_signal"
	OutcomeFailed   = "failed"
)

// Metrics groups the discovery and policy counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	MessagesFetched  prometheus.Counter
	MessagesFailed   prometheus.Counter
	MessagesSkipped  prometheus.Counter
	AccountsCreated  prometheus.Counter
	AccountsUpdated  prometheus.Counter
	AccountsFailed   prometheus.Counter
	PolicyAnalyses   *prometheus.CounterVec
	PolicyCandidates *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		MessagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "messages_fetched_total",
			Help: "Message metadata fetched from the mailbox.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "messages_failed_total",
			Help: "Message metadata fetches that failed.",
		}),
		MessagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "messages_skipped_total",
			Help: "Messages dropped for lacking a domain or a parsable date.",
		}),
		AccountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "accounts_created_total",
			Help: "Accounts inserted by discovery runs.",
		}),
		AccountsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "accounts_updated_total",
			Help: "Existing accounts changed by discovery runs.",
		}),
		AccountsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery",
			Name: "accounts_failed_total",
			Help: "Domains whose merge failed at the store.",
		}),
		PolicyAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "policy",
			Name: "analyses_total",
			Help: "Policy analyses by outcome.",
		}, []string{"outcome"}),
		PolicyCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "policy",
			Name:    "candidates",
			Help:    "Evidence candidates per risk category.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30},
		}, []string{"category"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.MessagesFetched, m.MessagesFailed, m.MessagesSkipped,
		m.AccountsCreated, m.AccountsUpdated, m.AccountsFailed,
		m.PolicyAnalyses, m.PolicyCandidates,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) Fetched() {
	if m != nil {
		m.MessagesFetched.Inc()
	}
}

func (m *Metrics) FetchFailed() {
	if m != nil {
		m.MessagesFailed.Inc()
	}
}

func (m *Metrics) Skipped(n int) {
	if m != nil && n > 0 {
		m.MessagesSkipped.Add(float64(n))
	}
}

// Merged records the outcome of one discovery merge.
func (m *Metrics) Merged(created, updated, failed int) {
	if m == nil {
		return
	}
	m.AccountsCreated.Add(float64(created))
	m.AccountsUpdated.Add(float64(updated))
	m.AccountsFailed.Add(float64(failed))
}

func (m *Metrics) Analysis(outcome string) {
	if m != nil {
		m.PolicyAnalyses.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Candidates(category string, n int) {
	if m != nil {
		m.PolicyCandidates.WithLabelValues(category).Observe(float64(n))
	}
}
