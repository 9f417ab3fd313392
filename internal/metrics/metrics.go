package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the check-in engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Submissions       *prometheus.CounterVec
	Scans             *prometheus.CounterVec
	DuplicatesFlagged prometheus.Counter
	SimilarFlagged    prometheus.Counter
	UpdateConflicts   prometheus.Counter
	StoreUnavailable  prometheus.Counter
	RateLimited       prometheus.Counter
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_submissions_total",
			Help: "Registration and edit submissions by outcome",
		}, []string{"outcome"}),
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_scans_total",
			Help: "Identifier scans by outcome",
		}, []string{"outcome"}),
		DuplicatesFlagged: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_duplicates_flagged_total",
			Help: "Submissions whose identifier already had a record on the same organizational day",
		}),
		SimilarFlagged: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_similar_names_flagged_total",
			Help: "Submissions whose full name matched a record with a different identifier",
		}),
		UpdateConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_update_conflicts_total",
			Help: "Updates rejected because the expected update count was stale",
		}),
		StoreUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_store_unavailable_total",
			Help: "Operations that failed because the record store was unavailable",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "checkin_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

// Submission counts one submission outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// Scan counts one scan outcome.
func (m *Metrics) Scan(outcome string) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(outcome).Inc()
}

// Duplicate counts a same-day duplicate finding.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.DuplicatesFlagged.Inc()
}

// Similar counts a similar-name finding.
func (m *Metrics) Similar() {
	if m == nil {
		return
	}
	m.SimilarFlagged.Inc()
}

// Conflict counts an optimistic-concurrency rejection.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.UpdateConflicts.Inc()
}

// Unavailable counts a store outage seen by a request.
func (m *Metrics) Unavailable() {
	if m == nil {
		return
	}
	m.StoreUnavailable.Inc()
}

// Limited counts a rate-limit rejection.
func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
