package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics records outcomes of the outbox publisher worker.
type PublisherMetrics struct {
	published    prometheus.Counter
	failed       prometheus.Counter
	terminal     prometheus.Counter
	pollDuration prometheus.Histogram
}

// NewPublisherMetrics registers the publisher metrics on the provided registerer.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_records_published_total",
		Help: "Outbox records successfully published to Pub/Sub.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_records_failed_total",
		Help: "Outbox publish attempts that failed and will be retried.",
	})
	terminal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_records_terminal_total",
		Help: "Outbox records abandoned after exhausting retry attempts.",
	})
	pollDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_poll_duration_seconds",
		Help:    "Duration of one outbox poll and publish cycle.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(published, failed, terminal, pollDuration)
	return &PublisherMetrics{
		published:    published,
		failed:       failed,
		terminal:     terminal,
		pollDuration: pollDuration,
	}
}

// IncPublished counts one successfully published record.
func (m *PublisherMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncFailed counts one failed publish attempt.
func (m *PublisherMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// IncTerminal counts one record marked beyond retry.
func (m *PublisherMetrics) IncTerminal() {
	if m == nil || m.terminal == nil {
		return
	}
	m.terminal.Inc()
}

// ObservePoll records the duration of one poll cycle.
func (m *PublisherMetrics) ObservePoll(d time.Duration) {
	if m == nil || m.pollDuration == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}
