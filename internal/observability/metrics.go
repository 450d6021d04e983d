package observability

import "sync"

// Metrics provides basic in-memory counters for pipeline outcomes.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

// Counter keys recorded by the pipeline.
const (
	MetricTicketsClosed       = "tickets_closed"
	MetricClosuresRejected    = "closures_rejected"
	MetricTranscriptsRendered = "transcripts_rendered"
	MetricArchiveFailures     = "archive_failures"
	MetricAttachmentsArchived = "attachments_archived"
	MetricAttachmentsDropped  = "attachments_dropped"
	MetricFeedbackAccepted    = "feedback_accepted"
	MetricFeedbackRejected    = "feedback_rejected"
	MetricRateLimited         = "rate_limited"
)

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

// Inc increments a counter by one.
func (m *Metrics) Inc(key string) {
	m.Add(key, 1)
}

// Add increments a counter by delta.
func (m *Metrics) Add(key string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += delta
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
