// Package telemetry provides Prometheus metrics for relay runs.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Runs            prometheus.Counter
	RunFailures     prometheus.Counter
	MessagesFetched prometheus.Counter
	MessagesRelayed prometheus.Counter
	MessagesSkipped prometheus.Counter
	SendFailures    prometheus.Counter
	RoomFetchErrors prometheus.Counter

	// Histograms (seconds)
	RunDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Runs = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_runs_total", Help: "Number of relay runs started"})
		RunFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_run_failures_total", Help: "Number of relay runs aborted by an error"})
		MessagesFetched = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_fetched_total", Help: "New HipChat messages fetched"})
		MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_relayed_total", Help: "Messages posted to Slack"})
		MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_messages_skipped_total", Help: "Messages filtered out before posting"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_send_failures_total", Help: "Slack webhook posts that failed"})
		RoomFetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_room_fetch_errors_total", Help: "Room history fetches that failed"})
		RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_run_duration_seconds", Help: "Relay run duration seconds", Buckets: prometheus.DefBuckets})
	})
}
