package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "venue_vote"

var (
	httpRequestsTotal       *prometheus.CounterVec
	sweepEventsTotal        *prometheus.CounterVec
	dispatchRecipientsTotal *prometheus.CounterVec
	sweepDuration           prometheus.Histogram
	registerOnce            sync.Once
)

// Register initializes Prometheus metrics on the default registry.
// Calls before Register are dropped.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the API.",
		}, []string{"method", "path", "status"})

		sweepEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_events_total",
			Help:      "Reminder and winner events handled by scheduler sweeps.",
		}, []string{"event", "outcome"})

		dispatchRecipientsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_recipients_total",
			Help:      "Per-recipient notification send results.",
		}, []string{"channel", "result"})

		sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of scheduler sweeps.",
			Buckets:   prometheus.DefBuckets,
		})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func IncSweepEvent(event, outcome string) {
	if sweepEventsTotal == nil {
		return
	}
	sweepEventsTotal.WithLabelValues(event, outcome).Inc()
}

func IncDispatch(channel, result string) {
	if dispatchRecipientsTotal == nil {
		return
	}
	dispatchRecipientsTotal.WithLabelValues(channel, result).Inc()
}

func ObserveSweep(d time.Duration) {
	if sweepDuration == nil {
		return
	}
	sweepDuration.Observe(d.Seconds())
}
