package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indidrv",
			Subsystem: "admin",
			Name:      "http_requests_total",
			Help:      "Total requests against the driver's diagnostics HTTP surface.",
		},
		[]string{"driver", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indidrv",
			Subsystem: "admin",
			Name:      "http_request_duration_seconds",
			Help:      "Diagnostics HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver", "method", "path", "status"},
	)
	elementsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indidrv",
			Subsystem: "wire",
			Name:      "elements_emitted_total",
			Help:      "Outbound XML elements written to the peer, by tag.",
		},
		[]string{"driver", "tag"},
	)
	dispatchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "indidrv",
			Subsystem: "dispatch",
			Name:      "results_total",
			Help:      "Inbound elements classified by the dispatcher, by outcome.",
		},
		[]string{"driver", "tag", "outcome"},
	)
	blobPingWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "indidrv",
			Subsystem: "blob",
			Name:      "ping_wait_seconds",
			Help:      "Time spent blocked waiting for the previous BLOB pingReply.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"driver"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, elementsEmitted, dispatchResults, blobPingWait)
	})
}

func RecordHTTPRequest(driver, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(driver, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(driver, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordElementEmitted counts one outbound element written by the writer sink.
func RecordElementEmitted(driver, tag string) {
	RegisterMetrics()
	elementsEmitted.WithLabelValues(driver, tag).Inc()
}

// RecordDispatchResult counts one inbound element processed by the dispatcher.
// outcome is one of: "ok", "rejected", "invalid_member", "empty_batch", "unknown", "fatal".
func RecordDispatchResult(driver, tag, outcome string) {
	RegisterMetrics()
	dispatchResults.WithLabelValues(driver, tag, outcome).Inc()
}

// RecordBLOBPingWait records how long set_blob blocked on the prior pingReply.
func RecordBLOBPingWait(driver string, wait time.Duration) {
	RegisterMetrics()
	blobPingWait.WithLabelValues(driver).Observe(wait.Seconds())
}
