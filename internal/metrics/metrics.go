// Package metrics exposes pipeline counters for the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DownloadsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_downloads_started_total",
		Help: "Download pipeline runs started, by fetch strategy.",
	}, []string{"strategy"})

	DownloadsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_downloads_completed_total",
		Help: "Download pipeline runs delivered successfully, by fetch strategy.",
	}, []string{"strategy"})

	DownloadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipfetch_downloads_failed_total",
		Help: "Download pipeline runs that ended in a terminal error, by fetch strategy.",
	}, []string{"strategy"})

	RateLimitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipfetch_rate_limit_retries_total",
		Help: "Pipeline re-invocations triggered by delivery rate-limit signals.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
