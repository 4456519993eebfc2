// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	relayScrapesTotal        *prometheus.CounterVec
	relayScrapeBytesTotal    *prometheus.CounterVec
	relayScrapeDurationSecs  *prometheus.HistogramVec
	relayKeyUsage            *prometheus.GaugeVec
	relayQuotaExhaustedTotal prometheus.Counter
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurationSecs  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		relayScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_scrapes_total",
				Help: "Total scrapes handled, labeled by target site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		relayScrapeBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_scrape_bytes_total",
				Help: "Total bytes fetched from upstream, labeled by site.",
			},
			[]string{"site"},
		)

		relayScrapeDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_scrape_duration_seconds",
				Help:    "Histogram of end-to-end scrape latencies, labeled by fetch mode.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		)

		relayKeyUsage = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_key_usage",
				Help: "Current monthly usage count per API key index.",
			},
			[]string{"key_index"},
		)

		relayQuotaExhaustedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_quota_exhausted_total",
				Help: "Total requests rejected because every key was at cap.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape records one completed (or failed) scrape.
func ObserveScrape(site string, outcome string, bytesFetched int) {
	sanitized := SanitizeSite(site)
	relayScrapesTotal.WithLabelValues(sanitized, outcome).Inc()
	if bytesFetched > 0 {
		relayScrapeBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveScrapeDuration records end-to-end latency for a fetch mode
// ("service" or "direct").
func ObserveScrapeDuration(mode string, duration time.Duration) {
	relayScrapeDurationSecs.WithLabelValues(mode).Observe(duration.Seconds())
}

// SetKeyUsage publishes the current monthly count for one key slot.
func SetKeyUsage(index int, count int) {
	relayKeyUsage.WithLabelValues(strconv.Itoa(index)).Set(float64(count))
}

// ObserveQuotaExhausted counts a request rejected with every key at cap.
func ObserveQuotaExhausted() {
	relayQuotaExhaustedTotal.Inc()
}

// ObserveHTTPRequest records inbound request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}
