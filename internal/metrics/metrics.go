package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// mode: record/read；result: ok/invalid_url/invalid_address/storage_error/bad_request
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecounter_requests_total",
		Help: "Total number of /count requests by mode and result",
	}, []string{"mode", "result"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagecounter_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"mode"})
	StoreDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagecounter_store_duration_ms",
		Help:    "Store operation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"op"})
	StorageErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecounter_storage_errors_total",
		Help: "Total store failures by operation",
	}, []string{"op"})
	VisitorSourceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagecounter_visitor_source_total",
		Help: "Resolved visitor addresses by source (connection/header)",
	}, []string{"source"})
	FeedPublishFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagecounter_feed_publish_fail_total",
		Help: "Total failed visit feed publishes",
	})
	TrustedRanges = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pagecounter_trusted_ranges",
		Help: "Number of trusted proxy ranges loaded at startup",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(StoreDurationMs)
	prometheus.MustRegister(StorageErrorsTotal)
	prometheus.MustRegister(VisitorSourceTotal)
	prometheus.MustRegister(FeedPublishFailTotal)
	prometheus.MustRegister(TrustedRanges)
}

func Handler() http.Handler { return promhttp.Handler() }
