package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buoy_overlay"

// Metrics holds the Prometheus counters, histograms, and gauges for the overlay service.
type Metrics struct {
	// Feed download metrics.
	FeedDownloads        *prometheus.CounterVec   // labels: feed={directory,latest_obs,realtime}, outcome={success,error,not_found,mirror}
	FeedDownloadDuration *prometheus.HistogramVec // labels: feed
	ParseIssues          *prometheus.CounterVec   // labels: feed, kind

	// Snapshot metrics.
	StationsLoaded  prometheus.Gauge
	StationsVisible prometheus.Gauge
	RefreshDuration prometheus.Histogram
	CursorQueries   *prometheus.CounterVec // labels: result={hit,miss}

	// NWS metrics.
	NWSRequests *prometheus.CounterVec // labels: endpoint={points,gridpoints,alerts}, outcome={success,error,empty}
	NWSCache    *prometheus.CounterVec // labels: endpoint, result={hit,miss}

	RecordsPublished prometheus.Counter
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FeedDownloads,
		m.FeedDownloadDuration,
		m.ParseIssues,
		m.StationsLoaded,
		m.StationsVisible,
		m.RefreshDuration,
		m.CursorQueries,
		m.NWSRequests,
		m.NWSCache,
		m.RecordsPublished,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_downloads_total",
			Help:      "NDBC feed downloads by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedDownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_download_duration_seconds",
			Help:      "NDBC feed download duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		ParseIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_issues_total",
			Help:      "Non-fatal parse issues by feed and kind.",
		}, []string{"feed", "kind"}),
		StationsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_loaded",
			Help:      "Stations in the current snapshot.",
		}),
		StationsVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_visible",
			Help:      "Stations inside the current viewport.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete download-parse-swap refresh.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CursorQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursor_queries_total",
			Help:      "Station-under-cursor lookups by result.",
		}, []string{"result"}),
		NWSRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nws_requests_total",
			Help:      "NWS API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		NWSCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nws_cache_total",
			Help:      "NWS response cache lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Station records written to the snapshot topic.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh scheduler is active, 0 when stopped.",
		}),
	}
}
