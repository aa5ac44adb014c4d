package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// retrieval pipeline.
type Metrics struct {
	DocumentsFetched   *prometheus.CounterVec // labels: outcome={success,error}
	SeriesExtracted    prometheus.Counter
	ObservationsMerged prometheus.Counter
	NormalizeErrors    prometheus.Counter
	SinkErrors         prometheus.Counter
	PipelineRunning    prometheus.Gauge

	FetchDuration     prometheus.Histogram
	NormalizeDuration prometheus.Histogram
	WideTableRows     prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DocumentsFetched,
		m.SeriesExtracted,
		m.ObservationsMerged,
		m.NormalizeErrors,
		m.SinkErrors,
		m.PipelineRunning,
		m.FetchDuration,
		m.NormalizeDuration,
		m.WideTableRows,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DocumentsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwis_etl",
			Name:      "documents_fetched_total",
			Help:      "WaterML documents fetched from NWIS, by outcome.",
		}, []string{"outcome"}),
		SeriesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwis_etl",
			Name:      "series_extracted_total",
			Help:      "Total timeSeries elements extracted across documents.",
		}),
		ObservationsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwis_etl",
			Name:      "observations_merged_total",
			Help:      "Total observations folded into wide tables.",
		}),
		NormalizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwis_etl",
			Name:      "normalize_errors_total",
			Help:      "Total document normalization failures.",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwis_etl",
			Name:      "sink_errors_total",
			Help:      "Total sink load failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nwis_etl",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwis_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one NWIS document retrieval.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		NormalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwis_etl",
			Name:      "normalize_duration_seconds",
			Help:      "Duration of the extract-and-fold pass over one document.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		WideTableRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwis_etl",
			Name:      "wide_table_rows",
			Help:      "Rows in the normalized wide table per document.",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),
	}
}
