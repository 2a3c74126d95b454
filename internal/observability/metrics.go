// Package observability holds tokengraph's Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_files_indexed_total",
		Help: "Files whose token graph was rebuilt.",
	}, []string{"language"})

	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_files_skipped_total",
		Help: "Files skipped during indexing, by reason.",
	}, []string{"reason"})

	IndexErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokengraph_index_errors_total",
		Help: "Files that failed to index.",
	})

	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_tokens_total",
		Help: "Tokens collected.",
	}, []string{"language"})

	DeclarationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_declarations_total",
		Help: "Declaration sites recorded.",
	}, []string{"language"})

	BindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_bindings_total",
		Help: "References resolved to a declaration.",
	}, []string{"language"})

	UnresolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_unresolved_total",
		Help: "Reference tokens with no visible declaration.",
	}, []string{"language"})

	CallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengraph_calls_total",
		Help: "Tokens marked as actual calls.",
	}, []string{"language"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokengraph_analysis_seconds",
		Help:    "Time spent parsing and collecting one file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	CommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tokengraph_commit_seconds",
		Help:    "Latency for persisting one file's graph.",
		Buckets: prometheus.DefBuckets,
	})
)

// GraphCounts is the per-file tally reported after a token pass.
type GraphCounts struct {
	Tokens       int
	Declarations int
	Bindings     int
	Unresolved   int
	Calls        int
}

// ObserveGraph records one analyzed file.
func ObserveGraph(language string, c GraphCounts, elapsed time.Duration) {
	FilesIndexedTotal.WithLabelValues(language).Inc()
	TokensTotal.WithLabelValues(language).Add(float64(c.Tokens))
	DeclarationsTotal.WithLabelValues(language).Add(float64(c.Declarations))
	BindingsTotal.WithLabelValues(language).Add(float64(c.Bindings))
	UnresolvedTotal.WithLabelValues(language).Add(float64(c.Unresolved))
	CallsTotal.WithLabelValues(language).Add(float64(c.Calls))
	AnalysisDuration.WithLabelValues(language).Observe(elapsed.Seconds())
}

// WriteTextfile dumps every registered metric to path in the node-exporter
// textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
