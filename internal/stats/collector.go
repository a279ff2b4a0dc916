// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names recorded by the engine.
const (
	// Job metrics.
	MetricJobs     = "chopzip_jobs_total"
	MetricJobFails = "chopzip_job_failures_total"
	MetricBytesIn  = "chopzip_bytes_in_total"
	MetricBytesOut = "chopzip_bytes_out_total"

	// Chunk metrics.
	MetricChunks        = "chopzip_chunks_total"
	MetricChunkFailures = "chopzip_chunk_failures_total"
	MetricChunkRetries  = "chopzip_chunk_retries_total"
	MetricChunkDuration = "chopzip_chunk_duration_seconds"
	MetricActiveWorkers = "chopzip_active_workers"
)

var help = map[string]string{
	MetricJobs:          "Files processed, successful or not.",
	MetricJobFails:      "Files whose processing failed.",
	MetricBytesIn:       "Bytes read from input files.",
	MetricBytesOut:      "Bytes written to final artifacts.",
	MetricChunks:        "Chunks processed successfully.",
	MetricChunkFailures: "Chunk attempts that returned an error.",
	MetricChunkRetries:  "Chunk attempts that were retried.",
	MetricChunkDuration: "Wall time of successful chunk operations.",
	MetricActiveWorkers: "Chunk operations currently running.",
}

// Help returns the description of a metric, or its name when unknown.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
