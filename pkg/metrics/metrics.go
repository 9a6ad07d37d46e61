package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Command metrics
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtool_conversions_total",
			Help: "Total number of image commands by mode and outcome",
		},
		[]string{"mode", "status"}, // convert, compress, raw
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgtool_conversion_duration_seconds",
			Help:    "Command duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	ConversionBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgtool_conversion_bytes",
			Help:    "Conversion input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760, 52428800},
		},
		[]string{"direction"}, // input, output
	)

	// Quality search metrics
	QualitySearchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgtool_quality_search_attempts",
			Help:    "Number of encodes performed by a quality search",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	QualitySelected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgtool_quality_selected",
			Help:    "Quality level chosen by successful quality searches",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	// Raw decoder metrics
	RawDecoderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtool_raw_decoder_runs_total",
			Help: "Total number of external raw decoder invocations",
		},
		[]string{"status"}, // success, failed, spawn_error
	)
)

// RecordConversion records one finished command
func RecordConversion(mode, status string, duration float64, inputBytes, outputBytes int64) {
	ConversionsTotal.WithLabelValues(mode, status).Inc()
	ConversionDuration.WithLabelValues(mode).Observe(duration)
	if inputBytes > 0 {
		ConversionBytes.WithLabelValues("input").Observe(float64(inputBytes))
	}
	if outputBytes > 0 {
		ConversionBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordQualitySearch records a successful quality search
func RecordQualitySearch(attempts int, quality float64) {
	QualitySearchAttempts.Observe(float64(attempts))
	QualitySelected.Observe(quality)
}

// RecordRawDecode records an external decoder run
func RecordRawDecode(status string) {
	RawDecoderRuns.WithLabelValues(status).Inc()
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
