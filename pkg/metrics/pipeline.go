package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records upload and extraction outcomes.
type PipelineMetrics struct {
	uploads            *prometheus.CounterVec
	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionTokens   *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warranty_uploads_total",
		Help: "Warranty document uploads by outcome.",
	}, []string{"outcome"})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warranty_extractions_total",
		Help: "Vision extraction attempts by outcome.",
	}, []string{"outcome"})
	extractionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warranty_extraction_duration_seconds",
		Help:    "Duration of vision extraction calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	extractionTokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warranty_extraction_tokens_total",
		Help: "Tokens consumed by vision extraction calls.",
	}, []string{"direction"})
	reg.MustRegister(uploads, extractions, extractionDuration, extractionTokens)
	return &PipelineMetrics{
		uploads:            uploads,
		extractions:        extractions,
		extractionDuration: extractionDuration,
		extractionTokens:   extractionTokens,
	}
}

// IncUpload increments the upload counter for the given outcome.
func (p *PipelineMetrics) IncUpload(outcome string) {
	if p == nil || p.uploads == nil {
		return
	}
	p.uploads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncExtraction increments the extraction counter for the given outcome.
func (p *PipelineMetrics) IncExtraction(outcome string) {
	if p == nil || p.extractions == nil {
		return
	}
	p.extractions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveExtractionDuration records the duration of an extraction call.
func (p *PipelineMetrics) ObserveExtractionDuration(outcome string, duration time.Duration) {
	if p == nil || p.extractionDuration == nil {
		return
	}
	p.extractionDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// AddExtractionTokens accumulates model token usage.
func (p *PipelineMetrics) AddExtractionTokens(input, output int64) {
	if p == nil || p.extractionTokens == nil {
		return
	}
	if input > 0 {
		p.extractionTokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		p.extractionTokens.WithLabelValues("output").Add(float64(output))
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
