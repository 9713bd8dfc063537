package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	documents  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	stages     *prometheus.HistogramVec
	confidence prometheus.Histogram
	ocrUsed    prometheus.Counter
	models     *prometheus.CounterVec
	cacheHits  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docextract",
			Name:      "documents_processed_total",
			Help:      "Documents processed, by terminal status and document type.",
		}, []string{"status", "document_type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docextract",
			Name:      "processing_duration_seconds",
			Help:      "End-to-end processing time per document.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"status"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docextract",
			Name:      "stage_duration_seconds",
			Help:      "Time spent reaching each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docextract",
			Name:      "overall_confidence",
			Help:      "Overall confidence of processed documents.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ocrUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docextract",
			Name:      "ocr_used_total",
			Help:      "Documents whose text came from OCR.",
		}),
		models: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docextract",
			Name:      "llm_model_used_total",
			Help:      "Documents by the LLM engine whose result was kept.",
		}, []string{"model"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docextract",
			Name:      "cache_hits_total",
			Help:      "Documents answered from the result cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.documents, m.duration, m.stages, m.confidence, m.ocrUsed, m.models, m.cacheHits)
	}
	return m
}

func (m *Metrics) observeStage(stage Stage, since time.Time) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(string(stage)).Observe(time.Since(since).Seconds())
}

func (m *Metrics) observeResult(res ProcessingResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	r := res.Response
	m.documents.WithLabelValues(string(r.Status), string(r.DocumentType)).Inc()
	m.duration.WithLabelValues(string(r.Status)).Observe(elapsed.Seconds())
	m.confidence.Observe(r.OverallConfidence)
	if res.OCRUsed {
		m.ocrUsed.Inc()
	}
	if r.ModelUsed != "" {
		m.models.WithLabelValues(r.ModelUsed).Inc()
	}
	if res.Cached {
		m.cacheHits.Inc()
	}
}
