// Package metrics records pipeline measurements in Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

// Metrics contains all Prometheus metrics for the dictation pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	Sessions         *prometheus.CounterVec
	RecordingSeconds prometheus.Histogram
	DroppedBatches   prometheus.Counter

	// Engine metrics
	TranscriptionSeconds  prometheus.Histogram
	TranscriptionFailures prometheus.Counter

	// Delivery metrics
	PipelineSeconds  prometheus.Histogram
	DeliveryFailures *prometheus.CounterVec
}

// New creates the metrics on a private registry, so several instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holdtalk_sessions_total",
			Help: "Recording sessions by outcome",
		}, []string{"reason"}),
		RecordingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdtalk_recording_duration_seconds",
			Help:    "Length of captured audio per session",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 11), // 0.25s to ~4 minutes
		}),
		DroppedBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdtalk_dropped_batches_total",
			Help: "Capture batches dropped because the recording hit its length limit",
		}),

		TranscriptionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdtalk_transcription_duration_seconds",
			Help:    "Wall time of the speech engine subprocess",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdtalk_transcription_failures_total",
			Help: "Engine runs that failed or produced no text",
		}),

		PipelineSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdtalk_pipeline_duration_seconds",
			Help:    "Time from key release to transcript delivery",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holdtalk_delivery_failures_total",
			Help: "Clipboard and paste failures",
		}, []string{"stage"}),
	}
}

var _ ports.Metrics = (*Metrics)(nil)

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionFinished(reason domain.SessionStateReason, frames int, sampleRate int) {
	m.Sessions.WithLabelValues(string(reason)).Inc()
	if sampleRate > 0 && frames > 0 {
		m.RecordingSeconds.Observe(float64(frames) / float64(sampleRate))
	}
}

func (m *Metrics) TranscriptionObserved(d time.Duration, ok bool) {
	m.TranscriptionSeconds.Observe(d.Seconds())
	if !ok {
		m.TranscriptionFailures.Inc()
	}
}

func (m *Metrics) PipelineObserved(d time.Duration) {
	m.PipelineSeconds.Observe(d.Seconds())
}

func (m *Metrics) BatchDropped() {
	m.DroppedBatches.Inc()
}

func (m *Metrics) DeliveryFailed(stage domain.ErrorCode) {
	m.DeliveryFailures.WithLabelValues(string(stage)).Inc()
}
