// Package metrics holds the Prometheus instrumentation for one
// streamcribe session, grounded on the package-level promauto
// registration style used throughout the pack's metrics adapters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcribe_pacer_ticks_total",
		Help: "Total pacer ticks, by outcome",
	}, []string{"outcome"})

	ASRRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcribe_asr_request_duration_seconds",
		Help:    "Backend transcription round-trip duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	TickLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamcribe_pacer_tick_lag_seconds",
		Help:    "Wall-clock lateness of a pacer tick relative to its scheduled time",
		Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	WordsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcribe_words_committed_total",
		Help: "Total words promoted from tail to prefix",
	})

	BufferSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcribe_audio_buffer_samples",
		Help: "Current length of the audio buffer in samples",
	})
)
