// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livecast"

var (
	// SegmentsPublishedTotal tracks publish attempts per profile.
	// Labels:
	//   - profile: encoding profile name
	//   - status: success, error
	SegmentsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_published_total",
			Help:      "Total number of segment publish attempts",
		},
		[]string{"profile", "status"},
	)

	// PublishDurationSeconds observes how long one playlist+segment
	// publish takes, per profile.
	PublishDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of playlist and segment publishes",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"profile"},
	)

	// EncoderErrorLinesTotal counts error lines seen on encoder and
	// segmenter diagnostic streams.
	EncoderErrorLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_error_lines_total",
			Help:      "Total number of error lines from encoder subprocesses",
		},
		[]string{"profile"},
	)

	// PublishQueueDepth reports events waiting for the publish worker.
	PublishQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_queue_depth",
			Help:      "Number of events buffered in the publish queue",
		},
	)
)

// Publish status constants.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
