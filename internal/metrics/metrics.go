// Package metrics exposes Prometheus collectors for the blink pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Frame metrics
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkguard_frames_total",
			Help: "Frames processed, by source and whether a face was present",
		},
		[]string{"source", "face"},
	)

	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkguard_frames_dropped_total",
			Help: "Frames dropped because the frame buffer was full",
		},
		[]string{"source"},
	)

	FrameProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blinkguard_frame_processing_seconds",
			Help:    "Time spent classifying one frame and applying its edge",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)

	// Blink metrics
	BlinksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blinkguard_blinks_total",
			Help: "Blinks counted this session",
		},
	)

	BlinkRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blinkguard_blink_rate_per_minute",
			Help: "Blinks per minute over the last minute",
		},
	)

	// Overlay metrics
	OverlayCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blinkguard_overlay_commands_total",
			Help: "Overlay commands emitted",
		},
		[]string{"action"},
	)

	OverlayDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blinkguard_overlay_commands_dropped_total",
			Help: "Overlay commands dropped because no consumer kept up",
		},
	)

	Active = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blinkguard_active",
			Help: "1 while the overlay reminder is engaged",
		},
	)

	TimerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blinkguard_timer_failures_total",
			Help: "Failures arming the overlay debounce timer",
		},
	)

	// Feed metrics
	FeedStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blinkguard_feed_status",
			Help: "1 for the current frame feed status, 0 otherwise",
		},
		[]string{"status"},
	)

	VisionReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blinkguard_vision_reconnects_total",
			Help: "Vision sidecar stream reconnect attempts",
		},
	)

	VisionBreakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blinkguard_vision_breaker_open",
			Help: "1 while the vision stream breaker fails fast",
		},
	)

	// Connection metrics
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blinkguard_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FramesTotal,
		FramesDropped,
		FrameProcessingDuration,
		BlinksTotal,
		BlinkRate,
		OverlayCommands,
		OverlayDropped,
		Active,
		TimerFailures,
		FeedStatus,
		VisionReconnects,
		VisionBreakerOpen,
		WebSocketConnections,
	)
}

// SetFeedStatus makes status the only feed status reporting 1.
func SetFeedStatus(status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		FeedStatus.WithLabelValues(s).Set(v)
	}
}

// SetActive records the activation mode.
func SetActive(active bool) {
	if active {
		Active.Set(1)
		return
	}
	Active.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
