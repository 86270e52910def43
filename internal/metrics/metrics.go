package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatmesh_connections_open",
			Help: "Currently open WebSocket connections",
		},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_frames_received_total",
			Help: "Inbound frames read off client sockets",
		},
		[]string{"kind"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_deliveries_total",
			Help: "Outbound frames pushed to client sockets",
		},
		[]string{"result"}, // "sent", "stale", "failed"
	)

	// Pipeline metrics
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_messages_received_total",
			Help: "Raw messages classified by the receiver",
		},
		[]string{"outcome"}, // "unverified", "unauthorized", "registered", "forwarded"
	)

	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_messages_processed_total",
			Help: "Chat messages handled by the processor",
		},
		[]string{"status"},
	)

	MessagesRouted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmesh_messages_routed_total",
			Help: "Routing instructions resolved into delivery instructions",
		},
	)

	// Transport metrics
	QueuePublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_queue_published_total",
			Help: "Messages published to broker queues",
		},
		[]string{"queue"},
	)

	QueuePublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_queue_publish_failures_total",
			Help: "Broker publish failures",
		},
		[]string{"queue"},
	)

	QueueIntegrityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_queue_integrity_failures_total",
			Help: "Broker messages dropped for failing the envelope integrity check",
		},
		[]string{"queue"},
	)

	// Presence metrics
	PresenceMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmesh_presence_misses_total",
			Help: "Member lookups with no live connection in the presence cache",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmesh_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatmesh_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)
)
