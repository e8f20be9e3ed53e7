package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convex_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convex_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convex_rooms_active",
			Help: "Rooms currently live in the registry",
		},
	)

	ParticipantsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convex_participants_active",
			Help: "Participants currently joined, across all rooms",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convex_ws_connections_active",
			Help: "Open websocket connections",
		},
	)

	// Timer metrics
	TimersStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convex_timers_started_total",
			Help: "Timers started",
		},
		[]string{"phase"}, // "focus" or "break"
	)

	TimersStopped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convex_timers_stopped_total",
			Help: "Timers stopped by the host before completion",
		},
	)

	TimersCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convex_timers_completed_total",
			Help: "Timers that ran to natural completion",
		},
	)

	// Delivery metrics
	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convex_events_sent_total",
			Help: "Events delivered to client outboxes",
		},
		[]string{"event"},
	)

	ClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convex_clients_dropped_total",
			Help: "Clients dropped for not draining their outbox",
		},
	)

	SessionWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convex_session_log_drops_total",
			Help: "Session log records dropped because the write queue was full",
		},
	)
)
