// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

// Package metrics holds the Prometheus instrumentation for Locus.
//
// Collectors are registered on the default registry at init via promauto and
// exposed by the HTTP API on /metrics. Components record through the
// Record*/Set* helpers so label sets stay consistent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream Transport Metrics
	StreamConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_connect_attempts_total",
			Help: "Total number of stream connection attempts",
		},
		[]string{"transport", "mode"}, // mode: "fresh", "resume"
	)

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Total number of stream events delivered, by kind",
		},
		[]string{"transport", "kind"}, // kind: "point", "connected", "keepalive", "error"
	)

	StreamMalformedPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_malformed_payloads_total",
			Help: "Total number of point payloads dropped because they failed to parse",
		},
		[]string{"transport"},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Total number of connection-level stream failures",
		},
		[]string{"transport", "reason"}, // reason: "network", "status", "closed", "liveness", "cursor_expired"
	)

	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connected",
			Help: "1 when the stream session is connected, 0 otherwise",
		},
	)

	StreamConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_connection_duration_seconds",
			Help:    "Lifetime of stream connections from open to close",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
		},
	)

	StreamLastEventTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_last_event_timestamp_seconds",
			Help: "Server timestamp of the most recent point received",
		},
	)

	// Point Buffer Metrics
	BufferIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_points_ingested_total",
			Help: "Total number of points offered to the buffer",
		},
		[]string{"result"}, // "accepted", "duplicate"
	)

	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_history_points",
			Help: "Current number of points in the history buffer",
		},
	)

	BufferSubjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_subjects",
			Help: "Current number of subjects with a latest point",
		},
	)

	BufferEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_evictions_total",
			Help: "Total number of points evicted from the history buffer",
		},
	)

	// Binding Metrics
	BindingReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binding_reconnects_total",
			Help: "Total number of reconnects scheduled by the consumer binding",
		},
		[]string{"mode"}, // "resume", "fresh"
	)

	BindingGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "binding_gaps_total",
			Help: "Total number of resume attempts where the server no longer held the cursor",
		},
	)

	// Location API Client Metrics
	LocationAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_api_requests_total",
			Help: "Total number of Location API requests",
		},
		[]string{"endpoint", "status"},
	)

	LocationAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "location_api_request_duration_seconds",
			Help:    "Location API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event Bus Metrics
	EventBusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_messages_published_total",
			Help: "Total number of points relayed to the message bus",
		},
		[]string{"result"}, // "success", "error", "dropped"
	)

	// Cursor Store Metrics
	CursorStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursor_store_operations_total",
			Help: "Resume cursor persistence operations",
		},
		[]string{"operation", "result"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages broadcast",
		},
		[]string{"type"},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordStreamEvent counts a delivered stream event.
func RecordStreamEvent(transport, kind string) {
	StreamEvents.WithLabelValues(transport, kind).Inc()
}

// RecordStreamError counts a connection-level failure.
func RecordStreamError(transport, reason string) {
	StreamErrors.WithLabelValues(transport, reason).Inc()
}

// RecordMalformedPayload counts a dropped point payload.
func RecordMalformedPayload(transport string) {
	StreamMalformedPayloads.WithLabelValues(transport).Inc()
}

// RecordConnectAttempt counts a connect (fresh) or resume attempt.
func RecordConnectAttempt(transport string, resume bool) {
	mode := "fresh"
	if resume {
		mode = "resume"
	}
	StreamConnectAttempts.WithLabelValues(transport, mode).Inc()
}

// SetStreamConnected updates the connected gauge.
func SetStreamConnected(connected bool) {
	if connected {
		StreamConnected.Set(1)
		return
	}
	StreamConnected.Set(0)
}

// RecordConnectionClosed observes the lifetime of a finished connection.
func RecordConnectionClosed(opened time.Time) {
	if opened.IsZero() {
		return
	}
	StreamConnectionDuration.Observe(time.Since(opened).Seconds())
}

// RecordPointTimestamp tracks the server timestamp (ms) of the newest point.
func RecordPointTimestamp(serverTimestampMs int64) {
	StreamLastEventTimestamp.Set(float64(serverTimestampMs) / 1000)
}

// RecordIngest records a buffer ingest outcome and the resulting sizes.
func RecordIngest(accepted bool, evicted, historyLen, subjects int) {
	if accepted {
		BufferIngested.WithLabelValues("accepted").Inc()
	} else {
		BufferIngested.WithLabelValues("duplicate").Inc()
	}
	if evicted > 0 {
		BufferEvictions.Add(float64(evicted))
	}
	SetBufferSize(historyLen, subjects)
}

// SetBufferSize updates the buffer size gauges.
func SetBufferSize(historyLen, subjects int) {
	BufferSize.Set(float64(historyLen))
	BufferSubjects.Set(float64(subjects))
}

// RecordLocationAPIRequest records a Location API request.
func RecordLocationAPIRequest(endpoint, status string, duration time.Duration) {
	LocationAPIRequests.WithLabelValues(endpoint, status).Inc()
	LocationAPIDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records an HTTP API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPublish records an event bus publish outcome.
func RecordPublish(result string) {
	EventBusPublished.WithLabelValues(result).Inc()
}

// RecordCursorOperation records a cursor store load/save outcome.
func RecordCursorOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CursorStoreOperations.WithLabelValues(operation, result).Inc()
}
