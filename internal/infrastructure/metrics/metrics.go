// Package metrics provides Prometheus metrics for the chat-realtime-api service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jan-server/services/chat-realtime-api/internal/domain/conversation"
)

var (
	// ActiveConnections tracks authenticated websocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_realtime_active_connections",
			Help: "Number of currently authenticated websocket connections",
		},
	)

	// ConnectionsRejected counts handshakes refused before a connection was authenticated.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_connections_rejected_total",
			Help: "Total number of websocket connections rejected during authentication",
		},
		[]string{"code"},
	)

	// Intents counts client intents by outcome code.
	Intents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_intents_total",
			Help: "Total number of client intents handled",
		},
		[]string{"intent", "outcome"},
	)

	// IntentDuration tracks how long the engine takes to handle an intent.
	IntentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_realtime_intent_duration_seconds",
			Help:    "Duration of client intent handling",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
		},
		[]string{"intent"},
	)

	// MessagesPersisted counts messages written to the document store.
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_messages_persisted_total",
			Help: "Total number of messages persisted",
		},
		[]string{"kind"},
	)

	// UnreadIncrements counts unread counters bumped by message delivery.
	UnreadIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_unread_increments_total",
			Help: "Total number of per-recipient unread increments",
		},
		[]string{"kind"},
	)

	// FanOutSize tracks how many connections a single message reached.
	FanOutSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_realtime_fanout_connections",
			Help:    "Number of connections an event was queued for per message",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"kind"},
	)

	// MembershipLookups counts cache and directory lookups by result.
	MembershipLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_cache_lookups_total",
			Help: "Total number of membership cache lookups",
		},
		[]string{"key", "result"},
	)

	// FabricRequestDuration tracks request/reply latency per subject.
	FabricRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_realtime_fabric_request_duration_seconds",
			Help:    "Duration of request/reply calls over the messaging fabric",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"subject", "outcome"},
	)

	// FabricState exposes the fabric connection state (0 disconnected, 1 connecting, 2 connected).
	FabricState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_realtime_fabric_state",
			Help: "Messaging fabric connection state",
		},
	)

	// EventsConsumed counts fabric events handled by subscribers.
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_events_consumed_total",
			Help: "Total number of fabric events consumed",
		},
		[]string{"subject", "outcome"},
	)

	// HTTPRequests counts plain HTTP requests such as probes and upgrades.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// TypingExpired counts typing indicators removed by the sweeper.
	TypingExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_realtime_typing_expired_total",
			Help: "Total number of typing indicators expired by the sweeper",
		},
	)
)

// RecordIntent records the outcome and duration of one client intent.
func RecordIntent(intent, outcome string, elapsed time.Duration) {
	Intents.WithLabelValues(intent, outcome).Inc()
	IntentDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// RecordRequest records one completed HTTP request.
func RecordRequest(method, endpoint, status string) {
	HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
}

// RecordFabricRequest records a request/reply round trip.
func RecordFabricRequest(subject, outcome string, elapsed time.Duration) {
	FabricRequestDuration.WithLabelValues(subject, outcome).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a cache hit or miss for a key family.
func RecordCacheLookup(key, result string) {
	MembershipLookups.WithLabelValues(key, result).Inc()
}

var roomsOnce sync.Once

// ObserveRooms registers a gauge that reads the number of live rooms from
// count at scrape time. Only the first call registers.
func ObserveRooms(count func() int) {
	roomsOnce.Do(func() {
		promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "chat_realtime_active_rooms",
				Help: "Number of rooms with at least one connection",
			},
			func() float64 { return float64(count()) },
		)
	})
}

// Engine adapts the package metrics to the conversation engine's recorder.
type Engine struct{}

func (Engine) MessagePersisted(kind conversation.Kind) {
	MessagesPersisted.WithLabelValues(string(kind)).Inc()
}

func (Engine) UnreadIncremented(kind conversation.Kind, recipients int) {
	UnreadIncrements.WithLabelValues(string(kind)).Add(float64(recipients))
}

func (Engine) FanOut(kind conversation.Kind, connections int) {
	FanOutSize.WithLabelValues(string(kind)).Observe(float64(connections))
}
