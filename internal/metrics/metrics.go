package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Database connection
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leveler_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	DBConnectionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leveler_db_connection_open",
		Help: "Number of open database connections",
	})

	// ============================================
	// NATS connection and messages
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leveler_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject_kind"},
	)

	NATSMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_nats_messages_failed_total",
			Help: "Total number of NATS messages failed to process",
		},
		[]string{"subject_kind", "error_type"},
	)

	// ============================================
	// Level state
	// ============================================
	LevelUps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_level_ups_total",
			Help: "Total number of successful level-ups",
		},
		[]string{"caller_role"},
	)

	LevelUpRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_level_up_rejections_total",
			Help: "Total number of rejected level-ups by error kind",
		},
		[]string{"kind"},
	)

	LevelUpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leveler_level_up_duration_seconds",
		Help:    "Level-up duration in seconds, lock wait included",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// Bridge
	// ============================================
	BridgeMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_bridge_messages_sent_total",
			Help: "Total number of burn-and-level messages sent",
		},
		[]string{"dst_chain"},
	)

	BridgeSendRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_bridge_send_rejections_total",
			Help: "Total number of rejected burn-and-level requests by error kind",
		},
		[]string{"kind"},
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_inbound_messages_total",
			Help: "Total number of inbound messages by receiver kind and result",
		},
		[]string{"receiver_kind", "result"},
	)

	// ============================================
	// Notifications
	// ============================================
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leveler_notifications_emitted_total",
			Help: "Total number of committed notifications",
		},
		[]string{"name"},
	)

	NotificationSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leveler_notification_subscribers",
		Help: "Number of live notification subscribers",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leveler_notifications_dropped_total",
		Help: "Notifications not delivered to a slow subscriber",
	})
)
