package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vigia_live_connections",
	Help: "Number of currently registered realtime connections",
})

var handshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_ws_handshake_failures_total",
	Help: "Number of websocket handshakes rejected for bad credentials",
})

var notificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_notifications_delivered_total",
	Help: "Number of notification writes that reached a connection",
})

var notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_notifications_dropped_total",
	Help: "Number of notifications dropped because the recipient had no live connections",
})

var notificationSendErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vigia_notification_send_errors_total",
	Help: "Number of per-connection notification write failures",
})
