package realtime

import (
	"log/slog"

	"github.com/vigia-social/vigia/models"
)

// Dispatcher delivers notification envelopes to live connections through the
// registry. Delivery is strictly best-effort: there is no queue and no
// persistence, a recipient with no connections simply misses the message.
type Dispatcher struct {
	registry *Registry
	log      *slog.Logger
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      slog.Default().With("system", "dispatcher"),
	}
}

// Deliver sends the envelope to every live connection of the recipient and
// returns how many writes succeeded. A write failure on one connection never
// prevents delivery to the others and is never surfaced to the caller.
func (d *Dispatcher) Deliver(recipient models.Uid, env *Envelope) int {
	conns := d.registry.ConnectionsFor(recipient)
	if len(conns) == 0 {
		d.log.Debug("recipient not connected, dropping notification",
			"recipient", recipient, "type", env.Type)
		notificationsDropped.Inc()
		return 0
	}

	frame := Frame{Channel: ChannelNotification, Payload: env}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(frame); err != nil {
			d.log.Warn("notification write failed",
				"recipient", recipient, "conn", conn.ID(), "err", err)
			notificationSendErrors.Inc()
			continue
		}
		delivered++
	}

	d.log.Debug("notification delivered",
		"recipient", recipient, "type", env.Type, "devices", delivered)
	notificationsDelivered.Add(float64(delivered))
	return delivered
}

// Broadcast sends a system-wide announcement to every connection of every
// currently connected user, on the broadcast channel.
func (d *Dispatcher) Broadcast(env *Envelope) int {
	frame := Frame{Channel: ChannelBroadcast, Payload: env}

	delivered := 0
	for _, uid := range d.registry.ConnectedUsers() {
		for _, conn := range d.registry.ConnectionsFor(uid) {
			if err := conn.Send(frame); err != nil {
				d.log.Warn("broadcast write failed", "conn", conn.ID(), "err", err)
				notificationSendErrors.Inc()
				continue
			}
			delivered++
		}
	}

	d.log.Info("broadcast sent", "type", env.Type, "connections", delivered)
	return delivered
}
