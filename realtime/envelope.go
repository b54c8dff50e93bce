package realtime

import (
	"time"

	"github.com/vigia-social/vigia/models"
)

// NotificationType tags the payload of an Envelope.
type NotificationType string

const (
	NotifNewComment      NotificationType = "new-comment"
	NotifNewReply        NotificationType = "new-reply"
	NotifContentApproved NotificationType = "content-approved"
	NotifContentRejected NotificationType = "content-rejected"
)

// Envelope is the structured notification message pushed to a recipient's
// live connections. It is an immutable value and is never persisted; its
// lifetime is a single dispatch call.
type Envelope struct {
	Type        NotificationType `json:"type"`
	Data        any              `json:"data"`
	Timestamp   time.Time        `json:"timestamp"`
	RecipientID models.Uid       `json:"recipientId"`
}

func NewEnvelope(typ NotificationType, recipient models.Uid, data any) *Envelope {
	return &Envelope{
		Type:        typ,
		Data:        data,
		Timestamp:   time.Now().UTC(),
		RecipientID: recipient,
	}
}

// Channel names on the wire. Notifications and broadcasts travel on their own
// channels, distinct from the ping/pong exchange.
const (
	ChannelConnected    = "connected"
	ChannelNotification = "notification"
	ChannelBroadcast    = "broadcast"
	ChannelPing         = "ping"
	ChannelPong         = "pong"
)

// Frame is the wire format for every message on a realtime connection.
type Frame struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload,omitempty"`
}
