package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vigia-social/vigia/models"
)

// Connection is one live realtime session bound to a user identity. The
// registry owns connections for their lifetime; everything else only sends.
type Connection interface {
	ID() string
	UserID() models.Uid
	Send(f Frame) error
	Close() error
}

const writeTimeout = 10 * time.Second

// wsConnection wraps a gorilla websocket. Writes are serialized with a mutex
// since both the gateway (pongs, confirmation) and the dispatcher write to
// the same socket.
type wsConnection struct {
	id  string
	uid models.Uid

	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConnection(uid models.Uid, ws *websocket.Conn) *wsConnection {
	return &wsConnection{
		id:  uuid.NewString(),
		uid: uid,
		ws:  ws,
	}
}

func (c *wsConnection) ID() string {
	return c.id
}

func (c *wsConnection) UserID() models.Uid {
	return c.uid
}

func (c *wsConnection) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(f)
}

func (c *wsConnection) Close() error {
	return c.ws.Close()
}
