package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigia-social/vigia/models"
)

// TokenVerifier resolves a bearer credential to a user identity. Implemented
// by the API server's auth layer.
type TokenVerifier interface {
	VerifyToken(credential string) (models.Uid, error)
}

// Gateway terminates inbound realtime connections: it authenticates the
// handshake, registers the connection, answers liveness pings, and
// unregisters on disconnect. Each accepted connection is handled on the
// caller's goroutine until the client goes away.
type Gateway struct {
	registry *Registry
	verifier TokenVerifier
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewGateway(registry *Registry, verifier TokenVerifier) *Gateway {
	return &Gateway{
		registry: registry,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 10,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: slog.Default().With("system", "gateway"),
	}
}

// connectedPayload confirms a successful handshake to the client.
type connectedPayload struct {
	Message   string     `json:"message"`
	UserID    models.Uid `json:"userId"`
	Timestamp time.Time  `json:"timestamp"`
}

// HandleConnection upgrades the request and runs the connection until it
// closes. The credential comes from a `token` query parameter or a bearer
// Authorization header; a bad credential closes the socket before any
// registration happens, so no partial state is ever observable.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	cred := credentialFromRequest(r)
	if cred == "" {
		handshakeFailures.Inc()
		return fmt.Errorf("missing handshake credential")
	}

	uid, err := g.verifier.VerifyToken(cred)
	if err != nil {
		handshakeFailures.Inc()
		g.log.Warn("websocket handshake auth failed", "remote", r.RemoteAddr, "err", err)
		return fmt.Errorf("handshake auth: %w", err)
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrading websocket: %w", err)
	}

	conn := newWSConnection(uid, ws)
	g.registry.Register(conn)
	g.log.Info("user connected", "user", uid, "conn", conn.ID(),
		"connections", len(g.registry.ConnectionsFor(uid)))

	done := make(chan struct{})

	// unregister before any other teardown so the registry never holds a
	// stale entry
	defer func() {
		close(done)
		g.registry.Unregister(conn)
		conn.Close()
		g.log.Info("user disconnected", "user", uid, "conn", conn.ID(),
			"connections", len(g.registry.ConnectionsFor(uid)))
	}()

	if err := conn.Send(Frame{Channel: ChannelConnected, Payload: connectedPayload{
		Message:   "connected to notification stream",
		UserID:    uid,
		Timestamp: time.Now().UTC(),
	}}); err != nil {
		return fmt.Errorf("sending connection confirmation: %w", err)
	}

	go g.pingLoop(conn, ws, done)

	ws.SetPongHandler(func(string) error { return nil })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Debug("connection read failed", "user", uid, "conn", conn.ID(), "err", err)
			}
			return nil
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// unparseable frames are ignored, not fatal
			continue
		}

		if frame.Channel == ChannelPing {
			if err := conn.Send(Frame{Channel: ChannelPong, Payload: map[string]any{
				"timestamp": time.Now().UTC(),
			}}); err != nil {
				return nil
			}
		}
	}
}

// pingLoop sends a transport-level ping periodically so half-open
// connections get torn down by the read loop's error path. It exits as soon
// as the connection's handler tears down.
func (g *Gateway) pingLoop(conn *wsConnection, ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.mu.Lock()
			err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second))
			conn.mu.Unlock()
			if err == websocket.ErrCloseSent {
				return
			}
			if e, ok := err.(net.Error); ok && e.Timeout() {
				continue
			}
			if err != nil {
				ws.Close()
				return
			}
		}
	}
}

func credentialFromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
