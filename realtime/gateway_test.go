package realtime

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigia-social/vigia/models"
)

type staticVerifier struct {
	tokens map[string]models.Uid
}

func (v *staticVerifier) VerifyToken(credential string) (models.Uid, error) {
	uid, ok := v.tokens[credential]
	if !ok {
		return 0, fmt.Errorf("invalid token")
	}
	return uid, nil
}

func gatewayTestServer(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()

	reg := NewRegistry()
	gw := NewGateway(reg, &staticVerifier{tokens: map[string]models.Uid{"good": 11}})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := gw.HandleConnection(w, r); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(ts.Close)

	return reg, ts
}

func wsURL(ts *httptest.Server, token string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "?token=" + token
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestGatewayHandshake(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg, ts := gatewayTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good"), nil)
	require.NoError(err)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(ChannelConnected, f.Channel)

	payload, ok := f.Payload.(map[string]any)
	require.True(ok)
	assert.EqualValues(11, payload["userId"])

	assert.Eventually(func() bool {
		return len(reg.ConnectionsFor(11)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGatewayRejectsBadCredential(t *testing.T) {
	assert := assert.New(t)

	reg, ts := gatewayTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "bogus"), nil)
	assert.Error(err)
	if resp != nil {
		assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Equal(0, reg.TotalConnections(), "failed handshakes must never register")
}

func TestGatewayPingPong(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	_, ts := gatewayTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good"), nil)
	require.NoError(err)
	defer conn.Close()

	readFrame(t, conn) // connected

	require.NoError(conn.WriteJSON(Frame{Channel: ChannelPing}))
	f := readFrame(t, conn)
	assert.Equal(ChannelPong, f.Channel)
}

func TestGatewayDisconnectCleansRegistry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg, ts := gatewayTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good"), nil)
	require.NoError(err)
	readFrame(t, conn) // connected

	require.NoError(conn.Close())

	assert.Eventually(func() bool {
		return reg.TotalConnections() == 0 && len(reg.ConnectedUsers()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPingLoopExitsOnTeardown(t *testing.T) {
	require := require.New(t)

	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http://", "ws://", 1), nil)
	require.NoError(err)
	defer ws.Close()

	g := NewGateway(NewRegistry(), &staticVerifier{})
	conn := newWSConnection(1, ws)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		g.pingLoop(conn, ws, done)
		close(exited)
	}()

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("ping loop still running after teardown")
	}
}

func TestGatewayMultiDeviceDelivery(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg, ts := gatewayTestServer(t)

	devA, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good"), nil)
	require.NoError(err)
	defer devA.Close()
	devB, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "good"), nil)
	require.NoError(err)
	defer devB.Close()

	readFrame(t, devA)
	readFrame(t, devB)

	require.Eventually(func() bool {
		return len(reg.ConnectionsFor(11)) == 2
	}, time.Second, 10*time.Millisecond)

	d := NewDispatcher(reg)
	d.Deliver(11, NewEnvelope(NotifContentApproved, 11, map[string]any{"id": 4}))

	for _, dev := range []*websocket.Conn{devA, devB} {
		f := readFrame(t, dev)
		assert.Equal(ChannelNotification, f.Channel)
		payload, ok := f.Payload.(map[string]any)
		require.True(ok)
		assert.Equal(string(NotifContentApproved), payload["type"])
	}
}
