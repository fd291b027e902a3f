package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/protocol"
)

func startTestServer(t *testing.T) (*Manager, string) {
	t.Helper()
	m := newTestManager(t)
	cfg := config.Default().Server
	cfg.StaticDir = ""
	srv := httptest.NewServer(NewMux(m, cfg, zap.NewNop()))
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, a protocol.ClientAction) {
	t.Helper()
	frame, err := protocol.EncodeAction(a)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	ev, err := protocol.DecodeEvent(payload)
	require.NoError(t, err)
	return ev
}

func readWelcome(t *testing.T, conn *websocket.Conn) protocol.Welcome {
	t.Helper()
	ev := readEvent(t, conn)
	w, ok := ev.(protocol.Welcome)
	require.True(t, ok, "expected Welcome, got %T", ev)
	return w
}

func TestWebSocket_EndToEnd(t *testing.T) {
	m, url := startTestServer(t)

	alice := dial(t, url)
	send(t, alice, protocol.Join{Nickname: strPtr("Alice")})
	wa := readWelcome(t, alice)
	require.Len(t, wa.Players, 1)

	bob := dial(t, url)
	send(t, bob, protocol.Join{})
	wb := readWelcome(t, bob)
	assert.Len(t, wb.Players, 2)

	joined, ok := readEvent(t, alice).(protocol.PlayerJoined)
	require.True(t, ok)
	assert.Equal(t, wb.YourID, joined.Player.ID)

	send(t, bob, protocol.Move{X: 100, Y: 100})
	want := protocol.PlayerMoved{PlayerID: wb.YourID, X: 100, Y: 100}
	assert.Equal(t, want, readEvent(t, alice))
	assert.Equal(t, want, readEvent(t, bob))

	send(t, alice, protocol.Chat{Message: "hi all"})
	for _, c := range []*websocket.Conn{alice, bob} {
		msg, ok := readEvent(t, c).(protocol.ChatMessage)
		require.True(t, ok)
		assert.Equal(t, "hi all", msg.Entry.Message)
	}

	require.NoError(t, alice.Close())
	assert.Equal(t, protocol.PlayerLeft{PlayerID: wa.YourID}, readEvent(t, bob))
	require.Eventually(t, func() bool { return len(m.Players()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_MalformedFrameGetsErrorThenClose(t *testing.T) {
	m, url := startTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	_, ok := readEvent(t, conn).(protocol.Error)
	require.True(t, ok)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
	require.Eventually(t, func() bool { return m.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_MoveBeforeJoinRejected(t *testing.T) {
	m, url := startTestServer(t)
	conn := dial(t, url)

	send(t, conn, protocol.Move{X: 1, Y: 1})
	e, ok := readEvent(t, conn).(protocol.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "join required")
	assert.Empty(t, m.Players())
}

func TestWebSocket_BinaryFrameRejected(t *testing.T) {
	_, url := startTestServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))
	_, ok := readEvent(t, conn).(protocol.Error)
	assert.True(t, ok)
}
