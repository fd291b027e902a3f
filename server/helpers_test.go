package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/protocol"
)

var errInjected = errors.New("injected enqueue failure")

// testingT 同时满足 *testing.T 与 *rapid.T
type testingT interface {
	require.TestingT
	Helper()
}

// fakeTransport 记录入队的帧；fail 置位后 Enqueue 返回错误（模拟慢连接/已断开）
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   atomic.Bool
}

func (f *fakeTransport) Enqueue(b []byte) error {
	if f.fail.Load() {
		return errInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errConnClosed
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Events 解码全部已收到的帧
func (f *fakeTransport) Events(t testingT) []protocol.ServerEvent {
	t.Helper()
	f.mu.Lock()
	frames := append([][]byte(nil), f.frames...)
	f.mu.Unlock()
	out := make([]protocol.ServerEvent, 0, len(frames))
	for _, fr := range frames {
		ev, err := protocol.DecodeEvent(fr)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

// Drain 返回并清空已收到的事件
func (f *fakeTransport) Drain(t testingT) []protocol.ServerEvent {
	t.Helper()
	evs := f.Events(t)
	f.mu.Lock()
	f.frames = f.frames[len(evs):]
	f.mu.Unlock()
	return evs
}

func testGameConfig() config.GameConfig {
	return config.Default().Game
}

func newTestManager(t testingT) *Manager {
	t.Helper()
	return NewManager(testGameConfig(), zap.NewNop())
}

func openSession(t testingT, m *Manager) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	s, err := m.Open(tr)
	require.NoError(t, err)
	return s, tr
}

// joinAs 打开会话并 Join，返回会话、传输以及 Welcome 事件（已从传输中取出）
func joinAs(t testingT, m *Manager, nickname *string) (*Session, *fakeTransport, protocol.Welcome) {
	t.Helper()
	s, tr := openSession(t, m)
	require.NoError(t, s.Apply(protocol.Join{Nickname: nickname}))
	evs := tr.Drain(t)
	require.Len(t, evs, 1)
	welcome, ok := evs[0].(protocol.Welcome)
	require.True(t, ok, "first frame must be Welcome, got %T", evs[0])
	return s, tr, welcome
}

func strPtr(s string) *string { return &s }

func countLeft(evs []protocol.ServerEvent, playerID string) int {
	n := 0
	for _, ev := range evs {
		if left, ok := ev.(protocol.PlayerLeft); ok && left.PlayerID == playerID {
			n++
		}
	}
	return n
}
