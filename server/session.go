package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"minilobby/protocol"
)

// State 会话状态：Connecting → Joined → Terminated（终态）
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Transport 会话的出站通道（WebSocket 写协程的发送队列）
type Transport interface {
	Enqueue(frame []byte) error
	Close() error
}

// Session 单个连接的生命周期。HandleFrame 只由该连接的读协程调用；
// Terminate 可能被多个来源并发调用（断线、写失败、踢出、空闲回收），只生效一次。
//
// 锁顺序：Session.mu → Broadcaster.mu → store/history/registry 内部锁。
type Session struct {
	id        string
	m         *Manager
	transport Transport
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	playerID string

	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) ID() string { return s.id }

func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done 在会话终止后关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Enqueue 实现 Handle
func (s *Session) Enqueue(frame []byte) error { return s.transport.Enqueue(frame) }

// Close 实现 Handle：服务端发起的终止
func (s *Session) Close(reason error) { s.Terminate(reason) }

// HandleFrame 解码并应用一帧。返回非 nil 错误时调用方应调用 Abort 结束会话。
func (s *Session) HandleFrame(frame []byte) error {
	action, err := protocol.DecodeAction(frame)
	if err != nil {
		s.m.metrics.IncProtocolErrors()
		return err
	}
	return s.Apply(action)
}

// Apply 按当前状态校验并执行动作；一旦解码并校验通过，动作原子生效
func (s *Session) Apply(action protocol.ClientAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateTerminated:
		return ErrSessionClosed
	case StateConnecting:
		join, ok := action.(protocol.Join)
		if !ok {
			return s.reject(action, "join required first")
		}
		s.join(join)
		return nil
	}

	switch a := action.(type) {
	case protocol.Join:
		return s.reject(a, "session already joined")
	case protocol.Move:
		s.move(a)
	case protocol.Chat:
		s.chat(a)
	case protocol.ChangeNick:
		s.changeNick(a)
	default:
		return s.reject(a, "unsupported action")
	}
	return nil
}

func (s *Session) reject(action protocol.ClientAction, reason string) error {
	s.m.metrics.IncValidationErrors()
	return &ValidationError{Action: action.ActionType(), State: s.state, Reason: reason}
}

// join 须持有 s.mu
func (s *Session) join(a protocol.Join) {
	w := s.m.world
	id := uuid.NewString()
	x, y := w.Spawn()
	p := protocol.Player{
		ID:       id,
		Nickname: w.ResolveNickname(a.Nickname, id),
		X:        x,
		Y:        y,
		Color:    w.PickColor(),
		LastSeen: s.m.now().Unix(),
	}

	s.m.broadcast.Commit(func(out *Outbox) {
		s.m.store.Upsert(p)
		out.SendTo(s.id, protocol.Welcome{
			YourID:  id,
			Players: s.m.store.Snapshot(),
			History: s.m.chat.Snapshot(),
		})
		out.Broadcast(protocol.PlayerJoined{Player: p}, s.id)
		s.m.registry.Activate(s.id, id)
	})

	s.playerID = id
	s.state = StateJoined
	s.log = s.log.With(zap.String("player", id))
	s.m.metrics.IncJoins()
	s.log.Info("player joined", zap.String("nickname", p.Nickname))
}

func (s *Session) move(a protocol.Move) {
	x, y := s.m.world.Clamp(a.X, a.Y)
	now := s.m.now().Unix()
	pid := s.playerID
	s.m.broadcast.Commit(func(out *Outbox) {
		_, ok := s.m.store.Update(pid, func(p *protocol.Player) {
			p.X, p.Y = x, y
			p.LastSeen = now
		})
		if ok {
			out.Broadcast(protocol.PlayerMoved{PlayerID: pid, X: x, Y: y}, "")
		}
	})
	s.m.metrics.IncActionsAccepted()
}

func (s *Session) chat(a protocol.Chat) {
	msg, ok := s.m.world.NormalizeChat(a.Message)
	if !ok {
		s.m.metrics.IncChatIgnored()
		return
	}
	now := s.m.now().Unix()
	pid := s.playerID
	s.m.broadcast.Commit(func(out *Outbox) {
		p, ok := s.m.store.Update(pid, func(p *protocol.Player) { p.LastSeen = now })
		if !ok {
			return
		}
		entry := protocol.ChatEntry{PlayerID: pid, Nickname: p.Nickname, Message: msg, Timestamp: now}
		s.m.chat.Append(entry)
		out.Broadcast(protocol.ChatMessage{Entry: entry}, "")
	})
	s.m.metrics.IncActionsAccepted()
}

func (s *Session) changeNick(a protocol.ChangeNick) {
	pid := s.playerID
	nick := s.m.world.ResolveNickname(&a.Nickname, pid)
	now := s.m.now().Unix()
	s.m.broadcast.Commit(func(out *Outbox) {
		_, ok := s.m.store.Update(pid, func(p *protocol.Player) {
			p.Nickname = nick
			p.LastSeen = now
		})
		if ok {
			out.Broadcast(protocol.NickChanged{PlayerID: pid, Nickname: nick}, "")
		}
	})
	s.m.metrics.IncActionsAccepted()
	s.log.Info("nickname changed", zap.String("nickname", nick))
}

// Abort 因协议/校验错误结束会话：先给该连接发 Error 帧，再终止
func (s *Session) Abort(err error) {
	if !errors.Is(err, ErrSessionClosed) {
		s.m.broadcast.SendTo(s.id, protocol.Error{Message: err.Error()})
	}
	s.Terminate(err)
}

// Terminate 幂等的清理：注销连接、删除玩家、（仅当确有玩家被删除时）广播一次 PlayerLeft、关闭传输
func (s *Session) Terminate(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = StateTerminated
		pid := s.playerID
		log := s.log
		s.mu.Unlock()

		s.m.broadcast.Commit(func(out *Outbox) {
			s.m.registry.Unregister(s.id)
			if pid == "" {
				return
			}
			if _, ok := s.m.store.Remove(pid); ok {
				out.Broadcast(protocol.PlayerLeft{PlayerID: pid}, "")
			}
		})

		if err := s.transport.Close(); err != nil {
			log.Debug("closing transport", zap.Error(err))
		}
		s.m.metrics.IncSessionsClosed()
		log.Info("session terminated",
			zap.Stringer("from", prev),
			zap.NamedError("reason", reason),
		)
		close(s.done)
	})
}
