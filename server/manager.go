package server

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/protocol"
)

// Manager 持有大厅的全部共享状态（玩家表、聊天历史、连接注册表）并创建会话
type Manager struct {
	cfg config.GameConfig
	log *zap.Logger

	world     *World
	store     *PlayerStore
	chat      *ChatHistory
	registry  *Registry
	broadcast *Broadcaster
	metrics   *Metrics

	now        func() time.Time
	lastResync atomic.Int64 // Unix 纳秒
}

func NewManager(cfg config.GameConfig, log *zap.Logger) *Manager {
	metrics := &Metrics{}
	registry := NewRegistry()
	return &Manager{
		cfg:       cfg,
		log:       log,
		world:     NewWorld(cfg),
		store:     NewPlayerStore(),
		chat:      NewChatHistory(cfg.ChatHistory),
		registry:  registry,
		broadcast: NewBroadcaster(registry, metrics, log),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Open 为新接入的连接创建会话并登记（Connecting，尚无玩家）
func (m *Manager) Open(t Transport) (*Session, error) {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		m:         m,
		transport: t,
		log:       m.log.With(zap.String("conn", id)),
		state:     StateConnecting,
		done:      make(chan struct{}),
	}
	if err := m.registry.Register(id, s); err != nil {
		return nil, fmt.Errorf("registering session: %w", err)
	}
	m.metrics.IncSessionsOpened()
	s.log.Debug("session opened")
	return s, nil
}

// Kick 服务端踢出指定玩家；玩家不存在时返回 false
func (m *Manager) Kick(playerID string, reason error) bool {
	_, h, ok := m.registry.LookupPlayer(playerID)
	if !ok {
		return false
	}
	m.metrics.IncKicks()
	h.Close(reason)
	return true
}

// Shutdown 终止所有会话（进程退出前调用），包括尚未 Join 的连接
func (m *Manager) Shutdown() {
	for _, r := range m.registry.All() {
		r.handle.Close(ErrShutdown)
	}
}

func (m *Manager) Players() []protocol.Player { return m.store.Snapshot() }

func (m *Manager) History() []protocol.ChatEntry { return m.chat.Snapshot() }

func (m *Manager) Metrics() *Metrics { return m.metrics }

func (m *Manager) Config() config.GameConfig { return m.cfg }

func (m *Manager) Connections() int { return m.registry.Len() }
