package server

import (
	"fmt"
	"sync"
)

// Handle 注册表中每个连接的出站句柄
type Handle interface {
	// Enqueue 非阻塞地把一帧放入该连接的发送队列；队列满或已关闭时返回错误
	Enqueue(frame []byte) error
	// Close 由服务端发起终止（投递失败、踢出、空闲回收）；可重复调用
	Close(reason error)
}

type registryEntry struct {
	handle   Handle
	playerID string // Activate 之前为空
	active   bool
}

type recipient struct {
	connID string
	handle Handle
}

// Registry 连接 id → 出站句柄。所有方法并发安全。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register 登记新连接（Connecting 状态，不接收广播）
func (r *Registry) Register(connID string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[connID]; exists {
		return fmt.Errorf("connection %q already registered", connID)
	}
	r.entries[connID] = &registryEntry{handle: h}
	return nil
}

// Unregister 幂等：断线与违规清理可能并发触发；返回是否真的删除了条目
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[connID]; !ok {
		return false
	}
	delete(r.entries, connID)
	return true
}

// Activate 标记连接已加入并绑定玩家 id，此后该连接接收广播
func (r *Registry) Activate(connID, playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[connID]
	if !ok {
		return false
	}
	e.active = true
	e.playerID = playerID
	return true
}

func (r *Registry) Lookup(connID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

// LookupPlayer 按玩家 id 查找连接（踢人、空闲回收使用）
func (r *Registry) LookupPlayer(playerID string) (string, Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, e := range r.entries {
		if e.active && e.playerID == playerID {
			return id, e.handle, true
		}
	}
	return "", nil, false
}

// Recipients 已加入连接的快照（排除 exclude）；调用方在锁外投递
func (r *Registry) Recipients(exclude string) []recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]recipient, 0, len(r.entries))
	for id, e := range r.entries {
		if !e.active || id == exclude {
			continue
		}
		out = append(out, recipient{connID: id, handle: e.handle})
	}
	return out
}

// All 全部连接的快照（含未加入的）
func (r *Registry) All() []recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]recipient, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, recipient{connID: id, handle: e.handle})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
