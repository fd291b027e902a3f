package server

import (
	"sort"
	"sync"

	"minilobby/protocol"
)

// PlayerStore 权威玩家表：按值存取，读写互斥，调用方无需额外加锁
type PlayerStore struct {
	mu      sync.RWMutex
	players map[string]protocol.Player
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{players: make(map[string]protocol.Player)}
}

// Upsert 插入或覆盖（同 id 至多一条）
func (s *PlayerStore) Upsert(p protocol.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}

// Remove 删除并返回被删记录；不存在时 ok=false
func (s *PlayerStore) Remove(id string) (protocol.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if ok {
		delete(s.players, id)
	}
	return p, ok
}

func (s *PlayerStore) Get(id string) (protocol.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	return p, ok
}

// Update 在写锁内原子地修改一条记录，返回修改后的副本
func (s *PlayerStore) Update(id string, fn func(p *protocol.Player)) (protocol.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return protocol.Player{}, false
	}
	fn(&p)
	p.ID = id
	s.players[id] = p
	return p, true
}

// Snapshot 一致的时间点快照，按 id 排序
func (s *PlayerStore) Snapshot() []protocol.Player {
	s.mu.RLock()
	out := make([]protocol.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *PlayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
