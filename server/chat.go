package server

import (
	"sync"

	"minilobby/protocol"
)

// ChatHistory 定长环形缓冲：满了以后覆盖最旧的一条（严格 FIFO）
type ChatHistory struct {
	mu      sync.Mutex
	entries []protocol.ChatEntry
	head    int // 最旧一条的位置
	size    int
}

func NewChatHistory(capacity int) *ChatHistory {
	if capacity <= 0 {
		capacity = 50
	}
	return &ChatHistory{entries: make([]protocol.ChatEntry, capacity)}
}

func (h *ChatHistory) Append(e protocol.ChatEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	capacity := len(h.entries)
	if h.size < capacity {
		h.entries[(h.head+h.size)%capacity] = e
		h.size++
		return
	}
	h.entries[h.head] = e
	h.head = (h.head + 1) % capacity
}

// Snapshot 按时间顺序（旧→新）返回副本
func (h *ChatHistory) Snapshot() []protocol.ChatEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.ChatEntry, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.entries[(h.head+i)%len(h.entries)]
	}
	return out
}

func (h *ChatHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

func (h *ChatHistory) Cap() int {
	return len(h.entries)
}
