package server

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"minilobby/protocol"
)

// DeliveryError 向单个连接入队失败（队列满或已关闭）
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Broadcaster 广播引擎。
//
// 所有提交都经过同一把提交锁：状态修改与其产生的事件在锁内按顺序入队，
// 因此每个连接看到的事件顺序与引擎观察到的提交顺序一致。锁内只做非阻塞入队，
// 真正的网络写由各连接的写协程完成。
type Broadcaster struct {
	mu       sync.Mutex
	registry *Registry
	metrics  *Metrics
	log      *zap.Logger
}

func NewBroadcaster(registry *Registry, metrics *Metrics, log *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, metrics: metrics, log: log}
}

type failedDelivery struct {
	handle Handle
	err    error
}

// Outbox 一次提交内的投递接口，只在 Commit 回调中有效
type Outbox struct {
	b      *Broadcaster
	failed []failedDelivery
}

// Commit 在提交锁内执行 fn（通常是“修改状态 + 提交事件”）。
// 投递失败的连接在锁内立即注销，解锁后异步关闭，由其会话自行完成清理。
func (b *Broadcaster) Commit(fn func(out *Outbox)) {
	out := &Outbox{b: b}
	b.mu.Lock()
	fn(out)
	b.mu.Unlock()

	for _, f := range out.failed {
		go f.handle.Close(f.err)
	}
}

// Broadcast 发给所有已加入的连接（exclude 为空表示不排除）
func (b *Broadcaster) Broadcast(ev protocol.ServerEvent, exclude string) int {
	var n int
	b.Commit(func(out *Outbox) { n = out.Broadcast(ev, exclude) })
	return n
}

// SendTo 只发给一个连接（不要求已加入）
func (b *Broadcaster) SendTo(connID string, ev protocol.ServerEvent) bool {
	var ok bool
	b.Commit(func(out *Outbox) { ok = out.SendTo(connID, ev) })
	return ok
}

// Broadcast 返回成功入队的连接数
func (o *Outbox) Broadcast(ev protocol.ServerEvent, exclude string) int {
	frame, err := o.encode(ev)
	if err != nil {
		return 0
	}
	delivered := 0
	for _, r := range o.b.registry.Recipients(exclude) {
		if o.deliver(r.connID, r.handle, frame) {
			delivered++
		}
	}
	o.b.metrics.IncBroadcasts()
	return delivered
}

func (o *Outbox) SendTo(connID string, ev protocol.ServerEvent) bool {
	h, ok := o.b.registry.Lookup(connID)
	if !ok {
		return false
	}
	frame, err := o.encode(ev)
	if err != nil {
		return false
	}
	return o.deliver(connID, h, frame)
}

func (o *Outbox) encode(ev protocol.ServerEvent) ([]byte, error) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		o.b.log.Error("encode event", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
	}
	return frame, err
}

func (o *Outbox) deliver(connID string, h Handle, frame []byte) bool {
	if err := h.Enqueue(frame); err != nil {
		derr := &DeliveryError{ConnID: connID, Err: err}
		o.b.registry.Unregister(connID)
		o.failed = append(o.failed, failedDelivery{handle: h, err: derr})
		o.b.metrics.IncDeliveryFailures()
		o.b.log.Warn("delivery failed, dropping connection",
			zap.String("conn", connID),
			zap.Error(err),
		)
		return false
	}
	o.b.metrics.IncFramesQueued()
	return true
}
