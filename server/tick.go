package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"minilobby/protocol"
)

// RunSweeper 周期性执行 Sweep，直到 ctx 取消。阻塞调用。
func (m *Manager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Sweep 回收空闲玩家（IdleTimeout > 0 时），并按 ResyncInterval 广播全量名单。返回回收数量。
// 空闲回收是建议性的：与正在进行的动作竞争时以先到者为准。
func (m *Manager) Sweep(now time.Time) int {
	evicted := 0
	if m.cfg.IdleTimeout > 0 {
		cutoff := now.Add(-m.cfg.IdleTimeout).Unix()
		for _, p := range m.store.Snapshot() {
			if p.LastSeen >= cutoff {
				continue
			}
			_, h, ok := m.registry.LookupPlayer(p.ID)
			if !ok {
				continue
			}
			m.log.Info("evicting idle player",
				zap.String("player", p.ID),
				zap.Int64("last_seen", p.LastSeen),
			)
			m.metrics.IncIdleEvictions()
			h.Close(ErrIdle)
			evicted++
		}
	}

	if m.cfg.ResyncInterval > 0 {
		last := m.lastResync.Load()
		if now.UnixNano()-last >= int64(m.cfg.ResyncInterval) && m.lastResync.CompareAndSwap(last, now.UnixNano()) {
			m.broadcast.Commit(func(out *Outbox) {
				out.Broadcast(protocol.PlayerList{Players: m.store.Snapshot()}, "")
			})
		}
	}
	return evicted
}
