package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	SessionsOpened   int64 // 接入的连接数
	SessionsClosed   int64 // 已终止的会话数
	Joins            int64 // 成功 Join 的次数
	ActionsAccepted  int64 // 被接受的动作（Move/Chat/ChangeNick）
	ChatIgnored      int64 // 空白聊天被忽略
	ProtocolErrors   int64 // 无法解析的帧
	ValidationErrors int64 // 当前状态下不允许的动作
	Broadcasts       int64 // 广播次数
	FramesQueued     int64 // 成功入队的出站帧
	DeliveryFailures int64 // 入队失败（队列满/已关闭）
	IdleEvictions    int64 // 空闲回收
	Kicks            int64 // 管理端踢出
}

func (m *Metrics) IncSessionsOpened()   { atomic.AddInt64(&m.SessionsOpened, 1) }
func (m *Metrics) IncSessionsClosed()   { atomic.AddInt64(&m.SessionsClosed, 1) }
func (m *Metrics) IncJoins()            { atomic.AddInt64(&m.Joins, 1) }
func (m *Metrics) IncActionsAccepted()  { atomic.AddInt64(&m.ActionsAccepted, 1) }
func (m *Metrics) IncChatIgnored()      { atomic.AddInt64(&m.ChatIgnored, 1) }
func (m *Metrics) IncProtocolErrors()   { atomic.AddInt64(&m.ProtocolErrors, 1) }
func (m *Metrics) IncValidationErrors() { atomic.AddInt64(&m.ValidationErrors, 1) }
func (m *Metrics) IncBroadcasts()       { atomic.AddInt64(&m.Broadcasts, 1) }
func (m *Metrics) IncFramesQueued()     { atomic.AddInt64(&m.FramesQueued, 1) }
func (m *Metrics) IncDeliveryFailures() { atomic.AddInt64(&m.DeliveryFailures, 1) }
func (m *Metrics) IncIdleEvictions()    { atomic.AddInt64(&m.IdleEvictions, 1) }
func (m *Metrics) IncKicks()            { atomic.AddInt64(&m.Kicks, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"sessions_opened":   atomic.LoadInt64(&m.SessionsOpened),
		"sessions_closed":   atomic.LoadInt64(&m.SessionsClosed),
		"joins":             atomic.LoadInt64(&m.Joins),
		"actions_accepted":  atomic.LoadInt64(&m.ActionsAccepted),
		"chat_ignored":      atomic.LoadInt64(&m.ChatIgnored),
		"protocol_errors":   atomic.LoadInt64(&m.ProtocolErrors),
		"validation_errors": atomic.LoadInt64(&m.ValidationErrors),
		"broadcasts":        atomic.LoadInt64(&m.Broadcasts),
		"frames_queued":     atomic.LoadInt64(&m.FramesQueued),
		"delivery_failures": atomic.LoadInt64(&m.DeliveryFailures),
		"idle_evictions":    atomic.LoadInt64(&m.IdleEvictions),
		"kicks":             atomic.LoadInt64(&m.Kicks),
	}
}
