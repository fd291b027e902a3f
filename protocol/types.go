// Package protocol 定义客户端与服务端之间的 WebSocket 文本帧（带 type 判别字段的 JSON）
package protocol

// 帧的 type 判别值
const (
	TypeJoin       = "Join"
	TypeMove       = "Move"
	TypeChat       = "Chat"
	TypeChangeNick = "ChangeNick"

	TypeWelcome      = "Welcome"
	TypePlayerJoined = "PlayerJoined"
	TypePlayerLeft   = "PlayerLeft"
	TypePlayerMoved  = "PlayerMoved"
	TypeChatMessage  = "ChatMessage"
	TypePlayerList   = "PlayerList"
	TypeNickChanged  = "NickChanged"
	TypeError        = "Error"
)

// Player 玩家的线上表示（也是服务端存储的权威记录）
type Player struct {
	ID       string  `json:"id"`
	Nickname string  `json:"nickname"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
	LastSeen int64   `json:"last_seen"` // Unix 秒
}

// ChatEntry 一条聊天记录
type ChatEntry struct {
	PlayerID  string `json:"player_id"`
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix 秒
}

// ClientAction 客户端动作（封闭的和类型，只有本包内的类型可实现）
type ClientAction interface {
	ActionType() string
	isClientAction()
}

// Join 加入；Nickname 为 nil 表示由服务端生成占位昵称
type Join struct {
	Nickname *string
}

type Move struct {
	X, Y float64
}

type Chat struct {
	Message string
}

type ChangeNick struct {
	Nickname string
}

func (Join) ActionType() string       { return TypeJoin }
func (Move) ActionType() string       { return TypeMove }
func (Chat) ActionType() string       { return TypeChat }
func (ChangeNick) ActionType() string { return TypeChangeNick }

func (Join) isClientAction()       {}
func (Move) isClientAction()       {}
func (Chat) isClientAction()       {}
func (ChangeNick) isClientAction() {}

// ServerEvent 服务端事件（封闭的和类型）
type ServerEvent interface {
	EventType() string
	isServerEvent()
}

// Welcome 只发给刚加入的连接：自身 id、当前玩家快照与聊天历史
type Welcome struct {
	YourID  string
	Players []Player
	History []ChatEntry
}

type PlayerJoined struct {
	Player Player
}

type PlayerLeft struct {
	PlayerID string
}

type PlayerMoved struct {
	PlayerID string
	X, Y     float64
}

type ChatMessage struct {
	Entry ChatEntry
}

// PlayerList 全量名单（周期性校正或管理接口使用）
type PlayerList struct {
	Players []Player
}

// NickChanged 改名事件，与 PlayerJoined 区分开
type NickChanged struct {
	PlayerID string
	Nickname string
}

// Error 在因违规关闭连接前发给该连接
type Error struct {
	Message string
}

func (Welcome) EventType() string      { return TypeWelcome }
func (PlayerJoined) EventType() string { return TypePlayerJoined }
func (PlayerLeft) EventType() string   { return TypePlayerLeft }
func (PlayerMoved) EventType() string  { return TypePlayerMoved }
func (ChatMessage) EventType() string  { return TypeChatMessage }
func (PlayerList) EventType() string   { return TypePlayerList }
func (NickChanged) EventType() string  { return TypeNickChanged }
func (Error) EventType() string        { return TypeError }

func (Welcome) isServerEvent()      {}
func (PlayerJoined) isServerEvent() {}
func (PlayerLeft) isServerEvent()   {}
func (PlayerMoved) isServerEvent()  {}
func (ChatMessage) isServerEvent()  {}
func (PlayerList) isServerEvent()   {}
func (NickChanged) isServerEvent()  {}
func (Error) isServerEvent()        {}
