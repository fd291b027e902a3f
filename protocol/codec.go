package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown frame type")
	ErrMissingField   = errors.New("missing required field")
)

// ProtocolError 帧无法解析为合法动作/事件；调用方应拒绝该帧并关闭连接
type ProtocolError struct {
	Type string // 帧的 type 字段（可能为空）
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error in %s frame: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

type envelope struct {
	Type string `json:"type"`
}

// 入站帧：必填字段用指针，以区分“缺失”和“零值”
type joinFrame struct {
	Type     string  `json:"type"`
	Nickname *string `json:"nickname"`
}

type moveFrame struct {
	Type string   `json:"type"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
}

type chatFrame struct {
	Type    string  `json:"type"`
	Message *string `json:"message"`
}

type changeNickFrame struct {
	Type     string  `json:"type"`
	Nickname *string `json:"nickname"`
}

type welcomeFrame struct {
	Type    string      `json:"type"`
	YourID  *string     `json:"your_id"`
	Players []Player    `json:"players"`
	History []ChatEntry `json:"history"`
}

type playerJoinedFrame struct {
	Type   string  `json:"type"`
	Player *Player `json:"player"`
}

type playerLeftFrame struct {
	Type     string  `json:"type"`
	PlayerID *string `json:"player_id"`
}

type playerMovedFrame struct {
	Type     string   `json:"type"`
	PlayerID *string  `json:"player_id"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

type chatMessageFrame struct {
	Type      string  `json:"type"`
	PlayerID  *string `json:"player_id"`
	Nickname  *string `json:"nickname"`
	Message   *string `json:"message"`
	Timestamp *int64  `json:"timestamp"`
}

type playerListFrame struct {
	Type    string   `json:"type"`
	Players []Player `json:"players"`
}

type nickChangedFrame struct {
	Type     string  `json:"type"`
	PlayerID *string `json:"player_id"`
	Nickname *string `json:"nickname"`
}

type errorFrame struct {
	Type    string  `json:"type"`
	Message *string `json:"message"`
}

func readType(frame []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}
	if env.Type == "" {
		return "", &ProtocolError{Err: fmt.Errorf("%w: type", ErrMissingField)}
	}
	return env.Type, nil
}

func unmarshalBody(typ string, frame []byte, v any) error {
	if err := json.Unmarshal(frame, v); err != nil {
		return &ProtocolError{Type: typ, Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}
	return nil
}

func missing(typ, field string) error {
	return &ProtocolError{Type: typ, Err: fmt.Errorf("%w: %s", ErrMissingField, field)}
}

// DecodeAction 把一帧文本解码为客户端动作。失败时返回 *ProtocolError，不产生任何部分结果。
func DecodeAction(frame []byte) (ClientAction, error) {
	typ, err := readType(frame)
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypeJoin:
		var f joinFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		return Join{Nickname: f.Nickname}, nil
	case TypeMove:
		var f moveFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.X == nil {
			return nil, missing(typ, "x")
		}
		if f.Y == nil {
			return nil, missing(typ, "y")
		}
		return Move{X: *f.X, Y: *f.Y}, nil
	case TypeChat:
		var f chatFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.Message == nil {
			return nil, missing(typ, "message")
		}
		return Chat{Message: *f.Message}, nil
	case TypeChangeNick:
		var f changeNickFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.Nickname == nil {
			return nil, missing(typ, "nickname")
		}
		return ChangeNick{Nickname: *f.Nickname}, nil
	default:
		return nil, &ProtocolError{Type: typ, Err: ErrUnknownType}
	}
}

// EncodeAction 客户端侧编码（测试与工具使用）
func EncodeAction(a ClientAction) ([]byte, error) {
	switch a := a.(type) {
	case Join:
		return json.Marshal(joinFrame{Type: TypeJoin, Nickname: a.Nickname})
	case Move:
		return json.Marshal(moveFrame{Type: TypeMove, X: &a.X, Y: &a.Y})
	case Chat:
		return json.Marshal(chatFrame{Type: TypeChat, Message: &a.Message})
	case ChangeNick:
		return json.Marshal(changeNickFrame{Type: TypeChangeNick, Nickname: &a.Nickname})
	default:
		return nil, fmt.Errorf("encode action: unsupported type %T", a)
	}
}

// EncodeEvent 把服务端事件编码为一帧文本。输出确定：同一事件总是得到同一字节序列，nil 切片编码为 []。
func EncodeEvent(ev ServerEvent) ([]byte, error) {
	switch ev := normalizeEvent(ev).(type) {
	case Welcome:
		return json.Marshal(welcomeFrame{Type: TypeWelcome, YourID: &ev.YourID, Players: ev.Players, History: ev.History})
	case PlayerJoined:
		return json.Marshal(playerJoinedFrame{Type: TypePlayerJoined, Player: &ev.Player})
	case PlayerLeft:
		return json.Marshal(playerLeftFrame{Type: TypePlayerLeft, PlayerID: &ev.PlayerID})
	case PlayerMoved:
		return json.Marshal(playerMovedFrame{Type: TypePlayerMoved, PlayerID: &ev.PlayerID, X: &ev.X, Y: &ev.Y})
	case ChatMessage:
		e := ev.Entry
		return json.Marshal(chatMessageFrame{
			Type:      TypeChatMessage,
			PlayerID:  &e.PlayerID,
			Nickname:  &e.Nickname,
			Message:   &e.Message,
			Timestamp: &e.Timestamp,
		})
	case PlayerList:
		return json.Marshal(playerListFrame{Type: TypePlayerList, Players: ev.Players})
	case NickChanged:
		return json.Marshal(nickChangedFrame{Type: TypeNickChanged, PlayerID: &ev.PlayerID, Nickname: &ev.Nickname})
	case Error:
		return json.Marshal(errorFrame{Type: TypeError, Message: &ev.Message})
	default:
		return nil, fmt.Errorf("encode event: unsupported type %T", ev)
	}
}

// DecodeEvent 客户端侧解码（测试与工具使用）
func DecodeEvent(frame []byte) (ServerEvent, error) {
	typ, err := readType(frame)
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypeWelcome:
		var f welcomeFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.YourID == nil {
			return nil, missing(typ, "your_id")
		}
		return normalizeEvent(Welcome{YourID: *f.YourID, Players: f.Players, History: f.History}), nil
	case TypePlayerJoined:
		var f playerJoinedFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.Player == nil {
			return nil, missing(typ, "player")
		}
		return PlayerJoined{Player: *f.Player}, nil
	case TypePlayerLeft:
		var f playerLeftFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.PlayerID == nil {
			return nil, missing(typ, "player_id")
		}
		return PlayerLeft{PlayerID: *f.PlayerID}, nil
	case TypePlayerMoved:
		var f playerMovedFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.PlayerID == nil || f.X == nil || f.Y == nil {
			return nil, missing(typ, "player_id/x/y")
		}
		return PlayerMoved{PlayerID: *f.PlayerID, X: *f.X, Y: *f.Y}, nil
	case TypeChatMessage:
		var f chatMessageFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.PlayerID == nil || f.Nickname == nil || f.Message == nil || f.Timestamp == nil {
			return nil, missing(typ, "player_id/nickname/message/timestamp")
		}
		return ChatMessage{Entry: ChatEntry{
			PlayerID:  *f.PlayerID,
			Nickname:  *f.Nickname,
			Message:   *f.Message,
			Timestamp: *f.Timestamp,
		}}, nil
	case TypePlayerList:
		var f playerListFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		return normalizeEvent(PlayerList{Players: f.Players}), nil
	case TypeNickChanged:
		var f nickChangedFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.PlayerID == nil || f.Nickname == nil {
			return nil, missing(typ, "player_id/nickname")
		}
		return NickChanged{PlayerID: *f.PlayerID, Nickname: *f.Nickname}, nil
	case TypeError:
		var f errorFrame
		if err := unmarshalBody(typ, frame, &f); err != nil {
			return nil, err
		}
		if f.Message == nil {
			return nil, missing(typ, "message")
		}
		return Error{Message: *f.Message}, nil
	default:
		return nil, &ProtocolError{Type: typ, Err: ErrUnknownType}
	}
}

// normalizeEvent 把 nil 切片替换为空切片，保证 players/history 总是编码为数组
func normalizeEvent(ev ServerEvent) ServerEvent {
	switch e := ev.(type) {
	case Welcome:
		if e.Players == nil {
			e.Players = []Player{}
		}
		if e.History == nil {
			e.History = []ChatEntry{}
		}
		return e
	case PlayerList:
		if e.Players == nil {
			e.Players = []Player{}
		}
		return e
	}
	return ev
}
