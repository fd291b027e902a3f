package server

import (
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"minilobby/config"
)

// Palette 玩家颜色，加入时随机分配，会话内不变
var Palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FECA57", "#FF9FF3"}

// World 世界规则：边界裁剪、出生点、昵称与颜色分配（无共享可变状态）
type World struct {
	width  float64
	height float64
	margin float64

	maxNickname int
	maxChat     int
}

func NewWorld(cfg config.GameConfig) *World {
	return &World{
		width:       cfg.WorldWidth,
		height:      cfg.WorldHeight,
		margin:      cfg.SpawnMargin,
		maxNickname: cfg.MaxNicknameLength,
		maxChat:     cfg.MaxChatLength,
	}
}

// Clamp 越界坐标裁剪到 [0,width]×[0,height]
func (w *World) Clamp(x, y float64) (float64, float64) {
	return clamp(x, 0, w.width), clamp(y, 0, w.height)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Spawn 在去掉 margin 的内部矩形中随机出生
func (w *World) Spawn() (float64, float64) {
	x := w.margin + rand.Float64()*(w.width-2*w.margin)
	y := w.margin + rand.Float64()*(w.height-2*w.margin)
	return x, y
}

func (w *World) PickColor() string {
	return Palette[rand.Intn(len(Palette))]
}

// ResolveNickname 去空白、NFC 规范化、去控制字符并截断；为空时生成 PlayerXXXXXX 占位名
func (w *World) ResolveNickname(raw *string, playerID string) string {
	if raw != nil {
		if nick := sanitize(*raw, w.maxNickname); nick != "" {
			return nick
		}
	}
	return placeholderNickname(playerID)
}

// NormalizeChat 返回规范化后的聊天内容；空白消息返回 ok=false
func (w *World) NormalizeChat(msg string) (string, bool) {
	msg = sanitize(msg, w.maxChat)
	return msg, msg != ""
}

func placeholderNickname(playerID string) string {
	short := strings.ReplaceAll(playerID, "-", "")
	if len(short) > 6 {
		short = short[:6]
	}
	return "Player" + short
}

func sanitize(s string, maxRunes int) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxRunes {
		s = strings.TrimSpace(string(r[:maxRunes]))
	}
	return s
}
