package server

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestWorld_Clamp(t *testing.T) {
	w := NewWorld(testGameConfig())
	tests := []struct {
		name         string
		x, y         float64
		wantX, wantY float64
	}{
		{"inside", 100, 100, 100, 100},
		{"negative x", -50, 10, 0, 10},
		{"beyond both", 5000, 5000, 800, 600},
		{"edges", 0, 600, 0, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := w.Clamp(tt.x, tt.y)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestWorld_SpawnInsideMargin(t *testing.T) {
	cfg := testGameConfig()
	w := NewWorld(cfg)
	for i := 0; i < 1000; i++ {
		x, y := w.Spawn()
		assert.GreaterOrEqual(t, x, cfg.SpawnMargin)
		assert.LessOrEqual(t, x, cfg.WorldWidth-cfg.SpawnMargin)
		assert.GreaterOrEqual(t, y, cfg.SpawnMargin)
		assert.LessOrEqual(t, y, cfg.WorldHeight-cfg.SpawnMargin)
	}
}

func TestWorld_PickColorFromPalette(t *testing.T) {
	w := NewWorld(testGameConfig())
	for i := 0; i < 100; i++ {
		assert.Contains(t, Palette, w.PickColor())
	}
}

func TestWorld_ResolveNickname(t *testing.T) {
	w := NewWorld(testGameConfig())
	id := "0a1b2c3d-4e5f-6789-abcd-ef0123456789"

	assert.Equal(t, "Player0a1b2c", w.ResolveNickname(nil, id))
	assert.Equal(t, "Player0a1b2c", w.ResolveNickname(strPtr("   \t"), id))
	assert.Equal(t, "Alice", w.ResolveNickname(strPtr("  Alice\n"), id))
	assert.Equal(t, "Bob", w.ResolveNickname(strPtr("B\x00ob"), id))

	long := strings.Repeat("é", 100)
	got := w.ResolveNickname(&long, id)
	assert.Equal(t, testGameConfig().MaxNicknameLength, utf8.RuneCountInString(got))
}

func TestWorld_NormalizeChat(t *testing.T) {
	w := NewWorld(testGameConfig())

	_, ok := w.NormalizeChat("   ")
	assert.False(t, ok)
	_, ok = w.NormalizeChat("")
	assert.False(t, ok)

	msg, ok := w.NormalizeChat("  hi all ")
	assert.True(t, ok)
	assert.Equal(t, "hi all", msg)

	// 组合字符 e + U+0301 规范化为单个 é
	msg, ok = w.NormalizeChat("cafe\u0301")
	assert.True(t, ok)
	assert.Equal(t, "caf\u00e9", msg)
}

func TestPropertyClampStaysInBounds(t *testing.T) {
	cfg := testGameConfig()
	w := NewWorld(cfg)
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-1e6, 1e6).Draw(t, "x")
		y := rapid.Float64Range(-1e6, 1e6).Draw(t, "y")
		cx, cy := w.Clamp(x, y)
		if cx < 0 || cx > cfg.WorldWidth || cy < 0 || cy > cfg.WorldHeight {
			t.Fatalf("clamp(%g,%g)=(%g,%g) out of bounds", x, y, cx, cy)
		}
		if x >= 0 && x <= cfg.WorldWidth && cx != x {
			t.Fatalf("in-bounds x changed: %g -> %g", x, cx)
		}
		if y >= 0 && y <= cfg.WorldHeight && cy != y {
			t.Fatalf("in-bounds y changed: %g -> %g", y, cy)
		}
	})
}
