package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"minilobby/protocol"
)

func entry(i int) protocol.ChatEntry {
	return protocol.ChatEntry{PlayerID: "p", Message: fmt.Sprintf("m%d", i), Timestamp: int64(i)}
}

func TestChatHistory_EvictsOldest(t *testing.T) {
	h := NewChatHistory(50)
	for i := 1; i <= 51; i++ {
		h.Append(entry(i))
	}

	snap := h.Snapshot()
	require.Len(t, snap, 50)
	assert.Equal(t, "m2", snap[0].Message)
	assert.Equal(t, "m51", snap[49].Message)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Timestamp, snap[i].Timestamp)
	}
}

func TestChatHistory_EmptyAndPartial(t *testing.T) {
	h := NewChatHistory(3)
	assert.Empty(t, h.Snapshot())
	assert.Equal(t, 3, h.Cap())

	h.Append(entry(1))
	h.Append(entry(2))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []protocol.ChatEntry{entry(1), entry(2)}, h.Snapshot())
}

func TestChatHistory_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 50, NewChatHistory(0).Cap())
}

func TestChatHistory_SnapshotIsCopy(t *testing.T) {
	h := NewChatHistory(2)
	h.Append(entry(1))
	snap := h.Snapshot()
	snap[0].Message = "changed"
	assert.Equal(t, "m1", h.Snapshot()[0].Message)
}

func TestPropertyChatHistoryKeepsMostRecent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 60).Draw(t, "capacity")
		n := rapid.IntRange(0, 200).Draw(t, "n")

		h := NewChatHistory(capacity)
		for i := 0; i < n; i++ {
			h.Append(entry(i))
		}

		snap := h.Snapshot()
		want := min(n, capacity)
		if len(snap) != want {
			t.Fatalf("len=%d want %d", len(snap), want)
		}
		for i, e := range snap {
			if e.Timestamp != int64(n-want+i) {
				t.Fatalf("snap[%d]=%d want %d", i, e.Timestamp, n-want+i)
			}
		}
	})
}
