package music

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryPopIsLIFO(t *testing.T) {
	h := NewHistory(0)
	h.Push(Track{Title: "old"})
	h.Push(Track{Title: "new"})

	top, err := h.Pop()
	require.NoError(t, err)
	assert.Equal(t, "new", top.Title)

	next, err := h.Pop()
	require.NoError(t, err)
	assert.Equal(t, "old", next.Title)

	_, err = h.Pop()
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < HistoryCapacity+5; i++ {
		h.Push(Track{Title: fmt.Sprintf("t%d", i)})
	}

	assert.Equal(t, HistoryCapacity, h.Len())

	snap := h.Snapshot()
	require.Len(t, snap, HistoryCapacity)
	// Most recent first; the five oldest pushes are gone.
	assert.Equal(t, fmt.Sprintf("t%d", HistoryCapacity+4), snap[0].Title)
	assert.Equal(t, "t5", snap[len(snap)-1].Title)
}

func TestHistorySnapshotMostRecentFirst(t *testing.T) {
	h := NewHistory(0)
	h.Push(Track{Title: "a"})
	h.Push(Track{Title: "b"})
	h.Push(Track{Title: "c"})

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{snap[0].Title, snap[1].Title, snap[2].Title})
	assert.Equal(t, 3, h.Len())
}
