package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Track{Title: "a"})
	q.Enqueue(Track{Title: "b"})
	q.Enqueue(Track{Title: "c"})

	require.Equal(t, 3, q.Len())

	first, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", first.Title)

	second, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "b", second.Title)
}

func TestQueueEnqueueFront(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Track{Title: "b"})
	q.EnqueueFront(Track{Title: "a"})

	first, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", first.Title)
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := NewQueue()
	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestQueueSnapshotDoesNotMutate(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Track{Title: "a"})
	q.Enqueue(Track{Title: "b"})

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Title)
	assert.Equal(t, 2, q.Len())
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Track{Title: "a"})
	q.Clear()
	assert.Equal(t, 0, q.Len())
}
