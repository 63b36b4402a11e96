package music

import (
	"container/list"
	"errors"
	"sync"
)

var ErrEmptyHistory = errors.New("history is empty")

// HistoryCapacity bounds the per-guild playback history.
const HistoryCapacity = 25

// History is a bounded LIFO of previously played tracks. Pushing past the
// capacity silently evicts the oldest entry.
type History struct {
	mu       sync.Mutex
	capacity int
	tracks   *list.List
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{capacity: capacity, tracks: list.New()}
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracks.Len()
}

func (h *History) Push(track Track) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tracks.PushFront(track)
	for h.tracks.Len() > h.capacity {
		h.tracks.Remove(h.tracks.Back())
	}
}

func (h *History) Pop() (Track, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	front := h.tracks.Front()
	if front == nil {
		return Track{}, ErrEmptyHistory
	}
	h.tracks.Remove(front)
	return front.Value.(Track), nil
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracks.Init()
}

// Snapshot returns the history most-recent-first without mutating.
func (h *History) Snapshot() []Track {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Track, 0, h.tracks.Len())
	for e := h.tracks.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Track))
	}
	return out
}
