package music

import (
	"container/list"
	"errors"
	"sync"
)

var ErrEmptyQueue = errors.New("queue is empty")

// Queue is the ordered sequence of pending tracks for one guild. Insertion
// order is playback order; EnqueueFront exists for history renavigation.
// All session access runs under the owning guild's guard, but the queue
// still locks internally so timer and engine-callback contexts can touch
// it safely.
type Queue struct {
	mu     sync.Mutex
	tracks *list.List
}

func NewQueue() *Queue {
	return &Queue{tracks: list.New()}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tracks.Len()
}

func (q *Queue) Enqueue(track Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.PushBack(track)
}

func (q *Queue) EnqueueFront(track Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.PushFront(track)
}

func (q *Queue) Dequeue() (Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.tracks.Front()
	if front == nil {
		return Track{}, ErrEmptyQueue
	}
	q.tracks.Remove(front)
	return front.Value.(Track), nil
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.Init()
}

// Snapshot returns all queued tracks in playback order without mutating.
func (q *Queue) Snapshot() []Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Track, 0, q.tracks.Len())
	for e := q.tracks.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Track))
	}
	return out
}
