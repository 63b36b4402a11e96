package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestSession() *session {
	return &session{queue: NewQueue(), history: NewHistory(0), volume: 100}
}

func TestSessionIsIdle(t *testing.T) {
	pos := 5 * time.Second
	track := &Track{Title: "t"}

	cases := []struct {
		name     string
		voice    bool
		current  *Track
		paused   bool
		queued   int
		wantIdle bool
	}{
		{name: "unbound", wantIdle: false},
		{name: "unbound with queue", queued: 1, wantIdle: false},
		{name: "bound and empty", voice: true, wantIdle: true},
		{name: "bound playing", voice: true, current: track, wantIdle: false},
		{name: "bound paused", voice: true, current: track, paused: true, wantIdle: true},
		{name: "bound paused with queue", voice: true, current: track, paused: true, queued: 1, wantIdle: false},
		{name: "bound idle with queue", voice: true, queued: 1, wantIdle: false},
		{name: "unbound paused", current: track, paused: true, wantIdle: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession()
			if tc.voice {
				s.voiceChannelID = "vc"
			}
			s.current = tc.current
			if tc.paused {
				s.pausedAt = &pos
			}
			for i := 0; i < tc.queued; i++ {
				s.queue.Enqueue(Track{Title: "q"})
			}
			assert.Equal(t, tc.wantIdle, s.isIdle())
		})
	}
}

func TestShuffleRecentDedupAndCap(t *testing.T) {
	st := &shuffleState{ownerID: "u"}

	st.addRecent("https://a")
	st.addRecent("HTTPS://A")
	assert.Len(t, st.recentSnapshot(), 1)

	for _, u := range []string{"https://b", "https://c", "https://d", "https://e", "https://f"} {
		st.addRecent(u)
	}

	recent := st.recentSnapshot()
	assert.Len(t, recent, maxRecentShuffle)
	// Oldest entry fell off.
	assert.NotContains(t, recent, "https://a")
	assert.Contains(t, recent, "https://f")
}

func TestShuffleRecentIgnoresBlank(t *testing.T) {
	st := &shuffleState{}
	st.addRecent("  ")
	st.addRecent("")
	assert.Empty(t, st.recentSnapshot())
}

func TestStoreVolumeSurvivesAcrossLookups(t *testing.T) {
	st := NewStore(70)

	st.With("g", func(s *session) {
		assert.Equal(t, 70, s.volume)
		s.volume = 35
	})
	st.With("g", func(s *session) {
		assert.Equal(t, 35, s.volume)
	})
	st.With("other", func(s *session) {
		assert.Equal(t, 70, s.volume)
	})
}

func TestStoreInvalidDefaultVolume(t *testing.T) {
	st := NewStore(400)
	st.With("g", func(s *session) {
		assert.Equal(t, 100, s.volume)
	})
}
