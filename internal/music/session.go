package music

import (
	"strings"
	"sync"
	"time"
)

const maxRecentShuffle = 5

// shuffleState is present on a session only while liked-shuffle autoplay is
// active. recent keeps the last few played like URLs (deduplicated,
// case-insensitive) so continuation does not immediately repeat them.
type shuffleState struct {
	ownerID string
	recent  []string
}

func (s *shuffleState) addRecent(url string) {
	if strings.TrimSpace(url) == "" {
		return
	}
	for _, existing := range s.recent {
		if strings.EqualFold(existing, url) {
			return
		}
	}
	s.recent = append(s.recent, url)
	for len(s.recent) > maxRecentShuffle {
		s.recent = s.recent[1:]
	}
}

func (s *shuffleState) recentSnapshot() []string {
	out := make([]string, len(s.recent))
	copy(out, s.recent)
	return out
}

// session is the mutable playback state of a single guild. Every field is
// read and written only while the session's guard is held, except shuffleMu
// which is a separate, narrower gate for the autoplay retry sequence and is
// never acquired while the guard is held.
type session struct {
	mu sync.Mutex

	queue   *Queue
	history *History
	current *Track

	// pausedAt is present only while current is paused.
	pausedAt *time.Duration

	volume int

	voiceChannelID string
	textChannelID  string

	// idleGen is bumped on every arm/disarm; a fired idle timer must see
	// its own generation still registered before acting.
	idleGen   uint64
	idleTimer *time.Timer

	shuffle   *shuffleState
	shuffleMu sync.Mutex
}

// hasVoice reports whether the session is bound to a voice channel.
func (s *session) hasVoice() bool {
	return s.voiceChannelID != ""
}

// isIdle implements the auto-disconnect policy: bound to voice, nothing
// playing (a paused track counts as not playing), and an empty queue.
func (s *session) isIdle() bool {
	if !s.hasVoice() {
		return false
	}
	if s.current != nil && s.pausedAt == nil {
		return false
	}
	return s.queue.Len() == 0
}

// Store maps guild ids to sessions. Each session carries its own mutex so
// unrelated guilds never contend; the store mutex only covers map access.
// Sessions are never removed from the map: leave clears playback state but
// the volume choice survives until overwritten.
type Store struct {
	mu            sync.Mutex
	sessions      map[string]*session
	defaultVolume int
}

func NewStore(defaultVolume int) *Store {
	if defaultVolume <= 0 || defaultVolume > 100 {
		defaultVolume = 100
	}
	return &Store{
		sessions:      make(map[string]*session),
		defaultVolume: defaultVolume,
	}
}

// With runs fn with exclusive access to the guild's session, creating an
// empty one on first use. Mutations for the same guild observe a total
// order; different guilds proceed in parallel.
func (st *Store) With(guildID string, fn func(*session)) {
	s := st.get(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (st *Store) get(guildID string) *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[guildID]; ok {
		return s
	}
	s := &session{
		queue:   NewQueue(),
		history: NewHistory(HistoryCapacity),
		volume:  st.defaultVolume,
	}
	st.sessions[guildID] = s
	return s
}
