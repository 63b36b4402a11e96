package music

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

var ErrEngineNotConnected = errors.New("audio engine is not connected")

const (
	defaultIdleDelay          = 5 * time.Minute
	defaultEngineWaitAttempts = 5
	defaultEngineWaitInterval = time.Second

	// shuffleAttempts bounds how many liked tracks are tried per
	// continuation before shuffle gives up.
	shuffleAttempts = 3

	// eventOpTimeout caps engine calls made from event callbacks, which
	// carry no caller context.
	eventOpTimeout = 10 * time.Second
)

// Options tunes a Manager. Zero values pick the defaults.
type Options struct {
	IdleDelay          time.Duration
	EngineWaitAttempts int
	EngineWaitInterval time.Duration
	DefaultVolume      int
}

// Manager owns all per-guild playback state and is the only component that
// issues engine playback commands. Mutations for one guild run under that
// guild's session guard; different guilds never contend.
type Manager struct {
	store    *Store
	engine   Engine
	voice    Voice
	likes    LikeStore
	resolver *Resolver
	prefs    SourcePrefs

	idleDelay          time.Duration
	engineWaitAttempts int
	engineWaitInterval time.Duration

	subMu       sync.Mutex
	subscribers []func(guildID string)
}

func NewManager(engine Engine, voice Voice, likes LikeStore, resolver *Resolver, prefs SourcePrefs, opts Options) *Manager {
	if opts.IdleDelay <= 0 {
		opts.IdleDelay = defaultIdleDelay
	}
	if opts.EngineWaitAttempts <= 0 {
		opts.EngineWaitAttempts = defaultEngineWaitAttempts
	}
	if opts.EngineWaitInterval <= 0 {
		opts.EngineWaitInterval = defaultEngineWaitInterval
	}

	return &Manager{
		store:              NewStore(opts.DefaultVolume),
		engine:             engine,
		voice:              voice,
		likes:              likes,
		resolver:           resolver,
		prefs:              prefs,
		idleDelay:          opts.IdleDelay,
		engineWaitAttempts: opts.EngineWaitAttempts,
		engineWaitInterval: opts.EngineWaitInterval,
	}
}

// Subscribe registers a callback fired after playback state changes. Each
// callback runs behind its own recover so one misbehaving subscriber never
// takes down the others.
func (m *Manager) Subscribe(fn func(guildID string)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) notify(guildID string) {
	m.subMu.Lock()
	subs := make([]func(string), len(m.subscribers))
	copy(subs, m.subscribers)
	m.subMu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[music] subscriber panic for guild %s: %v", guildID, r)
				}
			}()
			fn(guildID)
		}()
	}
}

// Join binds the guild session to a voice channel. Rejoining while playback
// state survives re-seeds the engine player so the track resumes where the
// session left it.
func (m *Manager) Join(ctx context.Context, guildID, channelID, textChannelID string) Result {
	if strings.TrimSpace(channelID) == "" {
		return failure("Join a voice channel first.")
	}
	if err := m.waitForEngine(ctx); err != nil {
		return failure("The audio engine is not available right now. Try again in a moment.")
	}

	if err := m.voice.Join(guildID, channelID); err != nil {
		log.Printf("[music] voice join failed for guild %s: %v", guildID, err)
		return failure("Could not join the voice channel.")
	}

	var res Result
	m.store.With(guildID, func(s *session) {
		s.voiceChannelID = channelID
		if textChannelID != "" {
			s.textChannelID = textChannelID
		}

		if s.current != nil {
			if err := m.engine.Play(ctx, guildID, s.current.Encoded, s.volume); err != nil {
				log.Printf("[music] player re-seed failed for guild %s: %v", guildID, err)
			} else if s.pausedAt != nil {
				_ = m.engine.Seek(ctx, guildID, *s.pausedAt)
				_ = m.engine.SetPaused(ctx, guildID, true)
			}
		}

		m.updateIdleLocked(guildID, s)
		res = success("Joined the voice channel.")
	})

	m.notify(guildID)
	return res
}

// Leave detaches from voice and wipes playback state. The volume choice is
// deliberately kept for the next session. A failed detach keeps the binding
// so the idle scheduler can retry later.
func (m *Manager) Leave(ctx context.Context, guildID string) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		if !s.hasVoice() {
			res = failure("Not connected to a voice channel.")
			return
		}

		if err := m.voice.Leave(guildID); err != nil {
			log.Printf("[music] voice leave failed for guild %s: %v", guildID, err)
			m.updateIdleLocked(guildID, s)
			res = failure("Could not leave the voice channel.")
			return
		}

		if err := m.engine.DestroyPlayer(ctx, guildID); err != nil {
			log.Printf("[music] destroy player failed for guild %s: %v", guildID, err)
		}

		s.voiceChannelID = ""
		s.current = nil
		s.pausedAt = nil
		s.queue.Clear()
		s.history.Clear()
		s.shuffle = nil
		m.updateIdleLocked(guildID, s)
		res = success("Left the voice channel.")
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// Play resolves a request and either starts it or queues it. Resolution
// runs outside the session guard; the session is re-validated on commit.
func (m *Manager) Play(ctx context.Context, guildID, voiceChannelID, textChannelID, query string) Result {
	bound := false
	m.store.With(guildID, func(s *session) {
		bound = s.hasVoice()
	})
	if !bound {
		join := m.Join(ctx, guildID, voiceChannelID, textChannelID)
		if !join.OK {
			return join
		}
	}

	if err := m.waitForEngine(ctx); err != nil {
		return failure("The audio engine is not available right now. Try again in a moment.")
	}

	resolution := m.resolver.Resolve(ctx, guildID, query)

	switch resolution.Kind {
	case ResolvedError:
		return failure(resolution.ErrMessage)
	case ResolvedEmpty:
		return failure("Nothing found for that request.")
	}

	var res Result
	m.store.With(guildID, func(s *session) {
		if !s.hasVoice() {
			res = failure("Not connected to a voice channel anymore.")
			return
		}
		if textChannelID != "" {
			s.textChannelID = textChannelID
		}
		// A direct play request takes over from liked-shuffle autoplay.
		s.shuffle = nil

		switch resolution.Kind {
		case ResolvedTrack:
			track := resolution.Tracks[0]
			if s.current == nil {
				if err := m.startTrackLocked(ctx, guildID, s, track); err != nil {
					res = failure("Could not start playback. Try again.")
					return
				}
				res = success("Now playing: " + formatTrack(track))
			} else {
				s.queue.Enqueue(track)
				res = success(fmt.Sprintf("Queued %s (position %d).", formatTrack(track), s.queue.Len()))
			}

		case ResolvedPlaylist:
			for _, track := range resolution.Tracks {
				s.queue.Enqueue(track)
			}
			message := fmt.Sprintf("Queued %d tracks from %s.", len(resolution.Tracks), playlistLabel(resolution.PlaylistName))
			if resolution.TotalTracks > len(resolution.Tracks) {
				message += fmt.Sprintf(" The playlist has %d tracks; only the first %d were added.", resolution.TotalTracks, len(resolution.Tracks))
			}

			if s.current == nil {
				if next, err := s.queue.Dequeue(); err == nil {
					if err := m.startTrackLocked(ctx, guildID, s, next); err != nil {
						s.queue.EnqueueFront(next)
						res = failure("Could not start playback. Try again.")
						return
					}
				}
			}
			res = success(message)
		}

		m.updateIdleLocked(guildID, s)
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// Skip advances past the current track: current goes to history, the next
// queued track starts, or playback stops when the queue is empty.
func (m *Manager) Skip(ctx context.Context, guildID string) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		if s.current == nil && s.queue.Len() == 0 {
			res = failure("Nothing is playing.")
			return
		}

		if s.current != nil {
			s.history.Push(*s.current)
			s.current = nil
			s.pausedAt = nil
		}

		next, err := s.queue.Dequeue()
		if err != nil {
			if err := m.engine.StopTrack(ctx, guildID); err != nil {
				log.Printf("[music] stop track failed for guild %s: %v", guildID, err)
			}
			m.updateIdleLocked(guildID, s)
			res = success("Skipped. The queue is empty.")
			return
		}

		if err := m.startTrackLocked(ctx, guildID, s, next); err != nil {
			s.queue.EnqueueFront(next)
			res = failure("Could not start the next track.")
			return
		}
		m.updateIdleLocked(guildID, s)
		res = success("Now playing: " + formatTrack(next))
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// Previous steps back to the most recent history entry. The interrupted
// track returns to the front of the queue instead of being lost.
func (m *Manager) Previous(ctx context.Context, guildID string) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		previous, err := s.history.Pop()
		if err != nil {
			res = failure("The playback history is empty.")
			return
		}

		if s.current != nil {
			s.queue.EnqueueFront(*s.current)
			s.current = nil
			s.pausedAt = nil
		}

		if err := m.startTrackLocked(ctx, guildID, s, previous); err != nil {
			s.history.Push(previous)
			res = failure("Could not start the previous track.")
			return
		}
		m.updateIdleLocked(guildID, s)
		res = success("Now playing: " + formatTrack(previous))
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// TogglePause pauses at the current position or resumes from it. A paused
// session counts as idle, so pausing arms the disconnect timer.
func (m *Manager) TogglePause(ctx context.Context, guildID string) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		if s.current == nil {
			res = failure("Nothing is playing.")
			return
		}

		if s.pausedAt == nil {
			position, err := m.engine.Position(ctx, guildID)
			if err != nil {
				log.Printf("[music] position lookup failed for guild %s: %v", guildID, err)
				position = 0
			}
			if err := m.engine.SetPaused(ctx, guildID, true); err != nil {
				res = failure("Could not pause playback.")
				return
			}
			s.pausedAt = &position
			res = success("Paused.")
		} else {
			if err := m.engine.SetPaused(ctx, guildID, false); err != nil {
				res = failure("Could not resume playback.")
				return
			}
			s.pausedAt = nil
			res = success("Resumed.")
		}

		m.updateIdleLocked(guildID, s)
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// Stop halts playback and empties both the queue and the history while
// keeping the voice binding. Liked shuffle is disabled so it cannot
// immediately restart.
func (m *Manager) Stop(ctx context.Context, guildID string) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		if s.current == nil && s.queue.Len() == 0 {
			res = failure("Nothing is playing.")
			return
		}

		if err := m.engine.StopTrack(ctx, guildID); err != nil {
			log.Printf("[music] stop track failed for guild %s: %v", guildID, err)
		}

		s.current = nil
		s.pausedAt = nil
		s.queue.Clear()
		s.history.Clear()
		s.shuffle = nil
		m.updateIdleLocked(guildID, s)
		res = success("Playback stopped and the queue was cleared.")
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// SetVolume validates before touching the engine and stores the value even
// when nothing is playing; it applies to whatever plays next.
func (m *Manager) SetVolume(ctx context.Context, guildID string, volume int) Result {
	if volume < 0 || volume > 100 {
		return failure("Volume must be between 0 and 100.")
	}

	var res Result
	m.store.With(guildID, func(s *session) {
		s.volume = volume
		if s.current != nil {
			if err := m.engine.SetVolume(ctx, guildID, volume); err != nil {
				log.Printf("[music] set volume failed for guild %s: %v", guildID, err)
				res = failure("Stored the volume, but the player did not accept it yet.")
				return
			}
		}
		res = success(fmt.Sprintf("Volume set to %d%%.", volume))
	})
	return res
}

// SelectQueue jumps to the 1-based queue position: the selected track plays
// now, the entries before it stay queued behind it, and the interrupted
// track lands in history like an ordinary skip.
func (m *Manager) SelectQueue(ctx context.Context, guildID string, position int) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		tracks := s.queue.Snapshot()
		if position < 1 || position > len(tracks) {
			res = failure(fmt.Sprintf("Pick a queue position between 1 and %d.", len(tracks)))
			return
		}

		// An explicit selection takes over from liked-shuffle autoplay.
		s.shuffle = nil

		selected := tracks[position-1]
		s.queue.Clear()
		for i, track := range tracks {
			if i == position-1 {
				continue
			}
			s.queue.Enqueue(track)
		}

		if s.current != nil {
			s.history.Push(*s.current)
			s.current = nil
			s.pausedAt = nil
		}

		if err := m.startTrackLocked(ctx, guildID, s, selected); err != nil {
			s.queue.EnqueueFront(selected)
			res = failure("Could not start the selected track.")
			return
		}
		m.updateIdleLocked(guildID, s)
		res = success("Now playing: " + formatTrack(selected))
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// SelectHistory replays the 1-based history entry (1 is the most recent).
// Entries older than the selection stay in history; entries newer than it,
// followed by the interrupted track, move to the front of the queue in the
// order they originally played.
func (m *Manager) SelectHistory(ctx context.Context, guildID string, position int) Result {
	var res Result
	m.store.With(guildID, func(s *session) {
		snapshot := s.history.Snapshot()
		if position < 1 || position > len(snapshot) {
			res = failure(fmt.Sprintf("Pick a history position between 1 and %d.", len(snapshot)))
			return
		}

		// An explicit selection takes over from liked-shuffle autoplay.
		s.shuffle = nil

		selected := snapshot[position-1]
		older := snapshot[position:]
		newer := snapshot[:position-1]

		s.history.Clear()
		for i := len(older) - 1; i >= 0; i-- {
			s.history.Push(older[i])
		}

		// Requeue in original playback order: the track that followed the
		// selection ends up at the very front, the interrupted track last.
		requeue := make([]Track, 0, len(newer)+1)
		for i := len(newer) - 1; i >= 0; i-- {
			requeue = append(requeue, newer[i])
		}
		if s.current != nil {
			requeue = append(requeue, *s.current)
			s.current = nil
			s.pausedAt = nil
		}
		for i := len(requeue) - 1; i >= 0; i-- {
			s.queue.EnqueueFront(requeue[i])
		}

		if err := m.startTrackLocked(ctx, guildID, s, selected); err != nil {
			s.history.Push(selected)
			res = failure("Could not start the selected track.")
			return
		}
		m.updateIdleLocked(guildID, s)
		res = success("Now playing: " + formatTrack(selected))
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// ToggleLikedShuffle enables or disables liked-shuffle autoplay for the
// invoking user. Enabling on an idle session starts playback immediately.
func (m *Manager) ToggleLikedShuffle(ctx context.Context, guildID, userID string) Result {
	if m.likes == nil || !m.likes.Enabled() {
		return failure("Liked tracks are not available: no database is configured.")
	}

	var res Result
	kickoff := false
	m.store.With(guildID, func(s *session) {
		if s.shuffle != nil {
			s.shuffle = nil
			res = success("Liked shuffle disabled.")
			return
		}
		if !s.hasVoice() {
			res = failure("Not connected to a voice channel. Use /join first.")
			return
		}
		s.shuffle = &shuffleState{ownerID: userID}
		kickoff = s.current == nil && s.queue.Len() == 0
		res = success("Liked shuffle enabled. Tracks you liked will keep the music going.")
	})

	if !res.OK {
		return res
	}

	if kickoff {
		count, err := m.likes.Count(ctx, guildID, userID)
		if err != nil || count == 0 {
			m.store.With(guildID, func(s *session) { s.shuffle = nil })
			return failure("You have no liked tracks yet. Like something with /like first.")
		}
		if !m.continueShuffle(ctx, guildID) {
			return failure("Could not start a liked track right now.")
		}
	}

	m.notify(guildID)
	return res
}

// LikeCurrent saves the playing track to the user's liked list.
func (m *Manager) LikeCurrent(ctx context.Context, guildID, userID string) Result {
	if m.likes == nil || !m.likes.Enabled() {
		return failure("Liked tracks are not available: no database is configured.")
	}

	var track *Track
	m.store.With(guildID, func(s *session) {
		if s.current != nil {
			copied := *s.current
			track = &copied
		}
	})
	if track == nil {
		return failure("Nothing is playing.")
	}

	added, err := m.likes.Add(ctx, guildID, userID, *track)
	if err != nil {
		log.Printf("[music] like failed for guild %s: %v", guildID, err)
		return failure("Could not save the track. Try again.")
	}
	if !added {
		return failure("That track is already in your liked list.")
	}
	return success("Added to your liked tracks: " + formatTrack(*track))
}

// UnlikeCurrent removes the playing track from the user's liked list.
func (m *Manager) UnlikeCurrent(ctx context.Context, guildID, userID string) Result {
	if m.likes == nil || !m.likes.Enabled() {
		return failure("Liked tracks are not available: no database is configured.")
	}

	var track *Track
	m.store.With(guildID, func(s *session) {
		if s.current != nil {
			copied := *s.current
			track = &copied
		}
	})
	if track == nil {
		return failure("Nothing is playing.")
	}

	removed, err := m.likes.Remove(ctx, guildID, userID, track.URL)
	if err != nil {
		log.Printf("[music] unlike failed for guild %s: %v", guildID, err)
		return failure("Could not update your liked tracks. Try again.")
	}
	if !removed {
		return failure("That track is not in your liked list.")
	}
	return success("Removed from your liked tracks: " + formatTrack(*track))
}

// ListLikes pages through the user's liked tracks.
func (m *Manager) ListLikes(ctx context.Context, guildID, userID string, limit, offset int) ([]Like, int, error) {
	if m.likes == nil || !m.likes.Enabled() {
		return nil, 0, errors.New("liked tracks are not available")
	}

	total, err := m.likes.Count(ctx, guildID, userID)
	if err != nil {
		return nil, 0, err
	}
	likes, err := m.likes.List(ctx, guildID, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return likes, total, nil
}

// PlayLikedByIndex plays or queues the user's liked track at the 1-based
// list position.
func (m *Manager) PlayLikedByIndex(ctx context.Context, guildID, userID string, index int) Result {
	if m.likes == nil || !m.likes.Enabled() {
		return failure("Liked tracks are not available: no database is configured.")
	}

	like, err := m.likes.ByIndex(ctx, guildID, userID, index)
	if err != nil {
		log.Printf("[music] liked lookup failed for guild %s: %v", guildID, err)
		return failure("Could not look up your liked tracks.")
	}
	if like == nil {
		return failure("No liked track at that position.")
	}

	if err := m.waitForEngine(ctx); err != nil {
		return failure("The audio engine is not available right now. Try again in a moment.")
	}

	track, err := m.resolver.LoadSingle(ctx, like.TrackURL)
	if err != nil {
		return failure("Could not load the liked track: " + formatLike(*like))
	}
	track = track.WithDisplay(like.Title, like.Author, like.SourceName, like.TrackURL)

	var res Result
	m.store.With(guildID, func(s *session) {
		if !s.hasVoice() {
			res = failure("Not connected to a voice channel. Use /join first.")
			return
		}
		// A direct play request takes over from liked-shuffle autoplay.
		s.shuffle = nil

		if s.current == nil {
			if err := m.startTrackLocked(ctx, guildID, s, track); err != nil {
				res = failure("Could not start playback. Try again.")
				return
			}
			res = success("Now playing: " + formatTrack(track))
		} else {
			s.queue.Enqueue(track)
			res = success(fmt.Sprintf("Queued %s (position %d).", formatTrack(track), s.queue.Len()))
		}
		m.updateIdleLocked(guildID, s)
	})

	if res.OK {
		m.notify(guildID)
	}
	return res
}

// SetPreferredSource changes where plain-text queries are searched.
func (m *Manager) SetPreferredSource(ctx context.Context, guildID string, source Source) Result {
	if m.prefs == nil {
		return failure("Source preferences are not available.")
	}
	if err := m.prefs.Set(ctx, guildID, source); err != nil {
		log.Printf("[music] source preference update failed for guild %s: %v", guildID, err)
		return failure("Could not save the source preference.")
	}
	return success(fmt.Sprintf("Default source set to %s.", source))
}

// NowPlaying reports the current track and whether it is paused.
func (m *Manager) NowPlaying(guildID string) (track *Track, paused bool) {
	m.store.With(guildID, func(s *session) {
		if s.current != nil {
			copied := *s.current
			track = &copied
			paused = s.pausedAt != nil
		}
	})
	return track, paused
}

// QueueLen returns the number of pending tracks.
func (m *Manager) QueueLen(guildID string) int {
	var n int
	m.store.With(guildID, func(s *session) {
		n = s.queue.Len()
	})
	return n
}

// HistoryLen returns the number of played tracks still retained.
func (m *Manager) HistoryLen(guildID string) int {
	var n int
	m.store.With(guildID, func(s *session) {
		n = s.history.Len()
	})
	return n
}

// QueueSnapshot returns the pending tracks in playback order.
func (m *Manager) QueueSnapshot(guildID string) []Track {
	var out []Track
	m.store.With(guildID, func(s *session) {
		out = s.queue.Snapshot()
	})
	return out
}

// HistorySnapshot returns played tracks, most recent first.
func (m *Manager) HistorySnapshot(guildID string) []Track {
	var out []Track
	m.store.With(guildID, func(s *session) {
		out = s.history.Snapshot()
	})
	return out
}

// Volume returns the stored volume for the guild.
func (m *Manager) Volume(guildID string) int {
	var volume int
	m.store.With(guildID, func(s *session) {
		volume = s.volume
	})
	return volume
}

// VoiceChannel returns the bound voice channel id, empty when detached.
func (m *Manager) VoiceChannel(guildID string) string {
	var channelID string
	m.store.With(guildID, func(s *session) {
		channelID = s.voiceChannelID
	})
	return channelID
}

// TextChannel returns where playback announcements go for the guild.
func (m *Manager) TextChannel(guildID string) string {
	var channelID string
	m.store.With(guildID, func(s *session) {
		channelID = s.textChannelID
	})
	return channelID
}

// ShuffleOwner returns who enabled liked shuffle, empty when inactive.
func (m *Manager) ShuffleOwner(guildID string) string {
	var ownerID string
	m.store.With(guildID, func(s *session) {
		if s.shuffle != nil {
			ownerID = s.shuffle.ownerID
		}
	})
	return ownerID
}

// HandleTrackStart is called by the engine when a track begins.
func (m *Manager) HandleTrackStart(guildID string) {
	m.store.With(guildID, func(s *session) {
		m.updateIdleLocked(guildID, s)
	})
	m.notify(guildID)
}

// HandleTrackEnd is called by the engine when a track stops playing. The
// event names the track that ended; when that does not match the session's
// current track the session has already moved on and the event is stale, so
// it must not touch the track playing now. Only natural ends and load
// failures advance the queue; a stop clears state and replaced/cleanup ends
// are side effects of commands already handled.
func (m *Manager) HandleTrackEnd(guildID, endedTrack string, reason EndReason) {
	ctx, cancel := context.WithTimeout(context.Background(), eventOpTimeout)
	defer cancel()

	advance := false
	m.store.With(guildID, func(s *session) {
		matches := s.current != nil && (endedTrack == "" || s.current.Encoded == endedTrack)
		switch reason {
		case EndReasonFinished, EndReasonLoadFailed:
			if matches {
				s.history.Push(*s.current)
				s.current = nil
				s.pausedAt = nil
				advance = true
			}
		case EndReasonStopped:
			if matches {
				s.current = nil
				s.pausedAt = nil
				s.queue.Clear()
			}
		}
	})

	if !advance {
		m.store.With(guildID, func(s *session) {
			m.updateIdleLocked(guildID, s)
		})
		m.notify(guildID)
		return
	}

	played := false
	m.store.With(guildID, func(s *session) {
		for {
			next, err := s.queue.Dequeue()
			if err != nil {
				break
			}
			if err := m.startTrackLocked(ctx, guildID, s, next); err != nil {
				log.Printf("[music] could not start %s for guild %s: %v", next.Title, guildID, err)
				continue
			}
			played = true
			break
		}
		m.updateIdleLocked(guildID, s)
	})

	if !played && !m.continueShuffle(ctx, guildID) {
		m.store.With(guildID, func(s *session) {
			m.updateIdleLocked(guildID, s)
		})
	}
	m.notify(guildID)
}

// continueShuffle tries to start one liked track and reports whether a
// continuation happened. The shuffle gate serializes concurrent attempts;
// the second caller finds a track already playing and backs off, so each
// physical track end produces at most one continuation.
func (m *Manager) continueShuffle(ctx context.Context, guildID string) bool {
	var s *session
	m.store.With(guildID, func(sess *session) { s = sess })

	s.shuffleMu.Lock()
	defer s.shuffleMu.Unlock()

	var ownerID string
	var recent []string
	active, busy := false, false
	m.store.With(guildID, func(s *session) {
		if s.shuffle != nil && s.hasVoice() {
			active = true
			ownerID = s.shuffle.ownerID
			recent = s.shuffle.recentSnapshot()
		}
		busy = s.current != nil
	})
	if !active {
		return false
	}
	if busy {
		return true
	}

	for attempt := 0; attempt < shuffleAttempts; attempt++ {
		like, err := m.likes.Random(ctx, guildID, ownerID, recent)
		if err != nil {
			log.Printf("[music] liked shuffle lookup failed for guild %s: %v", guildID, err)
			continue
		}
		if like == nil {
			m.store.With(guildID, func(s *session) { s.shuffle = nil })
			log.Printf("[music] liked shuffle disabled for guild %s: no liked tracks left", guildID)
			return false
		}

		track, err := m.resolver.LoadSingle(ctx, like.TrackURL)
		if err != nil {
			log.Printf("[music] liked shuffle could not load %s for guild %s: %v", like.TrackURL, guildID, err)
			recent = append(recent, like.TrackURL)
			continue
		}
		track = track.WithDisplay(like.Title, like.Author, like.SourceName, like.TrackURL)

		started := false
		m.store.With(guildID, func(s *session) {
			if s.shuffle == nil || !s.hasVoice() || s.current != nil {
				started = s.current != nil
				return
			}
			if err := m.startTrackLocked(ctx, guildID, s, track); err != nil {
				return
			}
			s.shuffle.addRecent(like.TrackURL)
			m.updateIdleLocked(guildID, s)
			started = true
		})
		if started {
			return true
		}
	}

	m.store.With(guildID, func(s *session) { s.shuffle = nil })
	log.Printf("[music] liked shuffle disabled for guild %s after %d failed attempts", guildID, shuffleAttempts)
	return false
}

// startTrackLocked begins playback of a track; the caller holds the
// session guard.
func (m *Manager) startTrackLocked(ctx context.Context, guildID string, s *session, track Track) error {
	if err := m.engine.Play(ctx, guildID, track.Encoded, s.volume); err != nil {
		log.Printf("[music] engine play failed for guild %s: %v", guildID, err)
		return err
	}
	s.current = &track
	s.pausedAt = nil
	return nil
}

// waitForEngine gives a briefly disconnected engine a chance to come back
// before an operation fails.
func (m *Manager) waitForEngine(ctx context.Context) error {
	for attempt := 0; attempt < m.engineWaitAttempts; attempt++ {
		if m.engine.IsConnected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.engineWaitInterval):
		}
	}
	if m.engine.IsConnected() {
		return nil
	}
	return ErrEngineNotConnected
}

// updateIdleLocked re-arms or cancels the auto-disconnect timer; the caller
// holds the session guard. Bumping the generation first means an already
// fired timer always loses to the cancellation.
func (m *Manager) updateIdleLocked(guildID string, s *session) {
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if !s.isIdle() {
		return
	}

	gen := s.idleGen
	s.idleTimer = time.AfterFunc(m.idleDelay, func() {
		m.onIdleTimeout(guildID, gen)
	})
}

func (m *Manager) onIdleTimeout(guildID string, gen uint64) {
	shouldLeave := false
	m.store.With(guildID, func(s *session) {
		if s.idleGen != gen {
			return
		}
		s.idleTimer = nil
		shouldLeave = s.isIdle()
	})
	if !shouldLeave {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventOpTimeout)
	defer cancel()

	log.Printf("[music] leaving guild %s after %s idle", guildID, m.idleDelay)
	m.Leave(ctx, guildID)
}

func formatTrack(t Track) string {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Unknown Title"
	}
	author := strings.TrimSpace(t.Author)
	if author == "" {
		return title
	}
	return title + " by " + author
}

func formatLike(l Like) string {
	return formatTrack(Track{Title: l.Title, Author: l.Author})
}

func playlistLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "the playlist"
	}
	return "\"" + name + "\""
}
