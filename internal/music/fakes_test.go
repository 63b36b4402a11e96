package music

import (
	"context"
	"strings"
	"sync"
	"time"
)

type fakeEngine struct {
	mu        sync.Mutex
	connected bool
	loads     map[string]LoadResult
	loadCalls []string
	playCalls []string
	playErr   error
	paused    map[string]bool
	volumes   map[string]int
	stops     int
	destroys  int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		connected: true,
		loads:     make(map[string]LoadResult),
		paused:    make(map[string]bool),
		volumes:   make(map[string]int),
	}
}

func (e *fakeEngine) addTrack(identifier string, track Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads[identifier] = LoadResult{Type: LoadTypeTrack, Tracks: []Track{track}}
}

func (e *fakeEngine) loadCallsSnapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.loadCalls))
	copy(out, e.loadCalls)
	return out
}

func (e *fakeEngine) playCount(encoded string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, p := range e.playCalls {
		if p == encoded {
			count++
		}
	}
	return count
}

func (e *fakeEngine) LoadTracks(_ context.Context, identifier string) (LoadResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadCalls = append(e.loadCalls, identifier)
	if result, ok := e.loads[identifier]; ok {
		return result, nil
	}
	return LoadResult{Type: LoadTypeEmpty}, nil
}

func (e *fakeEngine) Play(_ context.Context, guildID string, encoded string, volume int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playErr != nil {
		return e.playErr
	}
	e.playCalls = append(e.playCalls, encoded)
	e.volumes[guildID] = volume
	return nil
}

func (e *fakeEngine) SetPaused(_ context.Context, guildID string, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused[guildID] = paused
	return nil
}

func (e *fakeEngine) Seek(context.Context, string, time.Duration) error { return nil }

func (e *fakeEngine) SetVolume(_ context.Context, guildID string, volume int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volumes[guildID] = volume
	return nil
}

func (e *fakeEngine) StopTrack(context.Context, string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	return nil
}

func (e *fakeEngine) Position(context.Context, string) (time.Duration, error) {
	return 42 * time.Second, nil
}

func (e *fakeEngine) DestroyPlayer(context.Context, string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys++
	return nil
}

func (e *fakeEngine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

type fakeVoice struct {
	mu       sync.Mutex
	joined   map[string]string
	leaveErr error
	leaves   int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{joined: make(map[string]string)}
}

func (v *fakeVoice) Join(guildID, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joined[guildID] = channelID
	return nil
}

func (v *fakeVoice) Leave(guildID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.leaveErr != nil {
		return v.leaveErr
	}
	delete(v.joined, guildID)
	v.leaves++
	return nil
}

func (v *fakeVoice) BotChannelID(guildID string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.joined[guildID]
}

func (v *fakeVoice) leaveCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.leaves
}

type fakeLikes struct {
	mu    sync.Mutex
	likes []Like
}

func newFakeLikes(urls ...string) *fakeLikes {
	f := &fakeLikes{}
	for i, u := range urls {
		f.likes = append(f.likes, Like{ID: int64(i + 1), TrackURL: u, Title: u})
	}
	return f
}

func (f *fakeLikes) Enabled() bool { return true }

func (f *fakeLikes) Add(_ context.Context, _, _ string, track Track) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.likes {
		if l.TrackURL == track.URL {
			return false, nil
		}
	}
	f.likes = append(f.likes, Like{
		ID:       int64(len(f.likes) + 1),
		TrackURL: track.URL,
		Title:    track.Title,
		Author:   track.Author,
	})
	return true, nil
}

func (f *fakeLikes) Remove(_ context.Context, _, _ string, trackURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.likes {
		if l.TrackURL == trackURL {
			f.likes = append(f.likes[:i], f.likes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLikes) List(_ context.Context, _, _ string, limit, offset int) ([]Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.likes) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.likes) {
		end = len(f.likes)
	}
	out := make([]Like, end-offset)
	copy(out, f.likes[offset:end])
	return out, nil
}

func (f *fakeLikes) ByIndex(_ context.Context, _, _ string, index int) (*Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 1 || index > len(f.likes) {
		return nil, nil
	}
	like := f.likes[index-1]
	return &like, nil
}

func (f *fakeLikes) Random(_ context.Context, _, _ string, exclude []string) (*Like, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.likes) == 0 {
		return nil, nil
	}
	for _, l := range f.likes {
		excluded := false
		for _, ex := range exclude {
			if strings.EqualFold(ex, l.TrackURL) {
				excluded = true
				break
			}
		}
		if !excluded {
			like := l
			return &like, nil
		}
	}
	like := f.likes[0]
	return &like, nil
}

func (f *fakeLikes) Count(context.Context, string, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.likes), nil
}

type fakePrefs struct {
	mu     sync.Mutex
	source Source
	stored map[string]Source
}

func newFakePrefs(source Source) *fakePrefs {
	return &fakePrefs{source: source, stored: make(map[string]Source)}
}

func (p *fakePrefs) Get(context.Context, string) Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *fakePrefs) Set(_ context.Context, guildID string, source Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
	p.stored[guildID] = source
	return nil
}
