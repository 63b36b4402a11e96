package music

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingsStore is the durable side of per-guild preferences.
type SettingsStore interface {
	GetPreferredSource(ctx context.Context, guildID string) (Source, bool, error)
	SetPreferredSource(ctx context.Context, guildID string, source Source) error
}

const prefsCacheTTL = time.Hour

// Preferences resolves the per-guild preferred streaming source through a
// redis read-through cache in front of the settings store. Either backend
// may be nil; lookups then degrade toward the auto default.
type Preferences struct {
	store SettingsStore
	cache *redis.Client
}

func NewPreferences(store SettingsStore, cache *redis.Client) *Preferences {
	return &Preferences{store: store, cache: cache}
}

func prefsCacheKey(guildID string) string {
	return "chorus:source:" + guildID
}

func (p *Preferences) Get(ctx context.Context, guildID string) Source {
	if p == nil {
		return SourceAuto
	}

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, prefsCacheKey(guildID)).Result()
		if err == nil {
			return ParseSource(cached)
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("[prefs] cache read failed for guild %s: %v", guildID, err)
		}
	}

	if p.store == nil {
		return SourceAuto
	}

	source, found, err := p.store.GetPreferredSource(ctx, guildID)
	if err != nil {
		log.Printf("[prefs] settings read failed for guild %s: %v", guildID, err)
		return SourceAuto
	}
	if !found {
		source = SourceAuto
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, prefsCacheKey(guildID), string(source), prefsCacheTTL).Err(); err != nil {
			log.Printf("[prefs] cache fill failed for guild %s: %v", guildID, err)
		}
	}

	return source
}

func (p *Preferences) Set(ctx context.Context, guildID string, source Source) error {
	if p.store != nil {
		if err := p.store.SetPreferredSource(ctx, guildID, source); err != nil {
			return err
		}
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, prefsCacheKey(guildID), string(source), prefsCacheTTL).Err(); err != nil {
			log.Printf("[prefs] cache update failed for guild %s: %v", guildID, err)
		}
	}

	return nil
}
