package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/avask/chorus/internal/music"
)

// LikesRepository persists per-user liked tracks. A nil database disables
// it; every method then reports "no likes" without erroring.
type LikesRepository struct {
	db *sql.DB
}

func NewLikesRepository() *LikesRepository {
	return &LikesRepository{db: GetDB()}
}

func (r *LikesRepository) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *LikesRepository) Add(ctx context.Context, guildID, userID string, track music.Track) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	trackURL := strings.TrimSpace(track.URL)
	if guildID == "" || userID == "" || trackURL == "" {
		return false, nil
	}

	const query = `
		INSERT INTO track_likes (guild_id, user_id, track_url, title, author, source_name, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (guild_id, user_id, track_url) DO NOTHING;
	`

	result, err := r.db.ExecContext(ctx, query,
		guildID, userID, trackURL, track.Title, track.Author, track.SourceName, track.Duration.Milliseconds())
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *LikesRepository) Remove(ctx context.Context, guildID, userID string, trackURL string) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	trackURL = strings.TrimSpace(trackURL)
	if guildID == "" || userID == "" || trackURL == "" {
		return false, nil
	}

	const query = `
		DELETE FROM track_likes
		WHERE guild_id = $1 AND user_id = $2 AND track_url = $3;
	`

	result, err := r.db.ExecContext(ctx, query, guildID, userID, trackURL)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns liked tracks oldest first, so positions stay stable as new
// likes arrive.
func (r *LikesRepository) List(ctx context.Context, guildID, userID string, limit, offset int) ([]music.Like, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
		SELECT id, track_url, title, author, source_name, duration_ms, created_at
		FROM track_likes
		WHERE guild_id = $1 AND user_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4;
	`

	rows, err := r.db.QueryContext(ctx, query, guildID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var likes []music.Like
	for rows.Next() {
		like, err := scanLike(rows)
		if err != nil {
			return nil, err
		}
		likes = append(likes, like)
	}
	return likes, rows.Err()
}

// ByIndex returns the liked track at the 1-based list position, or nil
// when the position is out of range.
func (r *LikesRepository) ByIndex(ctx context.Context, guildID, userID string, index int) (*music.Like, error) {
	if !r.Enabled() || index < 1 {
		return nil, nil
	}

	const query = `
		SELECT id, track_url, title, author, source_name, duration_ms, created_at
		FROM track_likes
		WHERE guild_id = $1 AND user_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1 OFFSET $3;
	`

	like, err := scanLike(r.db.QueryRowContext(ctx, query, guildID, userID, index-1))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &like, nil
}

// Random picks a liked track outside the excluded urls. The exclusion is
// case-insensitive to match how the recent list deduplicates. When every
// like is excluded it falls back to an unrestricted pick, so a small liked
// list still loops instead of stalling.
func (r *LikesRepository) Random(ctx context.Context, guildID, userID string, exclude []string) (*music.Like, error) {
	if !r.Enabled() {
		return nil, nil
	}

	const query = `
		SELECT id, track_url, title, author, source_name, duration_ms, created_at
		FROM track_likes
		WHERE guild_id = $1 AND user_id = $2
		  AND NOT (LOWER(track_url) = ANY($3))
		ORDER BY RANDOM()
		LIMIT 1;
	`

	like, err := scanLike(r.db.QueryRowContext(ctx, query, guildID, userID, pq.Array(loweredAll(exclude))))
	if err == nil {
		return &like, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	if len(exclude) == 0 {
		return nil, nil
	}

	like, err = scanLike(r.db.QueryRowContext(ctx, query, guildID, userID, pq.Array([]string{})))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &like, nil
}

func (r *LikesRepository) Count(ctx context.Context, guildID, userID string) (int, error) {
	if !r.Enabled() {
		return 0, nil
	}

	const query = `
		SELECT COUNT(*)
		FROM track_likes
		WHERE guild_id = $1 AND user_id = $2;
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, guildID, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func loweredAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLike(row rowScanner) (music.Like, error) {
	var like music.Like
	var durationMS int64
	var createdAt time.Time

	err := row.Scan(&like.ID, &like.TrackURL, &like.Title, &like.Author, &like.SourceName, &durationMS, &createdAt)
	if err != nil {
		return music.Like{}, err
	}

	like.Duration = time.Duration(durationMS) * time.Millisecond
	like.AddedAt = createdAt
	return like, nil
}
