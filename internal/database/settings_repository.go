package database

import (
	"context"
	"database/sql"

	"github.com/avask/chorus/internal/music"
)

// SettingsRepository stores per-guild preferences.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{db: GetDB()}
}

func (r *SettingsRepository) GetPreferredSource(ctx context.Context, guildID string) (music.Source, bool, error) {
	if r == nil || r.db == nil || guildID == "" {
		return music.SourceAuto, false, nil
	}

	const query = `
		SELECT preferred_source
		FROM guild_settings
		WHERE guild_id = $1;
	`

	var raw string
	err := r.db.QueryRowContext(ctx, query, guildID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return music.SourceAuto, false, nil
		}
		return music.SourceAuto, false, err
	}
	return music.ParseSource(raw), true, nil
}

func (r *SettingsRepository) SetPreferredSource(ctx context.Context, guildID string, source music.Source) error {
	if r == nil || r.db == nil || guildID == "" {
		return nil
	}

	const query = `
		INSERT INTO guild_settings (guild_id, preferred_source, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (guild_id)
		DO UPDATE SET
			preferred_source = EXCLUDED.preferred_source,
			updated_at = NOW();
	`

	_, err := r.db.ExecContext(ctx, query, guildID, string(source))
	return err
}
