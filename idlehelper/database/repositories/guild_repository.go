package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

type GuildRepository interface {
	// Get returns the guild, creating it with defaults on first sight.
	Get(ctx context.Context, guildID int64) (*models.Guild, error)
	Update(ctx context.Context, guildID int64, fields map[string]interface{}) error
}

type guildRepository struct {
	*BaseRepository
}

func NewGuildRepository(db *bun.DB) GuildRepository {
	return &guildRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *guildRepository) Get(ctx context.Context, guildID int64) (*models.Guild, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	guild := new(models.Guild)
	err := r.db.NewSelect().Model(guild).Where("guild_id = ?", guildID).Scan(ctx)
	if err == nil {
		return guild, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, r.HandleErrorWithID("get", "guild", guildID, err)
	}

	guild = models.NewGuild(guildID)
	if _, err = r.db.NewInsert().Model(guild).On("CONFLICT (guild_id) DO NOTHING").Exec(ctx); err != nil {
		return nil, r.HandleErrorWithID("insert", "guild", guildID, err)
	}
	return guild, nil
}

func (r *guildRepository) Update(ctx context.Context, guildID int64, fields map[string]interface{}) error {
	if _, err := r.Get(ctx, guildID); err != nil {
		return err
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q, err := r.updateColumns(r.db, (*models.Guild)(nil), fields)
	if err != nil {
		return err
	}
	_, err = q.Where("guild_id = ?", guildID).Exec(ctx)
	return r.HandleErrorWithID("update", "guild", guildID, err)
}
