package repositories

import (
	"context"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

type UpgradeRepository interface {
	List(ctx context.Context, userID int64) ([]models.UserUpgrade, error)
	Get(ctx context.Context, userID int64, name string) (*models.UserUpgrade, error)
	Upsert(ctx context.Context, upgrade *models.UserUpgrade) error
}

type upgradeRepository struct {
	*BaseRepository
}

func NewUpgradeRepository(db *bun.DB) UpgradeRepository {
	return &upgradeRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *upgradeRepository) List(ctx context.Context, userID int64) ([]models.UserUpgrade, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var upgrades []models.UserUpgrade
	err := r.db.NewSelect().Model(&upgrades).
		Where("user_id = ?", userID).
		Order("sort_index ASC").
		Scan(ctx)
	return upgrades, r.HandleErrorWithID("list", "user upgrade", userID, err)
}

func (r *upgradeRepository) Get(ctx context.Context, userID int64, name string) (*models.UserUpgrade, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	upgrade := new(models.UserUpgrade)
	err := r.db.NewSelect().Model(upgrade).
		Where("user_id = ?", userID).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "user upgrade", name, err)
	}
	return upgrade, nil
}

func (r *upgradeRepository) Upsert(ctx context.Context, upgrade *models.UserUpgrade) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(upgrade).
		On("CONFLICT (user_id, name) DO UPDATE").
		Set("level = EXCLUDED.level").
		Set("sort_index = EXCLUDED.sort_index").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "user upgrade", upgrade.Name, err)
}
