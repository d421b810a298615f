package repositories

import (
	"context"
	"strconv"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

// SettingsRepository covers the small static tables: codes, cooldowns and process-wide settings.
type SettingsRepository interface {
	Codes(ctx context.Context) ([]models.Code, error)
	UpsertCode(ctx context.Context, code *models.Code) error
	Cooldowns(ctx context.Context) ([]models.Cooldown, error)
	UpdateCooldownReductions(ctx context.Context, activity string, slash, mention float64) error
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	StartupTime(ctx context.Context) (time.Time, error)
	// MinieventEnergyMultiplier defaults to 1 when unset.
	MinieventEnergyMultiplier(ctx context.Context) (float64, error)
}

type settingsRepository struct {
	*BaseRepository
}

func NewSettingsRepository(db *bun.DB) SettingsRepository {
	return &settingsRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *settingsRepository) Codes(ctx context.Context) ([]models.Code, error) {
	var codes []models.Code
	err := r.db.NewSelect().Model(&codes).Order("code ASC").Scan(ctx)
	return codes, r.HandleError("list", "code", err)
}

func (r *settingsRepository) UpsertCode(ctx context.Context, code *models.Code) error {
	_, err := r.db.NewInsert().Model(code).
		On("CONFLICT (code) DO UPDATE").
		Set("contents = EXCLUDED.contents").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "code", code.Code, err)
}

func (r *settingsRepository) Cooldowns(ctx context.Context) ([]models.Cooldown, error) {
	var cooldowns []models.Cooldown
	err := r.db.NewSelect().Model(&cooldowns).Order("activity ASC").Scan(ctx)
	return cooldowns, r.HandleError("list", "cooldown", err)
}

func (r *settingsRepository) UpdateCooldownReductions(ctx context.Context, activity string, slash, mention float64) error {
	res, err := r.db.NewUpdate().Model((*models.Cooldown)(nil)).
		Set("event_reduction_slash = ?", slash).
		Set("event_reduction_mention = ?", mention).
		Where("activity = ?", activity).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "cooldown", activity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "cooldown", ID: activity}
	}
	return nil
}

func (r *settingsRepository) Get(ctx context.Context, name string) (string, error) {
	setting := new(models.Setting)
	if err := r.db.NewSelect().Model(setting).Where("name = ?", name).Scan(ctx); err != nil {
		return "", r.HandleErrorWithID("get", "setting", name, err)
	}
	return setting.Value, nil
}

func (r *settingsRepository) Set(ctx context.Context, name, value string) error {
	_, err := r.db.NewInsert().Model(&models.Setting{Name: name, Value: value}).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return r.HandleErrorWithID("set", "setting", name, err)
}

func (r *settingsRepository) StartupTime(ctx context.Context) (time.Time, error) {
	value, err := r.Get(ctx, models.SettingStartupTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

func (r *settingsRepository) MinieventEnergyMultiplier(ctx context.Context) (float64, error) {
	value, err := r.Get(ctx, models.SettingMinieventEnergyMultiplier)
	if IsNotFound(err) {
		return 1, nil
	}
	if err != nil {
		return 1, err
	}
	multiplier, err := strconv.ParseFloat(value, 64)
	if err != nil || multiplier <= 0 {
		return 1, nil
	}
	return multiplier, nil
}
