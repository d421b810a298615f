package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
	Insert(ctx context.Context, userID int64) (*models.User, error)
	Update(ctx context.Context, userID int64, fields map[string]interface{}) error
	Delete(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int, error)
}

type userRepository struct {
	*BaseRepository
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db)}
}

// Get fails with ErrFirstTimeUser when the user never opted in.
func (r *userRepository) Get(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFirstTimeUser
		}
		slog.Error("Database error when getting user",
			slog.String("type", "db"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return nil, r.HandleErrorWithID("get", "user", userID, err)
	}
	return user, nil
}

func (r *userRepository) Insert(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	user := models.NewUser(userID, time.Now())
	res, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("insert", "user", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrRecordExists
	}

	slog.Info("User registered",
		slog.String("type", "db"),
		slog.Int64("user_id", userID))
	return user, nil
}

// Update sets the named columns. Unknown column names fail without side effects.
func (r *userRepository) Update(ctx context.Context, userID int64, fields map[string]interface{}) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q, err := r.updateColumns(r.db, (*models.User)(nil), fields)
	if err != nil {
		return err
	}
	res, err := q.Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update", "user", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFirstTimeUser
	}
	return nil
}

// Delete purges the user and every row owned by it.
func (r *userRepository) Delete(ctx context.Context, userID int64) error {
	return r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		owned := []interface{}{
			(*models.UserReminder)(nil),
			(*models.TrackingLog)(nil),
			(*models.UserWorker)(nil),
			(*models.UserUpgrade)(nil),
			(*models.ClanMember)(nil),
			(*models.User)(nil),
		}
		for _, model := range owned {
			if _, err := tx.NewDelete().Model(model).Where("user_id = ?", userID).Exec(ctx); err != nil {
				return r.HandleErrorWithID("delete", "user", userID, err)
			}
		}
		return nil
	})
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	return n, r.HandleError("count", "user", err)
}
