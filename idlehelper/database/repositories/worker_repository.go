package repositories

import (
	"context"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

type WorkerRepository interface {
	List(ctx context.Context, userID int64) ([]models.UserWorker, error)
	Upsert(ctx context.Context, worker *models.UserWorker) error
	// AddAmount increments the amount of a worker type, creating it at level 1.
	AddAmount(ctx context.Context, userID int64, workerName string, amount int) error
	Levels(ctx context.Context) ([]models.WorkerLevel, error)
	// LearnLevel stores the workers required for level when the game reveals it.
	LearnLevel(ctx context.Context, level, workersRequired int) error
}

type workerRepository struct {
	*BaseRepository
}

func NewWorkerRepository(db *bun.DB) WorkerRepository {
	return &workerRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *workerRepository) List(ctx context.Context, userID int64) ([]models.UserWorker, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var workers []models.UserWorker
	err := r.db.NewSelect().Model(&workers).
		Where("user_id = ?", userID).
		Order("worker_name ASC").
		Scan(ctx)
	return workers, r.HandleErrorWithID("list", "user worker", userID, err)
}

func (r *workerRepository) Upsert(ctx context.Context, worker *models.UserWorker) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(worker).
		On("CONFLICT (user_id, worker_name) DO UPDATE").
		Set("worker_level = EXCLUDED.worker_level").
		Set("worker_amount = EXCLUDED.worker_amount").
		Exec(ctx)
	return r.HandleErrorWithID("upsert", "user worker", worker.WorkerName, err)
}

func (r *workerRepository) AddAmount(ctx context.Context, userID int64, workerName string, amount int) error {
	return r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*models.UserWorker)(nil)).
			Set("worker_amount = worker_amount + ?", amount).
			Where("user_id = ?", userID).
			Where("worker_name = ?", workerName).
			Exec(ctx)
		if err != nil {
			return r.HandleErrorWithID("add_amount", "user worker", workerName, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		worker := &models.UserWorker{UserID: userID, WorkerName: workerName, WorkerLevel: 1, WorkerAmount: amount}
		_, err = tx.NewInsert().Model(worker).Exec(ctx)
		return r.HandleErrorWithID("add_amount", "user worker", workerName, err)
	})
}

func (r *workerRepository) Levels(ctx context.Context) ([]models.WorkerLevel, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var levels []models.WorkerLevel
	err := r.db.NewSelect().Model(&levels).Order("level ASC").Scan(ctx)
	return levels, r.HandleError("list", "worker level", err)
}

func (r *workerRepository) LearnLevel(ctx context.Context, level, workersRequired int) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(&models.WorkerLevel{Level: level, WorkersRequired: workersRequired}).
		On("CONFLICT (level) DO UPDATE").
		Set("workers_required = EXCLUDED.workers_required").
		Exec(ctx)
	return r.HandleErrorWithID("learn", "worker level", level, err)
}
