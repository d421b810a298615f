package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

const (
	TrackingRaidGained   = "raid-points-gained"
	TrackingRaidLost     = "raid-points-lost"
	TrackingWorkerPrefix = "worker-"
)

type TrackingRepository interface {
	InsertEntry(ctx context.Context, userID, guildID int64, text string, dateTime time.Time, amount int64) error
	InsertSummary(ctx context.Context, userID, guildID int64, text string, dayEnd time.Time, amount int64) error
	Report(ctx context.Context, userID int64, timeframe time.Duration, guildID int64, now time.Time) (*models.LogReport, error)
	// Consolidate folds single entries older than the consolidation horizon into daily
	// summaries and deletes everything past retention.
	Consolidate(ctx context.Context, now time.Time) (summarized int, deleted int64, err error)
}

type trackingRepository struct {
	*BaseRepository
}

func NewTrackingRepository(db *bun.DB) TrackingRepository {
	return &trackingRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *trackingRepository) InsertEntry(ctx context.Context, userID, guildID int64, text string, dateTime time.Time, amount int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	entry := &models.TrackingLog{
		UserID:    userID,
		GuildID:   guildID,
		Text:      text,
		Amount:    amount,
		DateTime:  UTC(dateTime),
		EntryType: models.EntryTypeSingle,
	}
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return r.HandleErrorWithID("insert", "tracking entry", text, err)
}

func (r *trackingRepository) InsertSummary(ctx context.Context, userID, guildID int64, text string, dayEnd time.Time, amount int64) error {
	return r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		return insertSummary(ctx, tx, userID, guildID, text, dayEnd, amount)
	})
}

func insertSummary(ctx context.Context, tx bun.Tx, userID, guildID int64, text string, dayEnd time.Time, amount int64) error {
	dayEnd = UTC(dayEnd)
	res, err := tx.NewUpdate().Model((*models.TrackingLog)(nil)).
		Set("amount = amount + ?", amount).
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Where("text = ?", text).
		Where("date_time = ?", dayEnd).
		Where("entry_type = ?", models.EntryTypeSummary).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.NewInsert().Model(&models.TrackingLog{
		UserID:    userID,
		GuildID:   guildID,
		Text:      text,
		Amount:    amount,
		DateTime:  dayEnd,
		EntryType: models.EntryTypeSummary,
	}).Exec(ctx)
	return err
}

type reportRow struct {
	Text   string `bun:"text"`
	Total  int64  `bun:"total"`
	Single int64  `bun:"singles"`
}

func (r *trackingRepository) Report(ctx context.Context, userID int64, timeframe time.Duration, guildID int64, now time.Time) (*models.LogReport, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rows []reportRow
	q := r.db.NewSelect().Model((*models.TrackingLog)(nil)).
		ColumnExpr("text").
		ColumnExpr("SUM(amount) AS total").
		ColumnExpr("SUM(CASE WHEN entry_type = ? THEN 1 ELSE 0 END) AS singles", models.EntryTypeSingle).
		Where("user_id = ?", userID).
		Where("date_time >= ?", UTC(now.Add(-timeframe))).
		Group("text")
	if guildID != 0 {
		q = q.Where("guild_id = ?", guildID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, r.HandleErrorWithID("report", "tracking", userID, err)
	}

	report := &models.LogReport{
		UserID:    userID,
		Timeframe: timeframe,
		Counts:    make(map[string]int64),
		Workers:   make(map[string]int64),
	}
	for _, row := range rows {
		switch {
		case row.Text == TrackingRaidGained:
			report.RaidGained += row.Total
			report.RaidCount += row.Single
		case row.Text == TrackingRaidLost:
			report.RaidLost += row.Total
			report.RaidCount += row.Single
		case strings.HasPrefix(row.Text, TrackingWorkerPrefix):
			report.Workers[strings.TrimPrefix(row.Text, TrackingWorkerPrefix)] += row.Total
		default:
			report.Counts[row.Text] += row.Total
		}
	}
	// summaries do not keep individual raids
	if timeframe > config.ConsolidationHorizon {
		report.RaidCount = -1
	}
	return report, nil
}

type consolidationKey struct {
	userID  int64
	guildID int64
	text    string
	dayEnd  time.Time
}

func (r *trackingRepository) Consolidate(ctx context.Context, now time.Time) (int, int64, error) {
	cutoff := UTC(now.Add(-config.ConsolidationHorizon))
	retention := UTC(now.Add(-config.RetentionHorizon))

	var summarized int
	var deleted int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var entries []models.TrackingLog
		err := tx.NewSelect().Model(&entries).
			Where("entry_type = ?", models.EntryTypeSingle).
			Where("date_time < ?", cutoff).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		sums := make(map[consolidationKey]int64)
		order := make([]consolidationKey, 0)
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			key := consolidationKey{e.UserID, e.GuildID, e.Text, DayEnd(e.DateTime)}
			if _, ok := sums[key]; !ok {
				order = append(order, key)
			}
			sums[key] += e.Amount
			ids = append(ids, e.ID)
		}

		for _, key := range order {
			if err = insertSummary(ctx, tx, key.userID, key.guildID, key.text, key.dayEnd, sums[key]); err != nil {
				return err
			}
		}
		for start := 0; start < len(ids); start += 500 {
			end := min(start+500, len(ids))
			if _, err = tx.NewDelete().Model((*models.TrackingLog)(nil)).
				Where("id IN (?)", bun.In(ids[start:end])).
				Exec(ctx); err != nil {
				return err
			}
		}
		summarized = len(order)

		res, err := tx.NewDelete().Model((*models.TrackingLog)(nil)).
			Where("date_time < ?", retention).
			Exec(ctx)
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, 0, r.HandleError("consolidate", "tracking", err)
	}
	return summarized, deleted, nil
}

// DayEnd returns the last second of t's UTC day.
func DayEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}
