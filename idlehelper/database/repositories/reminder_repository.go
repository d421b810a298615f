package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

// UserReminderUpsert carries the arguments of a user reminder upsert.
type UserReminderUpsert struct {
	UserID           int64
	Activity         string
	TimeLeft         time.Duration
	ChannelID        int64
	Message          string
	OverwriteMessage bool
	Now              time.Time
}

type ReminderRepository interface {
	GetUserReminder(ctx context.Context, userID int64, activity string, customID int) (*models.UserReminder, error)
	GetClanReminder(ctx context.Context, clanName string) (*models.ClanReminder, error)
	// ListActiveUserReminders lists reminders ending after now. userID 0 lists all users,
	// an empty prefix lists every activity.
	ListActiveUserReminders(ctx context.Context, userID int64, activityPrefix string, now time.Time) ([]models.UserReminder, error)
	ListDueUserReminders(ctx context.Context, from, to time.Time) ([]models.UserReminder, error)
	ListDueClanReminders(ctx context.Context, from, to time.Time) ([]models.ClanReminder, error)
	ListExpiredUserReminders(ctx context.Context, before time.Time) ([]models.UserReminder, error)
	ListExpiredClanReminders(ctx context.Context, before time.Time) ([]models.ClanReminder, error)
	UpsertUserReminder(ctx context.Context, p UserReminderUpsert) (*models.UserReminder, error)
	UpsertClanReminder(ctx context.Context, clanName string, timeLeft time.Duration, channelID int64, message string, now time.Time) (*models.ClanReminder, error)
	UpdateUserReminderEndTime(ctx context.Context, r *models.UserReminder, endTime, now time.Time) error
	// MarkUserReminderTriggered flags a due reminder as handed to the scheduler. It
	// reports false when the row was moved or already triggered since it was listed.
	MarkUserReminderTriggered(ctx context.Context, r *models.UserReminder) (bool, error)
	MarkClanReminderTriggered(ctx context.Context, r *models.ClanReminder) (bool, error)
	DeleteUserReminder(ctx context.Context, r *models.UserReminder) error
	DeleteClanReminder(ctx context.Context, r *models.ClanReminder) error
	// ResetTriggered clears the triggered flag of reminders still ahead of now so a
	// fresh scheduler picks them up again.
	ResetTriggered(ctx context.Context, now time.Time) (int64, error)
}

type reminderRepository struct {
	*BaseRepository
}

func NewReminderRepository(db *bun.DB) ReminderRepository {
	return &reminderRepository{BaseRepository: NewBaseRepository(db)}
}

// IsTriggered reports whether end falls inside the due window as seen from now.
func IsTriggered(end, now time.Time) bool {
	return end.Sub(now) <= config.DueWindow
}

func (r *reminderRepository) GetUserReminder(ctx context.Context, userID int64, activity string, customID int) (*models.UserReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	reminder := new(models.UserReminder)
	err := r.db.NewSelect().Model(reminder).
		Where("user_id = ?", userID).
		Where("activity = ?", activity).
		Where("custom_id = ?", customID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "user reminder", activity, err)
	}
	return reminder, nil
}

func (r *reminderRepository) GetClanReminder(ctx context.Context, clanName string) (*models.ClanReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	reminder := new(models.ClanReminder)
	if err := r.db.NewSelect().Model(reminder).Where("clan_name = ?", clanName).Scan(ctx); err != nil {
		return nil, r.HandleErrorWithID("get", "clan reminder", clanName, err)
	}
	return reminder, nil
}

func (r *reminderRepository) ListActiveUserReminders(ctx context.Context, userID int64, activityPrefix string, now time.Time) ([]models.UserReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var reminders []models.UserReminder
	q := r.db.NewSelect().Model(&reminders).
		Where("end_time > ?", UTC(now)).
		Order("end_time ASC")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if activityPrefix != "" {
		q = q.Where("activity LIKE ?", activityPrefix+"%")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, r.HandleError("list_active", "user reminder", err)
	}
	return reminders, nil
}

// ListDueUserReminders lists untriggered reminders with end_time in (from, to].
func (r *reminderRepository) ListDueUserReminders(ctx context.Context, from, to time.Time) ([]models.UserReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var reminders []models.UserReminder
	err := r.db.NewSelect().Model(&reminders).
		Where("triggered = ?", false).
		Where("end_time > ?", UTC(from)).
		Where("end_time <= ?", UTC(to)).
		Order("end_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_due", "user reminder", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListDueClanReminders(ctx context.Context, from, to time.Time) ([]models.ClanReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var reminders []models.ClanReminder
	err := r.db.NewSelect().Model(&reminders).
		Where("triggered = ?", false).
		Where("end_time > ?", UTC(from)).
		Where("end_time <= ?", UTC(to)).
		Order("end_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_due", "clan reminder", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListExpiredUserReminders(ctx context.Context, before time.Time) ([]models.UserReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var reminders []models.UserReminder
	if err := r.db.NewSelect().Model(&reminders).Where("end_time < ?", UTC(before)).Scan(ctx); err != nil {
		return nil, r.HandleError("list_expired", "user reminder", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListExpiredClanReminders(ctx context.Context, before time.Time) ([]models.ClanReminder, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var reminders []models.ClanReminder
	if err := r.db.NewSelect().Model(&reminders).Where("end_time < ?", UTC(before)).Scan(ctx); err != nil {
		return nil, r.HandleError("list_expired", "clan reminder", err)
	}
	return reminders, nil
}

// UpsertUserReminder updates the reminder with the same composite key or inserts a new one.
// Custom reminders always get a new row with the smallest free custom id.
func (r *reminderRepository) UpsertUserReminder(ctx context.Context, p UserReminderUpsert) (*models.UserReminder, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	end := UTC(now.Add(p.TimeLeft))

	reminder := &models.UserReminder{
		UserID:    p.UserID,
		Activity:  p.Activity,
		ChannelID: p.ChannelID,
		EndTime:   end,
		Message:   p.Message,
		Triggered: IsTriggered(end, now),
	}

	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if p.Activity == models.ActivityCustom {
			id, err := nextCustomID(ctx, tx, p.UserID)
			if err != nil {
				return err
			}
			reminder.CustomID = id
			_, err = tx.NewInsert().Model(reminder).Exec(ctx)
			return err
		}

		existing := new(models.UserReminder)
		err := tx.NewSelect().Model(existing).
			Where("user_id = ?", p.UserID).
			Where("activity = ?", p.Activity).
			Where("custom_id = 0").
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.NewInsert().Model(reminder).Exec(ctx)
			return err
		case err != nil:
			return err
		}

		if !p.OverwriteMessage {
			reminder.Message = existing.Message
		}
		_, err = tx.NewUpdate().Model(reminder).
			Column("channel_id", "end_time", "message", "triggered").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, r.HandleErrorWithID("upsert", "user reminder", p.Activity, err)
	}
	return reminder, nil
}

func nextCustomID(ctx context.Context, tx bun.Tx, userID int64) (int, error) {
	var used []int
	err := tx.NewSelect().Model((*models.UserReminder)(nil)).
		Column("custom_id").
		Where("user_id = ?", userID).
		Where("activity = ?", models.ActivityCustom).
		Order("custom_id ASC").
		Scan(ctx, &used)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, id := range used {
		if id == next {
			next++
		} else if id > next {
			break
		}
	}
	return next, nil
}

func (r *reminderRepository) UpsertClanReminder(ctx context.Context, clanName string, timeLeft time.Duration, channelID int64, message string, now time.Time) (*models.ClanReminder, error) {
	if now.IsZero() {
		now = time.Now()
	}
	end := UTC(now.Add(timeLeft))
	reminder := &models.ClanReminder{
		ClanName:  clanName,
		ChannelID: channelID,
		EndTime:   end,
		Message:   message,
		Triggered: IsTriggered(end, now),
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(reminder).
		On("CONFLICT (clan_name) DO UPDATE").
		Set("channel_id = EXCLUDED.channel_id").
		Set("end_time = EXCLUDED.end_time").
		Set("message = EXCLUDED.message").
		Set("triggered = EXCLUDED.triggered").
		Exec(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("upsert", "clan reminder", clanName, err)
	}
	return reminder, nil
}

// UpdateUserReminderEndTime moves a reminder and recomputes its triggered flag.
func (r *reminderRepository) UpdateUserReminderEndTime(ctx context.Context, reminder *models.UserReminder, endTime, now time.Time) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	reminder.EndTime = UTC(endTime)
	reminder.Triggered = IsTriggered(reminder.EndTime, now)
	res, err := r.db.NewUpdate().Model(reminder).
		Column("end_time", "triggered").
		WherePK().
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("update_end_time", "user reminder", reminder.Activity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Entity: "user reminder", ID: reminder.Activity}
	}
	return nil
}

func (r *reminderRepository) MarkUserReminderTriggered(ctx context.Context, reminder *models.UserReminder) (bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().Model(reminder).
		Set("triggered = ?", true).
		WherePK().
		Where("triggered = ?", false).
		Where("end_time = ?", UTC(reminder.EndTime)).
		Exec(ctx)
	if err != nil {
		return false, r.HandleErrorWithID("mark_triggered", "user reminder", reminder.Activity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	reminder.Triggered = true
	return true, nil
}

func (r *reminderRepository) MarkClanReminderTriggered(ctx context.Context, reminder *models.ClanReminder) (bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().Model(reminder).
		Set("triggered = ?", true).
		WherePK().
		Where("triggered = ?", false).
		Where("end_time = ?", UTC(reminder.EndTime)).
		Exec(ctx)
	if err != nil {
		return false, r.HandleErrorWithID("mark_triggered", "clan reminder", reminder.ClanName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	reminder.Triggered = true
	return true, nil
}

func (r *reminderRepository) DeleteUserReminder(ctx context.Context, reminder *models.UserReminder) error {
	_, err := r.db.NewDelete().Model(reminder).WherePK().Exec(ctx)
	return r.HandleErrorWithID("delete", "user reminder", reminder.Activity, err)
}

func (r *reminderRepository) DeleteClanReminder(ctx context.Context, reminder *models.ClanReminder) error {
	_, err := r.db.NewDelete().Model(reminder).WherePK().Exec(ctx)
	return r.HandleErrorWithID("delete", "clan reminder", reminder.ClanName, err)
}

func (r *reminderRepository) ResetTriggered(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{(*models.UserReminder)(nil), (*models.ClanReminder)(nil)} {
			res, err := tx.NewUpdate().Model(model).
				Set("triggered = ?", false).
				Where("triggered = ?", true).
				Where("end_time > ?", UTC(now)).
				Exec(ctx)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	return total, r.HandleError("reset_triggered", "reminder", err)
}
