// Package commands is the slash and prefix command surface. The logic lives on Service
// and produces plain transport messages, the disgo handlers only translate.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// Scheduler is the part of the reminder engine the commands write through.
type Scheduler interface {
	UpsertUserReminder(ctx context.Context, p repositories.UserReminderUpsert) (*models.UserReminder, error)
	DeleteUserReminder(ctx context.Context, r *models.UserReminder) error
}

type Options struct {
	OwnerID   int64
	Version   string
	Commit    string
	StartedAt time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store     *repositories.Store
	scheduler Scheduler
	data      *gamedata.Data
	opts      Options
}

func NewService(store *repositories.Store, scheduler Scheduler, data *gamedata.Data, opts Options) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		data:      data,
		opts:      opts,
	}
}

func (s *Service) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now().UTC()
	}
	return time.Now().UTC()
}

func infoEmbed(title, description string) transport.Embed {
	return transport.Embed{Title: title, Description: description, Color: config.EmbedDefaultColor}
}

func successEmbed(description string) transport.Embed {
	return transport.Embed{Description: description, Color: config.SuccessColor}
}

// On registers the user or turns the helper back on.
func (s *Service) On(ctx context.Context, userID int64) (transport.Embed, error) {
	user, err := s.store.Users.Get(ctx, userID)
	switch {
	case repositories.IsFirstTimeUser(err):
		if _, err = s.store.Users.Insert(ctx, userID); err != nil && !errors.Is(err, repositories.ErrRecordExists) {
			return transport.Embed{}, err
		}
		return infoEmbed("Welcome!",
			"I'm now reading your IDLE FARM messages and will remind you when your commands are ready.\n\n"+
				"Use `/settings reminders` to pick what I remind you about and `/help` for everything else."), nil
	case err != nil:
		return transport.Embed{}, err
	case user.BotEnabled:
		return successEmbed("I'm already turned on for you."), nil
	}

	if err = s.store.Users.Update(ctx, userID, map[string]interface{}{"bot_enabled": true}); err != nil {
		return transport.Embed{}, err
	}
	return successEmbed("Welcome back! I'm turned on again."), nil
}

// Off keeps the user's data but stops all processing and reminders.
func (s *Service) Off(ctx context.Context, userID int64) (transport.Embed, error) {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return transport.Embed{}, err
	}
	if !user.BotEnabled {
		return successEmbed("I'm already turned off for you."), nil
	}
	if err = s.store.Users.Update(ctx, userID, map[string]interface{}{"bot_enabled": false}); err != nil {
		return transport.Embed{}, err
	}
	return successEmbed("I'm turned off now. Your settings are kept, use `/on` to turn me back on."), nil
}

// PurgeData deletes the user's reminders and every stored row of the user.
func (s *Service) PurgeData(ctx context.Context, userID int64) error {
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return err
	}
	active, err := s.store.Reminders.ListActiveUserReminders(ctx, userID, "", s.now())
	if err != nil {
		return err
	}
	for i := range active {
		if err = s.scheduler.DeleteUserReminder(ctx, &active[i]); err != nil {
			return err
		}
	}
	if err = s.store.Users.Delete(ctx, userID); err != nil {
		return err
	}
	slog.Info("User data purged",
		slog.String("type", "db"),
		slog.Int64("user_id", userID),
		slog.Int("reminders", len(active)))
	return nil
}

// AddCustomReminder stores a custom reminder in channelID after the given timestring.
func (s *Service) AddCustomReminder(ctx context.Context, userID, channelID int64, timeLeft, text string) (*models.UserReminder, error) {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := timestring.Parse(timeLeft)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, pipeline.Invalid("The reminder time has to be in the future.")
	}
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, pipeline.Invalid("Please tell me what I should remind you about.")
	case utf8.RuneCountInString(text) > config.MaxCustomReminderLen:
		return nil, pipeline.Invalid("Reminder texts can't be longer than %d characters.", config.MaxCustomReminderLen)
	}
	if !user.ReminderCustom.Enabled {
		return nil, pipeline.Invalid("Custom reminders are turned off. Turn them on with `/settings reminders`.")
	}

	return s.scheduler.UpsertUserReminder(ctx, repositories.UserReminderUpsert{
		UserID:           userID,
		Activity:         models.ActivityCustom,
		TimeLeft:         d,
		ChannelID:        channelID,
		Message:          text,
		OverwriteMessage: true,
		Now:              s.now(),
	})
}

// ReminderLines lists the active reminders of a user and of their guild, soonest first.
func (s *Service) ReminderLines(ctx context.Context, userID int64) ([]string, error) {
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return nil, err
	}
	now := s.now()
	active, err := s.store.Reminders.ListActiveUserReminders(ctx, userID, "", now)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(active)+1)
	for _, r := range active {
		lines = append(lines, reminderLine(&r, now))
	}

	clan, err := s.store.Clans.GetByMemberID(ctx, userID)
	switch {
	case repositories.IsNotFound(err):
	case err != nil:
		return nil, err
	default:
		cr, err := s.store.Reminders.GetClanReminder(ctx, clan.ClanName)
		switch {
		case repositories.IsNotFound(err):
		case err != nil:
			return nil, err
		case cr.EndTime.After(now):
			lines = append(lines, fmt.Sprintf("🏰 **Guild %s** %s", clan.ClanName, reminders.Relative(cr.EndTime)))
		}
	}
	return lines, nil
}

func reminderLine(r *models.UserReminder, now time.Time) string {
	left := timestring.Format(r.EndTime.Sub(now).Truncate(time.Second))
	switch models.ActivityFamily(r.Activity) {
	case models.ActivityCustom:
		return fmt.Sprintf("📝 **Custom #%d** `%s` %s\n> %s", r.CustomID, left, reminders.Relative(r.EndTime), r.Message)
	case models.ActivityEnergy:
		return fmt.Sprintf("⚡ **Energy %s** `%s` %s", models.ActivitySuffix(r.Activity), left, reminders.Relative(r.EndTime))
	}
	name := strings.ReplaceAll(r.Activity, "-", " ")
	return fmt.Sprintf("⏰ **%s** `%s` %s", name, left, reminders.Relative(r.EndTime))
}

// regenTime returns the energy regeneration time per unit of the user.
func (s *Service) regenTime(ctx context.Context, user *models.User) (time.Duration, error) {
	level := 0
	upgrade, err := s.store.Upgrades.Get(ctx, user.UserID, gamedata.EnergyUpgradeName)
	switch {
	case err == nil:
		level = upgrade.Level
	case !repositories.IsNotFound(err):
		return 0, err
	}
	return energy.RegenTime(s.data, user.DonorTier, level), nil
}

func onOff(enabled bool) string {
	if enabled {
		return "🟢 on"
	}
	return "🔴 off"
}

func channelMention(id int64) string {
	if id == 0 {
		return "not set"
	}
	return "<#" + strconv.FormatInt(id, 10) + ">"
}
