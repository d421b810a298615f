// Package processors holds one pipeline.Processor per family of game messages.
package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// Scheduler is the part of the reminder engine the processors write through.
type Scheduler interface {
	UpsertUserReminder(ctx context.Context, p repositories.UserReminderUpsert) (*models.UserReminder, error)
	UpsertClanReminder(ctx context.Context, clanName string, timeLeft time.Duration, channelID int64, message string) (*models.ClanReminder, error)
	RescheduleUserReminder(ctx context.Context, r *models.UserReminder, endTime time.Time) error
	DeleteUserReminder(ctx context.Context, r *models.UserReminder) error
}

// Deps is shared by every processor.
type Deps struct {
	Store     *repositories.Store
	Scheduler Scheduler
	Transport transport.Transport
	Resolver  *pipeline.Resolver
	Data      *gamedata.Data
	Clans     *clans.Service

	// Now defaults to time.Now.
	Now func() time.Time
	// Jitter defaults to a random duration in [config.JitterMin, config.JitterMax].
	Jitter func() time.Duration
	// Go runs the long lived follow-ups (prompts, raid helpers). Defaults to a goroutine.
	Go func(func())
	// InteractionTimeout bounds prompts and edit follow loops.
	InteractionTimeout time.Duration
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deps) jitter() time.Duration {
	if d.Jitter != nil {
		return d.Jitter()
	}
	spread := config.JitterMax - config.JitterMin + time.Second
	return (config.JitterMin + rand.N(spread)).Truncate(time.Second)
}

func (d *Deps) goFn(fn func()) {
	if d.Go != nil {
		d.Go(fn)
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Processor follow-up panic", slog.String("type", "message"), slog.Any("panic", r))
			}
		}()
		fn()
	}()
}

func (d *Deps) timeout() time.Duration {
	if d.InteractionTimeout > 0 {
		return d.InteractionTimeout
	}
	return config.InteractionTimeout
}

// All returns every processor in the order the pipeline runs them.
func All(d *Deps) []pipeline.Processor {
	return []pipeline.Processor{
		&claimProcessor{d},
		&dailyProcessor{d},
		&shopProcessor{d},
		&raidProcessor{d},
		&teamraidProcessor{d},
		&workerRollProcessor{d},
		&workerStatsProcessor{d},
		&lootboxProcessor{d},
		&paydayProcessor{d},
		&upgradesProcessor{d},
		&eventsProcessor{d},
		&donateProcessor{d},
		&halloweenProcessor{d},
		&xmasProcessor{d},
		&boostsProcessor{d},
		&voteProcessor{d},
		&requestProcessor{d},
		&inventoryProcessor{d},
		&activityListProcessor{d},
		&useItemProcessor{d},
		&buyItemProcessor{d},
		&minieventProcessor{d},
		&clanOverviewProcessor{d},
		&contributionProcessor{d},
	}
}

var (
	boldNumberRe = regexp.MustCompile(`\*\*([\d,]+)\*\*`)
	boldTextRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mentionRe    = regexp.MustCompile(`<@!?(\d+)>`)
)

// command builds the cache regex for a game command typed as "<prefix> <name>" or
// as a slash command.
func command(names ...string) *regexp.Regexp {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)^\s*(?:idle\s+|/)(?:` + strings.Join(quoted, "|") + `)\b`)
}

func parseNumber(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 10, 64)
	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	return f, err == nil
}

func boldNumber(text string) (int64, bool) {
	match := boldNumberRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	return parseNumber(match[1])
}

func mentions(text string) []int64 {
	var ids []int64
	seen := make(map[int64]struct{})
	for _, match := range mentionRe.FindAllStringSubmatch(text, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// playerQuery resolves the player through the author name when everything else fails.
func playerQuery(msg *pipeline.ParsedMessage, cmd *regexp.Regexp) pipeline.UserQuery {
	return pipeline.UserQuery{Command: cmd, Name: msg.AuthorPlayer()}
}

// reminderChannel is where a user's reminders go: their configured channel or the
// channel the game answered in.
func reminderChannel(user *models.User, msg *pipeline.ParsedMessage) int64 {
	if user.ReminderChannelID != 0 {
		return user.ReminderChannelID
	}
	return msg.Message.ChannelID
}

// upsert stores a reminder for activity when the user enabled that reminder type.
// It reports whether a reminder was written.
func (d *Deps) upsert(ctx context.Context, user *models.User, msg *pipeline.ParsedMessage, activity string, timeLeft time.Duration) (bool, error) {
	setting, ok := user.ReminderFor(activity)
	if !ok || !setting.Enabled {
		return false, nil
	}
	_, err := d.Scheduler.UpsertUserReminder(ctx, repositories.UserReminderUpsert{
		UserID:           user.UserID,
		Activity:         activity,
		TimeLeft:         timeLeft,
		ChannelID:        reminderChannel(user, msg),
		Message:          setting.Message,
		OverwriteMessage: true,
		Now:              d.now(),
	})
	if err != nil {
		return false, fmt.Errorf("upsert %s reminder: %w", activity, err)
	}
	return true, nil
}

// deleteReminder removes the user's reminder for activity if there is one.
func (d *Deps) deleteReminder(ctx context.Context, userID int64, activity string) (bool, error) {
	r, err := d.Store.Reminders.GetUserReminder(ctx, userID, activity, 0)
	if repositories.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err = d.Scheduler.DeleteUserReminder(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

// track writes a tracking entry when the user opted into tracking.
func (d *Deps) track(ctx context.Context, user *models.User, msg *pipeline.ParsedMessage, text string, amount int64) error {
	if !user.TrackingEnabled {
		return nil
	}
	return d.Store.Tracking.InsertEntry(ctx, user.UserID, msg.Message.GuildID, text, d.now(), amount)
}

// regenTime returns the user's energy regeneration time per unit.
func (d *Deps) regenTime(ctx context.Context, user *models.User) (time.Duration, error) {
	level := 0
	upgrade, err := d.Store.Upgrades.Get(ctx, user.UserID, gamedata.EnergyUpgradeName)
	switch {
	case err == nil:
		level = upgrade.Level
	case !repositories.IsNotFound(err):
		return 0, err
	}
	return energy.RegenTime(d.Data, user.DonorTier, level), nil
}

// changeEnergy adds delta energy (negative to spend) to the user and moves any
// pending energy reminders accordingly.
func (d *Deps) changeEnergy(ctx context.Context, user *models.User, delta float64) error {
	regen, err := d.regenTime(ctx, user)
	if err != nil {
		return err
	}
	now := d.now()
	fullTime := energy.Change(user.EnergyFullTime, now, regen, delta)
	if fullTime.Equal(user.EnergyFullTime) {
		return nil
	}
	if err = d.Store.Users.Update(ctx, user.UserID, map[string]interface{}{"energy_full_time": fullTime}); err != nil {
		return err
	}
	user.EnergyFullTime = fullTime

	pending, err := d.Store.Reminders.ListActiveUserReminders(ctx, user.UserID, models.ActivityEnergy, now)
	if err != nil {
		return err
	}
	for i := range pending {
		target, ok := energy.ReminderTarget(pending[i].Activity)
		if !ok {
			continue
		}
		end, err := energy.ReminderEnd(target, user.EnergyMax, fullTime, now, regen)
		if errors.Is(err, energy.ErrFullTimeOutdated) {
			continue
		}
		if err != nil {
			return err
		}
		if err = d.Scheduler.RescheduleUserReminder(ctx, &pending[i], end); err != nil {
			return err
		}
	}
	return nil
}

// untilMidnight is the time left until the next daily reset plus jitter.
func (d *Deps) untilMidnight(now time.Time) time.Duration {
	return reminders.NextMidnight(now).Sub(now) + d.jitter()
}

// TimedOutMarker is appended to a helper message once it stops following its game message.
const TimedOutMarker = "\n\n*Timed out*"

// finishTimedOut rewrites a followed helper message with the timed out marker. ctx may
// already be past its deadline, so the edit runs on a fresh one.
func (d *Deps) finishTimedOut(ctx context.Context, helper *transport.Message, content string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.CommandExecutionTimeout)
	defer cancel()
	_, err := d.Transport.Edit(ctx, helper.ChannelID, helper.ID, transport.OutgoingMessage{Content: content + TimedOutMarker})
	if err != nil && !errors.Is(err, transport.ErrForbidden) {
		d.logSendError(err)
	}
}

func isFollowTimeout(err error) bool {
	return errors.Is(err, transport.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func (d *Deps) logSendError(err error) {
	slog.Warn("Failed to send helper message", slog.String("type", "message"), slog.Any("error", err))
}

// reply answers msg in its channel. Forbidden sends are dropped.
func (d *Deps) reply(ctx context.Context, msg *pipeline.ParsedMessage, out transport.OutgoingMessage) (*transport.Message, error) {
	out.ReplyTo = msg.Message.ID
	sent, err := d.Transport.Send(ctx, msg.Message.ChannelID, out)
	if errors.Is(err, transport.ErrForbidden) {
		return nil, nil
	}
	return sent, err
}
