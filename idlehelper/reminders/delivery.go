package reminders

import (
	"context"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/logger"
)

// sleepUntil returns ctx.Err() when cancelled before t.
func (e *Engine) sleepUntil(ctx context.Context, t time.Time) error {
	wait := t.Sub(e.now())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliverUser sends a user reminder at its end time. The row is read again after
// sleeping; a moved reminder is followed, a deleted one is dropped.
func (e *Engine) deliverUser(ctx context.Context, r *models.UserReminder) error {
	for {
		user, err := e.store.Users.Get(ctx, r.UserID)
		if repositories.IsFirstTimeUser(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !user.BotEnabled {
			return nil
		}

		channelID := r.ChannelID
		if user.ReminderChannelID != 0 {
			channelID = user.ReminderChannelID
		}
		name := ""
		if member, err := e.transport.FetchUser(ctx, r.UserID); err == nil {
			name = member.Display()
		}
		msg := e.renderer.RenderUser(user, r, name)

		if err = e.sleepUntil(ctx, r.EndTime); err != nil {
			return err
		}

		current, err := e.store.Reminders.GetUserReminder(ctx, r.UserID, r.Activity, r.CustomID)
		if repositories.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.EndTime.Equal(r.EndTime) || current.Message != r.Message || current.ChannelID != r.ChannelID {
			if !current.Triggered {
				return nil
			}
			r = current
			continue
		}

		if _, err = e.transport.Send(ctx, channelID, msg); err != nil {
			return err
		}
		logger.LogReminder("Reminder delivered",
			"task", r.TaskName(),
			"channel_id", channelID)
		return nil
	}
}

func (e *Engine) deliverClan(ctx context.Context, r *models.ClanReminder) error {
	for {
		clan, err := e.store.Clans.GetByName(ctx, r.ClanName)
		if repositories.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		channelID := clan.ReminderChannelID
		if channelID == 0 {
			channelID = r.ChannelID
		}
		if channelID == 0 || !clan.ReminderEnabled {
			return nil
		}
		msg := e.renderer.RenderClan(clan, r)

		if err = e.sleepUntil(ctx, r.EndTime); err != nil {
			return err
		}

		current, err := e.store.Reminders.GetClanReminder(ctx, r.ClanName)
		if repositories.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.EndTime.Equal(r.EndTime) || current.Message != r.Message {
			if !current.Triggered {
				return nil
			}
			r = current
			continue
		}

		if _, err = e.transport.Send(ctx, channelID, msg); err != nil {
			return err
		}
		logger.LogReminder("Guild reminder delivered",
			"task", r.TaskName(),
			"channel_id", channelID)
		return nil
	}
}
