// Package clans keeps stored guild rosters in line with what the game shows and
// raises guild seal alerts.
package clans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// Roster is a guild as printed by the game.
type Roster struct {
	Name     string
	LeaderID int64
	Members  []int64
}

// SyncResult describes what SyncRoster changed.
type SyncResult struct {
	Clan    *models.Clan
	Created bool
	Renamed bool
	// Replaced is the older clan deleted because its leader now leads Clan.
	Replaced *models.Clan
}

type Service struct {
	store     *repositories.Store
	transport transport.Transport
	renderer  *reminders.Renderer
	data      *gamedata.Data
	now       func() time.Time
}

func NewService(store *repositories.Store, tr transport.Transport, renderer *reminders.Renderer, data *gamedata.Data) *Service {
	return &Service{
		store:     store,
		transport: tr,
		renderer:  renderer,
		data:      data,
		now:       time.Now,
	}
}

// NextReset returns the next Monday 00:00 UTC after now, when guild seals reset.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return midnight.AddDate(0, 0, days)
}

func sameMembers(a []models.ClanMember, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make([]int64, len(a))
	for i, m := range a {
		ids[i] = m.UserID
	}
	want := append([]int64(nil), b...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for i := range ids {
		if ids[i] != want[i] {
			return false
		}
	}
	return true
}

// SyncRoster reconciles the stored clan with roster. A leader can only lead one clan:
// when the leader already owns a clan under another name with the same members it is
// renamed, otherwise the older clan is deleted and its owner is told in channelID.
func (s *Service) SyncRoster(ctx context.Context, roster Roster, channelID int64) (*SyncResult, error) {
	if roster.Name == "" || roster.LeaderID == 0 {
		return nil, fmt.Errorf("incomplete guild roster: %w", repositories.ErrNoArguments)
	}

	owned, err := s.store.Clans.GetByLeaderID(ctx, roster.LeaderID)
	switch {
	case repositories.IsNotFound(err):
		owned = nil
	case err != nil:
		return nil, err
	}

	result := &SyncResult{}
	if owned != nil && owned.ClanName != roster.Name {
		_, err = s.store.Clans.GetByName(ctx, roster.Name)
		targetExists := err == nil
		if err != nil && !repositories.IsNotFound(err) {
			return nil, err
		}

		if !targetExists && sameMembers(owned.Members, roster.Members) {
			clan, err := s.store.Clans.Update(ctx, owned.ClanName, repositories.ClanUpdate{Name: roster.Name})
			if err != nil {
				return nil, err
			}
			slog.Info("Guild renamed",
				slog.String("type", "sys"),
				slog.String("from", owned.ClanName),
				slog.String("to", roster.Name))
			result.Clan, result.Renamed = clan, true
			return result, nil
		}

		clan, created, err := s.store.Clans.Replace(ctx, owned.ClanName, roster.Name, roster.LeaderID, roster.Members)
		if err != nil {
			return nil, err
		}
		result.Clan, result.Created, result.Replaced = clan, created, owned
		if err = s.notifyReplaced(ctx, owned, roster.Name, channelID); err != nil {
			return nil, err
		}
		return result, nil
	}

	clan, err := s.store.Clans.GetByName(ctx, roster.Name)
	switch {
	case repositories.IsNotFound(err):
		clan, err = s.store.Clans.Insert(ctx, roster.Name, roster.LeaderID, roster.Members)
		if err != nil {
			return nil, err
		}
		result.Clan, result.Created = clan, true
		return result, nil
	case err != nil:
		return nil, err
	}

	clan, err = s.store.Clans.Update(ctx, roster.Name, repositories.ClanUpdate{
		LeaderID: roster.LeaderID,
		Members:  roster.Members,
	})
	if err != nil {
		return nil, err
	}
	result.Clan = clan
	return result, nil
}

// notifyReplaced tells the owner of a deleted clan why it is gone.
func (s *Service) notifyReplaced(ctx context.Context, old *models.Clan, newName string, channelID int64) error {
	slog.Warn("Deleted guild whose leader now leads another guild",
		slog.String("type", "sys"),
		slog.String("deleted", old.ClanName),
		slog.String("guild", newName),
		slog.Int64("leader_id", old.LeaderID))

	if channelID == 0 {
		return nil
	}
	_, err := s.transport.Send(ctx, channelID, transport.OutgoingMessage{
		Content: fmt.Sprintf("%s Your guild **%s** was removed from my records because you now lead **%s**. "+
			"Its guild settings were reset.", reminders.Mention(old.LeaderID), old.ClanName, newName),
		AllowedMentions: transport.AllowedMentions{Users: true},
	})
	if err != nil && !errors.Is(err, transport.ErrForbidden) {
		return err
	}
	return nil
}

// Contribution is the outcome of AddContribution.
type Contribution struct {
	Before int
	After  int
	// Buff is set when the contribution crossed a guild seal threshold.
	Buff    *gamedata.GuildBuff
	Alerted bool
}

// AddContribution adds seals for a member and sends the guild alert when a buff
// threshold is crossed.
func (s *Service) AddContribution(ctx context.Context, clan *models.Clan, userID int64, seals int, channelID int64) (*Contribution, error) {
	before, after, err := s.store.Clans.AddContribution(ctx, clan.ClanName, userID, seals)
	if err != nil {
		return nil, err
	}
	result := &Contribution{Before: before, After: after}

	buff, ok := s.data.CrossedGuildBuff(before, after)
	if !ok {
		return result, nil
	}
	result.Buff = &buff
	if !clan.AlertContributionEnabled {
		return result, nil
	}

	target := clan.ReminderChannelID
	if target == 0 {
		target = channelID
	}
	msg := s.renderer.RenderClanBuff(clan, buff, after, NextReset(s.now()))
	if _, err = s.transport.Send(ctx, target, msg); err != nil {
		if errors.Is(err, transport.ErrForbidden) {
			return result, nil
		}
		return result, err
	}
	result.Alerted = true
	slog.Info("Guild seal threshold reached",
		slog.String("type", "sys"),
		slog.String("guild", clan.ClanName),
		slog.String("buff", buff.Name),
		slog.Int("total", after))
	return result, nil
}
