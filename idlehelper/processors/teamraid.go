package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/raid"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var teamraidCommand = command("teamraid")

type teamraidProcessor struct{ *Deps }

func (p *teamraidProcessor) Name() string { return "teamraid" }

func (p *teamraidProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if strings.Contains(msg.EmbedText(), "teamraid completed") {
		return p.completed(ctx, msg)
	}
	if !msg.IsEvent("teamraid") && !pipeline.IsTeamraidLayout(msg) {
		return false, nil
	}

	participants := mentions(teammatesField(msg))
	touched := false
	var clan *models.Clan
	for _, id := range participants {
		user, err := p.Store.Users.Get(ctx, id)
		if err != nil {
			if repositories.IsFirstTimeUser(err) || repositories.IsNotFound(err) {
				continue
			}
			return touched, err
		}
		if !user.BotEnabled {
			continue
		}
		if err = p.changeEnergy(ctx, user, -config.TeamraidEnergyCost); err != nil {
			return touched, err
		}
		touched = true
		if msg.User == nil {
			msg.User = user
		}
		if clan == nil {
			found, err := p.Store.Clans.GetByMemberID(ctx, id)
			if err != nil && !repositories.IsNotFound(err) {
				return touched, err
			}
			clan = found
		}
	}

	if clan != nil && clan.HelperTeamraidEnabled && msg.Message.ActiveComponents() > 0 {
		p.goFn(func() {
			p.follow(context.WithoutCancel(ctx), msg)
		})
	}
	return touched, nil
}

// completed schedules the next teamraid reminder of the player's guild.
func (p *teamraidProcessor) completed(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: teamraidCommand})
	if err != nil {
		return false, err
	}
	clan, err := p.Store.Clans.GetByMemberID(ctx, user.UserID)
	if err != nil {
		return false, err
	}
	if !clan.ReminderEnabled {
		return false, nil
	}
	msg.User = user

	channelID := clan.ReminderChannelID
	if channelID == 0 {
		channelID = msg.Message.ChannelID
	}
	timeLeft := p.untilMidnight(p.now()) + time.Duration(clan.ReminderOffsetHours*float64(time.Hour))
	if _, err = p.Scheduler.UpsertClanReminder(ctx, clan.ClanName, timeLeft, channelID, clan.ReminderMessage); err != nil {
		return false, fmt.Errorf("upsert clan reminder: %w", err)
	}
	return true, nil
}

// teammatesField returns the field listing the players and their workers.
func teammatesField(msg *pipeline.ParsedMessage) string {
	for i := 0; i < msg.FieldCount && i < pipeline.MaxFields; i++ {
		if mentionRe.MatchString(msg.Fields[i].Value) {
			return msg.Fields[i].Value
		}
	}
	return msg.Fields[1].Value
}

// TeamWorkers reads the workers teammates can still send. Each teammate line holds
// a mention followed by bold worker names; used workers are struck through instead.
func (p *teamraidProcessor) TeamWorkers(ctx context.Context, value string) ([]raid.TeamWorker, error) {
	var team []raid.TeamWorker
	for _, line := range strings.Split(value, "\n") {
		ids := mentions(line)
		if len(ids) == 0 {
			continue
		}
		levels, err := p.workerLevels(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		for _, match := range boldTextRe.FindAllStringSubmatch(line, -1) {
			w, ok := p.Data.Worker(match[1])
			if !ok {
				continue
			}
			level := levels[w.Name]
			if level == 0 {
				level = 1
			}
			team = append(team, raid.TeamWorker{UserID: ids[0], Name: w.Name, Power: raid.WorkerPower(w, level)})
		}
	}
	return team, nil
}

func (p *teamraidProcessor) workerLevels(ctx context.Context, userID int64) (map[string]int, error) {
	workers, err := p.Store.Workers.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	levels := make(map[string]int, len(workers))
	for _, w := range workers {
		levels[w.WorkerName] = w.WorkerLevel
	}
	return levels, nil
}

func (p *teamraidProcessor) recommend(ctx context.Context, msg *pipeline.ParsedMessage) (string, error) {
	farms := ParseFarms(farmsField(msg))
	var target raid.Defender
	alive := false
	for _, d := range farms.Defenders {
		if d.HP > 0 {
			target, alive = d, true
			break
		}
	}
	if !alive {
		return "**Teamraid helper**\nEvery farm is down.", nil
	}

	team, err := p.TeamWorkers(ctx, teammatesField(msg))
	if err != nil {
		return "", err
	}
	w, ok := raid.Recommend(target, team)
	if !ok {
		return fmt.Sprintf("**Teamraid helper**\nNo combination of your workers can beat the **%s** farm.", target.Name), nil
	}
	emoji := ""
	if gw, ok := p.Data.Worker(w.Name); ok {
		emoji = gw.Emoji + " "
	}
	return fmt.Sprintf("**Teamraid helper**\nNext: <@%d> with %s**%s**", w.UserID, emoji, w.Name), nil
}

// follow posts a recommendation and refreshes it after every turn of the teamraid.
func (p *teamraidProcessor) follow(ctx context.Context, msg *pipeline.ParsedMessage) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	content, err := p.recommend(ctx, msg)
	if err != nil {
		slog.Error("Teamraid helper failed", slog.String("type", "message"), slog.Any("error", err))
		return
	}
	helper, err := p.reply(ctx, msg, transport.OutgoingMessage{Content: content})
	if err != nil || helper == nil {
		if err != nil {
			p.logSendError(err)
		}
		return
	}

	current := msg.Message
	for current.ActiveComponents() > 0 {
		edited, err := p.Transport.WaitForEdit(ctx, current.ChannelID, current.ID, func(*transport.Message) bool { return true })
		if err != nil {
			if isFollowTimeout(err) {
				p.finishTimedOut(ctx, helper, content)
				return
			}
			slog.Warn("Teamraid follow stopped", slog.String("type", "message"), slog.Any("error", err))
			return
		}
		current = edited
		if current.ActiveComponents() == 0 {
			return
		}
		if content, err = p.recommend(ctx, pipeline.Parse(current)); err != nil {
			slog.Error("Teamraid helper failed", slog.String("type", "message"), slog.Any("error", err))
			return
		}
		if _, err = p.Transport.Edit(ctx, helper.ChannelID, helper.ID, transport.OutgoingMessage{Content: content}); err != nil {
			if !errors.Is(err, transport.ErrForbidden) {
				p.logSendError(err)
			}
			return
		}
	}
}
