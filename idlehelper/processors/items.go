package processors

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	useCommand = command("use")
	restoredRe = regexp.MustCompile(`(?i)restored\s+\*\*([\d,]+)\*\*`)
)

type useItemProcessor struct{ *Deps }

func (p *useItemProcessor) Name() string { return "use-item" }

func (p *useItemProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.Content.Contains("used") {
		return false, nil
	}
	switch {
	case msg.Content.Contains("time speeder"):
		return p.timeItem(ctx, msg, "time_speeders_used")
	case msg.Content.Contains("time compressor"):
		return p.timeItem(ctx, msg, "time_compressors_used")
	case msg.Content.Contains("energy"):
		return p.energyItem(ctx, msg)
	}
	return false, nil
}

func (p *useItemProcessor) user(ctx context.Context, msg *pipeline.ParsedMessage) (*models.User, error) {
	q := pipeline.UserQuery{Command: useCommand}
	if match := boldTextRe.FindStringSubmatch(msg.Content.Raw); match != nil {
		q.Name = match[1]
	}
	return p.Resolver.User(ctx, msg, q)
}

func (p *useItemProcessor) energyItem(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	amount, ok := p.restoredAmount(ctx, msg)
	if !ok {
		return false, nil
	}
	user, err := p.user(ctx, msg)
	if err != nil {
		return false, err
	}
	msg.User = user

	if err = p.changeEnergy(ctx, user, float64(amount)); err != nil {
		return false, err
	}
	if user.HelperContextEnabled {
		p.suggestEnergy(ctx, msg, user)
	}
	return true, nil
}

// restoredAmount prefers the amount printed by the game and falls back to the item
// table scaled by the running mini event.
func (p *useItemProcessor) restoredAmount(ctx context.Context, msg *pipeline.ParsedMessage) (int, bool) {
	if match := restoredRe.FindStringSubmatch(msg.Content.Raw); match != nil {
		if n, ok := parseNumber(match[1]); ok {
			return int(n), true
		}
	}
	for _, item := range p.Data.EnergyItems {
		if !msg.Content.Contains(item.Name) {
			continue
		}
		mult, err := p.Store.Settings.MinieventEnergyMultiplier(ctx)
		if err != nil {
			mult = 1
		}
		return energy.Restored(item.Amount, mult), true
	}
	return 0, false
}

func (p *useItemProcessor) suggestEnergy(ctx context.Context, msg *pipeline.ParsedMessage, user *models.User) {
	regen, err := p.regenTime(ctx, user)
	if err != nil {
		return
	}
	current, err := energy.Current(user.EnergyMax, user.EnergyFullTime, p.now(), regen)
	if err != nil {
		return
	}
	content := fmt.Sprintf("⚡ You have about **%d/%d** energy now.", int(math.Floor(current)), user.EnergyMax)
	if _, err = p.reply(ctx, msg, transport.OutgoingMessage{Content: content}); err != nil {
		p.logSendError(err)
	}
}

// timeItem handles time speeders and compressors: both move the claim reminder
// forward by the production time they granted.
func (p *useItemProcessor) timeItem(ctx context.Context, msg *pipeline.ParsedMessage, counter string) (bool, error) {
	granted, ok := timestring.FindAfterClock(msg.Content.Raw)
	if !ok {
		return false, nil
	}
	user, err := p.user(ctx, msg)
	if err != nil {
		return false, err
	}
	msg.User = user

	increment := 1
	value := user.TimeCompressorsUsed
	if counter == "time_speeders_used" {
		increment = int(granted / config.TimeSpeederProduction)
		value = user.TimeSpeedersUsed
	}
	if increment > 0 {
		if err = p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{counter: value + increment}); err != nil {
			return false, err
		}
	}

	claim, err := p.Store.Reminders.GetUserReminder(ctx, user.UserID, models.ActivityClaim, 0)
	if repositories.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return true, p.Scheduler.RescheduleUserReminder(ctx, claim, AdvanceEnd(claim.EndTime, granted, p.now()))
}

// AdvanceEnd moves end earlier by d without going below one second from now.
func AdvanceEnd(end time.Time, d time.Duration, now time.Time) time.Time {
	advanced := end.Add(-d)
	if floor := now.Add(time.Second); advanced.Before(floor) {
		return floor
	}
	return advanced
}

type minieventProcessor struct{ *Deps }

var minieventMultiplierRe = regexp.MustCompile(`energy\s*x\s*([\d.]+)`)

func (p *minieventProcessor) Name() string { return "mini-event" }

// Process keeps the process-wide energy multiplier in sync with the running mini event.
func (p *minieventProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.Content.Contains("mini event") {
		return false, nil
	}
	value := ""
	switch {
	case msg.Content.Contains("ended"):
		value = "1"
	default:
		match := minieventMultiplierRe.FindStringSubmatch(strings.ReplaceAll(msg.Content.Folded, "*", ""))
		if match == nil {
			return false, nil
		}
		value = match[1]
	}
	if err := p.Store.Settings.Set(ctx, models.SettingMinieventEnergyMultiplier, value); err != nil {
		return false, err
	}
	return true, nil
}
