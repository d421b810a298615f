package processors

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
)

var (
	cooldownsCommand = command("cooldowns", "cd")

	cooldownReadyRe = regexp.MustCompile(`✅\s*([a-z][a-z -]*?)\s*$`)
	cooldownLeftRe  = regexp.MustCompile(`🕓\s*([a-z][a-z -]*?)\s*\(([^)]+)\)`)
)

// CooldownLine is one entry of the cooldowns overview.
type CooldownLine struct {
	Command  string
	Ready    bool
	TimeLeft time.Duration
}

// ParseCooldowns reads every "✅ command" and "🕓 command (timestring)" line.
func ParseCooldowns(text string) []CooldownLine {
	var lines []CooldownLine
	for _, line := range strings.Split(plainText(pipeline.Fold(text)), "\n") {
		line = strings.TrimSpace(line)
		if match := cooldownLeftRe.FindStringSubmatch(line); match != nil {
			d, err := timestring.Parse(match[2])
			if err != nil {
				continue
			}
			lines = append(lines, CooldownLine{Command: match[1], TimeLeft: d})
			continue
		}
		if match := cooldownReadyRe.FindStringSubmatch(line); match != nil {
			lines = append(lines, CooldownLine{Command: match[1], Ready: true})
		}
	}
	return lines
}

// cooldownActivity maps a command of the overview to the reminder activity it drives.
// Claim is left alone since its reminder follows the chosen production time.
func (p *activityListProcessor) cooldownActivity(cmd string) (string, bool) {
	switch cmd {
	case models.ActivityDaily, models.ActivityVote:
		return cmd, true
	}
	for _, item := range p.Data.ShopItems {
		if item.Name == cmd {
			return models.ActivityShop + "-" + item.Name, true
		}
	}
	for _, b := range p.Data.Boosts {
		if b.Name == cmd {
			return models.ActivityBoost + "-" + b.Name, true
		}
	}
	return "", false
}

type activityListProcessor struct{ *Deps }

func (p *activityListProcessor) Name() string { return "activity-list" }

func (p *activityListProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("cooldowns") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, cooldownsCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	text := msg.Description.Raw
	for _, field := range msg.AllFields() {
		text += "\n" + field.Name + "\n" + field.Value
	}

	touched := false
	for _, line := range ParseCooldowns(text) {
		activity, ok := p.cooldownActivity(line.Command)
		if !ok {
			continue
		}
		if line.Ready {
			deleted, err := p.deleteActive(ctx, user.UserID, activity)
			if err != nil {
				return touched, err
			}
			touched = touched || deleted
			continue
		}
		ok, err := p.upsert(ctx, user, msg, activity, line.TimeLeft)
		if err != nil {
			return touched, err
		}
		touched = touched || ok
	}
	return touched, nil
}

// deleteActive removes every running reminder whose activity starts with prefix.
func (p *activityListProcessor) deleteActive(ctx context.Context, userID int64, prefix string) (bool, error) {
	active, err := p.Store.Reminders.ListActiveUserReminders(ctx, userID, prefix, p.now())
	if err != nil {
		return false, err
	}
	for i := range active {
		if err = p.Scheduler.DeleteUserReminder(ctx, &active[i]); err != nil {
			return false, err
		}
	}
	return len(active) > 0, nil
}
