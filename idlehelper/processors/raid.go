package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/raid"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	raidCommand  = command("raid")
	raidWorthRe  = regexp.MustCompile(`raid worth:?\**\s*\**\s*([+-]?[\d,]+)`)
	raidFarmRe   = regexp.MustCompile(`\*\*([a-z]+)\*\*.*?([\d,.]+)\s*power.*?(\d+)\s*%`)
	raidFarmsKey = "farm"
)

// Farms is the defending side of a raid embed.
type Farms struct {
	Defenders []raid.Defender
	Empty     int
}

// ParseFarms reads the enemy farm lines of a raid embed field: one line per farm,
// "<emoji> **<worker>** ... <power> power ... <hp>%" or a line mentioning an empty farm.
func ParseFarms(value string) Farms {
	var farms Farms
	for _, line := range strings.Split(pipeline.Fold(value), "\n") {
		if strings.Contains(line, "empty") {
			farms.Empty++
			continue
		}
		match := raidFarmRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		power, ok := parseFloat(match[2])
		if !ok {
			continue
		}
		hp, _ := parseNumber(match[3])
		farms.Defenders = append(farms.Defenders, raid.Defender{Name: match[1], Power: power, HP: int(hp)})
	}
	return farms
}

// farmsField returns the field listing the enemy farms, the first one by default.
func farmsField(msg *pipeline.ParsedMessage) string {
	for i := 0; i < msg.FieldCount && i < pipeline.MaxFields; i++ {
		if strings.Contains(msg.FieldsFolded[i].Name, raidFarmsKey) {
			return msg.Fields[i].Value
		}
	}
	return msg.Fields[0].Value
}

// availableWorkers returns the folded labels of the enabled worker buttons, nil when
// the message has no buttons at all.
func availableWorkers(m *transport.Message) map[string]bool {
	if len(m.Components) == 0 {
		return nil
	}
	labels := make(map[string]bool, len(m.Components))
	for _, c := range m.Components {
		if !c.Disabled {
			labels[pipeline.Fold(strings.TrimSpace(c.Label))] = true
		}
	}
	return labels
}

type raidProcessor struct{ *Deps }

func (p *raidProcessor) Name() string { return "raid" }

func (p *raidProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if match := raidWorthRe.FindStringSubmatch(msg.EmbedText()); match != nil && !msg.IsEvent("teamraid") {
		return p.completed(ctx, msg, match[1])
	}
	if !msg.IsEvent("raid") || pipeline.IsTeamraidLayout(msg) {
		return false, nil
	}

	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, raidCommand))
	if err != nil {
		return false, err
	}
	msg.User = user
	if err = p.changeEnergy(ctx, user, -config.RaidEnergyCost); err != nil {
		return true, err
	}
	if !user.HelperRaidEnabled || msg.Message.ActiveComponents() == 0 {
		return true, nil
	}

	workers, err := p.Store.Workers.List(ctx, user.UserID)
	if err != nil {
		return true, err
	}
	attackers := Attackers(p.Deps, workers)
	p.goFn(func() {
		p.follow(context.WithoutCancel(ctx), msg, user, attackers)
	})
	return true, nil
}

func (p *raidProcessor) completed(ctx context.Context, msg *pipeline.ParsedMessage, worth string) (bool, error) {
	points, ok := parseNumber(strings.TrimPrefix(worth, "+"))
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, raidCommand))
	if err != nil {
		return false, err
	}
	if !user.TrackingEnabled {
		return false, nil
	}
	msg.User = user

	text := repositories.TrackingRaidGained
	if points < 0 {
		text, points = repositories.TrackingRaidLost, -points
	}
	return true, p.track(ctx, user, msg, text, points)
}

// Attackers turns the stored workers of a player into raid attackers.
func Attackers(d *Deps, workers []models.UserWorker) []raid.Attacker {
	ranked := raid.Rank(d.Data, workers, raid.WorkerPower)
	attackers := make([]raid.Attacker, 0, len(ranked))
	for _, w := range ranked {
		attackers = append(attackers, raid.Attacker{Name: w.Name, Emoji: w.Emoji, Level: w.Level, Power: w.Power})
	}
	return attackers
}

func filterAttackers(attackers []raid.Attacker, available map[string]bool) []raid.Attacker {
	if available == nil {
		return attackers
	}
	kept := make([]raid.Attacker, 0, len(attackers))
	for _, a := range attackers {
		if available[a.Name] {
			kept = append(kept, a)
		}
	}
	return kept
}

// RenderSolution formats a raid solution for chat.
func RenderSolution(sol raid.Solution, total int, compact, names bool) string {
	if len(sol.Steps) == 0 {
		return "**Raid helper**\nNo worker of yours can do anything here."
	}

	var b strings.Builder
	b.WriteString("**Raid helper**\n")
	if compact {
		parts := make([]string, len(sol.Steps))
		for i, s := range sol.Steps {
			parts[i] = s.Attacker.Emoji
			if names {
				parts[i] += " " + s.Attacker.Name
			}
		}
		b.WriteString(strings.Join(parts, " ➜ "))
	} else {
		for i, s := range sol.Steps {
			label := s.Attacker.Emoji
			if names {
				label += " **" + s.Attacker.Name + "**"
			}
			if s.Defender < 0 {
				fmt.Fprintf(&b, "%d. %s ➜ empty farm\n", i+1, label)
				continue
			}
			fmt.Fprintf(&b, "%d. %s ➜ farm %d (-%d hp, %d hp left)\n", i+1, label, s.Defender+1, s.Damage, s.HPLeft)
		}
	}
	fmt.Fprintf(&b, "\nKills: **%d/%d**", sol.Killed, total)
	if sol.HPLeft > 0 {
		fmt.Fprintf(&b, " · next farm at **%d%%** hp", sol.HPLeft)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *raidProcessor) solve(msg *pipeline.ParsedMessage, user *models.User, attackers []raid.Attacker) string {
	farms := ParseFarms(farmsField(msg))
	pool := filterAttackers(attackers, availableWorkers(msg.Message))
	sol := raid.Solve(pool, farms.Defenders, farms.Empty)
	return RenderSolution(sol, len(farms.Defenders), user.HelperRaidCompactMode, user.HelperRaidNamesShown)
}

// follow posts the solution and updates it after every turn until the raid message
// runs out of buttons or stops changing.
func (p *raidProcessor) follow(ctx context.Context, msg *pipeline.ParsedMessage, user *models.User, attackers []raid.Attacker) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	content := p.solve(msg, user, attackers)
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
			slog.Warn("Raid follow stopped", slog.String("type", "message"), slog.Any("error", err))
			return
		}
		current = edited
		if current.ActiveComponents() == 0 {
			return
		}
		content = p.solve(pipeline.Parse(current), user, attackers)
		if _, err = p.Transport.Edit(ctx, helper.ChannelID, helper.ID, transport.OutgoingMessage{Content: content}); err != nil {
			if !errors.Is(err, transport.ErrForbidden) {
				p.logSendError(err)
			}
			return
		}
	}
}
