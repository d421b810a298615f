package processors

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	paydayCommand    = command("payday")
	upgradesCommand  = command("upgrades")
	inventoryCommand = command("inventory", "inv")
	donateCommand    = command("donate")

	idlucksRe      = regexp.MustCompile(`([\d,]+)\s*(?:<[^>]*>\s*)?idlucks`)
	idlucksLabelRe = regexp.MustCompile(`idlucks:?\s*(?:<[^>]*>\s*)?([\d,]+)`)
	upgradeLevelRe = regexp.MustCompile(`level:?\s*(\d+)`)
	donorTierRe    = regexp.MustCompile(`tier:?\s*(\d+)`)
)

// Purchase is one upgrade level bought by the payday helper.
type Purchase struct {
	Name  string
	Level int
	Cost  int64
}

// AffordableUpgrades spends budget on the cheapest next upgrade level until nothing
// else fits. levels holds the current level per upgrade name.
func AffordableUpgrades(data *gamedata.Data, levels map[string]int, budget int64) []Purchase {
	current := make(map[string]int, len(levels))
	for k, v := range levels {
		current[k] = v
	}

	var bought []Purchase
	for {
		best := -1
		var bestCost int64
		for i, u := range data.Upgrades {
			cost, ok := u.NextCost(current[u.Name])
			if !ok || cost > budget {
				continue
			}
			if best < 0 || cost < bestCost {
				best, bestCost = i, cost
			}
		}
		if best < 0 {
			return bought
		}
		u := data.Upgrades[best]
		current[u.Name]++
		budget -= bestCost
		bought = append(bought, Purchase{Name: u.Name, Level: current[u.Name], Cost: bestCost})
	}
}

// plainText removes markdown emphasis before number matching.
func plainText(s string) string {
	return strings.NewReplacer("*", "", "`", "", "_", "").Replace(s)
}

type paydayProcessor struct{ *Deps }

func (p *paydayProcessor) Name() string { return "payday" }

func (p *paydayProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if msg.Content.Contains("payday completed") {
		return p.completed(ctx, msg)
	}
	if !msg.IsEvent("payday") {
		return false, nil
	}

	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, paydayCommand))
	if err != nil {
		return false, err
	}
	if !user.HelperUpgradesEnabled {
		return false, nil
	}
	match := idlucksRe.FindStringSubmatch(plainText(msg.EmbedText()))
	if match == nil {
		return false, nil
	}
	budget, _ := parseNumber(match[1])
	msg.User = user

	stored, err := p.Store.Upgrades.List(ctx, user.UserID)
	if err != nil {
		return false, err
	}
	levels := make(map[string]int, len(stored))
	for _, u := range stored {
		levels[u.Name] = u.Level
	}

	_, err = p.reply(ctx, msg, transport.OutgoingMessage{Content: RenderPurchases(AffordableUpgrades(p.Data, levels, budget), budget)})
	return true, err
}

// RenderPurchases formats the payday helper answer.
func RenderPurchases(purchases []Purchase, budget int64) string {
	if len(purchases) == 0 {
		return fmt.Sprintf("**Upgrade helper**\nNo upgrade fits into **%s** idlucks.", humanize.Comma(budget))
	}
	var b strings.Builder
	b.WriteString("**Upgrade helper**\n")
	var spent int64
	for _, pu := range purchases {
		spent += pu.Cost
		fmt.Fprintf(&b, "⬆️ **%s** ➜ level %d for %s\n", pu.Name, pu.Level, humanize.Comma(pu.Cost))
	}
	fmt.Fprintf(&b, "Total: **%s** of **%s** idlucks", humanize.Comma(spent), humanize.Comma(budget))
	return b.String()
}

func (p *paydayProcessor) completed(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	match := idlucksRe.FindStringSubmatch(plainText(msg.Content.Folded))
	if match == nil {
		return false, nil
	}
	idlucks, ok := parseNumber(match[1])
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: paydayCommand})
	if err != nil {
		return false, err
	}
	msg.User = user

	if err = p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{"idlucks": idlucks}); err != nil {
		return false, err
	}
	return true, p.track(ctx, user, msg, "payday", 1)
}

type upgradesProcessor struct{ *Deps }

func (p *upgradesProcessor) Name() string { return "upgrades" }

func (p *upgradesProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("upgrades") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, upgradesCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	touched := false
	for _, field := range msg.AllFields() {
		u, ok := p.Data.Upgrade(stripDecoration(field.Name))
		if !ok {
			continue
		}
		match := upgradeLevelRe.FindStringSubmatch(plainText(pipeline.Fold(field.Value)))
		if match == nil {
			continue
		}
		level, _ := strconv.Atoi(match[1])
		err = p.Store.Upgrades.Upsert(ctx, &models.UserUpgrade{UserID: user.UserID, Name: u.Name, Level: level, SortIndex: u.SortIndex})
		if err != nil {
			return touched, err
		}
		touched = true
	}
	return touched, nil
}

type inventoryProcessor struct{ *Deps }

func (p *inventoryProcessor) Name() string { return "inventory" }

func (p *inventoryProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("inventory") {
		return false, nil
	}
	match := idlucksLabelRe.FindStringSubmatch(plainText(msg.EmbedText()))
	if match == nil {
		return false, nil
	}
	idlucks, ok := parseNumber(match[1])
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, inventoryCommand))
	if err != nil {
		return false, err
	}
	if user.Idlucks == idlucks {
		return false, nil
	}
	msg.User = user
	return true, p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{"idlucks": idlucks})
}

type donateProcessor struct{ *Deps }

func (p *donateProcessor) Name() string { return "donate" }

func (p *donateProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("donate") {
		return false, nil
	}
	match := donorTierRe.FindStringSubmatch(plainText(msg.EmbedText()))
	if match == nil {
		return false, nil
	}
	tier, _ := strconv.Atoi(match[1])
	if maxTier := len(p.Data.DonorTiers) - 1; tier > maxTier {
		tier = maxTier
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, donateCommand))
	if err != nil {
		return false, err
	}
	if user.DonorTier == tier {
		return false, nil
	}
	msg.User = user
	return true, p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{"donor_tier": tier})
}
