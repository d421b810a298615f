package processors

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
)

var (
	shopCommand   = command("shop")
	shopBoughtRe  = regexp.MustCompile("`\\s*(\\d+)\\s*/\\s*(\\d+)\\s*`")
	buyCommand    = command("buy", "shop buy")
	buyQuantityRe = regexp.MustCompile(`\*\*([\d,]+)\*\*\s*(?:x\s*)?([^!\n*]+)`)
)

const day = 24 * time.Hour

type shopProcessor struct{ *Deps }

func (p *shopProcessor) Name() string { return "shop" }

func (p *shopProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	switch {
	case msg.Content.Contains("maxed the purchases"):
		return p.maxed(ctx, msg)
	case msg.IsEvent("shop"):
		return p.list(ctx, msg)
	}
	return false, nil
}

// maxed handles the game refusing a purchase because the daily limit is reached.
func (p *shopProcessor) maxed(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	match := boldTextRe.FindStringSubmatch(msg.Content.Raw)
	if match == nil {
		return false, nil
	}
	item, ok := p.Data.ShopItem(match[1])
	if !ok {
		return false, nil
	}
	timeLeft, ok := timestring.FindAfterClock(msg.Content.Raw)
	if !ok {
		return false, nil
	}

	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: buyCommand})
	if err != nil {
		return false, err
	}
	msg.User = user
	return p.upsert(ctx, user, msg, models.ActivityShop+"-"+item.Name, timeLeft+p.jitter())
}

// list schedules a reminder for every shop item bought up to its limit.
func (p *shopProcessor) list(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, shopCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	now := p.now()
	touched := false
	for _, field := range msg.AllFields() {
		bought, limit, ok := shopBought(field.Value)
		if !ok || bought < limit {
			continue
		}
		item, ok := p.Data.ShopItem(stripDecoration(field.Name))
		if !ok {
			continue
		}
		timeLeft := p.untilMidnight(now)
		if printed, ok := timestring.FindAfterClock(field.Value); ok && printed >= day {
			timeLeft += (printed / day) * day
		}
		ok, err := p.upsert(ctx, user, msg, models.ActivityShop+"-"+item.Name, timeLeft)
		if err != nil {
			return touched, err
		}
		touched = touched || ok
	}
	return touched, nil
}

func shopBought(value string) (bought, limit int, ok bool) {
	match := shopBoughtRe.FindStringSubmatch(value)
	if match == nil {
		return 0, 0, false
	}
	bought, _ = strconv.Atoi(match[1])
	limit, _ = strconv.Atoi(match[2])
	return bought, limit, limit > 0
}

// stripDecoration drops emojis, markdown and ids from a field name, keeping words.
func stripDecoration(s string) string {
	s = strings.NewReplacer("*", "", "`", "", "_", "", "~", "").Replace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == ' ', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(b.String())), " ")
}

type buyItemProcessor struct{ *Deps }

func (p *buyItemProcessor) Name() string { return "buy-item" }

func (p *buyItemProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.Content.Contains("successfully bought") {
		return false, nil
	}
	match := buyQuantityRe.FindStringSubmatch(msg.Content.Raw)
	if match == nil {
		return false, nil
	}
	amount, ok := parseNumber(match[1])
	if !ok {
		return false, nil
	}
	item, ok := p.Data.ShopItem(stripDecoration(match[2]))
	if !ok {
		return false, nil
	}

	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: buyCommand})
	if err != nil {
		return false, err
	}
	if !user.TrackingEnabled {
		return false, nil
	}
	msg.User = user
	return true, p.track(ctx, user, msg, "bought-"+item.Name, amount)
}
