package processors

import (
	"context"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
)

var boostsCommand = command("boosts")

type boostsProcessor struct{ *Deps }

func (p *boostsProcessor) Name() string { return "boosts" }

// Process mirrors the active boosts list: listed boosts get a reminder, every
// other known boost loses its reminder.
func (p *boostsProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("active boosts") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, boostsCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	touched := false
	active := make(map[string]struct{})
	for _, field := range msg.AllFields() {
		boost, ok := p.Data.Boost(stripDecoration(field.Name))
		if !ok {
			continue
		}
		timeLeft, ok := timestring.FindAfterClock(field.Value)
		if !ok {
			continue
		}
		active[boost.Name] = struct{}{}
		ok, err := p.upsert(ctx, user, msg, models.ActivityBoost+"-"+boost.Name, timeLeft)
		if err != nil {
			return touched, err
		}
		touched = touched || ok
	}

	for _, boost := range p.Data.Boosts {
		if _, ok := active[boost.Name]; ok {
			continue
		}
		deleted, err := p.deleteReminder(ctx, user.UserID, models.ActivityBoost+"-"+boost.Name)
		if err != nil {
			return touched, err
		}
		touched = touched || deleted
	}
	return touched, nil
}
