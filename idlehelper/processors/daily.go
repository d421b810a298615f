package processors

import (
	"context"
	"fmt"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	dailyCommand = command("daily")
	voteCommand  = command("vote")
)

type dailyProcessor struct{ *Deps }

func (p *dailyProcessor) Name() string { return "daily" }

func (p *dailyProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("daily reward") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, dailyCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	touched, err := p.upsert(ctx, user, msg, models.ActivityDaily, p.untilMidnight(p.now()))
	if err != nil {
		return touched, err
	}
	if user.TrackingEnabled {
		return true, p.track(ctx, user, msg, models.ActivityDaily, 1)
	}
	return touched, nil
}

type voteProcessor struct{ *Deps }

func (p *voteProcessor) Name() string { return "vote" }

func (p *voteProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("vote") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, voteCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	if timeLeft, ok := timestring.FindAfterClock(msg.Fields[0].Value); ok {
		return p.upsert(ctx, user, msg, models.ActivityVote, timeLeft)
	}
	if !user.ReminderVote.Enabled {
		return false, nil
	}

	sent, err := p.reply(ctx, msg, transport.OutgoingMessage{
		Content: fmt.Sprintf("You can vote again! Use `%s` and click the link.", p.Data.Command(models.ActivityVote)),
	})
	return sent != nil, err
}
