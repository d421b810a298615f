package processors

import (
	"context"
	"strings"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	halloweenCommand = command("trick or treat", "halloween")
	calendarCommand  = command("calendar", "xmas calendar")

	// eventMarkers maps the text of a server-wide event embed to its guild setting.
	eventMarkers = []struct {
		text string
		kind string
	}{
		{"energy ritual", models.EventEnergy},
		{"fired worker", models.EventFired},
		{"lucky reward", models.EventLucky},
		{"packing", models.EventPacking},
	}
)

// EventKind returns the guild event setting a message spawns, if any.
func EventKind(msg *pipeline.ParsedMessage) (string, bool) {
	text := msg.Title.Folded + "\n" + msg.Description.Folded
	for _, m := range eventMarkers {
		if strings.Contains(text, m.text) {
			return m.kind, true
		}
	}
	return "", false
}

type eventsProcessor struct{ *Deps }

func (p *eventsProcessor) Name() string { return "events" }

func (p *eventsProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	kind, ok := EventKind(msg)
	if !ok || msg.Message.GuildID == 0 {
		return false, nil
	}
	guild, err := p.Store.Guilds.Get(ctx, msg.Message.GuildID)
	if err != nil {
		return false, err
	}
	setting, _ := guild.Event(kind)
	if !setting.Enabled || strings.TrimSpace(setting.Message) == "" {
		return false, nil
	}

	_, err = p.Transport.Send(ctx, msg.Message.ChannelID, transport.OutgoingMessage{
		Content:         setting.Message,
		AllowedMentions: transport.AllowedMentions{Users: true, Roles: true, Everyone: true},
	})
	if err != nil {
		if pipeline.Silent(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type halloweenProcessor struct{ *Deps }

func (p *halloweenProcessor) Name() string { return "halloween" }

func (p *halloweenProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !strings.Contains(msg.Content.Raw, "🍬") || !msg.Content.Contains("candies") {
		return false, nil
	}
	candies, ok := boldNumber(msg.Content.Raw)
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: halloweenCommand})
	if err != nil {
		return false, err
	}
	if !user.TrackingEnabled {
		return false, nil
	}
	msg.User = user
	return true, p.track(ctx, user, msg, "candies", candies)
}

type xmasProcessor struct{ *Deps }

func (p *xmasProcessor) Name() string { return "xmas" }

func (p *xmasProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("calendar") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, calendarCommand))
	if err != nil {
		return false, err
	}
	if !user.TrackingEnabled {
		return false, nil
	}
	msg.User = user
	return true, p.track(ctx, user, msg, "xmas-calendar", 1)
}
