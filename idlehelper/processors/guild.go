package processors

import (
	"context"
	"strings"

	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/pipeline"
)

var (
	guildCommand      = command("guild")
	contributeCommand = command("guild contribute", "contribute")
)

// ParseRoster reads a guild overview embed: the guild name before "— guild" in the
// author line, the leader mention in the field named leader and every mention of the
// embed as members.
func ParseRoster(msg *pipeline.ParsedMessage) clans.Roster {
	roster := clans.Roster{Name: msg.AuthorPlayer()}
	var all strings.Builder
	all.WriteString(msg.Description.Raw)
	for _, field := range msg.AllFields() {
		all.WriteString("\n" + field.Value)
		if roster.LeaderID == 0 && strings.Contains(pipeline.Fold(field.Name), "leader") {
			if ids := mentions(field.Value); len(ids) > 0 {
				roster.LeaderID = ids[0]
			}
		}
	}
	roster.Members = mentions(all.String())
	if roster.LeaderID == 0 && len(roster.Members) > 0 {
		roster.LeaderID = roster.Members[0]
	}
	return roster
}

type clanOverviewProcessor struct{ *Deps }

func (p *clanOverviewProcessor) Name() string { return "clan-overview" }

func (p *clanOverviewProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("guild") {
		return false, nil
	}
	roster := ParseRoster(msg)
	if roster.Name == "" || roster.LeaderID == 0 {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: guildCommand, SkipMentions: true})
	if err != nil {
		return false, err
	}
	msg.User = user

	if _, err = p.Clans.SyncRoster(ctx, roster, msg.Message.ChannelID); err != nil {
		return false, err
	}
	return true, nil
}

type contributionProcessor struct{ *Deps }

func (p *contributionProcessor) Name() string { return "contribution" }

func (p *contributionProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	text := msg.EmbedText()
	if !strings.Contains(text, "contributed") || !strings.Contains(text, "guild seals") {
		return false, nil
	}
	raw := msg.Content.Raw + "\n" + msg.Description.Raw
	seals, ok := boldNumber(raw)
	if !ok || seals <= 0 {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: contributeCommand})
	if err != nil {
		return false, err
	}
	clan, err := p.Store.Clans.GetByMemberID(ctx, user.UserID)
	if err != nil {
		return false, err
	}
	msg.User = user

	if _, err = p.Clans.AddContribution(ctx, clan, user.UserID, int(seals), msg.Message.ChannelID); err != nil {
		return false, err
	}
	return true, p.track(ctx, user, msg, "guild-seals", seals)
}
