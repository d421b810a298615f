package commands

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/idlehelper/bot/idlehelper/calculator"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/raid"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// DefaultTimeframes are shown by the stats command when no timeframe is given.
var DefaultTimeframes = []time.Duration{
	24 * time.Hour,
	7 * 24 * time.Hour,
	28 * 24 * time.Hour,
}

const topWorkers = 3

// Stats reports the tracked activity of userID. An empty timeframe shows the default
// timeframes side by side.
func (s *Service) Stats(ctx context.Context, userID int64, displayName, timeframe string) (transport.Embed, error) {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return transport.Embed{}, err
	}

	frames := DefaultTimeframes
	if timeframe != "" {
		d, err := timestring.Parse(timeframe)
		if err != nil {
			return transport.Embed{}, err
		}
		if d <= 0 {
			return transport.Embed{}, pipeline.Invalid("The timeframe has to be longer than 0 seconds.")
		}
		if d > config.RetentionHorizon {
			return transport.Embed{}, pipeline.Invalid("I only keep stats for %d days.", int(config.RetentionHorizon.Hours()/24))
		}
		frames = []time.Duration{d}
	}

	embed := infoEmbed(displayName+"'s stats", "")
	if !user.TrackingEnabled {
		embed.Description = "Tracking is turned off. Turn it on with `/settings user`."
	}
	now := s.now()
	for _, frame := range frames {
		report, err := s.store.Tracking.Report(ctx, userID, frame, 0, now)
		if err != nil {
			return transport.Embed{}, err
		}
		embed.Fields = append(embed.Fields, transport.Field{
			Name:   "Last " + timestring.Format(frame),
			Value:  formatReport(report),
			Inline: len(frames) > 1,
		})
	}
	return embed, nil
}

func formatReport(report *models.LogReport) string {
	var b strings.Builder
	line := func(label string, n int64) {
		fmt.Fprintf(&b, "**%s** %s\n", label, humanize.Comma(n))
	}
	line("Claims", report.Counts[models.ActivityClaim])
	line("Dailies", report.Counts[models.ActivityDaily])
	line("Paydays", report.Counts["payday"])
	line("Guild seals", report.Counts["guild-seals"])

	if report.RaidCount >= 0 {
		line("Raids", report.RaidCount)
	}
	line("Raid points", report.RaidGained-report.RaidLost)

	var total int64
	types := make([]string, 0, len(report.Workers))
	for name, n := range report.Workers {
		types = append(types, name)
		total += n
	}
	sort.Strings(types)
	line("Workers hired", total)
	for _, name := range types {
		fmt.Fprintf(&b, "> %s %s\n", name, humanize.Comma(report.Workers[name]))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Workers ranks the workers of userID by raid power and lists the strongest three.
func (s *Service) Workers(ctx context.Context, userID int64, displayName string) (transport.Embed, error) {
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return transport.Embed{}, err
	}
	workers, err := s.store.Workers.List(ctx, userID)
	if err != nil {
		return transport.Embed{}, err
	}
	ranked := raid.Rank(s.data, workers, raid.WorkerPower)
	if len(ranked) == 0 {
		return infoEmbed(displayName+"'s workers", "I don't know your workers yet. Open your workers in the game so I can read them."), nil
	}

	var b strings.Builder
	for _, w := range ranked {
		fmt.Fprintf(&b, "%s **%s** lvl %d x%d `%s`\n", w.Emoji, w.Name, w.Level, w.Amount, humanize.FormatFloat("#,###.##", w.Power))
	}
	embed := infoEmbed(displayName+"'s workers", strings.TrimSuffix(b.String(), "\n"))

	top := raid.Rank(s.data, workers, raid.TopPower)
	var t strings.Builder
	for i, w := range top[:min(topWorkers, len(top))] {
		fmt.Fprintf(&t, "%d. %s **%s** `%s`\n", i+1, w.Emoji, w.Name, humanize.FormatFloat("#,###.##", w.Power))
	}
	embed.Fields = []transport.Field{{Name: "Top workers", Value: strings.TrimSuffix(t.String(), "\n")}}
	return embed, nil
}

type memberPower struct {
	UserID int64
	Power  float64
}

// GuildPower sums the three strongest workers of every member of userID's guild.
func (s *Service) GuildPower(ctx context.Context, userID int64) (transport.Embed, error) {
	clan, err := s.store.Clans.GetByMemberID(ctx, userID)
	if repositories.IsNotFound(err) {
		return transport.Embed{}, pipeline.Invalid("You are not in a guild I know. Open your guild overview in the game so I can register it.")
	}
	if err != nil {
		return transport.Embed{}, err
	}

	powers := make([]memberPower, 0, len(clan.Members))
	var total float64
	for _, member := range clan.Members {
		workers, err := s.store.Workers.List(ctx, member.UserID)
		if err != nil {
			return transport.Embed{}, err
		}
		ranked := raid.Rank(s.data, workers, raid.GuildPower)
		p := memberPower{UserID: member.UserID}
		for _, w := range ranked[:min(topWorkers, len(ranked))] {
			p.Power += w.Power
		}
		total += p.Power
		powers = append(powers, p)
	}
	sort.SliceStable(powers, func(i, j int) bool { return powers[i].Power > powers[j].Power })

	var b strings.Builder
	for i, p := range powers {
		fmt.Fprintf(&b, "%d. %s `%s`\n", i+1, reminders.Mention(p.UserID), humanize.FormatFloat("#,###.##", p.Power))
	}
	embed := infoEmbed("Guild power of "+clan.ClanName, strings.TrimSuffix(b.String(), "\n"))
	embed.FooterText = "Total " + humanize.FormatFloat("#,###.##", total) + " • top 3 workers per member"
	return embed, nil
}

// Calculate evaluates an arithmetic expression.
func (s *Service) Calculate(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", pipeline.Invalid("Please give me something to calculate.")
	}
	v, err := calculator.Evaluate(expr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("`%s` = **%s**", expr, calculator.Format(v)), nil
}

func (s *Service) Codes(ctx context.Context) (transport.Embed, error) {
	codes, err := s.store.Settings.Codes(ctx)
	if err != nil {
		return transport.Embed{}, err
	}
	embed := infoEmbed("Redeemable codes", "")
	if len(codes) == 0 {
		embed.Description = "There are no known codes right now."
	}
	for _, c := range codes {
		embed.Fields = append(embed.Fields, transport.Field{Name: c.Code, Value: c.Contents})
	}
	return embed, nil
}

// EventReductions lists the cooldown reductions of the running event.
func (s *Service) EventReductions(ctx context.Context) (transport.Embed, error) {
	cooldowns, err := s.store.Settings.Cooldowns(ctx)
	if err != nil {
		return transport.Embed{}, err
	}
	var slash, mention strings.Builder
	for _, c := range cooldowns {
		if c.EventReductionSlash > 0 {
			fmt.Fprintf(&slash, "%s: %s%%\n", c.Activity, humanize.Ftoa(c.EventReductionSlash))
		}
		if c.EventReductionMention > 0 {
			fmt.Fprintf(&mention, "%s: %s%%\n", c.Activity, humanize.Ftoa(c.EventReductionMention))
		}
	}
	embed := infoEmbed("Event reductions", "")
	if slash.Len() == 0 && mention.Len() == 0 {
		embed.Description = "There are no event reductions active right now."
		return embed, nil
	}
	if slash.Len() > 0 {
		embed.Fields = append(embed.Fields, transport.Field{Name: "Slash commands", Value: strings.TrimSuffix(slash.String(), "\n"), Inline: true})
	}
	if mention.Len() > 0 {
		embed.Fields = append(embed.Fields, transport.Field{Name: "Mention commands", Value: strings.TrimSuffix(mention.String(), "\n"), Inline: true})
	}
	return embed, nil
}

type helpCategory struct {
	Name     string
	Emoji    string
	Commands []string
}

var helpCategories = []helpCategory{
	{Name: "Getting started", Emoji: "🚀", Commands: []string{
		"`/on` turn me on", "`/off` turn me off", "`/purge data` delete everything I know about you",
	}},
	{Name: "Reminders", Emoji: "⏰", Commands: []string{
		"`/reminders list` your active reminders", "`/reminders add` a custom reminder",
		"`/settings reminders` pick your reminders", "`/settings messages` change reminder messages",
	}},
	{Name: "Settings", Emoji: "⚙️", Commands: []string{
		"`/settings user` reactions, tracking, energy", "`/settings helpers` raid and teamraid helpers",
		"`/settings server` event pings", "`/settings guild` guild reminders and alerts",
	}},
	{Name: "Game", Emoji: "🌾", Commands: []string{
		"`/stats` your tracked activity", "`/workers` your worker power", "`/guild power` power of your guild",
		"`/codes` redeemable codes", "`/event-reductions` cooldown reductions", "`/calculator` do some math",
	}},
}

func HelpEmbed(prefix string) transport.Embed {
	embed := infoEmbed("IDLE Helper",
		fmt.Sprintf("I read your IDLE FARM messages, remind you of your cooldowns and help with raids.\n"+
			"Every command also works with the prefix `%s`.", strings.TrimSpace(prefix)))
	for _, c := range helpCategories {
		embed.Fields = append(embed.Fields, transport.Field{
			Name:  c.Emoji + " " + c.Name,
			Value: strings.Join(c.Commands, "\n"),
		})
	}
	return embed
}

func (s *Service) About(ctx context.Context) (transport.Embed, error) {
	users, err := s.store.Users.Count(ctx)
	if err != nil {
		return transport.Embed{}, err
	}
	pending, err := s.store.Reminders.ListActiveUserReminders(ctx, 0, "", s.now())
	if err != nil {
		return transport.Embed{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Version** %s (%s)\n", s.opts.Version, s.opts.Commit)
	fmt.Fprintf(&b, "**Users** %s\n", humanize.Comma(int64(users)))
	fmt.Fprintf(&b, "**Active reminders** %s\n", humanize.Comma(int64(len(pending))))
	if !s.opts.StartedAt.IsZero() {
		fmt.Fprintf(&b, "**Online since** %s\n", humanize.RelTime(s.opts.StartedAt, s.now(), "ago", "from now"))
	}
	fmt.Fprintf(&b, "**Runtime** %s", runtime.Version())
	return infoEmbed("About IDLE Helper", b.String()), nil
}
