package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/handlers"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/transport"
)

const (
	prefixCacheSize = 1024
	purgeConfirm    = "confirm"
)

// Prefix answers the text commands written with a server's prefix. It implements
// chat.Handler.
type Prefix struct {
	svc      *Service
	tr       transport.Transport
	prefixes *lru.Cache
	// Go runs one command, defaults to a goroutine.
	Go func(func())
}

func NewPrefix(svc *Service, tr transport.Transport) *Prefix {
	prefixes, _ := lru.New(prefixCacheSize)
	return &Prefix{svc: svc, tr: tr, prefixes: prefixes}
}

// Forget drops the cached prefix of a server after it changed.
func (p *Prefix) Forget(guildID int64) {
	p.prefixes.Remove(guildID)
}

func (p *Prefix) prefix(ctx context.Context, guildID int64) string {
	if guildID == 0 {
		return models.DefaultPrefix
	}
	if v, ok := p.prefixes.Get(guildID); ok {
		return v.(string)
	}
	guild, err := p.svc.store.Guilds.Get(ctx, guildID)
	if err != nil {
		slog.Error("Failed to load server prefix",
			slog.String("type", "db"),
			slog.Int64("guild_id", guildID),
			slog.Any("error", err))
		return models.DefaultPrefix
	}
	p.prefixes.Add(guildID, guild.Prefix)
	return guild.Prefix
}

func (p *Prefix) OnMessageEdit(context.Context, *transport.Message, *transport.Message) {}

func (p *Prefix) OnMessage(ctx context.Context, msg *transport.Message) {
	if msg.Author.Bot || msg.Content == "" {
		return
	}
	prefix := p.prefix(ctx, msg.GuildID)
	if len(msg.Content) < len(prefix) || !strings.EqualFold(msg.Content[:len(prefix)], prefix) {
		return
	}
	args := strings.Fields(msg.Content[len(prefix):])
	if len(args) == 0 {
		return
	}

	run := func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Text command panic", slog.String("type", "cmd"), slog.Any("panic", r))
			}
		}()
		p.Handle(ctx, msg, prefix, args)
	}
	if p.Go != nil {
		p.Go(run)
		return
	}
	go run()
}

// Handle runs one text command and answers in the message's channel.
func (p *Prefix) Handle(ctx context.Context, msg *transport.Message, prefix string, args []string) {
	ctx, cancel := context.WithTimeout(ctx, config.InteractionTimeout)
	defer cancel()

	name := strings.ToLower(args[0])
	start := time.Now()
	out, err := p.dispatch(ctx, msg, prefix, name, args[1:])
	if errors.Is(err, errUnknownCommand) {
		return
	}
	attrs := []any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.Int64("user_id", msg.Author.ID),
		slog.Duration("took", time.Since(start)),
	}
	if err != nil {
		kind := pipeline.Classify(err)
		if kind == pipeline.KindAborted || errors.Is(err, transport.ErrTimeout) {
			return
		}
		slog.Info("Text command failed", append(attrs, slog.String("kind", kind.String()), slog.Any("error", err))...)
		out = transport.OutgoingMessage{Embeds: []transport.Embed{{
			Description: handlers.ErrorMessage(err),
			Color:       config.ErrorColor,
		}}}
	} else {
		slog.Info("Text command completed", attrs...)
	}
	if out.Content == "" && len(out.Embeds) == 0 {
		return
	}
	out.ReplyTo = msg.ID
	if _, err = p.tr.Send(ctx, msg.ChannelID, out); err != nil && !errors.Is(err, transport.ErrForbidden) {
		slog.Error("Failed to answer text command", append(attrs, slog.Any("error", err))...)
	}
}

var errUnknownCommand = errors.New("unknown text command")

func embeds(e ...transport.Embed) transport.OutgoingMessage {
	return transport.OutgoingMessage{Embeds: e}
}

func (p *Prefix) dispatch(ctx context.Context, msg *transport.Message, prefix, name string, args []string) (transport.OutgoingMessage, error) {
	userID := msg.Author.ID
	switch name {
	case "help", "h":
		return embeds(HelpEmbed(prefix)), nil
	case "about":
		e, err := p.svc.About(ctx)
		return embeds(e), err
	case "on", "register", "start":
		e, err := p.svc.On(ctx, userID)
		return embeds(e), err
	case "off":
		e, err := p.svc.Off(ctx, userID)
		return embeds(e), err
	case "purge":
		if len(args) == 0 || strings.ToLower(args[0]) != "data" {
			return transport.OutgoingMessage{}, pipeline.Invalid("Use `%spurge data` to delete your data.", prefix)
		}
		return p.purge(ctx, msg)
	case "reminders", "rm", "list", "cd":
		if len(args) > 0 && strings.ToLower(args[0]) == "add" {
			if len(args) < 3 {
				return transport.OutgoingMessage{}, pipeline.Invalid("Use `%sreminders add <time> <text>`.", prefix)
			}
			r, err := p.svc.AddCustomReminder(ctx, userID, msg.ChannelID, args[1], strings.Join(args[2:], " "))
			if err != nil {
				return transport.OutgoingMessage{}, err
			}
			return embeds(successEmbed(CustomReminderAdded(r))), nil
		}
		target := p.target(ctx, msg)
		lines, err := p.svc.ReminderLines(ctx, target.ID)
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(ReminderPage(target.Display(), lines, 0)), nil
	case "stats", "st":
		target := p.target(ctx, msg)
		timeframe := ""
		for _, a := range args {
			if !strings.HasPrefix(a, "<@") {
				timeframe += a
			}
		}
		e, err := p.svc.Stats(ctx, target.ID, target.Display(), timeframe)
		return embeds(e), err
	case "workers", "wo":
		target := p.target(ctx, msg)
		e, err := p.svc.Workers(ctx, target.ID, target.Display())
		return embeds(e), err
	case "guild":
		if len(args) == 0 || strings.ToLower(args[0]) != "power" {
			return p.settings(ctx, msg, "guild")
		}
		e, err := p.svc.GuildPower(ctx, userID)
		return embeds(e), err
	case "calculator", "calc", "c":
		text, err := p.svc.Calculate(strings.Join(args, " "))
		return transport.OutgoingMessage{Content: text}, err
	case "codes", "code":
		e, err := p.svc.Codes(ctx)
		return embeds(e), err
	case "event-reductions", "er":
		e, err := p.svc.EventReductions(ctx)
		return embeds(e), err
	case "settings", "s":
		view := "user"
		if len(args) > 0 {
			view = strings.ToLower(args[0])
		}
		return p.settings(ctx, msg, view)
	}
	return transport.OutgoingMessage{}, errUnknownCommand
}

// target is the first mentioned user or the author.
func (p *Prefix) target(ctx context.Context, msg *transport.Message) transport.User {
	if len(msg.MentionIDs) == 0 {
		return msg.Author
	}
	u, err := p.tr.FetchUser(ctx, msg.MentionIDs[0])
	if err != nil {
		return transport.User{ID: msg.MentionIDs[0], Name: fmt.Sprintf("%d", msg.MentionIDs[0])}
	}
	return *u
}

func (p *Prefix) settings(ctx context.Context, msg *transport.Message, view string) (transport.OutgoingMessage, error) {
	switch view {
	case "user":
		user, err := p.svc.store.Users.Get(ctx, msg.Author.ID)
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(p.svc.UserSettingsEmbed(ctx, user)), nil
	case "helpers", "helper":
		user, err := p.svc.store.Users.Get(ctx, msg.Author.ID)
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(HelperSettingsEmbed(user)), nil
	case "reminders", "reminder", "messages":
		user, err := p.svc.store.Users.Get(ctx, msg.Author.ID)
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(ReminderSettingsEmbed(user)), nil
	case "server":
		if msg.GuildID == 0 {
			return transport.OutgoingMessage{}, pipeline.Invalid("Server settings only exist in servers.")
		}
		guild, err := p.svc.store.Guilds.Get(ctx, msg.GuildID)
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(ServerSettingsEmbed(guild)), nil
	case "guild":
		clan, err := p.svc.UpdateGuild(ctx, msg.Author.ID, GuildChanges{})
		if err != nil {
			return transport.OutgoingMessage{}, err
		}
		return embeds(GuildSettingsEmbed(clan, p.svc.now())), nil
	}
	return transport.OutgoingMessage{}, pipeline.Invalid("Settings are `user`, `helpers`, `reminders`, `server` and `guild`.")
}

func (p *Prefix) purge(ctx context.Context, msg *transport.Message) (transport.OutgoingMessage, error) {
	if _, err := p.svc.store.Users.Get(ctx, msg.Author.ID); err != nil {
		return transport.OutgoingMessage{}, err
	}
	res, err := p.tr.Prompt(ctx, transport.PromptRequest{
		ChannelID: msg.ChannelID,
		ReplyTo:   msg.ID,
		UserID:    msg.Author.ID,
		Content:   PurgeWarning,
		Options:   []transport.PromptOption{{Label: "Yes, delete everything", Value: purgeConfirm}},
		Timeout:   config.AbortTimeout,
	})
	if err != nil {
		return transport.OutgoingMessage{}, err
	}
	if res.Value != purgeConfirm {
		return transport.OutgoingMessage{}, transport.ErrAborted
	}
	if res.Message != nil {
		if _, err = p.tr.Edit(ctx, res.Message.ChannelID, res.Message.ID, transport.OutgoingMessage{Content: PurgeWarning + "\n\n**Confirmed**"}); err != nil && !errors.Is(err, transport.ErrForbidden) {
			return transport.OutgoingMessage{}, err
		}
	}
	if err = p.svc.PurgeData(ctx, msg.Author.ID); err != nil {
		return transport.OutgoingMessage{}, err
	}
	return embeds(successEmbed(PurgeDone)), nil
}

const (
	PurgeWarning = "**This deletes all your settings, reminders and tracked stats.** This can't be undone. Are you sure?"
	PurgeDone    = "All your data is gone. Thanks for using me! Use `/on` if you ever want to come back."
)

// CustomReminderAdded confirms a stored custom reminder.
func CustomReminderAdded(r *models.UserReminder) string {
	return fmt.Sprintf("Custom reminder #%d for **%s** set, I'll remind you <t:%d:R>.", r.CustomID, r.Message, r.EndTime.Unix())
}

// ReminderPage renders one page of reminder lines.
func ReminderPage(name string, lines []string, page int) transport.Embed {
	embed := infoEmbed(name+"'s reminders", "")
	if len(lines) == 0 {
		embed.Description = "No active reminders."
		return embed
	}
	pages := ReminderPages(lines)
	page = max(0, min(page, pages-1))
	start := page * config.DefaultPageSize
	end := min(start+config.DefaultPageSize, len(lines))
	embed.Description = strings.Join(lines[start:end], "\n")
	embed.FooterText = fmt.Sprintf("Page %d/%d • %d reminders", page+1, pages, len(lines))
	return embed
}

func ReminderPages(lines []string) int {
	return max(1, (len(lines)+config.DefaultPageSize-1)/config.DefaultPageSize)
}
