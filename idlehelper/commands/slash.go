package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/idlehelper/bot/idlehelper"
	"github.com/idlehelper/bot/idlehelper/chat"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/handlers"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// Handler serves the slash commands and their components.
type Handler struct {
	b      *idlehelper.Bot
	svc    *Service
	prefix *Prefix
}

func NewHandler(b *idlehelper.Bot, svc *Service, prefix *Prefix) *Handler {
	return &Handler{b: b, svc: svc, prefix: prefix}
}

func (h *Handler) Register(r handler.Router) {
	r.Command("/on", handlers.WrapWithLogging("on", h.HandleOn))
	r.Command("/off", handlers.WrapWithLogging("off", h.HandleOff))
	r.Command("/purge/data", handlers.WrapWithLogging("purge-data", h.HandlePurge))
	r.Component("/purge/", handlers.WrapComponentWithLogging("purge", h.HandlePurgeComponent))

	r.Route("/reminders", func(r handler.Router) {
		r.Command("/add", handlers.WrapWithLogging("reminders-add", h.HandleReminderAdd))
		r.Command("/list", handlers.WrapWithLogging("reminders-list", h.HandleReminderList))
	})
	r.Command("/stats", handlers.WrapWithLogging("stats", h.HandleStats))

	r.Route("/settings", func(r handler.Router) {
		r.Command("/user", handlers.WrapWithLogging("settings-user", h.HandleSettingsUser))
		r.Command("/helpers", handlers.WrapWithLogging("settings-helpers", h.HandleSettingsHelpers))
		r.Command("/reminders", handlers.WrapWithLogging("settings-reminders", h.HandleSettingsReminders))
		r.Command("/messages", handlers.WrapWithLogging("settings-messages", h.HandleSettingsMessages))
		r.Command("/server", handlers.WrapWithLogging("settings-server", h.HandleSettingsServer))
		r.Command("/guild", handlers.WrapWithLogging("settings-guild", h.HandleSettingsGuild))
	})

	r.Command("/workers", handlers.WrapWithLogging("workers", h.HandleWorkers))
	r.Command("/guild/power", handlers.WrapWithLogging("guild-power", h.HandleGuildPower))
	r.Command("/calculator", handlers.WrapWithLogging("calculator", h.HandleCalculator))
	r.Command("/codes", handlers.WrapWithLogging("codes", h.HandleCodes))
	r.Command("/event-reductions", handlers.WrapWithLogging("event-reductions", h.HandleEventReductions))
	r.Command("/help", handlers.WrapWithLogging("help", h.HandleHelp))
	r.Command("/about", handlers.WrapWithLogging("about", h.HandleAbout))

	r.Route("/dev", func(r handler.Router) {
		r.Command("/code", handlers.WrapWithLogging("dev-code", h.HandleDevCode))
		r.Command("/reduction", handlers.WrapWithLogging("dev-reduction", h.HandleDevReduction))
		r.Command("/minievent", handlers.WrapWithLogging("dev-minievent", h.HandleDevMinievent))
	})
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
}

func reply(e *handler.CommandEvent, embeds ...transport.Embed) error {
	return e.CreateMessage(discord.MessageCreate{Embeds: chat.Embeds(embeds)})
}

func replyEphemeral(e *handler.CommandEvent, embeds ...transport.Embed) error {
	return e.CreateMessage(discord.MessageCreate{Embeds: chat.Embeds(embeds), Flags: discord.MessageFlagEphemeral})
}

func optBool(data discord.SlashCommandInteractionData, name string) *bool {
	if v, ok := data.OptBool(name); ok {
		return &v
	}
	return nil
}

func optInt(data discord.SlashCommandInteractionData, name string) *int {
	if v, ok := data.OptInt(name); ok {
		return &v
	}
	return nil
}

func optString(data discord.SlashCommandInteractionData, name string) *string {
	if v, ok := data.OptString(name); ok {
		return &v
	}
	return nil
}

// target is the user option or the invoking user.
func target(e *handler.CommandEvent) (int64, string) {
	if u, ok := e.SlashCommandInteractionData().OptUser("user"); ok {
		return int64(u.ID), u.EffectiveName()
	}
	return int64(e.User().ID), e.User().EffectiveName()
}

func (h *Handler) HandleOn(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.On(ctx, int64(e.User().ID))
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleOff(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.Off(ctx, int64(e.User().ID))
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandlePurge(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	userID := int64(e.User().ID)
	if _, err := h.svc.store.Users.Get(ctx, userID); err != nil {
		return err
	}
	return e.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(PurgeWarning).
		AddActionRow(
			discord.NewDangerButton("Yes, delete everything", fmt.Sprintf("/purge/confirm/%d", userID)),
			discord.NewSecondaryButton("Cancel", fmt.Sprintf("/purge/abort/%d", userID)),
		).
		SetEphemeral(true).
		Build())
}

func (h *Handler) HandlePurgeComponent(e *handler.ComponentEvent) error {
	parts := strings.Split(strings.TrimPrefix(e.Data.CustomID(), "/purge/"), "/")
	if len(parts) != 2 {
		return pipeline.Invalid("This button is broken.")
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || owner != int64(e.User().ID) {
		return pipeline.Invalid("This button isn't yours.")
	}

	if parts[0] != "confirm" {
		return e.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetContent(PurgeWarning + "\n\n**Aborted**").
			ClearContainerComponents().
			Build())
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err = h.svc.PurgeData(ctx, owner); err != nil {
		return err
	}
	return e.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(PurgeDone).
		ClearContainerComponents().
		Build())
}

func (h *Handler) HandleReminderAdd(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	r, err := h.svc.AddCustomReminder(ctx, int64(e.User().ID), int64(e.ChannelID()), data.String("time"), data.String("text"))
	if err != nil {
		return err
	}
	return reply(e, successEmbed(CustomReminderAdded(r)))
}

func (h *Handler) HandleReminderList(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	userID, name := target(e)
	lines, err := h.svc.ReminderLines(ctx, userID)
	if err != nil {
		return err
	}

	return h.b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			p := ReminderPage(name, lines, page)
			embed.
				SetTitle(p.Title).
				SetDescription(p.Description).
				SetColor(p.Color).
				SetFooterText(p.FooterText)
		},
		Pages:      ReminderPages(lines),
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func (h *Handler) HandleStats(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	userID, name := target(e)
	timeframe, _ := e.SlashCommandInteractionData().OptString("timeframe")
	embed, err := h.svc.Stats(ctx, userID, name, timeframe)
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleSettingsUser(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	changes := UserChanges{
		Reactions: optBool(data, "reactions"),
		Tracking:  optBool(data, "tracking"),
		DND:       optBool(data, "dnd"),
		Embed:     optBool(data, "embed"),
		Slash:     optBool(data, "slash"),
		DonorTier: optInt(data, "donor-tier"),
		EnergyMax: optInt(data, "energy-max"),
		Energy:    optInt(data, "energy"),
	}
	if ch, ok := data.OptChannel("channel"); ok {
		id := int64(ch.ID)
		changes.ReminderChannelID = &id
	} else if reset, ok := data.OptBool("reset-channel"); ok && reset {
		var none int64
		changes.ReminderChannelID = &none
	}

	user, err := h.svc.UpdateUser(ctx, int64(e.User().ID), changes)
	if err != nil {
		return err
	}
	return replyEphemeral(e, h.svc.UserSettingsEmbed(ctx, user))
}

func (h *Handler) HandleSettingsHelpers(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	user, err := h.svc.UpdateHelpers(ctx, int64(e.User().ID), HelperChanges{
		Context:     optBool(data, "context"),
		Raid:        optBool(data, "raid"),
		Upgrades:    optBool(data, "upgrades"),
		Teamraid:    optBool(data, "teamraid"),
		RaidCompact: optBool(data, "raid-compact"),
		RaidNames:   optBool(data, "raid-names"),
	})
	if err != nil {
		return err
	}
	return replyEphemeral(e, HelperSettingsEmbed(user))
}

func (h *Handler) HandleSettingsReminders(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	userID := int64(e.User().ID)

	activity, hasActivity := data.OptString("reminder")
	enabled, hasEnabled := data.OptBool("enabled")
	var notes []transport.Embed
	switch {
	case hasActivity && hasEnabled:
		deleted, err := h.svc.SetReminderEnabled(ctx, userID, activity, enabled)
		if err != nil {
			return err
		}
		if deleted > 0 {
			notes = append(notes, successEmbed(fmt.Sprintf("Deleted %d active %s reminders.", deleted, activity)))
		}
	case hasActivity || hasEnabled:
		return pipeline.Invalid("Please pick a reminder and whether it should be enabled.")
	}

	user, err := h.svc.store.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return replyEphemeral(e, append([]transport.Embed{ReminderSettingsEmbed(user)}, notes...)...)
}

func (h *Handler) HandleSettingsMessages(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	userID := int64(e.User().ID)
	activity := data.String("reminder")

	message, hasMessage := data.OptString("message")
	if reset, ok := data.OptBool("reset"); ok && reset {
		message, hasMessage = "", true
	}
	if hasMessage {
		if _, err := h.svc.SetReminderMessage(ctx, userID, activity, message); err != nil {
			return err
		}
	}

	user, err := h.svc.store.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	return replyEphemeral(e, MessageSettingsEmbed(user, activity))
}

func (h *Handler) HandleSettingsServer(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	guildID := e.GuildID()
	member := e.Member()
	if guildID == nil || member == nil {
		return pipeline.Invalid("Server settings only exist in servers.")
	}
	data := e.SlashCommandInteractionData()
	event, hasEvent := data.OptString("event")
	enabled := optBool(data, "enabled")
	message := optString(data, "message")
	prefix, hasPrefix := data.OptString("prefix")

	changing := hasEvent || enabled != nil || message != nil || hasPrefix
	if changing && !member.Permissions.Has(discord.PermissionManageGuild) {
		return pipeline.Invalid("You need the Manage Server permission to change server settings.")
	}
	if !hasEvent && (enabled != nil || message != nil) {
		return pipeline.Invalid("Please pick the event you want to change.")
	}

	id := int64(*guildID)
	if hasEvent {
		if _, err := h.svc.UpdateServerEvent(ctx, id, event, enabled, message); err != nil {
			return err
		}
	}
	if hasPrefix {
		if _, err := h.svc.UpdateServerPrefix(ctx, id, prefix); err != nil {
			return err
		}
		h.prefix.Forget(id)
	}
	guild, err := h.svc.store.Guilds.Get(ctx, id)
	if err != nil {
		return err
	}
	return replyEphemeral(e, ServerSettingsEmbed(guild))
}

func (h *Handler) HandleSettingsGuild(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	changes := GuildChanges{
		Reminders:       optBool(data, "reminders"),
		Teamraid:        optBool(data, "teamraid"),
		Alerts:          optBool(data, "alerts"),
		ReminderMessage: optString(data, "reminder-message"),
		AlertMessage:    optString(data, "alert-message"),
	}
	if ch, ok := data.OptChannel("channel"); ok {
		id := int64(ch.ID)
		changes.ChannelID = &id
	}
	if role, ok := data.OptRole("role"); ok {
		id := int64(role.ID)
		changes.RoleID = &id
	}
	if offset, ok := data.OptFloat("offset"); ok {
		changes.OffsetHours = &offset
	}

	clan, err := h.svc.UpdateGuild(ctx, int64(e.User().ID), changes)
	if err != nil {
		return err
	}
	return replyEphemeral(e, GuildSettingsEmbed(clan, h.b.Now()))
}

func (h *Handler) HandleWorkers(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	userID, name := target(e)
	embed, err := h.svc.Workers(ctx, userID, name)
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleGuildPower(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.GuildPower(ctx, int64(e.User().ID))
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleCalculator(e *handler.CommandEvent) error {
	text, err := h.svc.Calculate(e.SlashCommandInteractionData().String("expression"))
	if err != nil {
		return err
	}
	return e.CreateMessage(discord.MessageCreate{Content: text})
}

func (h *Handler) HandleCodes(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.Codes(ctx)
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleEventReductions(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.EventReductions(ctx)
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleHelp(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	prefix := h.prefix.prefix(ctx, 0)
	if guildID := e.GuildID(); guildID != nil {
		prefix = h.prefix.prefix(ctx, int64(*guildID))
	}
	return reply(e, HelpEmbed(prefix))
}

func (h *Handler) HandleAbout(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	embed, err := h.svc.About(ctx)
	if err != nil {
		return err
	}
	return reply(e, embed)
}

func (h *Handler) HandleDevCode(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	if err := h.svc.AddCode(ctx, int64(e.User().ID), data.String("code"), data.String("contents")); err != nil {
		return err
	}
	return replyEphemeral(e, successEmbed("Code stored."))
}

func (h *Handler) HandleDevReduction(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	data := e.SlashCommandInteractionData()
	if err := h.svc.SetEventReduction(ctx, int64(e.User().ID), data.String("activity"), data.Float("slash"), data.Float("mention")); err != nil {
		return err
	}
	return replyEphemeral(e, successEmbed("Event reduction updated."))
}

func (h *Handler) HandleDevMinievent(e *handler.CommandEvent) error {
	ctx, cancel := commandContext()
	defer cancel()
	if err := h.svc.SetMinieventMultiplier(ctx, int64(e.User().ID), e.SlashCommandInteractionData().Float("multiplier")); err != nil {
		return err
	}
	return replyEphemeral(e, successEmbed("Mini event multiplier updated."))
}
