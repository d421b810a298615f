package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
)

const (
	maxDonorTier  = 6
	maxEnergy     = 9999
	maxOffsetHour = 24
	maxPrefixLen  = 10
)

// ReminderActivities are the user reminder kinds that can be configured, in menu order.
var ReminderActivities = []string{
	models.ActivityClaim,
	models.ActivityDaily,
	models.ActivityVote,
	models.ActivityShop,
	models.ActivityBoost,
	models.ActivityEnergy,
	models.ActivityCustom,
}

var reminderColumns = map[string]string{
	models.ActivityClaim:  "reminder_claim",
	models.ActivityDaily:  "reminder_daily",
	models.ActivityVote:   "reminder_vote",
	models.ActivityShop:   "reminder_shop",
	models.ActivityBoost:  "reminder_boosts",
	models.ActivityEnergy: "reminder_energy",
	models.ActivityCustom: "reminder_custom",
}

var defaultMessages = map[string]string{
	models.ActivityClaim:  models.DefaultMessageClaim,
	models.ActivityDaily:  models.DefaultMessageDaily,
	models.ActivityVote:   models.DefaultMessageVote,
	models.ActivityShop:   models.DefaultMessageShop,
	models.ActivityBoost:  models.DefaultMessageBoosts,
	models.ActivityEnergy: models.DefaultMessageEnergy,
	models.ActivityCustom: models.DefaultMessageCustom,
}

// UserChanges holds the user settings to change. Nil fields stay as they are.
type UserChanges struct {
	Reactions *bool
	Tracking  *bool
	DND       *bool
	Embed     *bool
	Slash     *bool
	// ReminderChannelID 0 resets to the channel the game command was used in.
	ReminderChannelID *int64
	DonorTier         *int
	EnergyMax         *int
	// Energy is the current energy amount, it moves the energy full time.
	Energy *int
}

type HelperChanges struct {
	Context     *bool
	Raid        *bool
	Upgrades    *bool
	Teamraid    *bool
	RaidCompact *bool
	RaidNames   *bool
}

// GuildChanges holds the guild settings to change. Nil fields stay as they are.
type GuildChanges struct {
	ChannelID       *int64
	RoleID          *int64
	Reminders       *bool
	OffsetHours     *float64
	Teamraid        *bool
	Alerts          *bool
	ReminderMessage *string
	AlertMessage    *string
}

func setBool(fields map[string]interface{}, column string, v *bool) {
	if v != nil {
		fields[column] = *v
	}
}

// UpdateUser applies changes and returns the stored user.
func (s *Service) UpdateUser(ctx context.Context, userID int64, changes UserChanges) (*models.User, error) {
	user, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	setBool(fields, "reactions_enabled", changes.Reactions)
	setBool(fields, "tracking_enabled", changes.Tracking)
	setBool(fields, "dnd_mode_enabled", changes.DND)
	setBool(fields, "reminders_as_embed", changes.Embed)
	setBool(fields, "reminders_slash_enabled", changes.Slash)
	if changes.ReminderChannelID != nil {
		if *changes.ReminderChannelID == 0 {
			fields["reminder_channel_id"] = nil
		} else {
			fields["reminder_channel_id"] = *changes.ReminderChannelID
		}
	}
	if changes.DonorTier != nil {
		if *changes.DonorTier < 0 || *changes.DonorTier > maxDonorTier {
			return nil, pipeline.Invalid("The donor tier has to be between 0 and %d.", maxDonorTier)
		}
		fields["donor_tier"] = *changes.DonorTier
		user.DonorTier = *changes.DonorTier
	}
	if changes.EnergyMax != nil {
		if *changes.EnergyMax < 1 || *changes.EnergyMax > maxEnergy {
			return nil, pipeline.Invalid("Your maximum energy has to be between 1 and %d.", maxEnergy)
		}
		fields["energy_max"] = *changes.EnergyMax
		user.EnergyMax = *changes.EnergyMax
	}
	if changes.Energy != nil {
		if user.EnergyMax == 0 {
			return nil, pipeline.Invalid("Please set your maximum energy first.")
		}
		if *changes.Energy < 0 || *changes.Energy > user.EnergyMax {
			return nil, pipeline.Invalid("Your energy has to be between 0 and %d.", user.EnergyMax)
		}
		regen, err := s.regenTime(ctx, user)
		if err != nil {
			return nil, err
		}
		missing := user.EnergyMax - *changes.Energy
		fields["energy_full_time"] = s.now().Add(time.Duration(missing) * regen)
	}
	if len(fields) > 0 {
		if err = s.store.Users.Update(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.store.Users.Get(ctx, userID)
}

func (s *Service) UpdateHelpers(ctx context.Context, userID int64, changes HelperChanges) (*models.User, error) {
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	setBool(fields, "helper_context_enabled", changes.Context)
	setBool(fields, "helper_raid_enabled", changes.Raid)
	setBool(fields, "helper_upgrades_enabled", changes.Upgrades)
	setBool(fields, "helper_teamraid_enabled", changes.Teamraid)
	setBool(fields, "helper_raid_compact_mode", changes.RaidCompact)
	setBool(fields, "helper_raid_names_shown", changes.RaidNames)
	if len(fields) > 0 {
		if err := s.store.Users.Update(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.store.Users.Get(ctx, userID)
}

// SetReminderEnabled toggles one reminder kind. Turning it off deletes the pending
// reminders of that kind and returns how many were deleted.
func (s *Service) SetReminderEnabled(ctx context.Context, userID int64, activity string, enabled bool) (int, error) {
	column, ok := reminderColumns[activity]
	if !ok {
		return 0, pipeline.Invalid("I don't know a reminder called `%s`.", activity)
	}
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return 0, err
	}
	if err := s.store.Users.Update(ctx, userID, map[string]interface{}{column + "_enabled": enabled}); err != nil {
		return 0, err
	}
	if enabled {
		return 0, nil
	}

	active, err := s.store.Reminders.ListActiveUserReminders(ctx, userID, activity, s.now())
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i := range active {
		if models.ActivityFamily(active[i].Activity) != activity {
			continue
		}
		if err = s.scheduler.DeleteUserReminder(ctx, &active[i]); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// SetReminderMessage stores a new template for a reminder kind, an empty message
// restores the default. Pending reminders of that kind pick up the new template.
func (s *Service) SetReminderMessage(ctx context.Context, userID int64, activity, message string) (string, error) {
	column, ok := reminderColumns[activity]
	if !ok {
		return "", pipeline.Invalid("I don't know a reminder called `%s`.", activity)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = defaultMessages[activity]
	}
	if err := reminders.Validate(activity, message); err != nil {
		return "", err
	}
	if _, err := s.store.Users.Get(ctx, userID); err != nil {
		return "", err
	}
	if err := s.store.Users.Update(ctx, userID, map[string]interface{}{column + "_message": message}); err != nil {
		return "", err
	}
	if activity == models.ActivityCustom {
		return message, nil
	}

	now := s.now()
	active, err := s.store.Reminders.ListActiveUserReminders(ctx, userID, activity, now)
	if err != nil {
		return "", err
	}
	for _, r := range active {
		if models.ActivityFamily(r.Activity) != activity || r.Message == message {
			continue
		}
		if _, err = s.scheduler.UpsertUserReminder(ctx, repositories.UserReminderUpsert{
			UserID:           userID,
			Activity:         r.Activity,
			TimeLeft:         r.EndTime.Sub(now),
			ChannelID:        r.ChannelID,
			Message:          message,
			OverwriteMessage: true,
			Now:              now,
		}); err != nil {
			return "", err
		}
	}
	return message, nil
}

// UpdateServerEvent changes one event ping of a server.
func (s *Service) UpdateServerEvent(ctx context.Context, guildID int64, event string, enabled *bool, message *string) (*models.Guild, error) {
	guild, err := s.store.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if _, ok := guild.Event(event); !ok {
		return nil, pipeline.Invalid("I don't know an event called `%s`.", event)
	}

	fields := map[string]interface{}{}
	prefix := "event_" + event + "_"
	setBool(fields, prefix+"enabled", enabled)
	if message != nil {
		text := strings.TrimSpace(*message)
		if text == "" {
			def, _ := models.NewGuild(guildID).Event(event)
			text = def.Message
		}
		if len([]rune(text)) > config.MaxReminderMessageLen {
			return nil, fmt.Errorf("%w: %d characters, maximum is %d", reminders.ErrMessageTooLong, len([]rune(text)), config.MaxReminderMessageLen)
		}
		fields[prefix+"message"] = text
	}
	if len(fields) > 0 {
		if err = s.store.Guilds.Update(ctx, guildID, fields); err != nil {
			return nil, err
		}
	}
	return s.store.Guilds.Get(ctx, guildID)
}

// UpdateServerPrefix changes the text command prefix of a server. Prefixes ending
// in a letter or digit get a trailing space.
func (s *Service) UpdateServerPrefix(ctx context.Context, guildID int64, prefix string) (*models.Guild, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || utf8.RuneCountInString(prefix) > maxPrefixLen || strings.ContainsAny(prefix, "`\n") {
		return nil, pipeline.Invalid("Prefixes need 1 to %d characters and no backticks.", maxPrefixLen)
	}
	if last, _ := utf8.DecodeLastRuneInString(prefix); unicode.IsLetter(last) || unicode.IsDigit(last) {
		prefix += " "
	}
	if _, err := s.store.Guilds.Get(ctx, guildID); err != nil {
		return nil, err
	}
	if err := s.store.Guilds.Update(ctx, guildID, map[string]interface{}{"prefix": prefix}); err != nil {
		return nil, err
	}
	return s.store.Guilds.Get(ctx, guildID)
}

// UpdateGuild changes the settings of the guild led by userID.
func (s *Service) UpdateGuild(ctx context.Context, userID int64, changes GuildChanges) (*models.Clan, error) {
	clan, err := s.store.Clans.GetByMemberID(ctx, userID)
	if repositories.IsNotFound(err) {
		return nil, pipeline.Invalid("You are not in a guild I know. Open your guild overview in the game so I can register it.")
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if changes.ChannelID != nil || changes.RoleID != nil || changes.Reminders != nil || changes.OffsetHours != nil ||
		changes.Teamraid != nil || changes.Alerts != nil || changes.ReminderMessage != nil || changes.AlertMessage != nil {
		if clan.LeaderID != userID {
			return nil, pipeline.Invalid("Only the guild leader can change the guild settings.")
		}
	}

	optionalID := func(column string, v *int64) {
		if v == nil {
			return
		}
		if *v == 0 {
			fields[column] = nil
			return
		}
		fields[column] = *v
	}
	optionalID("reminder_channel_id", changes.ChannelID)
	optionalID("reminder_role_id", changes.RoleID)
	setBool(fields, "reminder_enabled", changes.Reminders)
	setBool(fields, "helper_teamraid_enabled", changes.Teamraid)
	setBool(fields, "alert_contribution_enabled", changes.Alerts)
	if changes.OffsetHours != nil {
		offset := *changes.OffsetHours
		if math.IsNaN(offset) || offset < 0 || offset > maxOffsetHour {
			return nil, pipeline.Invalid("The reminder offset has to be between 0 and %d hours.", maxOffsetHour)
		}
		fields["reminder_offset_hours"] = offset
	}
	if changes.ReminderMessage != nil {
		text := strings.TrimSpace(*changes.ReminderMessage)
		if text == "" {
			text = models.DefaultMessageClan
		}
		if err = reminders.Validate(models.ActivityClan, text); err != nil {
			return nil, err
		}
		fields["reminder_message"] = text
	}
	if changes.AlertMessage != nil {
		text := strings.TrimSpace(*changes.AlertMessage)
		if text == "" {
			text = models.DefaultMessageClanBuff
		}
		if err = reminders.Validate(reminders.ActivityClanBuff, text); err != nil {
			return nil, err
		}
		fields["alert_contribution_message"] = text
	}

	if (changes.Reminders != nil && *changes.Reminders) || (changes.Alerts != nil && *changes.Alerts) {
		channel := clan.ReminderChannelID
		if changes.ChannelID != nil {
			channel = *changes.ChannelID
		}
		if channel == 0 {
			return nil, pipeline.Invalid("Please set a guild channel before turning on guild reminders or alerts.")
		}
	}

	if len(fields) == 0 {
		return clan, nil
	}
	return s.store.Clans.Update(ctx, clan.ClanName, repositories.ClanUpdate{Fields: fields})
}

// UserSettingsEmbed shows the general settings of a user.
func (s *Service) UserSettingsEmbed(ctx context.Context, user *models.User) transport.Embed {
	energyLine := "unknown, open your profile in the game"
	if regen, err := s.regenTime(ctx, user); err == nil {
		if current, err := energy.Current(user.EnergyMax, user.EnergyFullTime, s.now(), regen); err == nil {
			energyLine = fmt.Sprintf("%d/%d, full %s", int(math.Floor(current)), user.EnergyMax, reminders.Relative(user.EnergyFullTime))
		}
	}
	donor := fmt.Sprintf("%d", user.DonorTier)
	for _, tier := range s.data.DonorTiers {
		if tier.Tier == user.DonorTier {
			donor = fmt.Sprintf("%d (%s)", tier.Tier, tier.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Helper** %s\n", onOff(user.BotEnabled))
	fmt.Fprintf(&b, "**Reactions** %s\n", onOff(user.ReactionsEnabled))
	fmt.Fprintf(&b, "**Tracking** %s\n", onOff(user.TrackingEnabled))
	fmt.Fprintf(&b, "**DND mode** %s\n", onOff(user.DNDModeEnabled))
	fmt.Fprintf(&b, "**Reminders as embed** %s\n", onOff(user.RemindersAsEmbed))
	fmt.Fprintf(&b, "**Slash commands in reminders** %s\n", onOff(user.RemindersSlashEnabled))
	fmt.Fprintf(&b, "**Reminder channel** %s\n", channelMention(user.ReminderChannelID))
	fmt.Fprintf(&b, "**Donor tier** %s\n", donor)
	fmt.Fprintf(&b, "**Energy** %s", energyLine)
	return infoEmbed("User settings", b.String())
}

func HelperSettingsEmbed(user *models.User) transport.Embed {
	var b strings.Builder
	fmt.Fprintf(&b, "**Context commands** %s\n", onOff(user.HelperContextEnabled))
	fmt.Fprintf(&b, "**Raid helper** %s\n", onOff(user.HelperRaidEnabled))
	fmt.Fprintf(&b, "**Raid compact mode** %s\n", onOff(user.HelperRaidCompactMode))
	fmt.Fprintf(&b, "**Raid worker names** %s\n", onOff(user.HelperRaidNamesShown))
	fmt.Fprintf(&b, "**Teamraid helper** %s\n", onOff(user.HelperTeamraidEnabled))
	fmt.Fprintf(&b, "**Upgrades helper** %s", onOff(user.HelperUpgradesEnabled))
	return infoEmbed("Helper settings", b.String())
}

func ReminderSettingsEmbed(user *models.User) transport.Embed {
	var b strings.Builder
	for _, activity := range ReminderActivities {
		setting, _ := user.ReminderFor(activity)
		fmt.Fprintf(&b, "**%s** %s\n", activity, onOff(setting.Enabled))
	}
	return infoEmbed("Reminder settings", strings.TrimSuffix(b.String(), "\n"))
}

func MessageSettingsEmbed(user *models.User, activity string) transport.Embed {
	setting, _ := user.ReminderFor(activity)
	return transport.Embed{
		Title:       "Reminder message: " + activity,
		Description: setting.Message,
		Fields: []transport.Field{{
			Name:  "Placeholders",
			Value: "`" + strings.Join(reminders.Placeholders(activity), "` `") + "`",
		}},
		Color: config.EmbedDefaultColor,
	}
}

func ServerSettingsEmbed(guild *models.Guild) transport.Embed {
	embed := infoEmbed("Server settings", fmt.Sprintf("**Prefix** `%s`", strings.TrimSpace(guild.Prefix)))
	for _, kind := range []string{models.EventEnergy, models.EventFired, models.EventLucky, models.EventPacking} {
		event, _ := guild.Event(kind)
		embed.Fields = append(embed.Fields, transport.Field{
			Name:  fmt.Sprintf("%s (%s)", event.Name, onOff(event.Enabled)),
			Value: event.Message,
		})
	}
	return embed
}

func GuildSettingsEmbed(clan *models.Clan, now time.Time) transport.Embed {
	role := "not set"
	if clan.ReminderRoleID != 0 {
		role = reminders.RoleMention(clan.ReminderRoleID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Leader** %s\n", reminders.Mention(clan.LeaderID))
	fmt.Fprintf(&b, "**Members** %d\n", len(clan.Members))
	fmt.Fprintf(&b, "**Channel** %s\n", channelMention(clan.ReminderChannelID))
	fmt.Fprintf(&b, "**Role** %s\n", role)
	fmt.Fprintf(&b, "**Reminders** %s\n", onOff(clan.ReminderEnabled))
	fmt.Fprintf(&b, "**Reminder offset** %s hours\n", humanize.Ftoa(clan.ReminderOffsetHours))
	fmt.Fprintf(&b, "**Teamraid helper** %s\n", onOff(clan.HelperTeamraidEnabled))
	fmt.Fprintf(&b, "**Guild buff alerts** %s\n", onOff(clan.AlertContributionEnabled))
	fmt.Fprintf(&b, "**Seals this week** %s, reset %s", humanize.Comma(int64(clan.SealsTotal())), reminders.Relative(clans.NextReset(now)))
	embed := infoEmbed("Guild "+clan.ClanName, b.String())
	embed.Fields = []transport.Field{
		{Name: "Reminder message", Value: clan.ReminderMessage},
		{Name: "Alert message", Value: clan.AlertContributionMessage},
	}
	return embed
}
