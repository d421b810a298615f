package reminders

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrMessageTooLong     = errors.New("reminder message is too long")
)

// ActivityClanBuff names the template of guild seal alerts.
const ActivityClanBuff = "clan-buff"

const (
	PlaceholderName                 = "{name}"
	PlaceholderCommand              = "{command}"
	PlaceholderCustomText           = "{custom_reminder_text}"
	PlaceholderLastClaimTime        = "{last_claim_time}"
	PlaceholderProductionTime       = "{production_time}"
	PlaceholderDailyResetTime       = "{daily_reset_time}"
	PlaceholderEnergyAmount         = "{energy_amount}"
	PlaceholderEnergyFullTime       = "{energy_full_time}"
	PlaceholderShopItem             = "{shop_item}"
	PlaceholderBoostEmoji           = "{boost_emoji}"
	PlaceholderBoostName            = "{boost_name}"
	PlaceholderGuildRole            = "{guild_role}"
	PlaceholderGuildBuffName        = "{guild_buff_name}"
	PlaceholderGuildSealsTotal      = "{guild_seals_total}"
	PlaceholderGuildContributionEnd = "{guild_contribution_reset_time}"
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

var placeholders = map[string][]string{
	models.ActivityClaim:  {PlaceholderName, PlaceholderCommand, PlaceholderLastClaimTime, PlaceholderProductionTime},
	models.ActivityDaily:  {PlaceholderName, PlaceholderCommand, PlaceholderDailyResetTime},
	models.ActivityVote:   {PlaceholderName, PlaceholderCommand},
	models.ActivityShop:   {PlaceholderName, PlaceholderCommand, PlaceholderShopItem},
	models.ActivityBoost:  {PlaceholderName, PlaceholderCommand, PlaceholderBoostEmoji, PlaceholderBoostName},
	models.ActivityEnergy: {PlaceholderName, PlaceholderCommand, PlaceholderEnergyAmount, PlaceholderEnergyFullTime},
	models.ActivityCustom: {PlaceholderName, PlaceholderCustomText},
	models.ActivityClan:   {PlaceholderGuildRole, PlaceholderCommand},
	ActivityClanBuff: {
		PlaceholderGuildRole, PlaceholderGuildBuffName, PlaceholderGuildSealsTotal, PlaceholderGuildContributionEnd,
	},
}

// Placeholders lists the tokens a template for activity may use.
func Placeholders(activity string) []string {
	if p, ok := placeholders[activity]; ok {
		return p
	}
	return placeholders[models.ActivityFamily(activity)]
}

// Validate rejects templates that are too long or use tokens the activity cannot fill.
func Validate(activity, template string) error {
	if len([]rune(template)) > config.MaxReminderMessageLen {
		return fmt.Errorf("%w: %d characters, maximum is %d", ErrMessageTooLong, len([]rune(template)), config.MaxReminderMessageLen)
	}
	allowed := Placeholders(activity)
	for _, token := range placeholderPattern.FindAllString(template, -1) {
		known := false
		for _, a := range allowed {
			if a == token {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w %s for %s reminders", ErrUnknownPlaceholder, token, models.ActivityFamily(activity))
		}
	}
	return nil
}

// Renderer fills reminder templates.
type Renderer struct {
	data *gamedata.Data
}

func NewRenderer(data *gamedata.Data) *Renderer {
	return &Renderer{data: data}
}

// Mention formats a user ping.
func Mention(userID int64) string {
	return "<@" + strconv.FormatInt(userID, 10) + ">"
}

// RoleMention formats a role ping, empty for no role.
func RoleMention(roleID int64) string {
	if roleID == 0 {
		return ""
	}
	return "<@&" + strconv.FormatInt(roleID, 10) + ">"
}

// Relative formats t as a chat timestamp counting up or down from now.
func Relative(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// NextMidnight returns the next 00:00 UTC after now.
func NextMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func (r *Renderer) command(activity string, slash bool) string {
	cmd := r.data.Command(activity)
	if cmd == "" {
		return ""
	}
	if !slash {
		cmd = models.GamePrefix + strings.TrimPrefix(cmd, "/")
	}
	return "`" + cmd + "`"
}

// RenderUser builds the message delivered for a user reminder.
func (r *Renderer) RenderUser(user *models.User, reminder *models.UserReminder, displayName string) transport.OutgoingMessage {
	template := reminder.Message
	values := map[string]string{
		PlaceholderCommand: r.command(reminder.Activity, user.RemindersSlashEnabled),
	}

	suffix := models.ActivitySuffix(reminder.Activity)
	switch models.ActivityFamily(reminder.Activity) {
	case models.ActivityClaim:
		values[PlaceholderLastClaimTime] = Relative(user.LastClaimTime)
		production := time.Duration(0)
		if !user.LastClaimTime.IsZero() {
			production = reminder.EndTime.Sub(user.LastClaimTime).Truncate(time.Second)
			production += time.Duration(user.TimeSpeedersUsed) * config.TimeSpeederProduction
		}
		values[PlaceholderProductionTime] = timestring.Format(production)
	case models.ActivityDaily:
		values[PlaceholderDailyResetTime] = Relative(NextMidnight(reminder.EndTime))
	case models.ActivityShop:
		values[PlaceholderShopItem] = suffix
	case models.ActivityBoost:
		values[PlaceholderBoostName] = suffix
		if b, ok := r.data.BoostByName(suffix); ok {
			values[PlaceholderBoostEmoji] = b.Emoji
		}
	case models.ActivityEnergy:
		values[PlaceholderEnergyAmount] = suffix
		values[PlaceholderEnergyFullTime] = Relative(user.EnergyFullTime)
	case models.ActivityCustom:
		template = user.ReminderCustom.Message
		values[PlaceholderCustomText] = reminder.Message
	}

	plain := !user.DNDModeEnabled && !user.RemindersAsEmbed
	if plain {
		values[PlaceholderName] = Mention(user.UserID)
	} else {
		values[PlaceholderName] = displayName
	}
	text := fill(template, values)

	msg := transport.OutgoingMessage{AllowedMentions: transport.AllowedMentions{Users: plain}}
	if user.RemindersAsEmbed {
		msg.Embeds = []transport.Embed{{
			Title:       displayName + "'s reminder",
			Description: text,
			Color:       config.EmbedDefaultColor,
		}}
		return msg
	}
	msg.Content = text
	return msg
}

// RenderClan builds the guild reminder message. The role is always pinged.
func (r *Renderer) RenderClan(clan *models.Clan, reminder *models.ClanReminder) transport.OutgoingMessage {
	text := fill(reminder.Message, map[string]string{
		PlaceholderGuildRole: RoleMention(clan.ReminderRoleID),
		PlaceholderCommand:   r.command(models.ActivityClan, true),
	})
	return transport.OutgoingMessage{
		Content:         text,
		AllowedMentions: transport.AllowedMentions{Roles: true},
	}
}

// RenderClanBuff builds the alert sent when the guild crosses a seal threshold.
func (r *Renderer) RenderClanBuff(clan *models.Clan, buff gamedata.GuildBuff, total int, reset time.Time) transport.OutgoingMessage {
	text := fill(clan.AlertContributionMessage, map[string]string{
		PlaceholderGuildRole:            RoleMention(clan.ReminderRoleID),
		PlaceholderGuildBuffName:        buff.Name,
		PlaceholderGuildSealsTotal:      strconv.Itoa(total),
		PlaceholderGuildContributionEnd: Relative(reset),
	})
	return transport.OutgoingMessage{
		Content:         text,
		AllowedMentions: transport.AllowedMentions{Roles: true},
	}
}

func fill(template string, values map[string]string) string {
	text := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		if v, ok := values[token]; ok {
			return v
		}
		return ""
	})
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}
