package models

import "time"

// Default message templates. Placeholders are filled when the reminder is delivered.
const (
	DefaultMessageClaim    = "{name} Hey! Your farm produced for **{production_time}** since {last_claim_time}! {command}"
	DefaultMessageDaily    = "{name} Hey! It's time for {command}! Next reset {daily_reset_time}."
	DefaultMessageVote     = "{name} Hey! It's time for {command}!"
	DefaultMessageShop     = "{name} Hey! The **{shop_item}** is in stock again! {command}"
	DefaultMessageBoosts   = "{name} Hey! Your {boost_emoji} **{boost_name}** just ran out! {command}"
	DefaultMessageEnergy   = "{name} Hey! You now have **{energy_amount}** energy! Full {energy_full_time}."
	DefaultMessageCustom   = "{name} Hey! This is your reminder for **{custom_reminder_text}**!"
	DefaultMessageClan     = "{guild_role} Hey! It's time for {command}!"
	DefaultMessageClanBuff = "{guild_role} Hey! Your guild reached **{guild_seals_total}** seals and unlocked **{guild_buff_name}**! Resets {guild_contribution_reset_time}."

	DefaultEventEnergy  = "Hey! An **energy ritual** started! Join to get free energy!"
	DefaultEventFired   = "Hey! A worker got **fired**! Be the first to hire them!"
	DefaultEventLucky   = "Hey! A **lucky reward** appeared! Grab it!"
	DefaultEventPacking = "Hey! A **packing** event started! Help pack the goods!"

	// DefaultPrefix starts the helper's own text commands.
	DefaultPrefix = "ih "
	// GamePrefix starts the game's text commands.
	GamePrefix = "idle "
)

// NewUser materializes a user with every reminder enabled and default templates.
func NewUser(userID int64, now time.Time) *User {
	on := func(message string) ReminderSetting {
		return ReminderSetting{Enabled: true, Message: message}
	}
	return &User{
		UserID:                userID,
		BotEnabled:            true,
		ReminderClaim:         on(DefaultMessageClaim),
		ReminderDaily:         on(DefaultMessageDaily),
		ReminderVote:          on(DefaultMessageVote),
		ReminderShop:          on(DefaultMessageShop),
		ReminderBoosts:        on(DefaultMessageBoosts),
		ReminderEnergy:        on(DefaultMessageEnergy),
		ReminderCustom:        on(DefaultMessageCustom),
		HelperContextEnabled:  true,
		HelperRaidEnabled:     true,
		HelperUpgradesEnabled: true,
		HelperTeamraidEnabled: true,
		TrackingEnabled:       true,
		ReactionsEnabled:      true,
		CreatedAt:             now.UTC().Truncate(time.Second),
	}
}

func NewGuild(guildID int64) *Guild {
	return &Guild{
		GuildID:      guildID,
		Prefix:       DefaultPrefix,
		EventEnergy:  EventSetting{Name: "energy ritual", Message: DefaultEventEnergy},
		EventFired:   EventSetting{Name: "fired worker", Message: DefaultEventFired},
		EventLucky:   EventSetting{Name: "lucky reward", Message: DefaultEventLucky},
		EventPacking: EventSetting{Name: "packing", Message: DefaultEventPacking},
	}
}

func NewClan(name string, leaderID int64) *Clan {
	return &Clan{
		ClanName:                 name,
		LeaderID:                 leaderID,
		ReminderMessage:          DefaultMessageClan,
		AlertContributionMessage: DefaultMessageClanBuff,
		HelperTeamraidEnabled:    true,
	}
}
