package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReminderSetting is one per-activity reminder toggle plus its message template.
type ReminderSetting struct {
	Enabled bool   `bun:"enabled,notnull"`
	Message string `bun:"message,notnull"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID     int64 `bun:"user_id,pk"`
	BotEnabled bool  `bun:"bot_enabled,notnull"`
	DonorTier  int   `bun:"donor_tier,notnull"`

	// Energy
	EnergyMax      int       `bun:"energy_max,notnull"`
	EnergyFullTime time.Time `bun:"energy_full_time,nullzero"`

	// Claim state
	LastClaimTime       time.Time `bun:"last_claim_time,nullzero"`
	TimeSpeedersUsed    int       `bun:"time_speeders_used,notnull"`
	TimeCompressorsUsed int       `bun:"time_compressors_used,notnull"`
	Idlucks             int64     `bun:"idlucks,notnull"`

	// Reminders
	ReminderClaim     ReminderSetting `bun:"embed:reminder_claim_"`
	ReminderDaily     ReminderSetting `bun:"embed:reminder_daily_"`
	ReminderVote      ReminderSetting `bun:"embed:reminder_vote_"`
	ReminderShop      ReminderSetting `bun:"embed:reminder_shop_"`
	ReminderBoosts    ReminderSetting `bun:"embed:reminder_boosts_"`
	ReminderEnergy    ReminderSetting `bun:"embed:reminder_energy_"`
	ReminderCustom    ReminderSetting `bun:"embed:reminder_custom_"`
	ReminderChannelID int64           `bun:"reminder_channel_id,nullzero"`

	// Helpers
	HelperContextEnabled  bool `bun:"helper_context_enabled,notnull"`
	HelperRaidEnabled     bool `bun:"helper_raid_enabled,notnull"`
	HelperUpgradesEnabled bool `bun:"helper_upgrades_enabled,notnull"`
	HelperTeamraidEnabled bool `bun:"helper_teamraid_enabled,notnull"`
	HelperRaidCompactMode bool `bun:"helper_raid_compact_mode,notnull"`
	HelperRaidNamesShown  bool `bun:"helper_raid_names_shown,notnull"`

	// Preferences
	RemindersAsEmbed      bool `bun:"reminders_as_embed,notnull"`
	RemindersSlashEnabled bool `bun:"reminders_slash_enabled,notnull"`
	DNDModeEnabled        bool `bun:"dnd_mode_enabled,notnull"`
	TrackingEnabled       bool `bun:"tracking_enabled,notnull"`
	ReactionsEnabled      bool `bun:"reactions_enabled,notnull"`

	ReminderClaimLastSelection  float64 `bun:"reminder_claim_last_selection,notnull"`
	ReminderEnergyLastSelection int     `bun:"reminder_energy_last_selection,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ReminderFor returns the reminder setting that governs activity.
func (u *User) ReminderFor(activity string) (ReminderSetting, bool) {
	switch ActivityFamily(activity) {
	case ActivityClaim:
		return u.ReminderClaim, true
	case ActivityDaily:
		return u.ReminderDaily, true
	case ActivityVote:
		return u.ReminderVote, true
	case ActivityShop:
		return u.ReminderShop, true
	case ActivityBoost:
		return u.ReminderBoosts, true
	case ActivityEnergy:
		return u.ReminderEnergy, true
	case ActivityCustom:
		return u.ReminderCustom, true
	}
	return ReminderSetting{}, false
}
