package models

import "github.com/uptrace/bun"

type Clan struct {
	bun.BaseModel `bun:"table:clans,alias:c"`

	ClanName                 string  `bun:"clan_name,pk"`
	LeaderID                 int64   `bun:"leader_id,notnull,unique"`
	ReminderChannelID        int64   `bun:"reminder_channel_id,nullzero"`
	ReminderRoleID           int64   `bun:"reminder_role_id,nullzero"`
	ReminderEnabled          bool    `bun:"reminder_enabled,notnull"`
	ReminderMessage          string  `bun:"reminder_message,notnull"`
	ReminderOffsetHours      float64 `bun:"reminder_offset_hours,notnull"`
	AlertContributionEnabled bool    `bun:"alert_contribution_enabled,notnull"`
	AlertContributionMessage string  `bun:"alert_contribution_message,notnull"`
	HelperTeamraidEnabled    bool    `bun:"helper_teamraid_enabled,notnull"`

	Members []ClanMember `bun:"-"`
}

// SealsTotal sums the guild seals contributed by all members.
func (c *Clan) SealsTotal() int {
	total := 0
	for _, m := range c.Members {
		total += m.GuildSealsContributed
	}
	return total
}

func (c *Clan) HasMember(userID int64) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

type ClanMember struct {
	bun.BaseModel `bun:"table:clan_members,alias:cm"`

	ClanName              string `bun:"clan_name,pk"`
	UserID                int64  `bun:"user_id,pk"`
	Position              int    `bun:"position,notnull"`
	GuildSealsContributed int    `bun:"guild_seals_contributed,notnull"`
}
