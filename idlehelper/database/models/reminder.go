package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	ActivityClaim  = "claim"
	ActivityDaily  = "daily"
	ActivityVote   = "vote"
	ActivityShop   = "shop"
	ActivityBoost  = "boost"
	ActivityEnergy = "energy"
	ActivityCustom = "custom"
	ActivityClan   = "clan"
)

// ActivityFamily strips the "-<suffix>" part of activities like "shop-energy drink".
func ActivityFamily(activity string) string {
	if i := strings.IndexByte(activity, '-'); i > 0 {
		return activity[:i]
	}
	return activity
}

// ActivitySuffix returns the part after the first dash, or "".
func ActivitySuffix(activity string) string {
	if i := strings.IndexByte(activity, '-'); i > 0 {
		return activity[i+1:]
	}
	return ""
}

type UserReminder struct {
	bun.BaseModel `bun:"table:user_reminders,alias:ur"`

	UserID    int64     `bun:"user_id,pk"`
	Activity  string    `bun:"activity,pk"`
	CustomID  int       `bun:"custom_id,pk"`
	ChannelID int64     `bun:"channel_id,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	Message   string    `bun:"message,notnull"`
	Triggered bool      `bun:"triggered,notnull"`
}

func (r *UserReminder) TaskName() string {
	if r.Activity == ActivityCustom {
		return fmt.Sprintf("user:%d:%s:%d", r.UserID, r.Activity, r.CustomID)
	}
	return fmt.Sprintf("user:%d:%s", r.UserID, r.Activity)
}

type ClanReminder struct {
	bun.BaseModel `bun:"table:clan_reminders,alias:cr"`

	ClanName  string    `bun:"clan_name,pk"`
	ChannelID int64     `bun:"channel_id,nullzero"`
	EndTime   time.Time `bun:"end_time,notnull"`
	Message   string    `bun:"message,notnull"`
	Triggered bool      `bun:"triggered,notnull"`
}

func (r *ClanReminder) TaskName() string {
	return "clan:" + r.ClanName
}
