package models

import "github.com/uptrace/bun"

type Code struct {
	bun.BaseModel `bun:"table:codes,alias:co"`

	Code     string `bun:"code,pk"`
	Contents string `bun:"contents,notnull"`
}

type Cooldown struct {
	bun.BaseModel `bun:"table:cooldowns,alias:cd"`

	Activity              string  `bun:"activity,pk"`
	Cooldown              int     `bun:"cooldown,notnull"`
	DonorAffected         bool    `bun:"donor_affected,notnull"`
	EventReductionSlash   float64 `bun:"event_reduction_slash,notnull"`
	EventReductionMention float64 `bun:"event_reduction_mention,notnull"`
}

type Setting struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Name  string `bun:"name,pk"`
	Value string `bun:"value,notnull"`
}

const (
	SettingStartupTime               = "startup_time"
	SettingMinieventEnergyMultiplier = "minievent_energy_multiplier"
)
