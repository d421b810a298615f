package models

import "github.com/uptrace/bun"

// EventSetting configures the ping sent when a server-wide game event spawns.
type EventSetting struct {
	Enabled bool   `bun:"enabled,notnull"`
	Name    string `bun:"name,notnull"`
	Message string `bun:"message,notnull"`
}

type Guild struct {
	bun.BaseModel `bun:"table:guilds,alias:g"`

	GuildID      int64        `bun:"guild_id,pk"`
	Prefix       string       `bun:"prefix,notnull"`
	EventEnergy  EventSetting `bun:"embed:event_energy_"`
	EventFired   EventSetting `bun:"embed:event_fired_"`
	EventLucky   EventSetting `bun:"embed:event_lucky_"`
	EventPacking EventSetting `bun:"embed:event_packing_"`
}

const (
	EventEnergy  = "energy"
	EventFired   = "fired"
	EventLucky   = "lucky"
	EventPacking = "packing"
)

func (g *Guild) Event(kind string) (EventSetting, bool) {
	switch kind {
	case EventEnergy:
		return g.EventEnergy, true
	case EventFired:
		return g.EventFired, true
	case EventLucky:
		return g.EventLucky, true
	case EventPacking:
		return g.EventPacking, true
	}
	return EventSetting{}, false
}
