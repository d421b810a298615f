package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	EntryTypeSingle  = "single"
	EntryTypeSummary = "summary"
)

type TrackingLog struct {
	bun.BaseModel `bun:"table:tracking_log,alias:tl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	GuildID   int64     `bun:"guild_id,notnull"`
	Text      string    `bun:"text,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	DateTime  time.Time `bun:"date_time,notnull"`
	EntryType string    `bun:"entry_type,notnull"`
}

// LogReport aggregates tracking entries for one user over a timeframe.
type LogReport struct {
	UserID    int64
	Timeframe time.Duration
	// Counts holds plain activity counters keyed by tracking text.
	Counts map[string]int64
	// Workers holds worker rolls keyed by worker type.
	Workers    map[string]int64
	RaidGained int64
	RaidLost   int64
	// RaidCount is -1 when the timeframe reaches past the single-entry window.
	RaidCount int64
}
