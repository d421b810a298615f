package models

import "github.com/uptrace/bun"

type UserWorker struct {
	bun.BaseModel `bun:"table:user_workers,alias:uw"`

	UserID       int64  `bun:"user_id,pk"`
	WorkerName   string `bun:"worker_name,pk"`
	WorkerLevel  int    `bun:"worker_level,notnull"`
	WorkerAmount int    `bun:"worker_amount,notnull"`
}

type WorkerLevel struct {
	bun.BaseModel `bun:"table:worker_levels,alias:wl"`

	Level           int `bun:"level,pk"`
	WorkersRequired int `bun:"workers_required,notnull"`
}

type UserUpgrade struct {
	bun.BaseModel `bun:"table:user_upgrades,alias:uu"`

	UserID    int64  `bun:"user_id,pk"`
	Name      string `bun:"name,pk"`
	Level     int    `bun:"level,notnull"`
	SortIndex int    `bun:"sort_index,notnull"`
}
