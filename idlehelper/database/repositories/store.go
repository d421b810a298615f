package repositories

import "github.com/uptrace/bun"

// Store groups every repository over one database handle.
type Store struct {
	Users     UserRepository
	Guilds    GuildRepository
	Clans     ClanRepository
	Reminders ReminderRepository
	Tracking  TrackingRepository
	Workers   WorkerRepository
	Upgrades  UpgradeRepository
	Settings  SettingsRepository
}

func NewStore(db *bun.DB) *Store {
	return &Store{
		Users:     NewUserRepository(db),
		Guilds:    NewGuildRepository(db),
		Clans:     NewClanRepository(db),
		Reminders: NewReminderRepository(db),
		Tracking:  NewTrackingRepository(db),
		Workers:   NewWorkerRepository(db),
		Upgrades:  NewUpgradeRepository(db),
		Settings:  NewSettingsRepository(db),
	}
}
