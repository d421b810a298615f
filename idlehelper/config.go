package idlehelper

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

// LoadConfig reads the TOML file at path and overlays environment variables on top.
// A missing file is not an error when the environment provides the token.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err = toml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	case os.IsNotExist(err):
		slog.Warn("Config file not found, using defaults and environment",
			slog.String("type", "sys"),
			slog.String("path", path))
	default:
		return nil, fmt.Errorf("failed to open config: %w", err)
	}

	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("no bot token configured: set bot.token or DISCORD_SECRET")
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: slog.LevelInfo},
		DB: DBConfig{
			Driver:   "sqlite",
			Path:     "database/idle_helper.db",
			PoolSize: 10,
		},
		Reminders: RemindersConfig{
			ScheduleInterval: Duration(10 * time.Second),
			GCInterval:       Duration(120 * time.Second),
		},
	}
}

type Config struct {
	Log       LogConfig       `toml:"log"`
	Bot       BotConfig       `toml:"bot"`
	DB        DBConfig        `toml:"db"`
	Reminders RemindersConfig `toml:"reminders"`
	Backup    BackupConfig    `toml:"backup"`
	Otel      OtelConfig      `toml:"otel"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
	OwnerID   snowflake.ID   `toml:"owner_id"`
	DebugMode bool           `toml:"debug_mode"`
	// GameBotIDs lists the application ids whose messages are classified.
	GameBotIDs []snowflake.ID `toml:"game_bot_ids"`
}

type LogConfig struct {
	Level   slog.Level `toml:"level"`
	NoColor bool       `toml:"no_color"`
}

type DBConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	PoolSize int    `toml:"pool_size"`
}

type RemindersConfig struct {
	ScheduleInterval Duration `toml:"schedule_interval"`
	GCInterval       Duration `toml:"gc_interval"`
}

type BackupConfig struct {
	Enabled  bool   `toml:"enabled"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Endpoint string `toml:"endpoint"`
	Dir      string `toml:"dir"`
	KeepDays int    `toml:"keep_days"`
}

type OtelConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// Duration decodes TOML strings like "10s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type envConfig struct {
	Token     string   `env:"DISCORD_SECRET"`
	OwnerID   uint64   `env:"OWNER_ID"`
	DebugMode *bool    `env:"DEBUG_MODE"`
	DevGuilds []uint64 `env:"DEV_GUILDS" envSeparator:","`
	DBDriver  string   `env:"DATABASE_DRIVER"`
	DBDSN     string   `env:"DATABASE_DSN"`
}

func (c *Config) applyEnv() error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if e.Token != "" {
		c.Bot.Token = e.Token
	}
	if e.OwnerID != 0 {
		c.Bot.OwnerID = snowflake.ID(e.OwnerID)
	}
	if e.DebugMode != nil {
		c.Bot.DebugMode = *e.DebugMode
	}
	if len(e.DevGuilds) > 0 {
		c.Bot.DevGuilds = c.Bot.DevGuilds[:0]
		for _, id := range e.DevGuilds {
			c.Bot.DevGuilds = append(c.Bot.DevGuilds, snowflake.ID(id))
		}
	}
	if e.DBDriver != "" {
		c.DB.Driver = e.DBDriver
	}
	if e.DBDSN != "" {
		if c.DB.Driver == "sqlite" {
			c.DB.Path = e.DBDSN
		} else {
			c.DB.DSN = e.DBDSN
		}
	}
	return nil
}
