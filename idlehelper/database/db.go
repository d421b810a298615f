package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultConnTimeout = 5 * time.Second
)

type DBConfig struct {
	Driver   string
	Path     string
	DSN      string
	PoolSize int
}

// DB wraps the bun handle. The pgx pool is only set for postgres.
type DB struct {
	driver string
	pool   *pgxpool.Pool
	bunDB  *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return openSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewMemory opens a private in-memory sqlite database with the schema applied.
func NewMemory(ctx context.Context) (*DB, error) {
	db, err := openSQLite(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	if err = db.InitializeSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// single writer; also keeps an in-memory database alive on one connection
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)
	sqldb.SetConnMaxIdleTime(0)

	pragmas := "PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"
	if path != ":memory:" {
		pragmas += " PRAGMA journal_mode = WAL;"
	}
	if _, err = sqldb.ExecContext(ctx, pragmas); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	return &DB{driver: DriverSQLite, bunDB: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

func openPostgres(ctx context.Context, cfg DBConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	poolConfig.ConnConfig.ConnectTimeout = defaultConnTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database server unreachable: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return &DB{driver: DriverPostgres, pool: pool, bunDB: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Driver() string {
	return db.driver
}

// ExecWithLog runs a raw statement and logs its duration and affected rows.
func (db *DB) ExecWithLog(ctx context.Context, query string, args ...interface{}) (int64, error) {
	start := time.Now()

	var (
		affected int64
		err      error
	)
	if db.pool != nil {
		tag, execErr := db.pool.Exec(ctx, query, args...)
		affected, err = tag.RowsAffected(), execErr
	} else {
		result, execErr := db.bunDB.ExecContext(ctx, query, args...)
		err = execErr
		if err == nil {
			affected, _ = result.RowsAffected()
		}
	}
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", query),
			slog.Any("args", args),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return affected, err
	}
	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", query),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", affected),
	)
	return affected, nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// InitializeSchema creates all required tables and indexes. Migrations are additive only.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Guild)(nil),
		(*models.Clan)(nil),
		(*models.ClanMember)(nil),
		(*models.UserReminder)(nil),
		(*models.ClanReminder)(nil),
		(*models.TrackingLog)(nil),
		(*models.UserWorker)(nil),
		(*models.WorkerLevel)(nil),
		(*models.UserUpgrade)(nil),
		(*models.Code)(nil),
		(*models.Cooldown)(nil),
		(*models.Setting)(nil),
	}

	for _, model := range tables {
		if _, err := db.bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_user_reminders_due ON user_reminders(triggered, end_time);",
		"CREATE INDEX IF NOT EXISTS idx_clan_reminders_due ON clan_reminders(triggered, end_time);",
		"CREATE INDEX IF NOT EXISTS idx_clan_members_user ON clan_members(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_tracking_log_user_time ON tracking_log(user_id, date_time);",
		"CREATE INDEX IF NOT EXISTS idx_tracking_log_type_time ON tracking_log(entry_type, date_time);",
	}
	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return db.seedStaticData(ctx)
}

// seedStaticData inserts the cooldown and worker level tables without touching learned rows.
func (db *DB) seedStaticData(ctx context.Context) error {
	data := gamedata.Load()

	cooldowns := make([]models.Cooldown, 0, len(data.Cooldowns))
	for _, c := range data.Cooldowns {
		cooldowns = append(cooldowns, models.Cooldown{
			Activity:      c.Activity,
			Cooldown:      c.Cooldown,
			DonorAffected: c.DonorAffected,
		})
	}
	if len(cooldowns) > 0 {
		if _, err := db.bunDB.NewInsert().Model(&cooldowns).On("CONFLICT (activity) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed cooldowns: %w", err)
		}
	}

	levels := make([]models.WorkerLevel, 0, len(data.WorkerLevels))
	for _, l := range data.WorkerLevels {
		levels = append(levels, models.WorkerLevel{Level: l.Level, WorkersRequired: l.WorkersRequired})
	}
	if len(levels) > 0 {
		if _, err := db.bunDB.NewInsert().Model(&levels).On("CONFLICT (level) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed worker levels: %w", err)
		}
	}
	return nil
}

// Compact reclaims free pages after the nightly log consolidation.
func (db *DB) Compact(ctx context.Context) error {
	stmt := "VACUUM"
	if db.driver == DriverPostgres {
		stmt = "VACUUM ANALYZE"
	}
	_, err := db.ExecWithLog(ctx, stmt)
	return err
}

// SnapshotTo writes a consistent copy of a sqlite database to path.
func (db *DB) SnapshotTo(ctx context.Context, path string) error {
	if db.driver != DriverSQLite {
		return fmt.Errorf("snapshots are only supported for sqlite, driver is %s", db.driver)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	_ = os.Remove(path)
	_, err := db.ExecWithLog(ctx, "VACUUM INTO ?", path)
	return err
}
