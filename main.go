package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/idlehelper/bot/idlehelper"
	"github.com/idlehelper/bot/idlehelper/backup"
	"github.com/idlehelper/bot/idlehelper/chat"
	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/commands"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/logger"
	"github.com/idlehelper/bot/idlehelper/maintenance"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/processors"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/tracing"
	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	migrateOnly := flag.Bool("migrate-only", false, "Create the database schema and exit")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := idlehelper.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("type", "sys"), slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.NewHandlerWithWriter(os.Stdout, cfg.Log.Level, !cfg.Log.NoColor)))

	slog.Info("Starting IDLE Helper",
		slog.String("type", "sys"),
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Otel.Enabled, cfg.Otel.Endpoint, cfg.Otel.ServiceName)
	if err != nil {
		slog.Error("Failed to set up tracing", slog.String("type", "sys"), slog.Any("error", err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("Failed to flush traces", slog.String("type", "sys"), slog.Any("error", err))
		}
	}()

	dbStartTime := time.Now()
	db, err := database.New(ctx, database.DBConfig{
		Driver:   cfg.DB.Driver,
		Path:     cfg.DB.Path,
		DSN:      cfg.DB.DSN,
		PoolSize: cfg.DB.PoolSize,
	})
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("type", "db"),
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err = db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("type", "db"),
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("type", "db"),
		slog.String("driver", db.Driver()),
		slog.Duration("took", time.Since(dbStartTime)))
	if *migrateOnly {
		return
	}

	b := idlehelper.New(cfg, version, commit)
	b.DB = db
	b.Store = repositories.NewStore(db.BunDB())
	b.Data = gamedata.Load()

	if err = b.Store.Settings.Set(ctx, models.SettingStartupTime, b.StartedAt.Format(time.RFC3339)); err != nil {
		slog.Error("Failed to store startup time", slog.String("type", "db"), slog.Any("error", err))
	}

	h := handler.New()
	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		b.Client.Close(ctx)
	}()

	tr := chat.New(b.Client)
	b.Transport = tr
	b.Renderer = reminders.NewRenderer(b.Data)

	engineOpts := reminders.DefaultOptions()
	engineOpts.ScheduleInterval = cfg.Reminders.ScheduleInterval.Std()
	engineOpts.GCInterval = cfg.Reminders.GCInterval.Std()
	b.Engine = reminders.NewEngine(b.Store, tr, b.Renderer, engineOpts)
	b.Clans = clans.NewService(b.Store, tr, b.Renderer, b.Data)

	cache := pipeline.NewMessageCache()
	gameBots := make([]int64, 0, len(cfg.Bot.GameBotIDs))
	for _, id := range cfg.Bot.GameBotIDs {
		gameBots = append(gameBots, int64(id))
	}
	messages := pipeline.New(tr, cache, processors.All(&processors.Deps{
		Store:     b.Store,
		Scheduler: b.Engine,
		Transport: tr,
		Resolver:  pipeline.NewResolver(b.Store.Users, cache),
		Data:      b.Data,
		Clans:     b.Clans,
	}), pipeline.Options{
		GameBotIDs: gameBots,
		Debug:      cfg.Bot.DebugMode,
	})

	svc := commands.NewService(b.Store, b.Engine, b.Data, commands.Options{
		OwnerID:   int64(cfg.Bot.OwnerID),
		Version:   version,
		Commit:    commit,
		StartedAt: b.StartedAt,
	})
	prefix := commands.NewPrefix(svc, tr)
	commands.NewHandler(b, svc, prefix).Register(h)

	b.AddListeners(tr.Listeners(b.Processes.Context(), messages, prefix)...)

	b.Processes.Start("reminders", "Reminder scheduler", b.Engine.Run)
	b.Processes.Start("message-cache", "Message cache GC", func(ctx context.Context) error {
		cache.RunGC(ctx, config.CacheGCInterval)
		return nil
	})

	var backuper maintenance.Backuper
	if cfg.Backup.Enabled && db.Driver() == database.DriverSQLite {
		opts := backup.Options{
			Key:      cfg.Backup.Key,
			Secret:   cfg.Backup.Secret,
			Region:   cfg.Backup.Region,
			Bucket:   cfg.Backup.Bucket,
			Endpoint: cfg.Backup.Endpoint,
			Dir:      cfg.Backup.Dir,
			KeepDays: cfg.Backup.KeepDays,
		}
		client, err := backup.NewClient(ctx, opts)
		if err != nil {
			slog.Error("Failed to create backup client, backups are disabled",
				slog.String("type", "sys"),
				slog.Any("error", err))
		} else {
			backuper = backup.NewService(client, db, opts)
		}
	}
	b.Processes.Start("maintenance", "Nightly and weekly housekeeping", maintenance.New(b.Store, db, backuper).Run)

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.", slog.String("type", "sys"))
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s

	slog.Info("Shutting down", slog.String("type", "sys"))
	if err = b.Processes.Shutdown(config.ShutdownTimeout); err != nil {
		slog.Error("Background processes did not stop in time", slog.String("type", "sys"), slog.Any("error", err))
	}
	messages.Wait()
}
