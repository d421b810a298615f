package idlehelper

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
	"github.com/idlehelper/bot/idlehelper/utils"
)

func New(cfg *Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
		StartedAt: time.Now().UTC(),
		Processes: utils.NewProcessManager(),
	}
}

type Bot struct {
	Cfg       *Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	StartedAt time.Time

	DB        *database.DB
	Store     *repositories.Store
	Data      *gamedata.Data
	Transport transport.Transport
	Engine    *reminders.Engine
	Renderer  *reminders.Renderer
	Clans     *clans.Service
	Processes *utils.ProcessManager
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMessages,
			gateway.IntentDirectMessages,
			gateway.IntentMessageContent,
		)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

// AddListeners registers listeners that need the client to exist first.
func (b *Bot) AddListeners(listeners ...bot.EventListener) {
	b.Client.AddEventListeners(listeners...)
}

// Now is the clock every command uses.
func (b *Bot) Now() time.Time {
	return time.Now().UTC()
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("IDLE Helper is now ready",
		slog.String("type", "sys"),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithListeningActivity("/help"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.String("type", "sys"), slog.Any("error", err))
	}
}
