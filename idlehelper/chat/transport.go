// Package chat adapts the disgo client to the transport capability used by the core.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	lru "github.com/hashicorp/golang-lru"
	"github.com/idlehelper/bot/idlehelper/transport"
)

const seenMessages = 4096

// Handler receives every message the gateway delivers.
type Handler interface {
	OnMessage(ctx context.Context, msg *transport.Message)
	OnMessageEdit(ctx context.Context, before, after *transport.Message)
}

type Transport struct {
	client bot.Client
	// seen keeps the last version of bot messages so edits can be diffed.
	seen       *lru.Cache
	edits      *waiters[int64, *transport.Message]
	components *waiters[int64, *events.ComponentInteractionCreate]
	modals     *waiters[string, *events.ModalSubmitInteractionCreate]
}

var _ transport.Transport = (*Transport)(nil)

func New(client bot.Client) *Transport {
	seen, _ := lru.New(seenMessages)
	return &Transport{
		client:     client,
		seen:       seen,
		edits:      newWaiters[int64, *transport.Message](),
		components: newWaiters[int64, *events.ComponentInteractionCreate](),
		modals:     newWaiters[string, *events.ModalSubmitInteractionCreate](),
	}
}

// Listeners returns the gateway listeners feeding handlers and the transport's own
// waiters. ctx is handed to the handlers for every event.
func (t *Transport) Listeners(ctx context.Context, handlers ...Handler) []bot.EventListener {
	return []bot.EventListener{
		bot.NewListenerFunc(func(e *events.MessageCreate) {
			msg := ToMessage(e.Message)
			if msg.Author.Bot {
				t.seen.Add(msg.ID, msg)
			}
			for _, h := range handlers {
				h.OnMessage(ctx, msg)
			}
		}),
		bot.NewListenerFunc(func(e *events.MessageUpdate) {
			after := ToMessage(e.Message)
			var before *transport.Message
			if v, ok := t.seen.Get(after.ID); ok {
				before = v.(*transport.Message)
			}
			if after.Author.Bot {
				t.seen.Add(after.ID, after)
			}
			t.edits.publish(after.ID, after)
			for _, h := range handlers {
				h.OnMessageEdit(ctx, before, after)
			}
		}),
		bot.NewListenerFunc(func(e *events.ComponentInteractionCreate) {
			t.components.publish(int64(e.Message.ID), e)
		}),
		bot.NewListenerFunc(func(e *events.ModalSubmitInteractionCreate) {
			t.modals.publish(e.Data.CustomID, e)
		}),
	}
}

// mapError turns refusals of the REST API into transport.ErrForbidden.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%w: %v", transport.ErrForbidden, err)
		}
	}
	return err
}

func (t *Transport) Send(ctx context.Context, channelID int64, msg transport.OutgoingMessage) (*transport.Message, error) {
	sent, err := t.client.Rest().CreateMessage(id(channelID), messageCreate(channelID, msg), rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return ToMessage(*sent), nil
}

// Edit replaces content and embeds and drops any components left on the message.
func (t *Transport) Edit(ctx context.Context, channelID, messageID int64, msg transport.OutgoingMessage) (*transport.Message, error) {
	update := messageUpdate(msg)
	update.Components = &[]discord.ContainerComponent{}
	edited, err := t.client.Rest().UpdateMessage(id(channelID), id(messageID), update, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return ToMessage(*edited), nil
}

func (t *Transport) React(ctx context.Context, channelID, messageID int64, emoji string) error {
	return mapError(t.client.Rest().AddReaction(id(channelID), id(messageID), emoji, rest.WithCtx(ctx)))
}

func (t *Transport) FetchUser(ctx context.Context, userID int64) (*transport.User, error) {
	u, err := t.client.Rest().GetUser(id(userID), rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	user := toUser(*u)
	return &user, nil
}

func (t *Transport) FetchChannel(ctx context.Context, channelID int64) (*transport.Channel, error) {
	ch, err := t.client.Rest().GetChannel(id(channelID), rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	channel := &transport.Channel{ID: channelID, Name: ch.Name()}
	if gc, ok := ch.(discord.GuildChannel); ok {
		channel.GuildID = int64(gc.GuildID())
	}
	return channel, nil
}

func (t *Transport) WaitForEdit(ctx context.Context, channelID, messageID int64, match func(*transport.Message) bool) (*transport.Message, error) {
	msg, err := t.edits.wait(ctx, messageID, func(m *transport.Message) bool {
		return m.ChannelID == channelID && (match == nil || match(m))
	})
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			slog.Debug("Stopped waiting for message edit",
				slog.String("type", "message"),
				slog.Int64("message_id", messageID))
		}
		return nil, err
	}
	return msg, nil
}
