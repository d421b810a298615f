package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/google/uuid"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/transport"
)

const (
	promptTextInput = "text"
	maxSelectLabel  = 100
)

// Prompt posts a select menu with a cancel button and waits for req.UserID to pick an
// option. Options with AskText open a modal for the free text answer.
func (t *Transport) Prompt(ctx context.Context, req transport.PromptRequest) (*transport.PromptResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = config.InteractionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token := uuid.NewString()
	cancelID := "prompt-cancel:" + token

	options := make([]discord.StringSelectMenuOption, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, discord.NewStringSelectMenuOption(truncate(o.Label, maxSelectLabel), o.Value))
	}

	create := messageCreate(req.ChannelID, transport.OutgoingMessage{Content: req.Content, ReplyTo: req.ReplyTo})
	create.Components = []discord.ContainerComponent{
		discord.NewActionRow(discord.NewStringSelectMenu("prompt:"+token, "Choose an option", options...)),
		discord.NewActionRow(discord.NewDangerButton("Cancel", cancelID)),
	}
	sent, err := t.client.Rest().CreateMessage(id(req.ChannelID), create, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	prompt := ToMessage(*sent)

	e, err := t.components.wait(ctx, prompt.ID, func(e *events.ComponentInteractionCreate) bool {
		return int64(e.User().ID) == req.UserID
	})
	if err != nil {
		t.finish(prompt, req.Content+"\n\n**Timed out**")
		return nil, err
	}

	if e.Data.CustomID() == cancelID {
		t.respond(e.UpdateMessage(discord.MessageUpdate{
			Content:    ptr(req.Content + "\n\n**Aborted**"),
			Components: &[]discord.ContainerComponent{},
		}))
		return nil, transport.ErrAborted
	}

	data, ok := e.Data.(discord.StringSelectMenuInteractionData)
	if !ok || len(data.Values) == 0 {
		t.respond(e.DeferUpdateMessage())
		return nil, transport.ErrAborted
	}
	result := &transport.PromptResult{Value: data.Values[0], Message: prompt}

	var chosen transport.PromptOption
	for _, o := range req.Options {
		if o.Value == result.Value {
			chosen = o
			break
		}
	}
	if !chosen.AskText {
		t.respond(e.DeferUpdateMessage())
		return result, nil
	}

	modalID := "prompt-modal:" + token
	err = e.Modal(discord.ModalCreate{
		CustomID: modalID,
		Title:    truncate(chosen.Label, 45),
		Components: []discord.ContainerComponent{
			discord.NewActionRow(discord.NewShortTextInput(promptTextInput, truncate(chosen.Label, 45)).WithRequired(true)),
		},
	})
	if err != nil {
		return nil, mapError(err)
	}

	submit, err := t.modals.wait(ctx, modalID, nil)
	if err != nil {
		t.finish(prompt, req.Content+"\n\n**Timed out**")
		return nil, err
	}
	t.respond(submit.DeferUpdateMessage())
	result.Text = strings.TrimSpace(submit.Data.Text(promptTextInput))
	return result, nil
}

// finish rewrites a prompt that will not be answered anymore.
func (t *Transport) finish(prompt *transport.Message, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), config.AbortTimeout)
	defer cancel()
	if _, err := t.Edit(ctx, prompt.ChannelID, prompt.ID, transport.OutgoingMessage{Content: content}); err != nil && !errors.Is(err, transport.ErrForbidden) {
		slog.Warn("Failed to finish prompt",
			slog.String("type", "message"),
			slog.Int64("message_id", prompt.ID),
			slog.Any("error", err))
	}
}

func (t *Transport) respond(err error) {
	if err != nil && !errors.Is(mapError(err), transport.ErrForbidden) {
		slog.Warn("Failed to respond to interaction",
			slog.String("type", "message"),
			slog.Any("error", err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func ptr[T any](v T) *T {
	return &v
}
