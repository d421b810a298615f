package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/idlehelper/bot/idlehelper/handlers")

// Responder is the part of command and component events used to answer failures.
type Responder interface {
	CreateMessage(messageCreate discord.MessageCreate, opts ...rest.RequestOpt) error
}

// ErrorMessage is what a user sees when a command fails with err.
func ErrorMessage(err error) string {
	switch pipeline.Classify(err) {
	case pipeline.KindNotRegistered:
		return "You are not registered with me yet. Use `/on` to get started."
	case pipeline.KindInvalidInput, pipeline.KindConflict:
		return err.Error()
	case pipeline.KindNotFound:
		return "I couldn't find what you were looking for."
	case pipeline.KindEnergyOutdated:
		return "Your energy data is outdated. Please open your game profile so I can update it."
	case pipeline.KindTransportTimeout:
		return "This took too long. Please try again."
	}
	return "Something went wrong. Please try again later."
}

func respondError(r Responder, err error) {
	_ = r.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Description: ErrorMessage(err),
			Color:       config.ErrorColor,
		}},
		Flags: discord.MessageFlagEphemeral,
	})
}

// WrapWithLogging wraps a command handler with logging, tracing and user facing errors.
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		start := time.Now()
		_, span := tracer.Start(context.Background(), "command."+name)
		span.SetAttributes(
			attribute.Int64("user_id", int64(e.User().ID)),
			attribute.Int64("channel_id", int64(e.ChannelID())),
		)
		defer span.End()

		slog.Info("Command started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
			slog.String("channel_id", e.ChannelID().String()),
		)

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("command %s panicked: %v", name, r)
				}
			}()
			done <- h(e)
		}()

		select {
		case err := <-done:
			duration := time.Since(start)
			attrs := []any{
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.Duration("took", duration),
			}

			if err != nil {
				kind := pipeline.Classify(err)
				span.SetStatus(codes.Error, err.Error())
				if kind == pipeline.KindNotRegistered || kind == pipeline.KindInvalidInput {
					slog.Info("Command rejected", append(attrs,
						slog.String("kind", kind.String()),
						slog.Any("error", err),
					)...)
				} else {
					span.RecordError(err)
					slog.Error("Command failed", append(attrs,
						slog.String("kind", kind.String()),
						slog.Any("error", err),
						slog.String("status", "failed"),
					)...)
				}
				respondError(e, err)
				return nil
			}
			if duration > 2*time.Second {
				slog.Warn("Command executed slowly", append(attrs, slog.String("status", "slow"))...)
			} else {
				slog.Info("Command completed", append(attrs, slog.String("status", "success"))...)
			}
			return nil

		case <-time.After(config.CommandExecutionTimeout):
			slog.Error("Command timed out",
				slog.String("type", "cmd"),
				slog.String("name", name),
				slog.String("user_id", e.User().ID.String()),
				slog.String("status", "timeout"),
				slog.Duration("timeout", config.CommandExecutionTimeout),
			)
			span.SetStatus(codes.Error, "timeout")
			return fmt.Errorf("command %s timed out after %s", name, config.CommandExecutionTimeout)
		}
	}
}

// WrapComponentWithLogging wraps a component handler the same way.
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		start := time.Now()
		slog.Info("Component interaction started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("custom_id", e.Data.CustomID()),
			slog.String("user_id", e.User().ID.String()),
		)

		err := h(e)
		attrs := []any{
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.Duration("took", time.Since(start)),
		}
		if err != nil {
			slog.Error("Component interaction failed", append(attrs, slog.Any("error", err))...)
			respondError(e, err)
			return nil
		}
		slog.Info("Component interaction completed", attrs...)
		return nil
	}
}
