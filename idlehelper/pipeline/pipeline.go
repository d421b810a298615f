package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ackCacheSize = 4096

// Processor handles one family of game messages. Process reports whether it changed
// any state or sent anything.
type Processor interface {
	Name() string
	Process(ctx context.Context, msg *ParsedMessage) (bool, error)
}

type Options struct {
	// GameBotIDs are the authors whose messages are classified.
	GameBotIDs []int64
	// Debug replies to failed messages with the error.
	Debug bool
}

type Pipeline struct {
	transport  transport.Transport
	cache      *MessageCache
	processors []Processor
	gameBots   map[int64]struct{}
	debug      bool
	acked      *lru.Cache
	queue      *ChannelQueue
	tracer     trace.Tracer
}

func New(tr transport.Transport, cache *MessageCache, processors []Processor, opts Options) *Pipeline {
	gameBots := make(map[int64]struct{}, len(opts.GameBotIDs))
	for _, id := range opts.GameBotIDs {
		gameBots[id] = struct{}{}
	}
	acked, _ := lru.New(ackCacheSize)
	return &Pipeline{
		transport:  tr,
		cache:      cache,
		processors: processors,
		gameBots:   gameBots,
		debug:      opts.Debug,
		acked:      acked,
		queue:      NewChannelQueue(),
		tracer:     otel.Tracer("github.com/idlehelper/bot/idlehelper/pipeline"),
	}
}

func (p *Pipeline) IsGameBot(userID int64) bool {
	_, ok := p.gameBots[userID]
	return ok
}

// OnMessage queues msg behind earlier messages of the same channel. User messages
// only feed the recent command cache.
func (p *Pipeline) OnMessage(ctx context.Context, msg *transport.Message) {
	if !p.IsGameBot(msg.Author.ID) {
		if !msg.Author.Bot {
			p.cache.Add(msg)
		}
		return
	}
	p.queue.Submit(msg.ChannelID, func() {
		p.Handle(ctx, msg)
	})
}

// OnMessageEdit queues the edited message when ShouldProcessEdit lets it through.
func (p *Pipeline) OnMessageEdit(ctx context.Context, before, after *transport.Message) {
	if !ShouldProcessEdit(before, after, p.IsGameBot) {
		return
	}
	p.queue.Submit(after.ChannelID, func() {
		p.Handle(ctx, after)
	})
}

// ShouldProcessEdit filters message edits. Raid and teamraid edits are followed by
// their own processors. Worker roll footer changes always pass; anything else needs
// an embed that can still be interacted with.
func ShouldProcessEdit(before, after *transport.Message, isGameBot func(int64) bool) bool {
	if after == nil || !isGameBot(after.Author.ID) {
		return false
	}
	if before != nil {
		if !isGameBot(before.Author.ID) {
			return false
		}
		if before.Content == after.Content &&
			reflect.DeepEqual(before.Embeds, after.Embeds) &&
			reflect.DeepEqual(before.Components, after.Components) {
			return false
		}
	}

	parsed := Parse(after)
	if parsed.IsEvent("raid") || parsed.IsEvent("teamraid") || IsTeamraidLayout(parsed) {
		return false
	}
	if before != nil && len(before.Embeds) > 0 && len(after.Embeds) > 0 &&
		before.Embeds[0].FooterText != after.Embeds[0].FooterText &&
		parsed.Description.Contains("worker") {
		return true
	}
	return after.ActiveComponents() > 0
}

// IsTeamraidLayout catches teamraid embeds whose author line is missing: their first
// field lists at least four farms.
func IsTeamraidLayout(msg *ParsedMessage) bool {
	return strings.Count(msg.FieldsFolded[0].Name, "farm") >= 4
}

// Handle runs every processor on msg in order and acknowledges it when one of them
// acted.
func (p *Pipeline) Handle(ctx context.Context, msg *transport.Message) bool {
	ctx, span := p.tracer.Start(ctx, "pipeline.message", trace.WithAttributes(
		attribute.Int64("channel_id", msg.ChannelID),
		attribute.Int64("message_id", msg.ID),
		attribute.Bool("edited", !msg.EditedAt.IsZero()),
	))
	defer span.End()

	parsed := Parse(msg)
	touched := false
	for _, proc := range p.processors {
		ok, err := p.run(ctx, proc, parsed)
		if err != nil {
			p.report(ctx, parsed, proc.Name(), err)
		}
		if ok {
			touched = true
			span.AddEvent("touched", trace.WithAttributes(attribute.String("processor", proc.Name())))
		}
	}
	if touched {
		p.acknowledge(ctx, parsed)
	}
	return touched
}

func (p *Pipeline) run(ctx context.Context, proc Processor, msg *ParsedMessage) (touched bool, err error) {
	ctx, span := p.tracer.Start(ctx, "processor."+proc.Name())
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor %s panicked: %v", proc.Name(), r)
		}
		if err != nil && !Silent(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()
	return proc.Process(ctx, msg)
}

func (p *Pipeline) acknowledge(ctx context.Context, msg *ParsedMessage) {
	if msg.User == nil || !msg.User.ReactionsEnabled {
		return
	}
	if ok, _ := p.acked.ContainsOrAdd(msg.Message.ID, struct{}{}); ok {
		return
	}
	if err := p.transport.React(ctx, msg.Message.ChannelID, msg.Message.ID, config.ReactionAck); err != nil && !Silent(err) {
		slog.Warn("Failed to acknowledge message",
			slog.String("type", "message"),
			slog.Int64("message_id", msg.Message.ID),
			slog.Any("error", err))
	}
}

func (p *Pipeline) report(ctx context.Context, msg *ParsedMessage, processor string, err error) {
	if Silent(err) {
		return
	}
	slog.Error("Processor failed",
		slog.String("type", "message"),
		slog.String("processor", processor),
		slog.String("kind", Classify(err).String()),
		slog.Int64("channel_id", msg.Message.ChannelID),
		slog.Int64("message_id", msg.Message.ID),
		slog.Any("error", err))
	if !p.debug {
		return
	}

	reply := transport.OutgoingMessage{
		Embeds: []transport.Embed{{
			Title:       "An error occurred",
			Description: fmt.Sprintf("**%s**\n```%v```", processor, err),
			FooterText:  time.Now().UTC().Format(time.RFC3339),
			Color:       config.ErrorColor,
		}},
		ReplyTo: msg.Message.ID,
	}
	if _, sendErr := p.transport.Send(ctx, msg.Message.ChannelID, reply); sendErr != nil && !Silent(sendErr) {
		slog.Warn("Failed to send error embed", slog.String("type", "message"), slog.Any("error", sendErr))
	}
	if reactErr := p.transport.React(ctx, msg.Message.ChannelID, msg.Message.ID, config.ReactionWarning); reactErr != nil && !Silent(reactErr) {
		slog.Warn("Failed to mark failed message", slog.String("type", "message"), slog.Any("error", reactErr))
	}
}

// Wait blocks until every queued message has been handled.
func (p *Pipeline) Wait() {
	p.queue.Wait()
}
