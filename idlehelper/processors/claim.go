package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
)

var (
	claimCommand = command("claim")

	claimPresetHours = []float64{1, 2, 4, 6, 8, 12, 16, 20, 24}
)

const (
	claimOptionCustom = "custom"
	claimOptionLast   = "last"
)

type claimProcessor struct{ *Deps }

func (p *claimProcessor) Name() string { return "claim" }

func (p *claimProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("claim") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, claimCommand))
	if err != nil {
		return false, err
	}

	claimedAt := msg.Message.CreatedAt.UTC()
	if claimedAt.IsZero() {
		claimedAt = p.now()
	}
	err = p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{
		"last_claim_time":       claimedAt,
		"time_speeders_used":    0,
		"time_compressors_used": 0,
	})
	if err != nil {
		return false, err
	}
	user.LastClaimTime = claimedAt
	user.TimeSpeedersUsed = 0
	user.TimeCompressorsUsed = 0
	msg.User = user

	if err = p.track(ctx, user, msg, models.ActivityClaim, 1); err != nil {
		return true, err
	}
	if user.ReminderClaim.Enabled {
		p.goFn(func() {
			p.promptProductionTime(context.WithoutCancel(ctx), msg, user)
		})
	}
	return true, nil
}

// claimOptions lists the preset production times plus the custom and last-selection choices.
func claimOptions(user *models.User) []transport.PromptOption {
	options := make([]transport.PromptOption, 0, len(claimPresetHours)+2)
	for _, h := range claimPresetHours {
		options = append(options, transport.PromptOption{
			Label: humanize.Ftoa(h) + "h",
			Value: strconv.FormatFloat(h, 'f', -1, 64),
		})
	}
	options = append(options, transport.PromptOption{Label: "Custom", Value: claimOptionCustom, AskText: true})
	if user.ReminderClaimLastSelection > 0 {
		options = append(options, transport.PromptOption{
			Label: fmt.Sprintf("Last selection (%sh)", humanize.Ftoa(user.ReminderClaimLastSelection)),
			Value: claimOptionLast,
		})
	}
	return options
}

// chosenProductionTime turns a prompt answer into a production time.
func chosenProductionTime(user *models.User, result *transport.PromptResult) (time.Duration, error) {
	switch result.Value {
	case claimOptionCustom:
		return timestring.Parse(result.Text)
	case claimOptionLast:
		return time.Duration(user.ReminderClaimLastSelection * float64(time.Hour)), nil
	}
	hours, err := strconv.ParseFloat(result.Value, 64)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("%w: %q", timestring.ErrInvalid, result.Value)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// ClaimTimeLeft returns how long the farm still has to produce to reach chosen, given
// the last claim and the time speeders used since. ok is false when the farm already
// produced at least chosen.
func ClaimTimeLeft(chosen time.Duration, lastClaim, now time.Time, speedersUsed int) (time.Duration, bool) {
	produced := now.Sub(lastClaim) + time.Duration(speedersUsed)*config.TimeSpeederProduction
	if chosen <= produced {
		return 0, false
	}
	return chosen - produced, true
}

func (p *claimProcessor) promptProductionTime(ctx context.Context, msg *pipeline.ParsedMessage, user *models.User) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	result, err := p.Transport.Prompt(ctx, transport.PromptRequest{
		ChannelID: msg.Message.ChannelID,
		ReplyTo:   msg.Message.ID,
		UserID:    user.UserID,
		Content:   "How long do you want your farm to produce before you get reminded?",
		Options:   claimOptions(user),
		Timeout:   p.timeout(),
	})
	switch {
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, transport.ErrAborted), errors.Is(err, transport.ErrForbidden):
		return
	case err != nil:
		slog.Error("Claim prompt failed", slog.String("type", "message"), slog.Int64("user_id", user.UserID), slog.Any("error", err))
		return
	}

	reply := p.applyProductionTime(ctx, msg, user, result)
	if result.Message == nil {
		return
	}
	_, err = p.Transport.Edit(ctx, result.Message.ChannelID, result.Message.ID, transport.OutgoingMessage{Content: reply})
	if err != nil && !errors.Is(err, transport.ErrForbidden) {
		slog.Warn("Failed to finalize claim prompt", slog.String("type", "message"), slog.Any("error", err))
	}
}

// applyProductionTime stores the claim reminder for a prompt answer and returns the
// text the prompt is replaced with.
func (p *claimProcessor) applyProductionTime(ctx context.Context, msg *pipeline.ParsedMessage, user *models.User, result *transport.PromptResult) string {
	chosen, err := chosenProductionTime(user, result)
	if err != nil {
		return "That is not a valid time. Use something like `5h30m`."
	}
	timeLeft, ok := ClaimTimeLeft(chosen, user.LastClaimTime, p.now(), user.TimeSpeedersUsed)
	if !ok {
		return fmt.Sprintf("Your farm already produced for longer than **%s**.", timestring.Format(chosen))
	}

	if _, err = p.upsert(ctx, user, msg, models.ActivityClaim, timeLeft); err != nil {
		slog.Error("Failed to store claim reminder", slog.String("type", "reminder"), slog.Int64("user_id", user.UserID), slog.Any("error", err))
		return "Something went wrong while creating your reminder."
	}
	hours := chosen.Hours()
	if err = p.Store.Users.Update(ctx, user.UserID, map[string]interface{}{"reminder_claim_last_selection": hours}); err != nil {
		slog.Warn("Failed to store last claim selection", slog.String("type", "db"), slog.Any("error", err))
	}
	return fmt.Sprintf("Alright, I will remind you in **%s**.", timestring.Format(timeLeft))
}
