package commands

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/pipeline"
)

const maxEventReduction = 100

func (s *Service) requireOwner(userID int64) error {
	if s.opts.OwnerID == 0 || userID != s.opts.OwnerID {
		return pipeline.Invalid("This command is only available to the bot owner.")
	}
	return nil
}

// AddCode stores or replaces a redeemable code.
func (s *Service) AddCode(ctx context.Context, userID int64, code, contents string) error {
	if err := s.requireOwner(userID); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	contents = strings.TrimSpace(contents)
	if code == "" || contents == "" {
		return pipeline.Invalid("Codes need a name and contents.")
	}
	if err := s.store.Settings.UpsertCode(ctx, &models.Code{Code: code, Contents: contents}); err != nil {
		return err
	}
	slog.Info("Code stored", slog.String("type", "cmd"), slog.String("code", code))
	return nil
}

// SetEventReduction changes the event cooldown reduction of one activity, in percent.
func (s *Service) SetEventReduction(ctx context.Context, userID int64, activity string, slash, mention float64) error {
	if err := s.requireOwner(userID); err != nil {
		return err
	}
	for _, v := range []float64{slash, mention} {
		if v < 0 || v > maxEventReduction {
			return pipeline.Invalid("Reductions have to be between 0 and %d percent.", maxEventReduction)
		}
	}
	return s.store.Settings.UpdateCooldownReductions(ctx, strings.TrimSpace(activity), slash, mention)
}

// SetMinieventMultiplier changes the energy item multiplier of a running mini event.
func (s *Service) SetMinieventMultiplier(ctx context.Context, userID int64, multiplier float64) error {
	if err := s.requireOwner(userID); err != nil {
		return err
	}
	if multiplier <= 0 {
		return pipeline.Invalid("The multiplier has to be above 0.")
	}
	return s.store.Settings.Set(ctx, models.SettingMinieventEnergyMultiplier, strconv.FormatFloat(multiplier, 'f', -1, 64))
}
