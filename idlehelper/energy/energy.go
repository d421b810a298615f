// Package energy holds the energy regeneration math.
package energy

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
)

// BaseRegen is the time one energy unit takes without any multiplier.
const BaseRegen = 5 * time.Minute

// ErrFullTimeOutdated means the stored full time lies in the past, so the real
// energy amount is unknown until the user shows their profile again.
var ErrFullTimeOutdated = errors.New("energy full time is outdated")

// RegenTime returns the time needed to regenerate one energy unit.
func RegenTime(data *gamedata.Data, donorTier, upgradeLevel int) time.Duration {
	mult := data.DonorMultiplier(donorTier) * data.EnergyUpgradeMultiplier(upgradeLevel)
	return time.Duration(float64(BaseRegen) / mult)
}

// Current returns the unrounded energy amount at now.
func Current(max int, fullTime, now time.Time, regen time.Duration) (float64, error) {
	if fullTime.IsZero() || !fullTime.After(now) {
		return 0, ErrFullTimeOutdated
	}
	missing := float64(fullTime.Sub(now)) / float64(regen)
	return float64(max) - missing, nil
}

// Change returns the new full time after adding delta energy (negative to spend).
// Adding never pushes the full time before now. Spending from an already full bar
// starts counting from now.
func Change(fullTime, now time.Time, regen time.Duration, delta float64) time.Time {
	shift := time.Duration(delta * float64(regen))
	if fullTime.IsZero() || !fullTime.After(now) {
		if delta >= 0 {
			return fullTime
		}
		return now.Add(-shift)
	}
	changed := fullTime.Add(-shift)
	if changed.Before(now) {
		return now
	}
	return changed
}

// ReminderEnd returns when the energy reaches target, at least one second after now.
func ReminderEnd(target, max int, fullTime, now time.Time, regen time.Duration) (time.Time, error) {
	current, err := Current(max, fullTime, now, regen)
	if err != nil {
		return time.Time{}, err
	}
	end := now.Add(time.Duration((float64(target) - current) * float64(regen)))
	if floor := now.Add(time.Second); end.Before(floor) {
		return floor, nil
	}
	return end, nil
}

// ReminderTarget extracts N from an "energy-N" activity.
func ReminderTarget(activity string) (int, bool) {
	if models.ActivityFamily(activity) != models.ActivityEnergy {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(models.ActivitySuffix(activity)))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Activity builds the reminder activity for a target amount.
func Activity(target int) string {
	return models.ActivityEnergy + "-" + strconv.Itoa(target)
}

// Restored applies the mini event multiplier to an item's restore amount.
func Restored(amount int, minieventMultiplier float64) int {
	if minieventMultiplier <= 0 {
		minieventMultiplier = 1
	}
	return int(math.Round(float64(amount) * minieventMultiplier))
}
