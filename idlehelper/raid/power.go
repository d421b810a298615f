// Package raid computes worker power and picks attack orders for raids and teamraids.
package raid

import (
	"sort"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
)

// WorkerPower is the combat score used by the raid helpers.
func WorkerPower(w gamedata.Worker, level int) float64 {
	return float64(w.Stats()) * (1 + float64(w.Tier)/2.5) * (1 + float64(level)/1.25)
}

// GuildPower ranks workers for the guild power overview. It uses the rarity index
// (tier counted from zero) and a flatter level curve.
func GuildPower(w gamedata.Worker, level int) float64 {
	rarity := max(w.Tier-1, 0)
	return float64(w.Stats()) * (1 + float64(rarity)/2.5) * (1 + float64(level)/2.5)
}

// TopPower ranks workers for the top three list.
func TopPower(w gamedata.Worker, level int) float64 {
	return float64(w.Stats()) * (1 + float64(w.Tier)/2.5) * (1 + float64(level)/1.5*0.8)
}

type RankedWorker struct {
	Name   string
	Emoji  string
	Level  int
	Amount int
	Power  float64
}

// Rank scores every known worker of a user with score and sorts strongest first.
// Unknown worker names are skipped.
func Rank(data *gamedata.Data, workers []models.UserWorker, score func(gamedata.Worker, int) float64) []RankedWorker {
	ranked := make([]RankedWorker, 0, len(workers))
	for _, uw := range workers {
		w, ok := data.Worker(uw.WorkerName)
		if !ok {
			continue
		}
		ranked = append(ranked, RankedWorker{
			Name:   w.Name,
			Emoji:  w.Emoji,
			Level:  uw.WorkerLevel,
			Amount: uw.WorkerAmount,
			Power:  score(w, uw.WorkerLevel),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Power != ranked[j].Power {
			return ranked[i].Power > ranked[j].Power
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}
