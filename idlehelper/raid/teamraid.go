package raid

import "math"

// TeamWorker is a worker a teammate can still send in a teamraid.
type TeamWorker struct {
	UserID int64
	Name   string
	Power  float64
}

// TeamDamage is the health a worker takes off a defender in a teamraid.
func TeamDamage(attacker, defender float64) int {
	if defender <= 0 {
		return 100
	}
	return int(math.Round(teamraidDamageFactor * attacker / defender))
}

// Recommend picks the next worker to send against the first alive defender:
// the weakest worker that kills it alone, else the weakest member of the cheapest
// pair that kills it, else of the cheapest trio. A lone remaining worker is always
// recommended. ok is false when no combination kills the defender.
func Recommend(defender Defender, workers []TeamWorker) (TeamWorker, bool) {
	if len(workers) == 0 {
		return TeamWorker{}, false
	}
	if len(workers) == 1 {
		return workers[0], true
	}

	var best TeamWorker
	found := false
	for _, w := range workers {
		if TeamDamage(w.Power, defender.Power) < defender.HP {
			continue
		}
		if !found || w.Power < best.Power {
			best, found = w, true
		}
	}
	if found {
		return best, true
	}

	for size := 2; size <= 3; size++ {
		if combo, ok := cheapestCombo(defender, workers, size); ok {
			return combo, true
		}
	}
	return TeamWorker{}, false
}

// cheapestCombo finds the combination of size workers with the lowest total power
// that still kills the defender and returns its weakest member.
func cheapestCombo(defender Defender, workers []TeamWorker, size int) (TeamWorker, bool) {
	var best []int
	bestCost := math.Inf(1)

	idx := make([]int, size)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == size {
			dmg, cost := 0, 0.0
			for _, i := range idx {
				dmg += TeamDamage(workers[i].Power, defender.Power)
				cost += workers[i].Power
			}
			if dmg >= defender.HP && cost < bestCost {
				bestCost = cost
				best = append(best[:0], idx...)
			}
			return
		}
		for i := start; i < len(workers); i++ {
			idx[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)

	if best == nil {
		return TeamWorker{}, false
	}
	weakest := workers[best[0]]
	for _, i := range best[1:] {
		if workers[i].Power < weakest.Power {
			weakest = workers[i]
		}
	}
	return weakest, true
}
