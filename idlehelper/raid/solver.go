package raid

import (
	"math"
	"sort"
)

const (
	// MaxAttackers bounds the permutation search to 6! orders.
	MaxAttackers = 6
	MaxDefenders = 4

	raidDamageFactor     = 85
	teamraidDamageFactor = 100
)

type Attacker struct {
	Name  string
	Emoji string
	Level int
	Power float64
}

type Defender struct {
	Name  string
	Power float64
	HP    int
}

// Step is one attack of a solution. Defender is -1 for an empty farm.
type Step struct {
	Attacker Attacker
	Defender int
	Damage   int
	HPLeft   int
	// Power is the defender's power after the hit.
	Power float64
}

type Solution struct {
	Killed int
	// HPLeft is the health of the first defender still alive, 0 if all died.
	HPLeft int
	Used   int
	Steps  []Step
}

// Damage is the health a worker takes off a defender in a single player raid.
func Damage(attacker, defender float64) int {
	if defender <= 0 {
		return 100
	}
	return int(math.Round(raidDamageFactor * attacker / defender))
}

// Solve tries every attack order and keeps the one killing most defenders, then
// leaving the least health on the next defender, then using the fewest workers.
// Equal scores keep the order with the weakest workers first.
func Solve(attackers []Attacker, defenders []Defender, emptyFarms int) Solution {
	if len(defenders) > MaxDefenders {
		defenders = defenders[:MaxDefenders]
	}
	pool := strongest(attackers, MaxAttackers)

	var best Solution
	var bestOrder []float64
	found := false
	permute(len(pool), func(order []int) {
		sol := simulate(pool, order, defenders)
		powers := make([]float64, len(sol.Steps))
		for i, s := range sol.Steps {
			powers[i] = s.Attacker.Power
		}
		if !found || better(sol, powers, best, bestOrder) {
			best, bestOrder, found = sol, powers, true
		}
	})
	if !found {
		best = Solution{HPLeft: firstAliveHP(defenders)}
	}

	if emptyFarms > 0 && best.Used < len(pool) {
		if filler, ok := weakestUnused(pool, best.Steps); ok {
			best.Steps = append(best.Steps, Step{Attacker: filler, Defender: -1})
		}
	}
	return best
}

func simulate(pool []Attacker, order []int, defenders []Defender) Solution {
	hp := make([]int, len(defenders))
	for i, d := range defenders {
		hp[i] = d.HP
	}

	sol := Solution{}
	target := nextAlive(hp, 0)
	for _, idx := range order {
		if target < 0 {
			break
		}
		a := pool[idx]
		dmg := Damage(a.Power, defenders[target].Power)
		hp[target] = max(hp[target]-dmg, 0)
		sol.Steps = append(sol.Steps, Step{
			Attacker: a,
			Defender: target,
			Damage:   dmg,
			HPLeft:   hp[target],
			Power:    defenders[target].Power * float64(hp[target]) / 100,
		})
		if hp[target] == 0 {
			sol.Killed++
			target = nextAlive(hp, target)
		}
	}
	sol.Used = len(sol.Steps)
	if target >= 0 {
		sol.HPLeft = hp[target]
	}
	return sol
}

func better(a Solution, aPowers []float64, b Solution, bPowers []float64) bool {
	if a.Killed != b.Killed {
		return a.Killed > b.Killed
	}
	if a.HPLeft != b.HPLeft {
		return a.HPLeft < b.HPLeft
	}
	if a.Used != b.Used {
		return a.Used < b.Used
	}
	for i := 0; i < len(aPowers) && i < len(bPowers); i++ {
		if aPowers[i] != bPowers[i] {
			return aPowers[i] < bPowers[i]
		}
	}
	return false
}

func nextAlive(hp []int, from int) int {
	for i := from; i < len(hp); i++ {
		if hp[i] > 0 {
			return i
		}
	}
	return -1
}

func firstAliveHP(defenders []Defender) int {
	for _, d := range defenders {
		if d.HP > 0 {
			return d.HP
		}
	}
	return 0
}

func strongest(attackers []Attacker, n int) []Attacker {
	pool := append([]Attacker(nil), attackers...)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Power > pool[j].Power })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

func weakestUnused(pool []Attacker, steps []Step) (Attacker, bool) {
	used := make(map[int]bool, len(steps))
	for _, s := range steps {
		for i, a := range pool {
			if !used[i] && a == s.Attacker {
				used[i] = true
				break
			}
		}
	}
	var weakest Attacker
	found := false
	for i, a := range pool {
		if used[i] {
			continue
		}
		if !found || a.Power < weakest.Power {
			weakest, found = a, true
		}
	}
	return weakest, found
}

// permute calls fn with every permutation of 0..n-1 (Heap's algorithm).
func permute(n int, fn func([]int)) {
	if n == 0 {
		return
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	c := make([]int, n)
	fn(order)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				order[0], order[i] = order[i], order[0]
			} else {
				order[c[i]], order[i] = order[i], order[c[i]]
			}
			fn(order)
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}
