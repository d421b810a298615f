// Package gamedata exposes the static IDLE FARM tables embedded in the binary.
package gamedata

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

//go:embed gamedata.yaml
var rawData []byte

type Worker struct {
	Name         string `yaml:"name"`
	Tier         int    `yaml:"tier"`
	Emoji        string `yaml:"emoji"`
	Speed        int    `yaml:"speed"`
	Strength     int    `yaml:"strength"`
	Intelligence int    `yaml:"intelligence"`
}

// Stats is the sum of the base stats used by the power formulas.
func (w Worker) Stats() int {
	return w.Speed + w.Strength + w.Intelligence
}

type WorkerLevel struct {
	Level           int `yaml:"level"`
	WorkersRequired int `yaml:"workers_required"`
}

type DonorTier struct {
	Tier             int     `yaml:"tier"`
	Name             string  `yaml:"name"`
	EnergyMultiplier float64 `yaml:"energy_multiplier"`
}

type Upgrade struct {
	Name        string    `yaml:"name"`
	SortIndex   int       `yaml:"sort_index"`
	Costs       []int64   `yaml:"costs"`
	Multipliers []float64 `yaml:"multipliers"`
}

// NextCost returns the price of upgrading from level, or false when maxed.
func (u Upgrade) NextCost(level int) (int64, bool) {
	if level < 0 || level >= len(u.Costs) {
		return 0, false
	}
	return u.Costs[level], true
}

type ShopItem struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
	Emoji string `yaml:"emoji"`
}

type EnergyItem struct {
	Name   string `yaml:"name"`
	Amount int    `yaml:"amount"`
}

type Boost struct {
	Name  string `yaml:"name"`
	Emoji string `yaml:"emoji"`
}

type GuildBuff struct {
	Threshold int    `yaml:"threshold"`
	Name      string `yaml:"name"`
}

type Cooldown struct {
	Activity      string `yaml:"activity"`
	Cooldown      int    `yaml:"cooldown"`
	DonorAffected bool   `yaml:"donor_affected"`
}

type Data struct {
	Workers      []Worker          `yaml:"workers"`
	WorkerLevels []WorkerLevel     `yaml:"worker_levels"`
	DonorTiers   []DonorTier       `yaml:"donor_tiers"`
	Upgrades     []Upgrade         `yaml:"upgrades"`
	ShopItems    []ShopItem        `yaml:"shop_items"`
	EnergyItems  []EnergyItem      `yaml:"energy_items"`
	Boosts       []Boost           `yaml:"boosts"`
	Commands     map[string]string `yaml:"commands"`
	GuildBuffs   []GuildBuff       `yaml:"guild_buffs"`
	Cooldowns    []Cooldown        `yaml:"cooldowns"`
}

const EnergyUpgradeName = "energy regeneration"

var (
	loadOnce sync.Once
	data     *Data
)

// Load parses the embedded tables once. It panics on a malformed document since
// the file ships with the binary.
func Load() *Data {
	loadOnce.Do(func() {
		d, err := Parse(rawData)
		if err != nil {
			panic(fmt.Sprintf("gamedata: %v", err))
		}
		data = d
	})
	return data
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode game tables: %w", err)
	}
	sort.Slice(d.GuildBuffs, func(i, j int) bool { return d.GuildBuffs[i].Threshold < d.GuildBuffs[j].Threshold })
	sort.Slice(d.Upgrades, func(i, j int) bool { return d.Upgrades[i].SortIndex < d.Upgrades[j].SortIndex })
	return &d, nil
}

func (d *Data) Worker(name string) (Worker, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, w := range d.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return Worker{}, false
}

func (d *Data) Upgrade(name string) (Upgrade, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, u := range d.Upgrades {
		if u.Name == name {
			return u, true
		}
	}
	return Upgrade{}, false
}

// DonorMultiplier returns the energy regeneration multiplier for a donor tier.
// Out-of-range tiers fall back to the nearest defined one.
func (d *Data) DonorMultiplier(tier int) float64 {
	if len(d.DonorTiers) == 0 {
		return 1
	}
	if tier < 0 {
		tier = 0
	}
	if tier >= len(d.DonorTiers) {
		tier = len(d.DonorTiers) - 1
	}
	return d.DonorTiers[tier].EnergyMultiplier
}

func (d *Data) EnergyUpgradeMultiplier(level int) float64 {
	u, ok := d.Upgrade(EnergyUpgradeName)
	if !ok || len(u.Multipliers) == 0 {
		return 1
	}
	if level < 0 {
		level = 0
	}
	if level >= len(u.Multipliers) {
		level = len(u.Multipliers) - 1
	}
	return u.Multipliers[level]
}

func (d *Data) Command(activity string) string {
	if cmd, ok := d.Commands[activity]; ok {
		return cmd
	}
	if i := strings.IndexByte(activity, '-'); i > 0 {
		return d.Commands[activity[:i]]
	}
	return ""
}

// GuildBuff returns the highest buff unlocked by total seals.
func (d *Data) GuildBuff(total int) (GuildBuff, bool) {
	var found GuildBuff
	ok := false
	for _, b := range d.GuildBuffs {
		if total >= b.Threshold {
			found, ok = b, true
		}
	}
	return found, ok
}

// CrossedGuildBuff reports the highest threshold in (before, after].
func (d *Data) CrossedGuildBuff(before, after int) (GuildBuff, bool) {
	var found GuildBuff
	ok := false
	for _, b := range d.GuildBuffs {
		if before < b.Threshold && after >= b.Threshold {
			found, ok = b, true
		}
	}
	return found, ok
}

type nameSource []string

func (s nameSource) String(i int) string { return s[i] }
func (s nameSource) Len() int            { return len(s) }

// MatchName returns the best fuzzy match for query among names.
func MatchName(query string, names []string) (string, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return "", false
	}
	for _, n := range names {
		if n == query {
			return n, true
		}
	}
	matches := fuzzy.FindFrom(query, nameSource(names))
	if len(matches) == 0 {
		return "", false
	}
	return names[matches[0].Index], true
}

func (d *Data) ShopItem(query string) (ShopItem, bool) {
	names := make([]string, len(d.ShopItems))
	for i, item := range d.ShopItems {
		names[i] = item.Name
	}
	name, ok := MatchName(query, names)
	if !ok {
		return ShopItem{}, false
	}
	for _, item := range d.ShopItems {
		if item.Name == name {
			return item, true
		}
	}
	return ShopItem{}, false
}

func (d *Data) Boost(query string) (Boost, bool) {
	names := make([]string, len(d.Boosts))
	for i, b := range d.Boosts {
		names[i] = b.Name
	}
	name, ok := MatchName(query, names)
	if !ok {
		return Boost{}, false
	}
	for _, b := range d.Boosts {
		if b.Name == name {
			return b, true
		}
	}
	return Boost{}, false
}

// BoostByName does an exact lookup used when rendering reminders.
func (d *Data) BoostByName(name string) (Boost, bool) {
	for _, b := range d.Boosts {
		if b.Name == name {
			return b, true
		}
	}
	return Boost{}, false
}
