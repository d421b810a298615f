package energy

import (
	"errors"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/gamedata"
)

func TestRegenTime(t *testing.T) {
	data := gamedata.Load()
	maxDonor := 1.55
	tests := []struct {
		name         string
		donorTier    int
		upgradeLevel int
		want         time.Duration
	}{
		{name: "no multipliers", donorTier: 0, upgradeLevel: 0, want: 5 * time.Minute},
		{name: "upgrade only", donorTier: 0, upgradeLevel: 5, want: 150 * time.Second},
		{name: "donor tier clamps", donorTier: 40, upgradeLevel: 0, want: time.Duration(float64(5*time.Minute) / maxDonor)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegenTime(data, tt.donorTier, tt.upgradeLevel); got != tt.want {
				t.Errorf("RegenTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		fullTime time.Time
		want     float64
		wantErr  error
	}{
		{name: "one hour missing", fullTime: now.Add(time.Hour), want: 38},
		{name: "half unit missing", fullTime: now.Add(150 * time.Second), want: 49.5},
		{name: "outdated", fullTime: now, wantErr: ErrFullTimeOutdated},
		{name: "unknown", fullTime: time.Time{}, wantErr: ErrFullTimeOutdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Current(50, tt.fullTime, now, 5*time.Minute)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Current() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Current() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChange(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	regen := 5 * time.Minute
	tests := []struct {
		name     string
		fullTime time.Time
		delta    float64
		want     time.Time
	}{
		{name: "restore six", fullTime: now.Add(60 * time.Minute), delta: 6, want: now.Add(30 * time.Minute)},
		{name: "restore overshoots", fullTime: now.Add(10 * time.Minute), delta: 6, want: now},
		{name: "spend forty", fullTime: now.Add(10 * time.Minute), delta: -40, want: now.Add(210 * time.Minute)},
		{name: "spend from full", fullTime: now.Add(-time.Hour), delta: -4, want: now.Add(20 * time.Minute)},
		{name: "restore when full", fullTime: now.Add(-time.Hour), delta: 4, want: now.Add(-time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Change(tt.fullTime, now, regen, tt.delta); !got.Equal(tt.want) {
				t.Errorf("Change() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChange_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	regen := 5 * time.Minute
	full := now.Add(2 * time.Hour)
	for _, delta := range []float64{1, 6, 10, 24} {
		restored := Change(Change(full, now, regen, delta), now, regen, -delta)
		if !restored.Equal(full) {
			t.Errorf("delta %v: round trip = %v, want %v", delta, restored, full)
		}
	}
}

func TestReminderEnd(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	regen := 5 * time.Minute

	// energy-48 reminder before and after restoring six energy
	before, err := ReminderEnd(48, 50, now.Add(60*time.Minute), now, regen)
	if err != nil {
		t.Fatalf("ReminderEnd() error = %v", err)
	}
	after, err := ReminderEnd(48, 50, Change(now.Add(60*time.Minute), now, regen, 6), now, regen)
	if err != nil {
		t.Fatalf("ReminderEnd() error = %v", err)
	}
	if !before.Equal(now.Add(50 * time.Minute)) {
		t.Errorf("ReminderEnd() before = %v", before)
	}
	if before.Sub(after) != 30*time.Minute {
		t.Errorf("ReminderEnd() moved by %v, want 30m", before.Sub(after))
	}

	floor, err := ReminderEnd(10, 50, now.Add(time.Minute), now, regen)
	if err != nil || !floor.Equal(now.Add(time.Second)) {
		t.Errorf("ReminderEnd() for reached target = %v, %v", floor, err)
	}
}

func TestReminderTarget(t *testing.T) {
	tests := []struct {
		activity string
		want     int
		ok       bool
	}{
		{activity: "energy-40", want: 40, ok: true},
		{activity: Activity(85), want: 85, ok: true},
		{activity: "energy", ok: false},
		{activity: "claim", ok: false},
		{activity: "energy-x", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.activity, func(t *testing.T) {
			got, ok := ReminderTarget(tt.activity)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ReminderTarget() = %v, %v, want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
