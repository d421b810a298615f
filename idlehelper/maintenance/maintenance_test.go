package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/robfig/cron/v3"
)

type recorder struct {
	compacted int
	backedUp  []time.Time
	err       error
}

func (r *recorder) Compact(context.Context) error {
	r.compacted++
	return nil
}

func (r *recorder) Run(_ context.Context, now time.Time) error {
	r.backedUp = append(r.backedUp, now)
	return r.err
}

func newScheduler(t *testing.T, backup Backuper, rec *recorder, now time.Time) (*Scheduler, *repositories.Store) {
	t.Helper()
	db, err := database.NewMemory(context.Background())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(db.Close)
	store := repositories.NewStore(db.BunDB())
	s := New(store, rec, backup)
	s.now = func() time.Time { return now }
	return s, store
}

func TestNightly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &recorder{}
	s, store := newScheduler(t, rec, rec, now)

	old := now.AddDate(0, 0, -30)
	for i := 0; i < 3; i++ {
		if err := store.Tracking.InsertEntry(ctx, 1, 5, "claim", old.Add(time.Duration(i)*time.Minute), 1); err != nil {
			t.Fatalf("InsertEntry() error = %v", err)
		}
	}

	if err := s.Nightly(ctx); err != nil {
		t.Fatalf("Nightly() error = %v", err)
	}
	if rec.compacted != 1 || len(rec.backedUp) != 1 || !rec.backedUp[0].Equal(now) {
		t.Errorf("compacted %d times, backups %v", rec.compacted, rec.backedUp)
	}

	report, err := store.Tracking.Report(ctx, 1, 365*24*time.Hour, 0, now)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if report.Counts["claim"] != 3 {
		t.Errorf("claims after consolidation = %d, want 3", report.Counts["claim"])
	}
}

func TestNightlyWithoutBackup(t *testing.T) {
	rec := &recorder{}
	s, _ := newScheduler(t, nil, rec, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err := s.Nightly(context.Background()); err != nil {
		t.Fatalf("Nightly() error = %v", err)
	}
	if rec.compacted != 1 || len(rec.backedUp) != 0 {
		t.Errorf("compacted %d, backups %d", rec.compacted, len(rec.backedUp))
	}
}

func TestNightlyBackupError(t *testing.T) {
	rec := &recorder{err: errors.New("bucket gone")}
	s, _ := newScheduler(t, rec, rec, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err := s.Nightly(context.Background()); err == nil {
		t.Fatal("Nightly() error = nil, want backup failure")
	}
}

func TestWeekly(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	s, store := newScheduler(t, nil, rec, time.Now())

	if _, err := store.Clans.Insert(ctx, "farmers", 1, []int64{1, 2}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, _, err := store.Clans.AddContribution(ctx, "farmers", 2, 30); err != nil {
		t.Fatalf("AddContribution() error = %v", err)
	}

	if err := s.Weekly(ctx); err != nil {
		t.Fatalf("Weekly() error = %v", err)
	}
	clan, err := store.Clans.GetByName(ctx, "farmers")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if clan.SealsTotal() != 0 {
		t.Errorf("SealsTotal() = %d after reset", clan.SealsTotal())
	}
}

func TestSpecsRunAtUTCMidnight(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) // a Friday

	nightly, err := parser.Parse(NightlySpec)
	if err != nil {
		t.Fatalf("Parse(nightly) error = %v", err)
	}
	if got := nightly.Next(from); !got.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("nightly next = %v", got)
	}

	weekly, err := parser.Parse(WeeklySpec)
	if err != nil {
		t.Fatalf("Parse(weekly) error = %v", err)
	}
	if got := weekly.Next(from); !got.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("weekly next = %v", got)
	}
}
