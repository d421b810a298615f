package clans

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
	"github.com/idlehelper/bot/idlehelper/transport/mock"
	"go.uber.org/mock/gomock"
)

func newService(t *testing.T) (*Service, *repositories.Store, *mock.MockTransport) {
	t.Helper()
	db, err := database.NewMemory(context.Background())
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(db.Close)
	store := repositories.NewStore(db.BunDB())
	tr := mock.NewMockTransport(gomock.NewController(t))
	data := gamedata.Load()
	return NewService(store, tr, reminders.NewRenderer(data), data), store, tr
}

func TestNextReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "midweek", now: time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC), want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{name: "monday midnight", now: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), want: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
		{name: "sunday night", now: time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), want: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextReset(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextReset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_SyncRoster(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then reconciles", func(t *testing.T) {
		svc, store, _ := newService(t)
		res, err := svc.SyncRoster(ctx, Roster{Name: "Alpha", LeaderID: 1, Members: []int64{1, 2, 3}}, 10)
		if err != nil || !res.Created {
			t.Fatalf("SyncRoster() = %+v, %v, want created", res, err)
		}
		res, err = svc.SyncRoster(ctx, Roster{Name: "Alpha", LeaderID: 1, Members: []int64{1, 3, 4}}, 10)
		if err != nil || res.Created || res.Renamed {
			t.Fatalf("SyncRoster() = %+v, %v, want plain update", res, err)
		}
		clan, err := store.Clans.GetByName(ctx, "Alpha")
		if err != nil {
			t.Fatalf("GetByName() error = %v", err)
		}
		if clan.HasMember(2) || !clan.HasMember(4) || len(clan.Members) != 3 {
			t.Errorf("members = %+v, want 1, 3, 4", clan.Members)
		}
	})

	t.Run("same roster under a new name is a rename", func(t *testing.T) {
		svc, store, _ := newService(t)
		if _, err := svc.SyncRoster(ctx, Roster{Name: "Alpha", LeaderID: 1, Members: []int64{1, 2}}, 10); err != nil {
			t.Fatalf("SyncRoster() error = %v", err)
		}
		res, err := svc.SyncRoster(ctx, Roster{Name: "Beta", LeaderID: 1, Members: []int64{2, 1}}, 10)
		if err != nil || !res.Renamed || res.Clan.ClanName != "Beta" {
			t.Fatalf("SyncRoster() = %+v, %v, want rename", res, err)
		}
		if _, err = store.Clans.GetByName(ctx, "Alpha"); !repositories.IsNotFound(err) {
			t.Errorf("old clan still stored: %v", err)
		}
	})

	t.Run("leader of a different roster replaces the older clan", func(t *testing.T) {
		svc, store, tr := newService(t)
		var sent transport.OutgoingMessage
		tr.EXPECT().Send(gomock.Any(), int64(10), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, msg transport.OutgoingMessage) (*transport.Message, error) {
				sent = msg
				return &transport.Message{ID: 1}, nil
			})

		if _, err := svc.SyncRoster(ctx, Roster{Name: "Alpha", LeaderID: 1, Members: []int64{1, 2}}, 10); err != nil {
			t.Fatalf("SyncRoster() error = %v", err)
		}
		res, err := svc.SyncRoster(ctx, Roster{Name: "Gamma", LeaderID: 1, Members: []int64{1, 5, 6}}, 10)
		if err != nil {
			t.Fatalf("SyncRoster() error = %v", err)
		}
		if !res.Created || res.Replaced == nil || res.Replaced.ClanName != "Alpha" {
			t.Errorf("SyncRoster() = %+v, want Gamma created replacing Alpha", res)
		}
		if _, err = store.Clans.GetByName(ctx, "Alpha"); !repositories.IsNotFound(err) {
			t.Errorf("older clan still stored: %v", err)
		}
		if !strings.HasPrefix(sent.Content, "<@1> ") || !sent.AllowedMentions.Users {
			t.Errorf("owner notice = %+v", sent)
		}
	})

	t.Run("incomplete roster", func(t *testing.T) {
		svc, _, _ := newService(t)
		if _, err := svc.SyncRoster(ctx, Roster{Name: "Alpha"}, 10); err == nil {
			t.Errorf("SyncRoster() error = nil, want error")
		}
	})
}

func TestService_AddContribution(t *testing.T) {
	ctx := context.Background()
	svc, store, tr := newService(t)

	if _, err := store.Clans.Insert(ctx, "Alpha", 1, []int64{1, 2}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	clan, err := store.Clans.Update(ctx, "Alpha", repositories.ClanUpdate{Fields: map[string]interface{}{
		"alert_contribution_enabled": true,
		"reminder_role_id":           int64(99),
		"reminder_channel_id":        int64(77),
	}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var sent transport.OutgoingMessage
	tr.EXPECT().Send(gomock.Any(), int64(77), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, msg transport.OutgoingMessage) (*transport.Message, error) {
			sent = msg
			return &transport.Message{ID: 1}, nil
		}).
		Times(1)

	got, err := svc.AddContribution(ctx, clan, 1, 4, 10)
	if err != nil || got.Buff != nil || got.After != 4 {
		t.Fatalf("AddContribution() = %+v, %v, want 4 seals without buff", got, err)
	}

	got, err = svc.AddContribution(ctx, clan, 2, 2, 10)
	if err != nil {
		t.Fatalf("AddContribution() error = %v", err)
	}
	if got.Before != 4 || got.After != 6 || got.Buff == nil || got.Buff.Name != "Guild buff I" || !got.Alerted {
		t.Errorf("AddContribution() = %+v, want Guild buff I at 6", got)
	}
	if !strings.HasPrefix(sent.Content, "<@&99> ") || !strings.Contains(sent.Content, "**6**") || !sent.AllowedMentions.Roles {
		t.Errorf("alert = %+v", sent)
	}

	if _, err = svc.AddContribution(ctx, clan, 42, 1, 10); !repositories.IsNotFound(err) {
		t.Errorf("AddContribution() for non-member error = %v, want not found", err)
	}
}
