package processors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/raid"
	"github.com/idlehelper/bot/idlehelper/transport"
	"go.uber.org/mock/gomock"
)

func TestParseFarms(t *testing.T) {
	value := "🧙 **Wise** lv3 | 1,250 power | 80% hp\n🌾 Empty farm\n👨‍🌾 **common** lv1 | 40.5 power | 100% hp"
	got := ParseFarms(value)
	want := []raid.Defender{{Name: "wise", Power: 1250, HP: 80}, {Name: "common", Power: 40.5, HP: 100}}
	if got.Empty != 1 || len(got.Defenders) != len(want) {
		t.Fatalf("ParseFarms() = %+v", got)
	}
	for i := range want {
		if got.Defenders[i] != want[i] {
			t.Errorf("defender %d = %+v, want %+v", i, got.Defenders[i], want[i])
		}
	}
}

func TestRaidProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("completion tracks points", func(t *testing.T) {
		h := newHarness(t)
		msg := gameMessage("The raid is over! Raid worth: **-120** points")
		if _, touched := h.process(t, &raidProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		report, err := h.store.Tracking.Report(ctx, testUser, time.Hour, 0, testNow)
		if err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if report.RaidLost != 120 || report.RaidGained != 0 {
			t.Errorf("report = %+v, want 120 lost", report)
		}
	})

	t.Run("raid start spends energy and posts the helper", func(t *testing.T) {
		h := newHarness(t)
		h.updateUser(t, map[string]interface{}{
			"energy_max":       100,
			"energy_full_time": testNow.Add(10 * time.Minute),
		})
		for _, w := range []models.UserWorker{
			{UserID: testUser, WorkerName: "wise", WorkerLevel: 2, WorkerAmount: 3},
			{UserID: testUser, WorkerName: "common", WorkerLevel: 1, WorkerAmount: 5},
		} {
			if err := h.store.Workers.Upsert(ctx, &w); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}

		h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
				if !strings.Contains(out.Content, "Raid helper") || !strings.Contains(out.Content, "Kills: **1/1**") {
					t.Errorf("Send() content = %q", out.Content)
				}
				return &transport.Message{ID: 700, ChannelID: testChannel}, nil
			})
		h.tr.EXPECT().WaitForEdit(gomock.Any(), testChannel, int64(500), gomock.Any()).Return(nil, transport.ErrTimeout)
		h.tr.EXPECT().Edit(gomock.Any(), testChannel, int64(700), gomock.Any()).DoAndReturn(
			func(_ context.Context, _, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
				if !strings.Contains(out.Content, "Kills: **1/1**") || !strings.HasSuffix(out.Content, TimedOutMarker) {
					t.Errorf("Edit() content = %q, want the solution marked as timed out", out.Content)
				}
				return &transport.Message{ID: 700, ChannelID: testChannel}, nil
			})

		msg := eventEmbed("raid", transport.Embed{Fields: []transport.Field{
			{Name: "Enemy farms", Value: "🧙 **wise** lv1 | 50 power | 100% hp\n🌾 empty farm"},
		}})
		msg.Components = []transport.Component{{CustomID: "w1", Label: "wise"}, {CustomID: "w2", Label: "common"}}
		if _, touched := h.process(t, &raidProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}

		user, err := h.store.Users.Get(ctx, testUser)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if want := testNow.Add(210 * time.Minute); !user.EnergyFullTime.Equal(want) {
			t.Errorf("energy full time = %v, want %v", user.EnergyFullTime, want)
		}
	})
}

func TestRenderSolution(t *testing.T) {
	sol := raid.Solution{
		Killed: 1,
		Steps: []raid.Step{
			{Attacker: raid.Attacker{Name: "wise", Emoji: "🧙"}, Defender: 0, Damage: 100},
			{Attacker: raid.Attacker{Name: "common", Emoji: "👨‍🌾"}, Defender: -1},
		},
	}
	tests := []struct {
		name    string
		compact bool
		names   bool
		want    string
	}{
		{name: "compact", compact: true, want: "🧙 ➜ 👨‍🌾"},
		{name: "detailed with names", names: true, want: "1. 🧙 **wise** ➜ farm 1 (-100 hp, 0 hp left)"},
		{name: "empty farm", want: "2. 👨‍🌾 ➜ empty farm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSolution(sol, 1, tt.compact, tt.names)
			if !strings.Contains(got, tt.want) || !strings.Contains(got, "Kills: **1/1**") {
				t.Errorf("RenderSolution() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestTeamraidProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("team workers", func(t *testing.T) {
		h := newHarness(t)
		if err := h.store.Workers.Upsert(ctx, &models.UserWorker{UserID: 2, WorkerName: "wise", WorkerLevel: 2}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		p := &teamraidProcessor{h.deps}
		team, err := p.TeamWorkers(ctx, "<@1>: **common**, ~~wise~~\n<@2>: **wise**")
		if err != nil {
			t.Fatalf("TeamWorkers() error = %v", err)
		}
		common, _ := h.deps.Data.Worker("common")
		wise, _ := h.deps.Data.Worker("wise")
		want := []raid.TeamWorker{
			{UserID: 1, Name: "common", Power: raid.WorkerPower(common, 1)},
			{UserID: 2, Name: "wise", Power: raid.WorkerPower(wise, 2)},
		}
		if len(team) != len(want) {
			t.Fatalf("TeamWorkers() = %+v", team)
		}
		for i := range want {
			if team[i] != want[i] {
				t.Errorf("worker %d = %+v, want %+v", i, team[i], want[i])
			}
		}
	})

	t.Run("follow marks the helper as timed out", func(t *testing.T) {
		h := newHarness(t)
		p := &teamraidProcessor{h.deps}
		msg := eventEmbed("teamraid", transport.Embed{Fields: []transport.Field{
			{Name: "Enemy farms", Value: "🧙 **wise** lv1 | 50 power | 100% hp"},
			{Name: "Team", Value: "<@1>: **common**"},
		}})
		msg.Components = []transport.Component{{CustomID: "t1", Label: "common"}}

		var posted string
		h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
				posted = out.Content
				return &transport.Message{ID: 701, ChannelID: testChannel}, nil
			})
		h.tr.EXPECT().WaitForEdit(gomock.Any(), testChannel, int64(500), gomock.Any()).Return(nil, transport.ErrTimeout)
		h.tr.EXPECT().Edit(gomock.Any(), testChannel, int64(701), gomock.Any()).DoAndReturn(
			func(_ context.Context, _, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
				if want := posted + TimedOutMarker; out.Content != want {
					t.Errorf("Edit() content = %q, want %q", out.Content, want)
				}
				return &transport.Message{ID: 701, ChannelID: testChannel}, nil
			})

		p.follow(ctx, pipeline.Parse(msg))
	})

	t.Run("completion schedules the guild reminder", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.store.Clans.Insert(ctx, "Farm Lords", testUser, []int64{testUser, 2}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		_, err := h.store.Clans.Update(ctx, "Farm Lords", repositories.ClanUpdate{Fields: map[string]interface{}{
			"reminder_enabled":      true,
			"reminder_offset_hours": 1.5,
		}})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if _, touched := h.process(t, &teamraidProcessor{h.deps}, gameMessage("Teamraid completed! Your guild earned 3 seals")); !touched {
			t.Fatal("Process() touched = false")
		}
		r, err := h.store.Reminders.GetClanReminder(ctx, "Farm Lords")
		if err != nil {
			t.Fatalf("GetClanReminder() error = %v", err)
		}
		want := time.Date(2024, 3, 2, 1, 32, 0, 0, time.UTC)
		if !r.EndTime.Equal(want) || r.ChannelID != testChannel {
			t.Errorf("clan reminder = %+v, want end %v", r, want)
		}
	})
}

func TestWorkerProcessors(t *testing.T) {
	ctx := context.Background()

	t.Run("worker stats", func(t *testing.T) {
		h := newHarness(t)
		msg := eventEmbed("workers", transport.Embed{Fields: []transport.Field{
			{Name: "🧙 Wise", Value: "Level: **3** (12/20)\nAmount: **12**"},
			{Name: "Total", Value: "12 workers"},
		}})
		if _, touched := h.process(t, &workerStatsProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		workers, err := h.store.Workers.List(ctx, testUser)
		if err != nil || len(workers) != 1 {
			t.Fatalf("List() = %+v, %v", workers, err)
		}
		if w := workers[0]; w.WorkerName != "wise" || w.WorkerLevel != 3 || w.WorkerAmount != 12 {
			t.Errorf("worker = %+v", w)
		}
		levels, err := h.store.Workers.Levels(ctx)
		if err != nil {
			t.Fatalf("Levels() error = %v", err)
		}
		found := false
		for _, l := range levels {
			if l.Level == 4 && l.WorkersRequired == 20 {
				found = true
			}
		}
		if !found {
			t.Errorf("Levels() = %+v, want level 4 requiring 20", levels)
		}
	})

	t.Run("worker roll", func(t *testing.T) {
		h := newHarness(t)
		if _, touched := h.process(t, &workerRollProcessor{h.deps}, gameMessage("You hired a **talented** worker!")); !touched {
			t.Fatal("Process() touched = false")
		}
		report, err := h.store.Tracking.Report(ctx, testUser, time.Hour, 0, testNow)
		if err != nil {
			t.Fatalf("Report() error = %v", err)
		}
		if report.Workers["talented"] != 1 {
			t.Errorf("report workers = %+v", report.Workers)
		}
	})

	t.Run("lootbox", func(t *testing.T) {
		h := newHarness(t)
		msg := eventEmbed("lootbox", transport.Embed{Description: "You got:\n+2 **wise** workers\n+1 common worker"})
		if _, touched := h.process(t, &lootboxProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		workers, err := h.store.Workers.List(ctx, testUser)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		amounts := make(map[string]int)
		for _, w := range workers {
			amounts[w.WorkerName] = w.WorkerAmount
		}
		if amounts["wise"] != 2 || amounts["common"] != 1 {
			t.Errorf("amounts = %v", amounts)
		}
	})
}

func TestAffordableUpgrades(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		levels map[string]int
		budget int64
		want   []string
	}{
		{name: "nothing affordable", budget: 1000},
		{name: "cheapest first", budget: 10000, want: []string{"idlucks per hour", "farm space", "worker slots"}},
		{name: "existing levels", levels: map[string]int{"idlucks per hour": 1, "farm space": 1}, budget: 6000, want: []string{"worker slots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AffordableUpgrades(h.deps.Data, tt.levels, tt.budget)
			if len(got) != len(tt.want) {
				t.Fatalf("AffordableUpgrades() = %+v, want %v", got, tt.want)
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("purchase %d = %+v, want %s", i, got[i], name)
				}
			}
		})
	}
}

func TestPaydayProcessor(t *testing.T) {
	h := newHarness(t)
	msg := gameMessage("Payday completed! You received **12,345** idlucks")
	if _, touched := h.process(t, &paydayProcessor{h.deps}, msg); !touched {
		t.Fatal("Process() touched = false")
	}
	user, err := h.store.Users.Get(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if user.Idlucks != 12345 {
		t.Errorf("idlucks = %d, want 12345", user.Idlucks)
	}
}

func TestEventsProcessor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.Guilds.Update(ctx, testGuild, map[string]interface{}{"event_energy_enabled": true}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
			if out.Content != models.DefaultEventEnergy || !out.AllowedMentions.Everyone {
				t.Errorf("Send() = %+v", out)
			}
			return &transport.Message{ID: 3}, nil
		})

	msg := gameMessage("", transport.Embed{Title: "An energy ritual has begun!"})
	if _, touched := h.process(t, &eventsProcessor{h.deps}, msg); !touched {
		t.Fatal("Process() touched = false")
	}

	msg = gameMessage("", transport.Embed{Title: "Someone is packing their farm"})
	if _, touched := h.process(t, &eventsProcessor{h.deps}, msg); touched {
		t.Error("disabled event touched the message")
	}
}

func TestParseCooldowns(t *testing.T) {
	got := ParseCooldowns("🕓 **Daily** (5h 3m)\n✅ Vote\nsomething else\n✅ energy drink")
	want := []CooldownLine{
		{Command: "daily", TimeLeft: 5*time.Hour + 3*time.Minute},
		{Command: "vote", Ready: true},
		{Command: "energy drink", Ready: true},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseCooldowns() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestActivityListProcessor(t *testing.T) {
	h := newHarness(t)
	h.addReminder(t, "vote", 5*time.Hour)

	msg := eventEmbed("cooldowns", transport.Embed{Description: "🕓 daily (5h 3m)\n✅ vote\n✅ claim"})
	if _, touched := h.process(t, &activityListProcessor{h.deps}, msg); !touched {
		t.Fatal("Process() touched = false")
	}
	if got := h.reminderEnd(t, "daily"); !got.Equal(testNow.Add(5*time.Hour + 3*time.Minute)) {
		t.Errorf("daily end = %v", got)
	}
	_, err := h.store.Reminders.GetUserReminder(context.Background(), testUser, "vote", 0)
	if !repositories.IsNotFound(err) {
		t.Errorf("vote reminder error = %v, want not found", err)
	}
}

func TestGuildProcessors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	overview := gameMessage("", transport.Embed{
		AuthorName: "Farm Lords — guild",
		Fields: []transport.Field{
			{Name: "Leader", Value: "<@1>"},
			{Name: "Members", Value: "<@1> <@2> <@3>"},
		},
	})
	if _, touched := h.process(t, &clanOverviewProcessor{h.deps}, overview); !touched {
		t.Fatal("clan-overview touched = false")
	}
	clan, err := h.store.Clans.GetByName(ctx, "Farm Lords")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if clan.LeaderID != testUser || len(clan.Members) != 3 {
		t.Fatalf("clan = %+v", clan)
	}

	_, err = h.store.Clans.Update(ctx, "Farm Lords", repositories.ClanUpdate{Fields: map[string]interface{}{
		"alert_contribution_enabled": true,
		"reminder_role_id":           99,
	}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
			if !strings.Contains(out.Content, "Guild buff I") {
				t.Errorf("Send() content = %q", out.Content)
			}
			return &transport.Message{ID: 4}, nil
		})

	contribution := gameMessage("**Farmer** contributed **6** guild seals to the guild!")
	if _, touched := h.process(t, &contributionProcessor{h.deps}, contribution); !touched {
		t.Fatal("contribution touched = false")
	}
	clan, err = h.store.Clans.GetByName(ctx, "Farm Lords")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if clan.SealsTotal() != 6 {
		t.Errorf("seals total = %d, want 6", clan.SealsTotal())
	}
}
