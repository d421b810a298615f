package processors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/clans"
	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
	"github.com/idlehelper/bot/idlehelper/transport/mock"
	"go.uber.org/mock/gomock"
)

const (
	testUser    int64 = 1
	testChannel int64 = 50
	testGuild   int64 = 5
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	deps  *Deps
	store *repositories.Store
	tr    *mock.MockTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewMemory(ctx)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(db.Close)
	store := repositories.NewStore(db.BunDB())
	if _, err = store.Users.Insert(ctx, testUser); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	tr := mock.NewMockTransport(gomock.NewController(t))
	data := gamedata.Load()
	clock := func() time.Time { return testNow }
	renderer := reminders.NewRenderer(data)
	return &harness{
		deps: &Deps{
			Store:     store,
			Scheduler: reminders.NewEngine(store, tr, renderer, reminders.Options{Now: clock}),
			Transport: tr,
			Resolver:  pipeline.NewResolver(store.Users, pipeline.NewMessageCache()),
			Data:      data,
			Clans:     clans.NewService(store, tr, renderer, data),
			Now:       clock,
			Jitter:    func() time.Duration { return 2 * time.Minute },
			Go:        func(fn func()) { fn() },
		},
		store: store,
		tr:    tr,
	}
}

func (h *harness) process(t *testing.T, p pipeline.Processor, msg *transport.Message) (*pipeline.ParsedMessage, bool) {
	t.Helper()
	parsed := pipeline.Parse(msg)
	touched, err := p.Process(context.Background(), parsed)
	if err != nil {
		t.Fatalf("%s.Process() error = %v", p.Name(), err)
	}
	return parsed, touched
}

func (h *harness) reminderEnd(t *testing.T, activity string) time.Time {
	t.Helper()
	r, err := h.store.Reminders.GetUserReminder(context.Background(), testUser, activity, 0)
	if err != nil {
		t.Fatalf("GetUserReminder(%q) error = %v", activity, err)
	}
	return r.EndTime
}

func (h *harness) addReminder(t *testing.T, activity string, timeLeft time.Duration) {
	t.Helper()
	_, err := h.deps.Scheduler.UpsertUserReminder(context.Background(), repositories.UserReminderUpsert{
		UserID:    testUser,
		Activity:  activity,
		TimeLeft:  timeLeft,
		ChannelID: testChannel,
		Message:   "{name} test",
		Now:       testNow,
	})
	if err != nil {
		t.Fatalf("UpsertUserReminder() error = %v", err)
	}
}

func (h *harness) updateUser(t *testing.T, fields map[string]interface{}) {
	t.Helper()
	if err := h.store.Users.Update(context.Background(), testUser, fields); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func gameMessage(content string, embeds ...transport.Embed) *transport.Message {
	return &transport.Message{
		ID:              500,
		ChannelID:       testChannel,
		GuildID:         testGuild,
		Author:          transport.User{ID: 900, Name: "IDLE FARM", Bot: true},
		Content:         content,
		Embeds:          embeds,
		InteractionUser: &transport.User{ID: testUser, Name: "farmer"},
		CreatedAt:       testNow,
	}
}

func eventEmbed(event string, e transport.Embed) *transport.Message {
	e.AuthorName = "Farmer — " + event
	return gameMessage("", e)
}

func TestClaimTimeLeft(t *testing.T) {
	tests := []struct {
		name     string
		chosen   time.Duration
		claimAgo time.Duration
		speeders int
		want     time.Duration
		wantOK   bool
	}{
		{name: "fresh claim", chosen: 4 * time.Hour, want: 4 * time.Hour, wantOK: true},
		{name: "elapsed time counts", chosen: 4 * time.Hour, claimAgo: time.Hour, want: 3 * time.Hour, wantOK: true},
		{name: "speeders count", chosen: 4 * time.Hour, claimAgo: time.Hour, speeders: 1, want: time.Hour, wantOK: true},
		{name: "already produced", chosen: 2 * time.Hour, claimAgo: time.Hour, speeders: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClaimTimeLeft(tt.chosen, testNow.Add(-tt.claimAgo), testNow, tt.speeders)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ClaimTimeLeft() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClaimProcessor(t *testing.T) {
	tests := []struct {
		name   string
		answer transport.PromptResult
		want   time.Duration
	}{
		{name: "preset", answer: transport.PromptResult{Value: "4"}, want: 4 * time.Hour},
		{name: "custom", answer: transport.PromptResult{Value: claimOptionCustom, Text: "5h30m"}, want: 5*time.Hour + 30*time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.updateUser(t, map[string]interface{}{"time_speeders_used": 2})

			answer := tt.answer
			answer.Message = &transport.Message{ID: 600, ChannelID: testChannel}
			h.tr.EXPECT().Prompt(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, req transport.PromptRequest) (*transport.PromptResult, error) {
					if req.UserID != testUser || len(req.Options) != len(claimPresetHours)+1 {
						t.Errorf("Prompt() request = %+v", req)
					}
					return &answer, nil
				})
			h.tr.EXPECT().Edit(gomock.Any(), testChannel, int64(600), gomock.Any()).Return(&transport.Message{}, nil)

			parsed, touched := h.process(t, &claimProcessor{h.deps}, eventEmbed("claim", transport.Embed{}))
			if !touched || parsed.User == nil {
				t.Fatalf("Process() touched = %v, user = %v", touched, parsed.User)
			}
			if got := h.reminderEnd(t, "claim"); !got.Equal(testNow.Add(tt.want)) {
				t.Errorf("claim end = %v, want %v", got, testNow.Add(tt.want))
			}
			user, err := h.store.Users.Get(context.Background(), testUser)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !user.LastClaimTime.Equal(testNow) || user.TimeSpeedersUsed != 0 {
				t.Errorf("user claim state = %v, %d", user.LastClaimTime, user.TimeSpeedersUsed)
			}
			if user.ReminderClaimLastSelection != tt.want.Hours() {
				t.Errorf("last selection = %v, want %v", user.ReminderClaimLastSelection, tt.want.Hours())
			}
		})
	}
}

func TestDailyProcessor(t *testing.T) {
	h := newHarness(t)
	_, touched := h.process(t, &dailyProcessor{h.deps}, eventEmbed("daily reward", transport.Embed{}))
	if !touched {
		t.Fatal("Process() touched = false")
	}
	want := time.Date(2024, 3, 2, 0, 2, 0, 0, time.UTC)
	if got := h.reminderEnd(t, "daily"); !got.Equal(want) {
		t.Errorf("daily end = %v, want %v", got, want)
	}
}

func TestVoteProcessor(t *testing.T) {
	t.Run("cooldown", func(t *testing.T) {
		h := newHarness(t)
		msg := eventEmbed("vote", transport.Embed{Fields: []transport.Field{{Name: "Cooldown", Value: "🕓 11h 30m"}}})
		if _, touched := h.process(t, &voteProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		if got := h.reminderEnd(t, "vote"); !got.Equal(testNow.Add(11*time.Hour + 30*time.Minute)) {
			t.Errorf("vote end = %v", got)
		}
	})

	t.Run("ready", func(t *testing.T) {
		h := newHarness(t)
		h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
				if !strings.Contains(out.Content, "/vote") || out.ReplyTo != 500 {
					t.Errorf("Send() = %+v", out)
				}
				return &transport.Message{ID: 1}, nil
			})
		msg := eventEmbed("vote", transport.Embed{Fields: []transport.Field{{Name: "Vote", Value: "You can vote now!"}}})
		if _, touched := h.process(t, &voteProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
	})
}

func TestShopProcessor(t *testing.T) {
	t.Run("maxed purchase", func(t *testing.T) {
		h := newHarness(t)
		msg := gameMessage("You maxed the purchases of **energy drink** for today, come back in 🕓 2h 5m")
		if _, touched := h.process(t, &shopProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		if got := h.reminderEnd(t, "shop-energy drink"); !got.Equal(testNow.Add(2*time.Hour + 7*time.Minute)) {
			t.Errorf("shop end = %v", got)
		}
	})

	t.Run("shop list", func(t *testing.T) {
		h := newHarness(t)
		msg := eventEmbed("shop", transport.Embed{Fields: []transport.Field{
			{Name: "🧃 Energy drink", Value: "`2/2` resets in 🕓 1d 2h"},
			{Name: "🥛 Energy glass", Value: "`1/4`"},
		}})
		if _, touched := h.process(t, &shopProcessor{h.deps}, msg); !touched {
			t.Fatal("Process() touched = false")
		}
		want := time.Date(2024, 3, 3, 0, 2, 0, 0, time.UTC)
		if got := h.reminderEnd(t, "shop-energy drink"); !got.Equal(want) {
			t.Errorf("shop end = %v, want %v", got, want)
		}
		_, err := h.store.Reminders.GetUserReminder(context.Background(), testUser, "shop-energy glass", 0)
		if !repositories.IsNotFound(err) {
			t.Errorf("energy glass reminder error = %v, want not found", err)
		}
	})
}

func TestBoostsProcessor(t *testing.T) {
	h := newHarness(t)
	h.addReminder(t, "boost-production boost", time.Hour)

	msg := eventEmbed("active boosts", transport.Embed{Fields: []transport.Field{{Name: "⚡ Energy boost", Value: "🕓 30m"}}})
	if _, touched := h.process(t, &boostsProcessor{h.deps}, msg); !touched {
		t.Fatal("Process() touched = false")
	}
	if got := h.reminderEnd(t, "boost-energy boost"); !got.Equal(testNow.Add(30 * time.Minute)) {
		t.Errorf("boost end = %v", got)
	}
	_, err := h.store.Reminders.GetUserReminder(context.Background(), testUser, "boost-production boost", 0)
	if !repositories.IsNotFound(err) {
		t.Errorf("production boost reminder error = %v, want not found", err)
	}
}

func TestUseItemProcessor_TimeItems(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		claimLeft   time.Duration
		wantEnd     time.Time
		wantSpeeder int
		wantCompr   int
	}{
		{
			name:        "time speeder",
			content:     "**Farmer** used a **time speeder**, your farm produced 🕓 2h",
			claimLeft:   4 * time.Hour,
			wantEnd:     testNow.Add(2 * time.Hour),
			wantSpeeder: 1,
		},
		{
			name:      "time compressor floors at one second",
			content:   "**Farmer** used a **time compressor**, your farm produced 🕓 4h",
			claimLeft: time.Hour,
			wantEnd:   testNow.Add(time.Second),
			wantCompr: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addReminder(t, "claim", tt.claimLeft)
			if _, touched := h.process(t, &useItemProcessor{h.deps}, gameMessage(tt.content)); !touched {
				t.Fatal("Process() touched = false")
			}
			if got := h.reminderEnd(t, "claim"); !got.Equal(tt.wantEnd) {
				t.Errorf("claim end = %v, want %v", got, tt.wantEnd)
			}
			user, err := h.store.Users.Get(context.Background(), testUser)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if user.TimeSpeedersUsed != tt.wantSpeeder || user.TimeCompressorsUsed != tt.wantCompr {
				t.Errorf("counters = %d, %d", user.TimeSpeedersUsed, user.TimeCompressorsUsed)
			}
		})
	}
}

func TestUseItemProcessor_Energy(t *testing.T) {
	h := newHarness(t)
	h.updateUser(t, map[string]interface{}{
		"energy_max":       100,
		"energy_full_time": testNow.Add(250 * time.Minute),
	})
	h.addReminder(t, "energy-90", time.Hour)
	h.tr.EXPECT().Send(gomock.Any(), testChannel, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, out transport.OutgoingMessage) (*transport.Message, error) {
			if !strings.Contains(out.Content, "80/100") {
				t.Errorf("Send() content = %q", out.Content)
			}
			return &transport.Message{ID: 2}, nil
		})

	msg := gameMessage("**Farmer** used an **energy drink** and restored **30** energy!")
	if _, touched := h.process(t, &useItemProcessor{h.deps}, msg); !touched {
		t.Fatal("Process() touched = false")
	}
	user, err := h.store.Users.Get(context.Background(), testUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !user.EnergyFullTime.Equal(testNow.Add(100 * time.Minute)) {
		t.Errorf("energy full time = %v", user.EnergyFullTime)
	}
	if got := h.reminderEnd(t, "energy-90"); !got.Equal(testNow.Add(50 * time.Minute)) {
		t.Errorf("energy reminder end = %v", got)
	}
}

func TestMinieventProcessor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := &minieventProcessor{h.deps}

	h.process(t, p, gameMessage("A mini event started: **energy x2** for one hour!"))
	if mult, err := h.store.Settings.MinieventEnergyMultiplier(ctx); err != nil || mult != 2 {
		t.Errorf("multiplier = %v, %v, want 2", mult, err)
	}
	h.process(t, p, gameMessage("The mini event has ended."))
	if mult, err := h.store.Settings.MinieventEnergyMultiplier(ctx); err != nil || mult != 1 {
		t.Errorf("multiplier = %v, %v, want 1", mult, err)
	}
}

func TestAdvanceEnd(t *testing.T) {
	if got := AdvanceEnd(testNow.Add(time.Hour), 30*time.Minute, testNow); !got.Equal(testNow.Add(30 * time.Minute)) {
		t.Errorf("AdvanceEnd() = %v", got)
	}
	if got := AdvanceEnd(testNow.Add(time.Minute), time.Hour, testNow); !got.Equal(testNow.Add(time.Second)) {
		t.Errorf("AdvanceEnd() = %v, want floor", got)
	}
}

func TestAll(t *testing.T) {
	procs := All(&Deps{})
	if len(procs) != 24 {
		t.Fatalf("All() returned %d processors, want 24", len(procs))
	}
	seen := make(map[string]bool)
	for _, p := range procs {
		if seen[p.Name()] {
			t.Errorf("duplicate processor %q", p.Name())
		}
		seen[p.Name()] = true
	}
}
