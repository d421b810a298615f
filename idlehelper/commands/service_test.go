package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
	"github.com/idlehelper/bot/idlehelper/reminders"
	"github.com/idlehelper/bot/idlehelper/transport"
)

const (
	testUser    int64 = 1
	testOwner   int64 = 99
	testChannel int64 = 50
	testGuild   int64 = 5
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *repositories.Store) {
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
	svc := NewService(store, store.Reminders, gamedata.Load(), Options{
		OwnerID: testOwner,
		Version: "test",
		Now:     func() time.Time { return testNow },
	})
	return svc, store
}

func addReminder(t *testing.T, store *repositories.Store, activity, message string) *models.UserReminder {
	t.Helper()
	r, err := store.Reminders.UpsertUserReminder(context.Background(), repositories.UserReminderUpsert{
		UserID:           testUser,
		Activity:         activity,
		TimeLeft:         time.Hour,
		ChannelID:        testChannel,
		Message:          message,
		OverwriteMessage: true,
		Now:              testNow,
	})
	if err != nil {
		t.Fatalf("UpsertUserReminder() error = %v", err)
	}
	return r
}

func TestOnOff(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		userID      int64
		run         func(context.Context, int64) (transport.Embed, error)
		wantText    string
		wantEnabled bool
	}{
		{name: "already on", userID: testUser, run: svc.On, wantText: "already turned on", wantEnabled: true},
		{name: "off", userID: testUser, run: svc.Off, wantText: "turned off now", wantEnabled: false},
		{name: "already off", userID: testUser, run: svc.Off, wantText: "already turned off", wantEnabled: false},
		{name: "back on", userID: testUser, run: svc.On, wantText: "Welcome back", wantEnabled: true},
		{name: "first time", userID: 2, run: svc.On, wantText: "reading your IDLE FARM messages", wantEnabled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embed, err := tt.run(ctx, tt.userID)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !strings.Contains(embed.Description, tt.wantText) {
				t.Errorf("Description = %q, want it to contain %q", embed.Description, tt.wantText)
			}
			user, err := store.Users.Get(ctx, tt.userID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if user.BotEnabled != tt.wantEnabled {
				t.Errorf("BotEnabled = %v, want %v", user.BotEnabled, tt.wantEnabled)
			}
		})
	}

	if _, err := svc.Off(ctx, 3); pipeline.Classify(err) != pipeline.KindNotRegistered {
		t.Errorf("Off() for unknown user error = %v, want not registered", err)
	}
}

func TestAddCustomReminder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		timeLeft string
		text     string
		wantKind pipeline.Kind
		wantID   int
	}{
		{name: "first", timeLeft: "1h30m", text: "water the crops", wantID: 1},
		{name: "second gets next id", timeLeft: "2d", text: "sell the harvest", wantID: 2},
		{name: "zero time", timeLeft: "0s", text: "now", wantKind: pipeline.KindInvalidInput},
		{name: "bad time", timeLeft: "soon", text: "later", wantKind: pipeline.KindInvalidInput},
		{name: "empty text", timeLeft: "1h", text: "   ", wantKind: pipeline.KindInvalidInput},
		{name: "text too long", timeLeft: "1h", text: strings.Repeat("a", 151), wantKind: pipeline.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := svc.AddCustomReminder(ctx, testUser, testChannel, tt.timeLeft, tt.text)
			if tt.wantKind != pipeline.KindUnknown {
				if got := pipeline.Classify(err); got != tt.wantKind {
					t.Fatalf("error kind = %v (%v), want %v", got, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if r.CustomID != tt.wantID {
				t.Errorf("CustomID = %d, want %d", r.CustomID, tt.wantID)
			}
			if r.Message != strings.TrimSpace(tt.text) {
				t.Errorf("Message = %q, want %q", r.Message, tt.text)
			}
			if !r.EndTime.After(testNow) {
				t.Errorf("EndTime = %v, want after %v", r.EndTime, testNow)
			}
		})
	}
}

func TestAddCustomReminderDisabled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SetReminderEnabled(ctx, testUser, models.ActivityCustom, false); err != nil {
		t.Fatalf("SetReminderEnabled() error = %v", err)
	}
	_, err := svc.AddCustomReminder(ctx, testUser, testChannel, "1h", "feed the cows")
	if pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestSetReminderEnabled(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	addReminder(t, store, models.ActivityClaim, models.DefaultMessageClaim)
	addReminder(t, store, models.ActivityDaily, models.DefaultMessageDaily)

	deleted, err := svc.SetReminderEnabled(ctx, testUser, models.ActivityClaim, false)
	if err != nil {
		t.Fatalf("SetReminderEnabled() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	active, err := store.Reminders.ListActiveUserReminders(ctx, testUser, "", testNow)
	if err != nil {
		t.Fatalf("ListActiveUserReminders() error = %v", err)
	}
	if len(active) != 1 || active[0].Activity != models.ActivityDaily {
		t.Errorf("active = %+v, want only the daily reminder", active)
	}
	user, _ := store.Users.Get(ctx, testUser)
	if user.ReminderClaim.Enabled {
		t.Error("claim reminder still enabled")
	}

	if _, err = svc.SetReminderEnabled(ctx, testUser, "nap", true); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("unknown activity error = %v, want invalid input", err)
	}
}

func TestSetReminderMessage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	addReminder(t, store, models.ActivityClaim, models.DefaultMessageClaim)

	tests := []struct {
		name    string
		message string
		want    string
		wantErr error
	}{
		{name: "custom text", message: "{name} claim time!", want: "{name} claim time!"},
		{name: "reset", message: "", want: models.DefaultMessageClaim},
		{name: "unknown placeholder", message: "{nope}", wantErr: reminders.ErrUnknownPlaceholder},
		{name: "too long", message: strings.Repeat("a", 1025), wantErr: reminders.ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SetReminderMessage(ctx, testUser, models.ActivityClaim, tt.message)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
			pending, err := store.Reminders.GetUserReminder(ctx, testUser, models.ActivityClaim, 0)
			if err != nil {
				t.Fatalf("GetUserReminder() error = %v", err)
			}
			if pending.Message != tt.want {
				t.Errorf("pending message = %q, want %q", pending.Message, tt.want)
			}
		})
	}
}

func TestUpdateUserEnergy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateUser(ctx, testUser, UserChanges{Energy: intPtr(10)}); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Fatalf("energy without maximum error = %v, want invalid input", err)
	}

	user, err := svc.UpdateUser(ctx, testUser, UserChanges{EnergyMax: intPtr(100), Energy: intPtr(100)})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if user.EnergyMax != 100 {
		t.Errorf("EnergyMax = %d, want 100", user.EnergyMax)
	}
	if !user.EnergyFullTime.Equal(testNow) {
		t.Errorf("EnergyFullTime = %v, want %v", user.EnergyFullTime, testNow)
	}

	if _, err = svc.UpdateUser(ctx, testUser, UserChanges{DonorTier: intPtr(maxDonorTier + 1)}); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("donor tier error = %v, want invalid input", err)
	}
}

func TestUpdateServerPrefix(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		prefix  string
		want    string
		wantErr bool
	}{
		{name: "word gets a space", prefix: "farm", want: "farm "},
		{name: "symbol stays", prefix: "!", want: "!"},
		{name: "lowercased", prefix: "IH", want: "ih "},
		{name: "empty", prefix: "  ", wantErr: true},
		{name: "backtick", prefix: "a`b", wantErr: true},
		{name: "too long", prefix: "abcdefghijk", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guild, err := svc.UpdateServerPrefix(ctx, testGuild, tt.prefix)
			if tt.wantErr {
				if pipeline.Classify(err) != pipeline.KindInvalidInput {
					t.Fatalf("error = %v, want invalid input", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if guild.Prefix != tt.want {
				t.Errorf("Prefix = %q, want %q", guild.Prefix, tt.want)
			}
		})
	}
}

func TestUpdateServerEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	on := true
	text := "Packing time {event}!"

	guild, err := svc.UpdateServerEvent(ctx, testGuild, models.EventPacking, &on, &text)
	if err != nil {
		t.Fatalf("UpdateServerEvent() error = %v", err)
	}
	event, _ := guild.Event(models.EventPacking)
	if !event.Enabled || event.Message != text {
		t.Errorf("event = %+v, want enabled with %q", event, text)
	}

	empty := ""
	guild, err = svc.UpdateServerEvent(ctx, testGuild, models.EventPacking, nil, &empty)
	if err != nil {
		t.Fatalf("UpdateServerEvent() reset error = %v", err)
	}
	event, _ = guild.Event(models.EventPacking)
	if event.Message != models.DefaultEventPacking {
		t.Errorf("message = %q, want default", event.Message)
	}

	if _, err = svc.UpdateServerEvent(ctx, testGuild, "meteor", &on, nil); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("unknown event error = %v, want invalid input", err)
	}
}

func TestUpdateGuild(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	if _, err := store.Users.Insert(ctx, 2); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, err := store.Clans.Insert(ctx, "Farmers", testUser, []int64{testUser, 2}); err != nil {
		t.Fatalf("Clans.Insert() error = %v", err)
	}
	on := true
	channel := int64(77)

	tests := []struct {
		name     string
		userID   int64
		changes  GuildChanges
		wantKind pipeline.Kind
		check    func(*testing.T, *models.Clan)
	}{
		{name: "member can view", userID: 2},
		{name: "member can't change", userID: 2, changes: GuildChanges{Teamraid: &on}, wantKind: pipeline.KindInvalidInput},
		{name: "not in a guild", userID: 3, wantKind: pipeline.KindInvalidInput},
		{name: "reminders need a channel", userID: testUser, changes: GuildChanges{Reminders: &on}, wantKind: pipeline.KindInvalidInput},
		{name: "bad offset", userID: testUser, changes: GuildChanges{OffsetHours: floatPtr(30)}, wantKind: pipeline.KindInvalidInput},
		{
			name:    "leader enables reminders",
			userID:  testUser,
			changes: GuildChanges{Reminders: &on, ChannelID: &channel, OffsetHours: floatPtr(1.5)},
			check: func(t *testing.T, c *models.Clan) {
				if !c.ReminderEnabled || c.ReminderChannelID != channel || c.ReminderOffsetHours != 1.5 {
					t.Errorf("clan = %+v, want reminders on in channel %d with 1.5h offset", c, channel)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clan, err := svc.UpdateGuild(ctx, tt.userID, tt.changes)
			if tt.wantKind != pipeline.KindUnknown {
				if got := pipeline.Classify(err); got != tt.wantKind {
					t.Fatalf("error kind = %v (%v), want %v", got, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if clan.ClanName != "Farmers" {
				t.Errorf("ClanName = %q, want Farmers", clan.ClanName)
			}
			if tt.check != nil {
				tt.check(t, clan)
			}
		})
	}
}

func TestPurgeData(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	addReminder(t, store, models.ActivityClaim, models.DefaultMessageClaim)

	if err := svc.PurgeData(ctx, testUser); err != nil {
		t.Fatalf("PurgeData() error = %v", err)
	}
	if _, err := store.Users.Get(ctx, testUser); !repositories.IsFirstTimeUser(err) {
		t.Errorf("Get() after purge error = %v, want first time user", err)
	}
	active, err := store.Reminders.ListActiveUserReminders(ctx, testUser, "", testNow)
	if err != nil {
		t.Fatalf("ListActiveUserReminders() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active reminders after purge = %d, want 0", len(active))
	}
}

func TestReminderLines(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	addReminder(t, store, models.ActivityClaim, models.DefaultMessageClaim)
	if _, err := svc.AddCustomReminder(ctx, testUser, testChannel, "2h", "milk"); err != nil {
		t.Fatalf("AddCustomReminder() error = %v", err)
	}

	lines, err := svc.ReminderLines(ctx, testUser)
	if err != nil {
		t.Fatalf("ReminderLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2", lines)
	}
	if !strings.Contains(lines[0], "claim") || !strings.Contains(lines[1], "Custom #1") {
		t.Errorf("lines = %q, want claim then custom", lines)
	}
}

func TestReminderPage(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "line"
	}
	tests := []struct {
		name       string
		lines      []string
		page       int
		wantPages  int
		wantFooter string
	}{
		{name: "empty", lines: nil, wantPages: 1},
		{name: "first page", lines: lines, page: 0, wantPages: 2, wantFooter: "Page 1/2 • 12 reminders"},
		{name: "clamped", lines: lines, page: 9, wantPages: 2, wantFooter: "Page 2/2 • 12 reminders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReminderPages(tt.lines); got != tt.wantPages {
				t.Errorf("ReminderPages() = %d, want %d", got, tt.wantPages)
			}
			embed := ReminderPage("farmer", tt.lines, tt.page)
			if embed.FooterText != tt.wantFooter {
				t.Errorf("FooterText = %q, want %q", embed.FooterText, tt.wantFooter)
			}
		})
	}
}

func TestDevCommandsNeedOwner(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.AddCode(ctx, testUser, "FARM", "10 coins"); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Fatalf("AddCode() by user error = %v, want invalid input", err)
	}
	if err := svc.AddCode(ctx, testOwner, "FARM", "10 coins"); err != nil {
		t.Fatalf("AddCode() by owner error = %v", err)
	}
	codes, err := store.Settings.Codes(ctx)
	if err != nil {
		t.Fatalf("Codes() error = %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "FARM" {
		t.Errorf("codes = %+v, want FARM", codes)
	}

	if err = svc.SetMinieventMultiplier(ctx, testOwner, 0); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("zero multiplier error = %v, want invalid input", err)
	}
	if err = svc.SetEventReduction(ctx, testOwner, models.ActivityClaim, 120, 0); pipeline.Classify(err) != pipeline.KindInvalidInput {
		t.Errorf("reduction above 100 error = %v, want invalid input", err)
	}
}

func TestCalculate(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{expr: "(5 + 3) * 2", want: "`(5 + 3) * 2` = **16**"},
		{expr: "", wantErr: true},
		{expr: "2 ^ 8", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := svc.Calculate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Calculate() = %q, want %q", got, tt.want)
			}
		})
	}
}
