package reminders

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/gamedata"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		activity string
		template string
		wantErr  error
	}{
		{name: "default claim", activity: models.ActivityClaim, template: models.DefaultMessageClaim},
		{name: "shop suffix uses family", activity: "shop-energy drink", template: "{name} {shop_item}"},
		{name: "foreign placeholder", activity: models.ActivityVote, template: "{name} {shop_item}", wantErr: ErrUnknownPlaceholder},
		{name: "unknown placeholder", activity: models.ActivityDaily, template: "{nope}", wantErr: ErrUnknownPlaceholder},
		{name: "too long", activity: models.ActivityVote, template: strings.Repeat("a", 1025), wantErr: ErrMessageTooLong},
		{name: "guild buff", activity: ActivityClanBuff, template: models.DefaultMessageClanBuff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.activity, tt.template)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderer_RenderUser(t *testing.T) {
	renderer := NewRenderer(gamedata.Load())
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		user        func(*models.User)
		reminder    models.UserReminder
		wantContent string
		wantEmbed   string
		wantPing    bool
	}{
		{
			name:        "claim mentions and fills production",
			user:        func(u *models.User) { u.LastClaimTime = now.Add(-4 * time.Hour) },
			reminder:    models.UserReminder{Activity: models.ActivityClaim, EndTime: now, Message: models.DefaultMessageClaim},
			wantContent: "<@7> Hey! Your farm produced for **4h** since <t:1709272800:R>! `idle claim`",
			wantPing:    true,
		},
		{
			name: "claim counts time speeders",
			user: func(u *models.User) {
				u.LastClaimTime = now.Add(-2 * time.Hour)
				u.TimeSpeedersUsed = 1
			},
			reminder:    models.UserReminder{Activity: models.ActivityClaim, EndTime: now, Message: models.DefaultMessageClaim},
			wantContent: "<@7> Hey! Your farm produced for **4h** since <t:1709280000:R>! `idle claim`",
			wantPing:    true,
		},
		{
			name:        "dnd uses display name",
			user:        func(u *models.User) { u.DNDModeEnabled = true; u.RemindersSlashEnabled = true },
			reminder:    models.UserReminder{Activity: models.ActivityVote, EndTime: now, Message: models.DefaultMessageVote},
			wantContent: "Farmer Joe Hey! It's time for `/vote`!",
		},
		{
			name:      "embed mode",
			user:      func(u *models.User) { u.RemindersAsEmbed = true },
			reminder:  models.UserReminder{Activity: "boost-energy boost", EndTime: now, Message: models.DefaultMessageBoosts},
			wantEmbed: "Farmer Joe Hey! Your ⚡ **energy boost** just ran out! `idle boosts`",
		},
		{
			name:        "custom text goes into the user template",
			reminder:    models.UserReminder{Activity: models.ActivityCustom, CustomID: 1, EndTime: now, Message: "water plants"},
			wantContent: "<@7> Hey! This is your reminder for **water plants**!",
			wantPing:    true,
		},
		{
			name:        "empty placeholders collapse spaces",
			reminder:    models.UserReminder{Activity: models.ActivityCustom, EndTime: now, Message: "x"},
			user:        func(u *models.User) { u.ReminderCustom.Message = "{name}  {custom_reminder_text}  {command} done" },
			wantContent: "<@7> x done",
			wantPing:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := models.NewUser(7, now)
			if tt.user != nil {
				tt.user(user)
			}
			got := renderer.RenderUser(user, &tt.reminder, "Farmer Joe")
			if got.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", got.Content, tt.wantContent)
			}
			if tt.wantEmbed != "" {
				if len(got.Embeds) != 1 || got.Embeds[0].Description != tt.wantEmbed || got.Embeds[0].Title != "Farmer Joe's reminder" {
					t.Errorf("Embeds = %+v, want description %q", got.Embeds, tt.wantEmbed)
				}
			}
			if got.AllowedMentions.Users != tt.wantPing {
				t.Errorf("AllowedMentions.Users = %v, want %v", got.AllowedMentions.Users, tt.wantPing)
			}
		})
	}
}

func TestRenderer_RenderClanBuff(t *testing.T) {
	renderer := NewRenderer(gamedata.Load())
	clan := models.NewClan("Alpha", 1)
	clan.ReminderRoleID = 99
	buff, _ := gamedata.Load().CrossedGuildBuff(4, 6)
	reset := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	got := renderer.RenderClanBuff(clan, buff, 6, reset)
	want := "<@&99> Hey! Your guild reached **6** seals and unlocked **Guild buff I**! Resets <t:1709510400:R>."
	if got.Content != want {
		t.Errorf("Content = %q, want %q", got.Content, want)
	}
	if !got.AllowedMentions.Roles {
		t.Errorf("guild role is not pinged")
	}
}

func TestNextMidnight(t *testing.T) {
	got := NextMidnight(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("NextMidnight() = %v, want %v", got, want)
	}
}
