package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/energy"
	"github.com/idlehelper/bot/idlehelper/timestring"
	"github.com/idlehelper/bot/idlehelper/transport"
	"github.com/idlehelper/bot/idlehelper/transport/mock"
	"go.uber.org/mock/gomock"
)

const gameBot = int64(1000)

type funcProcessor struct {
	name string
	fn   func(context.Context, *ParsedMessage) (bool, error)
}

func (p funcProcessor) Name() string { return p.name }

func (p funcProcessor) Process(ctx context.Context, msg *ParsedMessage) (bool, error) {
	return p.fn(ctx, msg)
}

func gameMessage(id int64, author string) *transport.Message {
	return &transport.Message{
		ID:        id,
		ChannelID: 5,
		Author:    transport.User{ID: gameBot, Name: "IDLE FARM", Bot: true},
		Embeds: []transport.Embed{{
			AuthorName:    author,
			AuthorIconURL: "https://cdn.discordapp.com/avatars/123456789012345678/abcdef.png",
		}},
	}
}

func TestParse(t *testing.T) {
	msg := gameMessage(1, "Farmer Joe — Daily Reward")
	msg.Embeds[0].Fields = []transport.Field{{Name: "Reward", Value: "**500** Idlucks"}}
	p := Parse(msg)

	if p.EmbedUserID != 123456789012345678 {
		t.Errorf("EmbedUserID = %d", p.EmbedUserID)
	}
	if !p.IsEvent("daily reward") || p.AuthorPlayer() != "Farmer Joe" {
		t.Errorf("AuthorEvent() = %q, AuthorPlayer() = %q", p.AuthorEvent(), p.AuthorPlayer())
	}
	if p.FieldsFolded[0].Value != "**500** idlucks" || p.Fields[0].Value != "**500** Idlucks" {
		t.Errorf("field 0 = %+v / %+v", p.Fields[0], p.FieldsFolded[0])
	}
	if p.Fields[5] != (Field{}) || p.Title.Raw != "" {
		t.Errorf("absent parts are not empty")
	}
}

func TestShouldProcessEdit(t *testing.T) {
	isGame := func(id int64) bool { return id == gameBot }
	withButtons := func(m *transport.Message, disabled bool) *transport.Message {
		m.Components = []transport.Component{{CustomID: "a", Disabled: disabled}}
		return m
	}

	tests := []struct {
		name   string
		before *transport.Message
		after  *transport.Message
		want   bool
	}{
		{
			name:   "unchanged",
			before: withButtons(gameMessage(1, "x — shop"), false),
			after:  withButtons(gameMessage(1, "x — shop"), false),
			want:   false,
		},
		{
			name:   "changed with active component",
			before: withButtons(gameMessage(1, "x — shop"), false),
			after:  withButtons(gameMessage(1, "x — workers"), false),
			want:   true,
		},
		{
			name:   "changed without active component",
			before: withButtons(gameMessage(1, "x — shop"), false),
			after:  withButtons(gameMessage(1, "x — workers"), true),
			want:   false,
		},
		{
			name:   "raid edits are followed elsewhere",
			before: withButtons(gameMessage(1, "x — raid"), false),
			after: func() *transport.Message {
				m := withButtons(gameMessage(1, "x — raid"), false)
				m.Content = "changed"
				return m
			}(),
			want: false,
		},
		{
			name:   "worker roll footer change",
			before: gameMessage(1, ""),
			after: func() *transport.Message {
				m := gameMessage(1, "")
				m.Embeds[0].Description = "you hired a **common** worker"
				m.Embeds[0].FooterText = "rolled"
				return m
			}(),
			want: true,
		},
		{
			name:   "user edit",
			before: &transport.Message{Author: transport.User{ID: 1}},
			after:  &transport.Message{Author: transport.User{ID: 1}, Content: "x"},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcessEdit(tt.before, tt.after, isGame); got != tt.want {
				t.Errorf("ShouldProcessEdit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: fmt.Errorf("get: %w", repositories.ErrFirstTimeUser), want: KindNotRegistered},
		{err: ErrBotDisabled, want: KindNotRegistered},
		{err: &repositories.NotFoundError{Entity: "clan", ID: "x"}, want: KindNotFound},
		{err: &repositories.ConflictError{Entity: "clan"}, want: KindConflict},
		{err: timestring.ErrInvalid, want: KindInvalidInput},
		{err: fmt.Errorf("settings: %w", Invalid("bad %s", "value")), want: KindInvalidInput},
		{err: fmt.Errorf("send: %w", transport.ErrForbidden), want: KindTransportForbidden},
		{err: transport.ErrTimeout, want: KindTransportTimeout},
		{err: energy.ErrFullTimeOutdated, want: KindEnergyOutdated},
		{err: &repositories.RepositoryError{Operation: "get", Entity: "user", Err: errors.New("disk")}, want: KindStore},
		{err: errors.New("boom"), want: KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMessageCache(t *testing.T) {
	cache := NewMessageCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Add(&transport.Message{ChannelID: 5, Author: transport.User{ID: 1, Name: "alice"}, Content: "rpg raid", CreatedAt: now.Add(-11 * time.Minute)})
	cache.Add(&transport.Message{ChannelID: 5, Author: transport.User{ID: 2, Name: "Bob"}, Content: "idle claim", CreatedAt: now.Add(-time.Minute)})
	cache.Add(&transport.Message{ChannelID: 5, Author: transport.User{ID: 3, Name: "carol"}, Content: "idle claim", CreatedAt: now})
	cache.Add(&transport.Message{ChannelID: 5, Author: transport.User{ID: 4, Bot: true}, Content: "idle claim", CreatedAt: now})

	claim := regexp.MustCompile(`^idle\s+claim`)
	if got, ok := cache.FindRecent(5, claim, ""); !ok || got.UserID != 3 {
		t.Errorf("FindRecent() = %+v, %v, want newest user 3", got, ok)
	}
	if got, ok := cache.FindRecent(5, claim, "BOB"); !ok || got.UserID != 2 {
		t.Errorf("FindRecent(bob) = %+v, %v, want user 2", got, ok)
	}
	if _, ok := cache.FindRecent(5, regexp.MustCompile(`raid`), ""); ok {
		t.Errorf("FindRecent() matched a message past the horizon")
	}
	if n := cache.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
}

func TestMessageCache_PurgeKeepsConcurrentAdds(t *testing.T) {
	cache := NewMessageCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	stale := cache.ring(7)
	cache.Purge()
	stale.mu.Lock()
	removed := stale.removed
	stale.mu.Unlock()
	if !removed {
		t.Fatal("Purge() left an empty ring in use")
	}
	cache.Add(&transport.Message{ChannelID: 7, Author: transport.User{ID: 1, Name: "alice"}, Content: "idle claim", CreatedAt: now})
	if _, ok := cache.FindRecent(7, nil, ""); !ok {
		t.Error("message added after Purge() is missing")
	}

	const channels = 200
	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				cache.Purge()
			}
		}
	}()
	for i := int64(100); i < 100+channels; i++ {
		cache.ring(i)
		cache.Add(&transport.Message{ChannelID: i, Author: transport.User{ID: i, Name: "farmer"}, Content: "idle daily", CreatedAt: now})
	}
	close(done)
	wg.Wait()

	for i := int64(100); i < 100+channels; i++ {
		if _, ok := cache.FindRecent(i, nil, ""); !ok {
			t.Errorf("channel %d lost its message", i)
		}
	}
}

func TestResolver_UserID(t *testing.T) {
	cache := NewMessageCache()
	cache.Add(&transport.Message{ChannelID: 5, Author: transport.User{ID: 9, Name: "dave"}, Content: "idle daily", CreatedAt: time.Now()})
	resolver := NewResolver(nil, cache)
	daily := regexp.MustCompile(`daily`)

	base := func() *ParsedMessage {
		msg := gameMessage(1, "")
		msg.Embeds[0].AuthorIconURL = ""
		return Parse(msg)
	}
	tests := []struct {
		name  string
		msg   func() *ParsedMessage
		query UserQuery
		want  int64
		ok    bool
	}{
		{name: "explicit", msg: base, query: UserQuery{UserID: 1, Command: daily}, want: 1, ok: true},
		{name: "interaction", msg: func() *ParsedMessage {
			p := base()
			p.InteractionUser = &transport.User{ID: 2}
			p.EmbedUserID = 3
			return p
		}, want: 2, ok: true},
		{name: "author icon", msg: func() *ParsedMessage { p := base(); p.EmbedUserID = 3; p.FooterUserID = 4; return p }, want: 3, ok: true},
		{name: "mention", msg: func() *ParsedMessage { p := base(); p.Message.MentionIDs = []int64{6}; return p }, query: UserQuery{Command: daily}, want: 6, ok: true},
		{name: "skip mention uses cache", msg: func() *ParsedMessage { p := base(); p.Message.MentionIDs = []int64{6}; return p }, query: UserQuery{Command: daily, SkipMentions: true}, want: 9, ok: true},
		{name: "nothing", msg: base, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolver.UserID(tt.msg(), tt.query)
			if got != tt.want || ok != tt.ok {
				t.Errorf("UserID() = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPipeline_Handle(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewMemory(ctx)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	t.Cleanup(db.Close)
	store := repositories.NewStore(db.BunDB())
	if _, err = store.Users.Insert(ctx, 123456789012345678); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	resolver := NewResolver(store.Users, NewMessageCache())

	touching := funcProcessor{name: "daily", fn: func(ctx context.Context, msg *ParsedMessage) (bool, error) {
		if !msg.IsEvent("daily reward") {
			return false, nil
		}
		user, err := resolver.User(ctx, msg, UserQuery{})
		if err != nil {
			return false, err
		}
		msg.User = user
		return true, nil
	}}
	failing := funcProcessor{name: "broken", fn: func(context.Context, *ParsedMessage) (bool, error) {
		return false, errors.New("boom")
	}}
	unregistered := funcProcessor{name: "claim", fn: func(ctx context.Context, msg *ParsedMessage) (bool, error) {
		_, err := resolver.User(ctx, msg, UserQuery{UserID: 42})
		return false, err
	}}

	t.Run("acknowledges once", func(t *testing.T) {
		tr := mock.NewMockTransport(gomock.NewController(t))
		tr.EXPECT().React(gomock.Any(), int64(5), int64(1), config.ReactionAck).Return(nil).Times(1)
		p := New(tr, NewMessageCache(), []Processor{unregistered, touching}, Options{GameBotIDs: []int64{gameBot}})

		msg := gameMessage(1, "Farmer — daily reward")
		if !p.Handle(ctx, msg) {
			t.Fatalf("Handle() = false, want touched")
		}
		if !p.Handle(ctx, msg) {
			t.Fatalf("second Handle() = false, want touched")
		}
	})

	t.Run("untouched message is not acknowledged", func(t *testing.T) {
		tr := mock.NewMockTransport(gomock.NewController(t))
		p := New(tr, NewMessageCache(), []Processor{touching}, Options{GameBotIDs: []int64{gameBot}})
		if p.Handle(ctx, gameMessage(2, "Farmer — claim")) {
			t.Errorf("Handle() = true, want untouched")
		}
	})

	t.Run("debug mode reports errors", func(t *testing.T) {
		tr := mock.NewMockTransport(gomock.NewController(t))
		tr.EXPECT().Send(gomock.Any(), int64(5), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, msg transport.OutgoingMessage) (*transport.Message, error) {
				if msg.ReplyTo != 3 || len(msg.Embeds) != 1 || msg.Embeds[0].Color != config.ErrorColor {
					t.Errorf("error reply = %+v", msg)
				}
				return &transport.Message{ID: 4}, nil
			})
		tr.EXPECT().React(gomock.Any(), int64(5), int64(3), config.ReactionWarning).Return(nil)
		p := New(tr, NewMessageCache(), []Processor{failing}, Options{GameBotIDs: []int64{gameBot}, Debug: true})
		p.Handle(ctx, gameMessage(3, "Farmer — claim"))
	})

	t.Run("user messages feed the cache", func(t *testing.T) {
		tr := mock.NewMockTransport(gomock.NewController(t))
		cache := NewMessageCache()
		p := New(tr, cache, []Processor{failing}, Options{GameBotIDs: []int64{gameBot}})
		p.OnMessage(ctx, &transport.Message{ChannelID: 5, Author: transport.User{ID: 7, Name: "eve"}, Content: "idle raid", CreatedAt: time.Now()})
		p.Wait()
		if got, ok := cache.FindRecent(5, regexp.MustCompile(`raid`), ""); !ok || got.UserID != 7 {
			t.Errorf("FindRecent() = %+v, %v", got, ok)
		}
	})
}

func TestChannelQueue_Order(t *testing.T) {
	q := NewChannelQueue()
	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 50; i++ {
		i := i
		for _, ch := range []int64{1, 2} {
			ch := ch
			q.Submit(ch, func() {
				mu.Lock()
				got[ch] = append(got[ch], i)
				mu.Unlock()
			})
		}
	}
	q.Wait()
	for ch, seq := range got {
		for i, v := range seq {
			if v != i {
				t.Fatalf("channel %d ran out of order: %v", ch, seq)
			}
		}
	}
}
