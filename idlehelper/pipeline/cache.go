package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/transport"
)

// CachedMessage is a user command seen recently in a channel.
type CachedMessage struct {
	UserID      int64
	Name        string
	DisplayName string
	Content     string
	CreatedAt   time.Time
}

type channelRing struct {
	mu      sync.Mutex
	entries []CachedMessage
	// removed is set once Purge dropped the ring from the cache. Writers holding a
	// stale pointer fetch a fresh ring instead.
	removed bool
}

// MessageCache keeps the latest user messages per channel so a game reply without
// an interaction can be matched back to whoever triggered it.
type MessageCache struct {
	channels *lru.Cache
	perChan  int
	maxAge   time.Duration
	now      func() time.Time
}

func NewMessageCache() *MessageCache {
	channels, _ := lru.New(config.MessageCacheChannels)
	return &MessageCache{
		channels: channels,
		perChan:  config.MessageCachePerChan,
		maxAge:   config.MessageCacheMaxAge,
		now:      time.Now,
	}
}

func (c *MessageCache) ring(channelID int64) *channelRing {
	if v, ok := c.channels.Get(channelID); ok {
		return v.(*channelRing)
	}
	r := &channelRing{}
	if ok, _ := c.channels.ContainsOrAdd(channelID, r); ok {
		v, _ := c.channels.Get(channelID)
		if existing, ok := v.(*channelRing); ok {
			return existing
		}
	}
	return r
}

// Add stores a user message. Bot messages are ignored.
func (c *MessageCache) Add(msg *transport.Message) {
	if msg.Author.Bot || msg.Content == "" {
		return
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	entry := CachedMessage{
		UserID:      msg.Author.ID,
		Name:        Fold(msg.Author.Name),
		DisplayName: Fold(msg.Author.Display()),
		Content:     Fold(msg.Content),
		CreatedAt:   created,
	}
	for {
		r := c.ring(msg.ChannelID)
		r.mu.Lock()
		if r.removed {
			r.mu.Unlock()
			continue
		}
		r.entries = append(r.entries, entry)
		if over := len(r.entries) - c.perChan; over > 0 {
			r.entries = append(r.entries[:0], r.entries[over:]...)
		}
		r.mu.Unlock()
		return
	}
}

// FindRecent returns the newest message in channelID matching pattern, optionally
// restricted to a user name. Messages older than the cache horizon never match.
func (c *MessageCache) FindRecent(channelID int64, pattern *regexp.Regexp, name string) (CachedMessage, bool) {
	v, ok := c.channels.Get(channelID)
	if !ok {
		return CachedMessage{}, false
	}
	r := v.(*channelRing)
	oldest := c.now().Add(-c.maxAge)
	name = Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.CreatedAt.Before(oldest) {
			break
		}
		if name != "" && e.Name != name && e.DisplayName != name {
			continue
		}
		if pattern == nil || pattern.MatchString(e.Content) {
			return e, true
		}
	}
	return CachedMessage{}, false
}

// Purge drops messages older than the horizon and forgets empty channels.
func (c *MessageCache) Purge() int {
	oldest := c.now().Add(-c.maxAge)
	removed := 0
	for _, key := range c.channels.Keys() {
		v, ok := c.channels.Peek(key)
		if !ok {
			continue
		}
		r := v.(*channelRing)
		r.mu.Lock()
		keep := r.entries[:0]
		for _, e := range r.entries {
			if e.CreatedAt.Before(oldest) {
				removed++
				continue
			}
			keep = append(keep, e)
		}
		r.entries = keep
		if len(keep) == 0 {
			r.removed = true
			c.channels.Remove(key)
		}
		r.mu.Unlock()
	}
	return removed
}

// RunGC purges the cache every interval until ctx is done.
func (c *MessageCache) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				slog.Debug("Purged cached messages",
					slog.String("type", "message"),
					slog.Int("count", n))
			}
		}
	}
}
