package pipeline

import (
	"context"
	"regexp"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
)

// UserQuery tells the resolver where to look for the player of a message.
type UserQuery struct {
	// UserID is an explicit caller and wins over everything else.
	UserID int64
	// Command matches the cached user message that triggered the game reply.
	Command *regexp.Regexp
	// Name restricts the cache lookup to a player name.
	Name string
	// SkipMentions ignores content mentions, for messages that mention other players.
	SkipMentions bool
}

// Resolver finds the registered user behind a game message.
type Resolver struct {
	users repositories.UserRepository
	cache *MessageCache
}

func NewResolver(users repositories.UserRepository, cache *MessageCache) *Resolver {
	return &Resolver{users: users, cache: cache}
}

// UserID returns the id of the player behind msg. Precedence: explicit id, the
// interaction user, the author icon, the footer icon, a content mention, then the
// recent command cache.
func (r *Resolver) UserID(msg *ParsedMessage, q UserQuery) (int64, bool) {
	switch {
	case q.UserID != 0:
		return q.UserID, true
	case msg.InteractionUser != nil:
		return msg.InteractionUser.ID, true
	case msg.EmbedUserID != 0:
		return msg.EmbedUserID, true
	case msg.FooterUserID != 0:
		return msg.FooterUserID, true
	case !q.SkipMentions && len(msg.Message.MentionIDs) > 0:
		return msg.Message.MentionIDs[0], true
	}
	if r.cache == nil || (q.Command == nil && q.Name == "") {
		return 0, false
	}
	cached, ok := r.cache.FindRecent(msg.Message.ChannelID, q.Command, q.Name)
	if !ok {
		return 0, false
	}
	return cached.UserID, true
}

// User resolves and loads the player. Unregistered and disabled users come back as
// errors the pipeline drops silently.
func (r *Resolver) User(ctx context.Context, msg *ParsedMessage, q UserQuery) (*models.User, error) {
	id, ok := r.UserID(msg, q)
	if !ok {
		return nil, ErrUserNotFound
	}
	user, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.BotEnabled {
		return nil, ErrBotDisabled
	}
	return user, nil
}
