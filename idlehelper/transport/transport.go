// Package transport defines the chat capability the core talks to. Everything here is
// plain data; the chat package adapts it to the disgo client.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrForbidden is returned when the chat platform refuses an action (missing permissions,
	// blocked DMs, deleted channel). Callers drop it silently.
	ErrForbidden = errors.New("chat transport: forbidden")
	ErrTimeout   = errors.New("chat transport: timed out")
	ErrAborted   = errors.New("chat transport: aborted by user")
)

type User struct {
	ID          int64
	Name        string
	DisplayName string
	Bot         bool
}

// Display returns the name shown in chat.
func (u User) Display() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

type Channel struct {
	ID      int64
	GuildID int64
	Name    string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	AuthorName    string
	AuthorIconURL string
	Title         string
	Description   string
	Fields        []Field
	FooterText    string
	FooterIconURL string
	Color         int
}

// Component is a flattened interactive element (button or select) of a message.
type Component struct {
	CustomID string
	Label    string
	Disabled bool
}

type Message struct {
	ID              int64
	ChannelID       int64
	GuildID         int64
	Author          User
	Content         string
	Embeds          []Embed
	Components      []Component
	MentionIDs      []int64
	InteractionUser *User
	CreatedAt       time.Time
	EditedAt        time.Time
}

// ActiveComponents counts components that can still be used.
func (m *Message) ActiveComponents() int {
	n := 0
	for _, c := range m.Components {
		if !c.Disabled {
			n++
		}
	}
	return n
}

type AllowedMentions struct {
	Users    bool
	Roles    bool
	Everyone bool
}

type File struct {
	Name string
	Data []byte
}

type OutgoingMessage struct {
	Content         string
	Embeds          []Embed
	AllowedMentions AllowedMentions
	Files           []File
	// ReplyTo is the id of the message being answered, 0 for none.
	ReplyTo int64
}

type PromptOption struct {
	Label string
	Value string
	// AskText makes the transport ask the user for free text after choosing this option.
	AskText bool
}

// PromptRequest asks one user to pick an option under a message.
type PromptRequest struct {
	ChannelID int64
	ReplyTo   int64
	UserID    int64
	Content   string
	Options   []PromptOption
	Timeout   time.Duration
}

type PromptResult struct {
	Value string
	Text  string
	// Message is the prompt message so the caller can finalize it.
	Message *Message
}

// Transport is the chat capability consumed by the core.
type Transport interface {
	Send(ctx context.Context, channelID int64, msg OutgoingMessage) (*Message, error)
	Edit(ctx context.Context, channelID, messageID int64, msg OutgoingMessage) (*Message, error)
	React(ctx context.Context, channelID, messageID int64, emoji string) error
	FetchUser(ctx context.Context, userID int64) (*User, error)
	FetchChannel(ctx context.Context, channelID int64) (*Channel, error)
	// WaitForEdit blocks until the message is edited in a way match accepts. It returns
	// ErrTimeout when ctx expires first.
	WaitForEdit(ctx context.Context, channelID, messageID int64, match func(*Message) bool) (*Message, error)
	// Prompt returns ErrTimeout when the user does not answer and ErrAborted when they cancel.
	Prompt(ctx context.Context, req PromptRequest) (*PromptResult, error)
}
