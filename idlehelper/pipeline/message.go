// Package pipeline turns incoming game messages into ParsedMessages and runs them
// through the processors.
package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/transport"
	"golang.org/x/text/cases"
)

// MaxFields is the number of embed fields copied into a ParsedMessage.
const MaxFields = 6

var avatarRe = regexp.MustCompile(`/(?:avatars|users/\d+/avatars)/(\d{15,21})/`)

type Field struct {
	Name  string
	Value string
}

// Text is one embed part in both raw and casefolded form.
type Text struct {
	Raw    string
	Folded string
}

func newText(s string) Text {
	return Text{Raw: s, Folded: Fold(s)}
}

// Contains reports whether the folded text contains the folded needle.
func (t Text) Contains(needle string) bool {
	return strings.Contains(t.Folded, Fold(needle))
}

// ParsedMessage is the stable view of a game message the processors work on.
// Embed parts are empty strings when absent.
type ParsedMessage struct {
	Message *transport.Message

	Content       Text
	AuthorName    Text
	AuthorIconURL string
	Title         Text
	Description   Text
	Fields        [MaxFields]Field
	FieldsFolded  [MaxFields]Field
	FieldCount    int
	FooterText    Text
	FooterIconURL string

	// EmbedUserID is the user encoded in the author icon url, 0 when there is none.
	EmbedUserID int64
	// FooterUserID is the user encoded in the footer icon url, 0 when there is none.
	FooterUserID    int64
	InteractionUser *transport.User
	Edited          bool

	// User is set by the processor that acted on the message. The pipeline uses it
	// to decide whether to acknowledge.
	User *models.User
}

// Fold casefolds s for matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// UserIDFromAvatarURL extracts the user id from a chat avatar url.
func UserIDFromAvatarURL(url string) int64 {
	match := avatarRe.FindStringSubmatch(url)
	if match == nil {
		return 0
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Parse builds the ParsedMessage of msg from its content and first embed.
func Parse(msg *transport.Message) *ParsedMessage {
	p := &ParsedMessage{
		Message:         msg,
		Content:         newText(msg.Content),
		InteractionUser: msg.InteractionUser,
		Edited:          !msg.EditedAt.IsZero(),
	}
	if len(msg.Embeds) == 0 {
		return p
	}

	e := msg.Embeds[0]
	p.AuthorName = newText(e.AuthorName)
	p.AuthorIconURL = e.AuthorIconURL
	p.Title = newText(e.Title)
	p.Description = newText(e.Description)
	p.FooterText = newText(e.FooterText)
	p.FooterIconURL = e.FooterIconURL
	p.EmbedUserID = UserIDFromAvatarURL(e.AuthorIconURL)
	p.FooterUserID = UserIDFromAvatarURL(e.FooterIconURL)
	p.FieldCount = len(e.Fields)
	for i := 0; i < len(e.Fields) && i < MaxFields; i++ {
		p.Fields[i] = Field{Name: e.Fields[i].Name, Value: e.Fields[i].Value}
		p.FieldsFolded[i] = Field{Name: Fold(e.Fields[i].Name), Value: Fold(e.Fields[i].Value)}
	}
	return p
}

// HasEmbed reports whether the message carried an embed.
func (p *ParsedMessage) HasEmbed() bool {
	return len(p.Message.Embeds) > 0
}

// AllFields returns every embed field of the original message, including those past
// MaxFields.
func (p *ParsedMessage) AllFields() []transport.Field {
	if !p.HasEmbed() {
		return nil
	}
	return p.Message.Embeds[0].Fields
}

// AuthorEvent returns the folded event part of an author name "<player> — <event>".
func (p *ParsedMessage) AuthorEvent() string {
	if i := strings.LastIndex(p.AuthorName.Folded, "—"); i >= 0 {
		return strings.TrimSpace(p.AuthorName.Folded[i+len("—"):])
	}
	return ""
}

// AuthorPlayer returns the raw player part of an author name "<player> — <event>".
func (p *ParsedMessage) AuthorPlayer() string {
	if i := strings.LastIndex(p.AuthorName.Raw, "—"); i >= 0 {
		return strings.TrimSpace(p.AuthorName.Raw[:i])
	}
	return strings.TrimSpace(p.AuthorName.Raw)
}

// IsEvent reports whether the embed author ends with "— <event>".
func (p *ParsedMessage) IsEvent(event string) bool {
	return p.AuthorEvent() == Fold(event)
}

// EmbedText joins every folded embed part and the content, for discriminators that
// may appear anywhere.
func (p *ParsedMessage) EmbedText() string {
	parts := []string{p.Content.Folded, p.Title.Folded, p.Description.Folded, p.FooterText.Folded}
	for i := 0; i < p.FieldCount && i < MaxFields; i++ {
		parts = append(parts, p.FieldsFolded[i].Name, p.FieldsFolded[i].Value)
	}
	return strings.Join(parts, "\n")
}
