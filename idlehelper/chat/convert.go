package chat

import (
	"bytes"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/idlehelper/bot/idlehelper/transport"
)

func id(v int64) snowflake.ID {
	return snowflake.ID(uint64(v))
}

func toUser(u discord.User) transport.User {
	user := transport.User{
		ID:   int64(u.ID),
		Name: u.Username,
		Bot:  u.Bot,
	}
	if u.GlobalName != nil {
		user.DisplayName = *u.GlobalName
	}
	return user
}

// ToMessage flattens a disgo message into the transport shape the core works with.
func ToMessage(m discord.Message) *transport.Message {
	msg := &transport.Message{
		ID:        int64(m.ID),
		ChannelID: int64(m.ChannelID),
		Author:    toUser(m.Author),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.GuildID != nil {
		msg.GuildID = int64(*m.GuildID)
	}
	if m.EditedTimestamp != nil {
		msg.EditedAt = m.EditedTimestamp.UTC()
	}
	if m.Interaction != nil {
		u := toUser(m.Interaction.User)
		msg.InteractionUser = &u
	}
	for _, u := range m.Mentions {
		msg.MentionIDs = append(msg.MentionIDs, int64(u.ID))
	}
	for _, e := range m.Embeds {
		msg.Embeds = append(msg.Embeds, toEmbed(e))
	}
	msg.Components = toComponents(m.Components)
	return msg
}

func toEmbed(e discord.Embed) transport.Embed {
	embed := transport.Embed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Author != nil {
		embed.AuthorName = e.Author.Name
		embed.AuthorIconURL = e.Author.IconURL
	}
	if e.Footer != nil {
		embed.FooterText = e.Footer.Text
		embed.FooterIconURL = e.Footer.IconURL
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, transport.Field{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline != nil && *f.Inline,
		})
	}
	return embed
}

func toComponents(rows []discord.ContainerComponent) []transport.Component {
	var components []transport.Component
	for _, row := range rows {
		for _, c := range row.Components() {
			switch c := c.(type) {
			case discord.ButtonComponent:
				label := c.Label
				if label == "" && c.Emoji != nil {
					label = c.Emoji.Name
				}
				components = append(components, transport.Component{CustomID: c.CustomID, Label: label, Disabled: c.Disabled})
			case discord.StringSelectMenuComponent:
				components = append(components, transport.Component{CustomID: c.CustomID, Label: c.Placeholder, Disabled: c.Disabled})
			}
		}
	}
	return components
}

func fromEmbed(e transport.Embed) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(e.Title).
		SetDescription(e.Description).
		SetColor(e.Color)
	if e.AuthorName != "" {
		builder.SetAuthor(e.AuthorName, "", e.AuthorIconURL)
	}
	if e.FooterText != "" {
		builder.SetFooter(e.FooterText, e.FooterIconURL)
	}
	for _, f := range e.Fields {
		builder.AddField(f.Name, f.Value, f.Inline)
	}
	return builder.Build()
}

func fromEmbeds(embeds []transport.Embed) []discord.Embed {
	out := make([]discord.Embed, 0, len(embeds))
	for _, e := range embeds {
		out = append(out, fromEmbed(e))
	}
	return out
}

func allowedMentions(m transport.AllowedMentions) *discord.AllowedMentions {
	allowed := &discord.AllowedMentions{Parse: []discord.AllowedMentionType{}}
	if m.Users {
		allowed.Parse = append(allowed.Parse, discord.AllowedMentionTypeUsers)
	}
	if m.Roles {
		allowed.Parse = append(allowed.Parse, discord.AllowedMentionTypeRoles)
	}
	if m.Everyone {
		allowed.Parse = append(allowed.Parse, discord.AllowedMentionTypeEveryone)
	}
	return allowed
}

func messageCreate(channelID int64, msg transport.OutgoingMessage) discord.MessageCreate {
	create := discord.MessageCreate{
		Content:         msg.Content,
		Embeds:          fromEmbeds(msg.Embeds),
		AllowedMentions: allowedMentions(msg.AllowedMentions),
	}
	for _, f := range msg.Files {
		create.Files = append(create.Files, discord.NewFile(f.Name, "", bytes.NewReader(f.Data)))
	}
	if msg.ReplyTo != 0 {
		replyTo := id(msg.ReplyTo)
		channel := id(channelID)
		create.MessageReference = &discord.MessageReference{
			MessageID:       &replyTo,
			ChannelID:       &channel,
			FailIfNotExists: false,
		}
	}
	return create
}

func messageUpdate(msg transport.OutgoingMessage) discord.MessageUpdate {
	content := msg.Content
	embeds := fromEmbeds(msg.Embeds)
	return discord.MessageUpdate{
		Content:         &content,
		Embeds:          &embeds,
		AllowedMentions: allowedMentions(msg.AllowedMentions),
	}
}

// MessageCreate renders msg as an interaction response.
func MessageCreate(msg transport.OutgoingMessage) discord.MessageCreate {
	msg.ReplyTo = 0
	return messageCreate(0, msg)
}

// Embeds renders embeds for responses built outside this package.
func Embeds(embeds []transport.Embed) []discord.Embed {
	return fromEmbeds(embeds)
}
