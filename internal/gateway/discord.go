package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// RatingCustomIDPrefix prefixes the component ids carried by feedback prompt
// buttons: "rate_<n>:<token>".
const RatingCustomIDPrefix = "rate_"

// Discord adapts a discordgo session to the ChatGateway interface.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an established session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

// History fetches up to limit messages from a channel, newest-first.
func (d *Discord) History(ctx context.Context, channelID string, limit int) ([]Message, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch channel history: %w", err)
	}

	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		record := Message{
			ID:      msg.ID,
			Content: msg.Content,
		}
		if msg.Author != nil {
			record.AuthorID = msg.Author.ID
			record.AuthorName = displayName(msg.Author)
		}
		for _, att := range msg.Attachments {
			record.Attachments = append(record.Attachments, Attachment{
				ID:       att.ID,
				URL:      att.URL,
				Filename: att.Filename,
			})
		}
		out = append(out, record)
	}
	return out, nil
}

// SendDirectMessage delivers a plain DM to a user.
func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

// SendFeedbackPrompt DMs the requester a rating prompt with one button per
// rating. Each button id embeds the signed prompt token so the capability
// survives process restarts.
func (d *Discord) SendFeedbackPrompt(ctx context.Context, userID string, ticketID int64, token string) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}

	buttons := make([]discordgo.MessageComponent, 0, 5)
	for rating := 1; rating <= 5; rating++ {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("%d", rating),
			Style:    discordgo.PrimaryButton,
			CustomID: fmt.Sprintf("%s%d:%s", RatingCustomIDPrefix, rating, token),
		})
	}

	_, err = d.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Your ticket has been closed",
			Description: fmt.Sprintf("Ticket #%d is resolved. Please rate the support from 1 to 5.", ticketID),
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send feedback prompt: %w", err)
	}
	return nil
}

// PostToChannel posts a plain message to a channel.
func (d *Discord) PostToChannel(ctx context.Context, channelID, content string) error {
	if _, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post to channel: %w", err)
	}
	return nil
}

// DeleteChannel removes a channel.
func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func displayName(user *discordgo.User) string {
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
