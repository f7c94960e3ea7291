package discord

import (
	"context"
	"errors"
	"net/http"

	"trade-signal-bot/internal/logging"
	"trade-signal-bot/internal/signal"

	"github.com/bwmarrin/discordgo"
)

// Messenger adapts a Discord session to the bot's chat interface. Every
// call is a single attempt; retry policy belongs to the caller.
type Messenger struct {
	session *discordgo.Session
	logger  *logging.Logger
}

func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{
		session: session,
		logger:  logging.WithComponent("discord"),
	}
}

func (m *Messenger) PostMessage(ctx context.Context, channelID, content string, mentionRoles []string) (string, error) {
	send := &discordgo.MessageSend{Content: content}
	if len(mentionRoles) > 0 {
		send.AllowedMentions = &discordgo.MessageAllowedMentions{Roles: mentionRoles}
	}
	msg, err := m.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (m *Messenger) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := m.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return err
}

func (m *Messenger) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return m.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// MessageExists reports whether a message is still present. Only a definite
// 404 counts as gone; transient failures keep the message alive so a flaky
// network cannot wipe signals.
func (m *Messenger) MessageExists(ctx context.Context, channelID, messageID string) bool {
	_, err := m.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil {
		return true
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return false
	}
	m.logger.Warn("Message existence check failed", "channel_id", channelID, "message_id", messageID, "error", err)
	return true
}

// UpdateAnnouncement re-renders a signal's announcement message in place.
func (m *Messenger) UpdateAnnouncement(ctx context.Context, s *signal.Signal) error {
	if s.MessageID == "" {
		return nil
	}
	embeds := []*discordgo.MessageEmbed{announcementEmbed(s)}
	components := announcementComponents(s)
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    s.ChannelID,
		ID:         s.MessageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}
