package infrastructure

import (
	"context"
	"fmt"

	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// channelMessageSender is the part of *discordgo.Session the notifier needs
type channelMessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts each notification's summary to a single channel
type DiscordNotifier struct {
	session   channelMessageSender
	channelID string
}

var _ interfaces.NotificationGateway = (*DiscordNotifier)(nil)

// NewDiscordSession opens a bot session for outbound messages only
func NewDiscordSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}
	return dg, nil
}

// NewDiscordNotifier creates a notifier that writes to channelID
func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return newDiscordNotifier(session, channelID)
}

func newDiscordNotifier(session channelMessageSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channelID: channelID}
}

func (n *DiscordNotifier) Notify(ctx context.Context, event events.Event) error {
	if _, err := n.session.ChannelMessageSend(n.channelID, event.Summary(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send Discord message: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"channelID": n.channelID,
	}).Debug("Posted notification to Discord")
	return nil
}
