package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/pkaro/zillowbot/internal/listing"
)

// deliveryAttempts bounds how often one listing is retried before it is
// dropped.
const deliveryAttempts = 3

// retryBaseDelay is the first retry delay; it doubles per attempt.
const retryBaseDelay = 2 * time.Second

// messageSender is the slice of the Discord API the notifier uses.
type messageSender interface {
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// Notifier posts new listings to a Discord channel as embeds.
type Notifier struct {
	sender     messageSender
	channelID  string
	log        zerolog.Logger
	retryDelay time.Duration
}

// New builds a Notifier with a bot-token Discord session. Posting uses
// the REST API only; no gateway connection is opened.
func New(token, channelID string, log zerolog.Logger) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Notifier{
		sender:     session,
		channelID:  channelID,
		log:        log.With().Str("component", "notify").Logger(),
		retryDelay: retryBaseDelay,
	}, nil
}

// Post publishes one listing. Delivery failures are retried with doubling
// backoff; a listing that still cannot be delivered is logged and dropped.
// Delivery trouble never feeds back into the producing pipeline.
func (n *Notifier) Post(ctx context.Context, l listing.Listing) {
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{buildEmbed(l)},
	}

	var err error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		_, err = n.sender.ChannelMessageSendComplex(n.channelID, msg)
		if err == nil {
			n.log.Info().
				Str("address", textOr(l.Address, "unknown")).
				Msg("listing posted")
			return
		}

		if attempt == deliveryAttempts {
			break
		}

		delay := n.retryDelay << (attempt - 1)
		n.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("listing delivery failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	n.log.Error().Err(err).Msg("dropping listing after failed delivery")
}

// buildEmbed renders a listing the way the notification emails present
// it: address in the title, facts and price in the body, the hero photo
// as the embed image.
func buildEmbed(l listing.Listing) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf(
			"A new listing at %s has appeared!",
			textOr(l.Address, "an undisclosed address"),
		),
		Description: fmt.Sprintf(
			"Features: %s Price: %s",
			textOr(l.Facts, "unknown"),
			textOr(l.Price, "unknown"),
		),
	}

	if l.URL != nil {
		embed.URL = *l.URL
	}
	if l.ImageURL != nil {
		embed.Image = &discordgo.MessageEmbedImage{URL: *l.ImageURL}
	}

	return embed
}

// textOr returns *s, or fallback when s is nil or empty.
func textOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
