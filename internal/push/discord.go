package push

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// webhookExecutor abstracts the discordgo webhook call, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender delivers notifications to Discord webhooks. The recipient's
// address is the full webhook URL (…/api/webhooks/{id}/{token}).
type DiscordSender struct {
	sess webhookExecutor
}

// NewDiscordSender creates a DiscordSender. Webhook execution needs no bot
// token, so the underlying session is unauthenticated.
func NewDiscordSender() *DiscordSender {
	sess, _ := discordgo.New("")
	return &DiscordSender{sess: sess}
}

// Send implements Sender.
func (d *DiscordSender) Send(ctx context.Context, address, title, body string, metadata map[string]string) error {
	if address == "" {
		return ErrNoAddress
	}
	id, token, err := parseWebhookAddress(address)
	if err != nil {
		return err
	}

	desc := body
	if meta := formatMetadata(metadata); meta != "" {
		desc = body + "\n" + meta
	}
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: desc,
		}},
	}
	if _, err := d.sess.WebhookExecute(id, token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

// parseWebhookAddress extracts the id and token from a webhook URL.
func parseWebhookAddress(address string) (id, token string, err error) {
	marker := "/webhooks/"
	idx := strings.Index(address, marker)
	if idx < 0 {
		return "", "", fmt.Errorf("discord: bad webhook address")
	}
	rest := strings.Trim(address[idx+len(marker):], "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("discord: bad webhook address")
	}
	return parts[0], parts[1], nil
}
