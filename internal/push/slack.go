package push

import (
	"context"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"
)

// webhookPoster abstracts the Slack webhook call, enabling test mocks.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackSender delivers notifications to Slack incoming webhooks. The
// recipient's address is the webhook URL.
type SlackSender struct {
	post webhookPoster
}

// NewSlackSender creates a SlackSender using the real Slack API.
func NewSlackSender() *SlackSender {
	return &SlackSender{post: slackapi.PostWebhookContext}
}

// Send implements Sender.
func (s *SlackSender) Send(ctx context.Context, address, title, body string, metadata map[string]string) error {
	if address == "" {
		return ErrNoAddress
	}
	if !strings.HasPrefix(address, "https://") {
		return fmt.Errorf("slack: bad webhook address")
	}

	text := body
	if meta := formatMetadata(metadata); meta != "" {
		text = body + "\n" + meta
	}
	msg := &slackapi.WebhookMessage{
		Attachments: []slackapi.Attachment{{
			Title: title,
			Text:  text,
		}},
	}
	if err := s.post(ctx, address, msg); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}
