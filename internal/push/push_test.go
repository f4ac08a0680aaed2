package push

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
)

func TestNew_Providers(t *testing.T) {
	for _, provider := range []string{"slack", "discord", "none"} {
		if _, err := New(provider); err != nil {
			t.Errorf("New(%q): %v", provider, err)
		}
	}
	if _, err := New("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNopSender(t *testing.T) {
	if err := (NopSender{}).Send(context.Background(), "", "t", "b", nil); err != nil {
		t.Errorf("NopSender.Send: %v", err)
	}
}

func TestSlackSender(t *testing.T) {
	var gotURL string
	var gotMsg *slackapi.WebhookMessage
	s := &SlackSender{post: func(_ context.Context, url string, msg *slackapi.WebhookMessage) error {
		gotURL = url
		gotMsg = msg
		return nil
	}}

	err := s.Send(context.Background(), "https://hooks.slack.test/abc", "ada posted", "beach day",
		map[string]string{"post_id": "7", "type": "new_post"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotURL != "https://hooks.slack.test/abc" {
		t.Errorf("url = %q", gotURL)
	}
	if len(gotMsg.Attachments) != 1 || gotMsg.Attachments[0].Title != "ada posted" {
		t.Errorf("message = %+v", gotMsg)
	}
	if want := "beach day\npost_id=7\ntype=new_post"; gotMsg.Attachments[0].Text != want {
		t.Errorf("text = %q, want %q", gotMsg.Attachments[0].Text, want)
	}
}

func TestSlackSender_NoAddress(t *testing.T) {
	s := NewSlackSender()
	err := s.Send(context.Background(), "", "t", "b", nil)
	if !errors.Is(err, ErrNoAddress) {
		t.Fatalf("err = %v, want ErrNoAddress", err)
	}
}

func TestSlackSender_BadAddress(t *testing.T) {
	s := NewSlackSender()
	if err := s.Send(context.Background(), "notaurl", "t", "b", nil); err == nil {
		t.Fatal("expected error for non-https address")
	}
}

func TestParseWebhookAddress(t *testing.T) {
	id, token, err := parseWebhookAddress("https://discord.com/api/webhooks/123/abc-def")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "123" || token != "abc-def" {
		t.Errorf("id, token = %q, %q", id, token)
	}

	for _, bad := range []string{"", "https://discord.com/api/webhooks/123", "https://example.com/x"} {
		if _, _, err := parseWebhookAddress(bad); err == nil {
			t.Errorf("parse(%q): expected error", bad)
		}
	}
}

func TestMockSender(t *testing.T) {
	m := NewMockSender()
	m.FailAddress("bad", errors.New("boom"))

	if err := m.Send(context.Background(), "good", "t", "b", nil); err != nil {
		t.Fatalf("Send good: %v", err)
	}
	if err := m.Send(context.Background(), "bad", "t", "b", nil); err == nil {
		t.Fatal("expected failure for bad address")
	}
	if got := m.Deliveries(); len(got) != 1 || got[0].Address != "good" {
		t.Errorf("deliveries = %+v", got)
	}
}
