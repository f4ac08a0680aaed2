// Package push delivers best-effort external notifications during fan-out.
// Each platform implementation satisfies Sender; delivery failures are the
// caller's problem to log and skip, never to retry.
package push

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ErrNoAddress is returned when a recipient has no registered delivery
// address. Callers treat it as a skip, not a failure.
var ErrNoAddress = fmt.Errorf("push: no delivery address")

// Sender delivers one notification to one address.
type Sender interface {
	// Send delivers a notification. address is the recipient's registered
	// delivery address in the sender's native format.
	Send(ctx context.Context, address, title, body string, metadata map[string]string) error
}

// New returns the Sender for a configured provider name.
func New(provider string) (Sender, error) {
	switch provider {
	case "slack":
		return NewSlackSender(), nil
	case "discord":
		return NewDiscordSender(), nil
	case "none":
		return NopSender{}, nil
	default:
		return nil, fmt.Errorf("push: unknown provider %q", provider)
	}
}

// NopSender drops every notification. Used when push delivery is disabled.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(_ context.Context, _, _, _ string, _ map[string]string) error {
	return nil
}

// formatMetadata renders metadata as "key=value" lines in stable order.
func formatMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, metadata[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
