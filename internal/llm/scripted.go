package llm

import (
	"context"
	"io"
)

// ScriptedClient replays canned fragments, optionally failing mid-stream.
// Used by tests and by local development without a model API key.
type ScriptedClient struct {
	// Fragments are emitted in order by each returned stream.
	Fragments []string
	// FailAfter, when >= 0, makes Recv return Err after that many fragments.
	FailAfter int
	Err       error

	// LastSystem and LastHistory record the most recent Stream call.
	LastSystem  string
	LastHistory []Message
}

// NewScripted creates a ScriptedClient that emits the given fragments.
func NewScripted(fragments ...string) *ScriptedClient {
	return &ScriptedClient{Fragments: fragments, FailAfter: -1}
}

// Stream returns a stream replaying the scripted fragments.
func (c *ScriptedClient) Stream(_ context.Context, system string, history []Message) (Stream, error) {
	c.LastSystem = system
	c.LastHistory = append([]Message(nil), history...)
	return &scriptedStream{client: c}, nil
}

type scriptedStream struct {
	client *ScriptedClient
	pos    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.client.FailAfter >= 0 && s.pos >= s.client.FailAfter {
		return "", s.client.Err
	}
	if s.pos >= len(s.client.Fragments) {
		return "", io.EOF
	}
	frag := s.client.Fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *scriptedStream) Close() error { return nil }
