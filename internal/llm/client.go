// Package llm abstracts the generative model behind a streaming client
// interface so the chat driver can be exercised without network calls.
package llm

import "context"

// Message is one prior turn handed to the model as context.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Stream delivers model output incrementally. Recv returns the next text
// fragment, or io.EOF when the model is done, or any mid-stream error.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client issues a prompt plus history to the generative model and returns a
// token stream.
type Client interface {
	Stream(ctx context.Context, system string, history []Message) (Stream, error)
}
