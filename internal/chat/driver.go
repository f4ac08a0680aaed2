// Package chat drives one dialogue turn against the generative model: it
// rebuilds context from the conversation log, relays the model's token
// stream, and appends the completed turn back to the log. Commit triggers
// (code match, closing marker) are detected here but executed elsewhere.
package chat

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/stitchapp/stitch/internal/convlog"
	"github.com/stitchapp/stitch/internal/llm"
)

// EventType identifies a stream event.
type EventType string

const (
	// EventToken carries one incremental text fragment.
	EventToken EventType = "token"
	// EventDone terminates a successful turn; Assembled holds the full
	// output text.
	EventDone EventType = "done"
	// EventError terminates a failed turn. Nothing was appended to the log.
	EventError EventType = "error"
)

// Event is one item in a turn's output sequence.
type Event struct {
	Type      EventType
	Text      string // fragment text for EventToken
	Assembled string // full turn output for EventDone
	Err       error  // set for EventError
}

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 20

// Driver produces the event sequence for dialogue turns.
type Driver struct {
	log    *convlog.Log
	client llm.Client
}

// NewDriver creates a Driver.
func NewDriver(cl *convlog.Log, client llm.Client) *Driver {
	return &Driver{log: cl, client: client}
}

// RunTurn streams one turn for the thread. The returned channel delivers
// zero or more EventToken items followed by exactly one EventDone or
// EventError, then closes. The input and assembled output turns are appended
// to the conversation log only after the model stream completes cleanly; a
// mid-stream failure appends nothing.
func (d *Driver) RunTurn(ctx context.Context, threadID, system, input string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		d.runTurn(ctx, threadID, system, input, events)
	}()
	return events
}

func (d *Driver) runTurn(ctx context.Context, threadID, system, input string, events chan<- Event) {
	turns, err := d.log.History(threadID, historyLimit)
	if err != nil {
		events <- Event{Type: EventError, Err: err}
		return
	}

	history := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		history = append(history, llm.Message{Role: t.Role, Content: t.Content})
	}
	if input != "" {
		history = append(history, llm.Message{Role: convlog.RoleUser, Content: input})
	}

	stream, err := d.client.Stream(ctx, system, history)
	if err != nil {
		events <- Event{Type: EventError, Err: err}
		return
	}
	defer stream.Close()

	var assembled []byte
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Partial output is discarded, never logged.
			events <- Event{Type: EventError, Err: err}
			return
		}
		if frag == "" {
			continue
		}
		assembled = append(assembled, frag...)
		select {
		case events <- Event{Type: EventToken, Text: frag}:
		case <-ctx.Done():
			events <- Event{Type: EventError, Err: ctx.Err()}
			return
		}
	}

	output := string(assembled)
	if input != "" {
		if _, err := d.log.Append(threadID, convlog.RoleUser, input); err != nil {
			log.Printf("chat: append input turn for %s: %v", threadID, err)
		}
	}
	if output != "" {
		if _, err := d.log.Append(threadID, convlog.RoleAssistant, output); err != nil {
			log.Printf("chat: append output turn for %s: %v", threadID, err)
		}
	}

	events <- Event{Type: EventDone, Assembled: output}
}
