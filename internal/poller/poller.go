// Package poller resolves a background commit's outcome for a client within
// a bounded wall-clock budget. It never influences the commit itself: a
// timeout means the outcome is unknown, not that the commit failed, and the
// worker may still write its marker afterward.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/stitchapp/stitch/internal/sessions"
)

// Status is the poller's terminal report.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	// StatusTimeout means no marker appeared within the budget. Distinct
	// from failure: the commit's state is unknown to the client.
	StatusTimeout Status = "timeout"
)

// Outcome is the poller's terminal event.
type Outcome struct {
	Status Status
	Marker sessions.Marker // populated for success and failure
}

// Watcher is the optional in-process fast path: a channel that delivers the
// marker the moment the worker writes it, plus a release func that drops the
// registration once the caller stops waiting.
type Watcher func(correlationID string) (<-chan sessions.Marker, func())

// Poller awaits completion markers.
type Poller struct {
	store    *sessions.Store
	watch    Watcher
	interval time.Duration
	budget   time.Duration
}

// Opts holds parameters for creating a Poller.
type Opts struct {
	Store    *sessions.Store
	Watch    Watcher       // optional
	Interval time.Duration // defaults to 500ms
	Budget   time.Duration // defaults to 10s
}

// New creates a Poller.
func New(opts Opts) (*Poller, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("poller: session store is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Budget <= 0 {
		opts.Budget = 10 * time.Second
	}
	return &Poller{
		store:    opts.Store,
		watch:    opts.Watch,
		interval: opts.Interval,
		budget:   opts.Budget,
	}, nil
}

// Await blocks until the marker for correlationID appears, the budget is
// exhausted, or ctx is cancelled. The first observed marker decides the
// outcome; the budget expiring yields StatusTimeout.
func (p *Poller) Await(ctx context.Context, correlationID string) Outcome {
	deadline := time.NewTimer(p.budget)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var watchCh <-chan sessions.Marker
	if p.watch != nil {
		ch, release := p.watch(correlationID)
		// Most awaited ids never resolve (timeouts, unknown ids); the
		// registration must not outlive this call.
		defer release()
		watchCh = ch
	}

	// The marker may already be there.
	if m, err := p.store.GetMarker(correlationID); err == nil {
		return outcomeFor(m)
	}

	for {
		select {
		case <-ctx.Done():
			return Outcome{Status: StatusTimeout}
		case <-deadline.C:
			return Outcome{Status: StatusTimeout}
		case m := <-watchCh:
			return outcomeFor(m)
		case <-ticker.C:
			if m, err := p.store.GetMarker(correlationID); err == nil {
				return outcomeFor(m)
			}
		}
	}
}

func outcomeFor(m sessions.Marker) Outcome {
	if m.Outcome == sessions.OutcomeSuccess {
		return Outcome{Status: StatusSuccess, Marker: m}
	}
	return Outcome{Status: StatusFailure, Marker: m}
}
