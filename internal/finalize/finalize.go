// Package finalize performs the background commit: it moves staged session
// data into the durable store, archives the conversation, runs fan-out, and
// writes the completion marker that pollers read. Commits are handed off
// over a channel and executed by a worker pool whose lifetime is independent
// of the request that scheduled them; a client disconnect never abandons a
// commit.
package finalize

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stitchapp/stitch/internal/auth"
	"github.com/stitchapp/stitch/internal/convlog"
	"github.com/stitchapp/stitch/internal/fanout"
	"github.com/stitchapp/stitch/internal/models"
	"github.com/stitchapp/stitch/internal/sessions"
	"gorm.io/gorm"
)

// JobKind selects the commit variant.
type JobKind string

const (
	// JobSignup creates a durable User from a staged signup session.
	JobSignup JobKind = "signup"
	// JobPost creates a durable Post (plus media and fan-out) from a staged
	// caption session.
	JobPost JobKind = "post"
)

// Job is one commit request.
type Job struct {
	Kind          JobKind
	SessionID     string
	ThreadID      string
	CorrelationID string // assigned by Submit when empty
}

// Worker is the finalization worker pool.
type Worker struct {
	db     *gorm.DB
	store  *sessions.Store
	log    *convlog.Log
	fan    *fanout.Fanout
	issuer *auth.Issuer

	workers  int
	jobs     chan Job
	wg       sync.WaitGroup
	inflight sync.WaitGroup

	mu       sync.Mutex
	watchers map[string][]chan sessions.Marker
	pending  map[string]struct{}
	started  bool
}

// Opts holds parameters for creating a Worker.
type Opts struct {
	DB     *gorm.DB
	Store  *sessions.Store
	Log    *convlog.Log
	Fanout *fanout.Fanout
	Issuer *auth.Issuer // optional; signup markers carry no tokens without it
	// Workers is the pool size (default 4). QueueSize is the handoff channel
	// capacity (default 64).
	Workers   int
	QueueSize int
}

// New creates a Worker pool. Call Start before submitting jobs.
func New(opts Opts) (*Worker, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("finalize: db is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("finalize: session store is required")
	}
	if opts.Log == nil {
		return nil, fmt.Errorf("finalize: conversation log is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Worker{
		db:       opts.DB,
		store:    opts.Store,
		log:      opts.Log,
		fan:      opts.Fanout,
		issuer:   opts.Issuer,
		workers:  opts.Workers,
		jobs:     make(chan Job, opts.QueueSize),
		watchers: make(map[string][]chan sessions.Marker),
		pending:  make(map[string]struct{}),
	}, nil
}

// Start launches the worker goroutines.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for job := range w.jobs {
				w.run(job)
			}
		}()
	}
}

// Stop closes the handoff channel and waits for in-flight commits to finish.
// Submits racing Stop either complete their handoff before the channel
// closes or observe started=false and error.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()
	w.inflight.Wait()
	close(w.jobs)
	w.wg.Wait()
}

// Submit schedules a commit and returns its correlation id. The caller does
// not wait for the commit; the outcome is observable only through the
// completion marker.
func (w *Worker) Submit(job Job) (string, error) {
	if job.SessionID == "" {
		return "", fmt.Errorf("finalize: session id is required")
	}
	if job.ThreadID == "" {
		job.ThreadID = job.SessionID
	}
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return "", fmt.Errorf("finalize: worker not started")
	}
	w.pending[job.CorrelationID] = struct{}{}
	// The inflight count is raised under the same lock that guards started,
	// so Stop cannot close the channel between the check and the send.
	w.inflight.Add(1)
	w.mu.Unlock()
	w.jobs <- job
	w.inflight.Done()
	log.Printf("finalize: scheduled %s commit [session=%s correlation=%s]",
		job.Kind, job.SessionID, job.CorrelationID)
	return job.CorrelationID, nil
}

// Watch returns a channel that receives the completion marker for a
// correlation id when it is written, plus a release func the caller must
// invoke when it stops waiting. Correlation ids arrive from clients and may
// never resolve, so an unreleased registration would live forever. The
// channel is buffered; the marker is also always readable from the session
// store for the marker TTL.
func (w *Worker) Watch(correlationID string) (<-chan sessions.Marker, func()) {
	ch := make(chan sessions.Marker, 1)
	w.mu.Lock()
	w.watchers[correlationID] = append(w.watchers[correlationID], ch)
	w.mu.Unlock()

	// A marker may already exist if the commit outran the watcher.
	if m, err := w.store.GetMarker(correlationID); err == nil {
		select {
		case ch <- m:
		default:
		}
	}

	release := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		chans := w.watchers[correlationID]
		for i, c := range chans {
			if c == ch {
				chans = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(chans) == 0 {
			delete(w.watchers, correlationID)
		} else {
			w.watchers[correlationID] = chans
		}
	}
	return ch, release
}

// run executes one commit on a background context. Every path ends in a
// marker write; the system is never left with a silently absent marker.
func (w *Worker) run(job Job) {
	ctx := context.Background()
	switch job.Kind {
	case JobSignup:
		w.runSignup(ctx, job)
	case JobPost:
		w.runPost(ctx, job)
	default:
		log.Printf("finalize: unknown job kind %q [session=%s]", job.Kind, job.SessionID)
		w.writeMarker(sessions.Marker{
			CorrelationID: job.CorrelationID,
			SessionID:     job.SessionID,
			Outcome:       sessions.OutcomeFailure,
			Reason:        sessions.ReasonPreconditionFailed,
		})
	}
}

func (w *Worker) runSignup(_ context.Context, job Job) {
	fail := func(reason string) {
		w.markSessionFailed(job.SessionID)
		w.writeMarker(sessions.Marker{
			CorrelationID: job.CorrelationID,
			SessionID:     job.SessionID,
			Outcome:       sessions.OutcomeFailure,
			Reason:        reason,
		})
	}

	session, err := w.store.Get(job.SessionID)
	if err != nil {
		log.Printf("finalize: signup %s: session gone", job.SessionID)
		fail(sessions.ReasonPreconditionFailed)
		return
	}
	if session.Profile["username"] == "" || session.Profile["password_hash"] == "" {
		log.Printf("finalize: signup %s: required fields missing", job.SessionID)
		fail(sessions.ReasonPreconditionFailed)
		return
	}

	user := models.User{
		SessionID:    session.ID,
		Name:         session.Profile["name"],
		Username:     session.Profile["username"],
		PasswordHash: session.Profile["password_hash"],
		Email:        session.Profile["email"],
		Birthday:     session.Profile["birthday"],
		Gender:       session.Profile["gender"],
		Pronouns:     session.Profile["pronouns"],
		University:   session.Profile["university"],
		Occupation:   session.Profile["occupation"],
		PushAddress:  session.Profile["push_address"],
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := w.db.Create(&user).Error; err != nil {
		log.Printf("finalize: signup %s: create user: %v", job.SessionID, err)
		fail(sessions.ReasonPersistenceError)
		return
	}
	log.Printf("finalize: signup %s: created user %d", job.SessionID, user.ID)

	var access, refresh string
	if w.issuer != nil {
		access, refresh, err = w.issuer.TokenPair(user.ID)
		if err != nil {
			// The account exists; a token minting failure must not undo it.
			log.Printf("finalize: signup %s: token pair: %v", job.SessionID, err)
		}
	}

	// Archival is not commit-critical.
	if _, err := w.log.Archive(job.ThreadID, user.ID); err != nil {
		log.Printf("finalize: signup %s: archive: %v", job.SessionID, err)
	}

	w.store.Delete(job.SessionID)

	w.writeMarker(sessions.Marker{
		CorrelationID: job.CorrelationID,
		SessionID:     job.SessionID,
		Outcome:       sessions.OutcomeSuccess,
		RecordID:      user.ID,
		AccessToken:   access,
		RefreshToken:  refresh,
	})
}

func (w *Worker) runPost(ctx context.Context, job Job) {
	fail := func(reason string) {
		w.markSessionFailed(job.SessionID)
		w.writeMarker(sessions.Marker{
			CorrelationID: job.CorrelationID,
			SessionID:     job.SessionID,
			Outcome:       sessions.OutcomeFailure,
			Reason:        reason,
		})
	}

	session, err := w.store.Get(job.SessionID)
	if err != nil {
		log.Printf("finalize: post %s: session gone", job.SessionID)
		fail(sessions.ReasonPreconditionFailed)
		return
	}
	if session.UserID == 0 || session.Caption.Caption1 == "" {
		log.Printf("finalize: post %s: required fields missing", job.SessionID)
		fail(sessions.ReasonPreconditionFailed)
		return
	}

	post := models.Post{
		UserID:    session.UserID,
		Title:     session.Caption.Title,
		Caption:   session.Caption.Caption1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if loc := session.Caption.Location; loc != "" && loc != "null" {
		post.Location = &loc
	}
	if err := w.db.Create(&post).Error; err != nil {
		log.Printf("finalize: post %s: create post: %v", job.SessionID, err)
		fail(sessions.ReasonPersistenceError)
		return
	}
	log.Printf("finalize: post %s: created post %d", job.SessionID, post.ID)

	for _, url := range session.Media {
		media := models.PostMedia{PostID: post.ID, MediaURL: url, CreatedAt: time.Now()}
		if err := w.db.Create(&media).Error; err != nil {
			log.Printf("finalize: post %s: media row: %v", job.SessionID, err)
		}
	}

	if _, err := w.log.Archive(job.ThreadID, session.UserID); err != nil {
		log.Printf("finalize: post %s: archive: %v", job.SessionID, err)
	}

	w.store.Delete(job.SessionID)

	if w.fan != nil {
		result, err := w.fan.NotifyNewPost(ctx, session.UserID, &post)
		if err != nil {
			// Fan-out trouble never fails a commit that already persisted.
			log.Printf("finalize: post %s: fanout: %v", job.SessionID, err)
		} else {
			log.Printf("finalize: post %s: fanout rows=%d pushed=%d skipped=%d",
				job.SessionID, result.Rows, result.Pushed, result.Skipped)
		}
	}

	w.writeMarker(sessions.Marker{
		CorrelationID: job.CorrelationID,
		SessionID:     job.SessionID,
		Outcome:       sessions.OutcomeSuccess,
		RecordID:      post.ID,
	})
}

// markSessionFailed records the terminal failure state on the session if it
// still exists, so a later duplicate trigger cannot resubmit it.
func (w *Worker) markSessionFailed(sessionID string) {
	err := w.store.Update(sessionID, func(s *sessions.Session) error {
		s.Status = sessions.StatusCommitFailed
		return nil
	})
	if err != nil && err != sessions.ErrNotFound {
		log.Printf("finalize: mark failed %s: %v", sessionID, err)
	}
}

// Pending reports whether a submitted commit has not yet written its marker.
func (w *Worker) Pending(correlationID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.pending[correlationID]
	return ok
}

// writeMarker stores the completion marker and wakes any watchers.
func (w *Worker) writeMarker(m sessions.Marker) {
	w.store.PutMarker(m)

	w.mu.Lock()
	chans := w.watchers[m.CorrelationID]
	delete(w.watchers, m.CorrelationID)
	delete(w.pending, m.CorrelationID)
	w.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- m:
		default:
		}
	}
}
