// Package sessions is the ephemeral TTL-keyed store for in-progress dialogue
// state and short-lived completion markers. All staged data lives here until
// finalization moves it into the durable store and deletes the key.
package sessions

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a session key is absent or expired.
var ErrNotFound = errors.New("sessions: not found")

// Status tracks a session through the commit state machine.
type Status string

const (
	StatusCollecting   Status = "collecting"
	StatusCommitting   Status = "committing"
	StatusCommitted    Status = "committed"
	StatusCommitFailed Status = "commit_failed"
)

// Kind distinguishes the two dialogue flows.
type Kind string

const (
	KindSignup  Kind = "signup"
	KindCaption Kind = "caption"
)

// CaptionData holds generated post content staged by the caption flow.
type CaptionData struct {
	Caption1 string `json:"caption1"`
	Caption2 string `json:"caption2"`
	Location string `json:"location"`
	Title    string `json:"title"`
}

// Session is the staging record for one in-progress dialogue.
type Session struct {
	ID      string
	Kind    Kind
	Status  Status
	Code    string            // confirmation code (signup flow)
	Profile map[string]string // staged account fields keyed by column name
	UserID  uint              // acting user (caption flow)
	Media   []string          // attachment references (caption flow)
	Caption CaptionData       // generated content (caption flow)
}

// Outcome is a completion marker's terminal result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Failure reason codes surfaced through the status endpoint.
const (
	ReasonPreconditionFailed = "precondition_failed"
	ReasonPersistenceError   = "persistence_error"
)

// Marker signals that a background commit finished. It is the sole authority
// for whether the commit worked; the stream never claims success itself.
type Marker struct {
	CorrelationID string
	SessionID     string
	Outcome       Outcome
	RecordID      uint   // durable user or post id on success
	Reason        string // reason code on failure
	AccessToken   string
	RefreshToken  string
}

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

type markerEntry struct {
	marker    Marker
	expiresAt time.Time
}

// Store is an in-process TTL key/value store. Expired entries are skipped on
// read and purged by Sweep. All mutation of a session happens through Update
// under the store lock, which is what makes the verified-once and
// commit-once transitions race-free.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]sessionEntry
	markers    map[string]markerEntry
	sessionTTL time.Duration
	markerTTL  time.Duration
	now        func() time.Time
}

// Opts holds parameters for creating a Store.
type Opts struct {
	SessionTTL time.Duration // defaults to 30m
	MarkerTTL  time.Duration // defaults to 5m
	Now        func() time.Time
}

// New creates a Store.
func New(opts Opts) *Store {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MarkerTTL <= 0 {
		opts.MarkerTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions:   make(map[string]sessionEntry),
		markers:    make(map[string]markerEntry),
		sessionTTL: opts.SessionTTL,
		markerTTL:  opts.MarkerTTL,
		now:        opts.Now,
	}
}

// Put stores a session, resetting its TTL.
func (s *Store) Put(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.Profile == nil {
		session.Profile = make(map[string]string)
	}
	s.sessions[session.ID] = sessionEntry{
		session:   session,
		expiresAt: s.now().Add(s.sessionTTL),
	}
}

// Get returns a copy of the session, or ErrNotFound if absent or expired.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return Session{}, ErrNotFound
	}
	return copySession(entry.session), nil
}

// Update applies fn to the session under the store lock. fn sees the live
// session and may mutate it; returning an error aborts the update without
// saving. The TTL is not extended.
func (s *Store) Update(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return ErrNotFound
	}
	session := copySession(entry.session)
	if err := fn(&session); err != nil {
		return err
	}
	entry.session = session
	s.sessions[id] = entry
	return nil
}

// Delete removes a session. Deleting an absent key is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// PutMarker stores a completion marker under its correlation id.
func (s *Store) PutMarker(m Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.CorrelationID] = markerEntry{
		marker:    m,
		expiresAt: s.now().Add(s.markerTTL),
	}
}

// GetMarker returns the marker for a correlation id, or ErrNotFound.
func (s *Store) GetMarker(correlationID string) (Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.markers[correlationID]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.markers, correlationID)
		return Marker{}, ErrNotFound
	}
	return entry.marker, nil
}

// Sweep purges expired sessions and markers, returning how many entries were
// removed. Wired to the cron maintenance schedule.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	for id, entry := range s.markers {
		if now.After(entry.expiresAt) {
			delete(s.markers, id)
			removed++
		}
	}
	return removed
}

func copySession(in Session) Session {
	out := in
	out.Profile = make(map[string]string, len(in.Profile))
	for k, v := range in.Profile {
		out.Profile[k] = v
	}
	out.Media = append([]string(nil), in.Media...)
	return out
}
