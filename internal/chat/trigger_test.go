package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stitchapp/stitch/internal/sessions"
)

func newTriggerStore() *sessions.Store {
	return sessions.New(sessions.Opts{SessionTTL: time.Minute, MarkerTTL: time.Minute})
}

func TestVerifyCode_Mismatch(t *testing.T) {
	store := newTriggerStore()
	store.Put(sessions.Session{ID: "s1", Status: sessions.StatusCollecting, Code: "4821"})

	result, err := VerifyCode(store, "s1", "9999")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if result != VerifyMismatch {
		t.Errorf("result = %v, want mismatch", result)
	}

	// Session stays in collecting; retries stay possible.
	s, _ := store.Get("s1")
	if s.Status != sessions.StatusCollecting {
		t.Errorf("Status = %q, want collecting", s.Status)
	}
}

func TestVerifyCode_VerifiedExactlyOnce(t *testing.T) {
	store := newTriggerStore()
	store.Put(sessions.Session{ID: "s1", Status: sessions.StatusCollecting, Code: "4821"})

	first, err := VerifyCode(store, "s1", "4821")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if first != Verified {
		t.Fatalf("first result = %v, want Verified", first)
	}

	second, err := VerifyCode(store, "s1", "4821")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if second != AlreadyVerified {
		t.Errorf("second result = %v, want AlreadyVerified", second)
	}

	s, _ := store.Get("s1")
	if s.Status != sessions.StatusCommitting {
		t.Errorf("Status = %q, want committing", s.Status)
	}
}

func TestVerifyCode_EmptyInputs(t *testing.T) {
	store := newTriggerStore()
	store.Put(sessions.Session{ID: "s1", Status: sessions.StatusCollecting, Code: ""})

	result, err := VerifyCode(store, "s1", "")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if result != VerifyMismatch {
		t.Errorf("empty code matched empty input")
	}
}

func TestVerifyCode_MissingSession(t *testing.T) {
	store := newTriggerStore()
	_, err := VerifyCode(store, "nope", "4821")
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDetectCaptionReady_StructuredPayload(t *testing.T) {
	assembled := `ok on it! ready to post!
{
  "READY_TO_POST": true,
  "title": "beach day",
  "caption1": "sunset vibes 🌅",
  "caption2": "golden hour golden mood ✨",
  "location": "santa monica"
}`
	data, ok := DetectCaptionReady(assembled)
	if !ok {
		t.Fatal("marker not detected")
	}
	if data.Title != "beach day" {
		t.Errorf("Title = %q", data.Title)
	}
	if data.Caption1 != "sunset vibes 🌅" || data.Caption2 != "golden hour golden mood ✨" {
		t.Errorf("captions = %q, %q", data.Caption1, data.Caption2)
	}
	if data.Location != "santa monica" {
		t.Errorf("Location = %q", data.Location)
	}
}

func TestDetectCaptionReady_NoMarker(t *testing.T) {
	if _, ok := DetectCaptionReady("what vibe are we going for?"); ok {
		t.Error("fired without marker")
	}
}

func TestDetectCaptionReady_CaseInsensitive(t *testing.T) {
	assembled := `{"ready_to_post": true}`
	if _, ok := DetectCaptionReady(assembled); !ok {
		t.Error("lower-case marker not detected")
	}
}

func TestDetectCaptionReady_BraceBeforeMarker(t *testing.T) {
	// Conversational braces ahead of the payload must not widen the parse
	// window and silently demote a valid block to the defaults.
	assembled := `love the {golden hour} energy! here we go:
{"READY_TO_POST": true, "title": "beach day", "caption1": "sunset vibes", "caption2": "glow", "location": "santa monica"}`
	data, ok := DetectCaptionReady(assembled)
	if !ok {
		t.Fatal("marker not detected")
	}
	if data.Title != "beach day" || data.Caption1 != "sunset vibes" {
		t.Errorf("payload not extracted, got %+v", data)
	}
	if data.Location != "santa monica" {
		t.Errorf("Location = %q", data.Location)
	}
}

func TestDetectCaptionReady_BadPayloadFallsBack(t *testing.T) {
	assembled := `READY_TO_POST {"title": "unterminated`
	data, ok := DetectCaptionReady(assembled)
	if !ok {
		t.Fatal("marker with bad payload should still fire")
	}
	if data.Title == "" || data.Caption1 == "" {
		t.Errorf("fallback content missing: %+v", data)
	}
}
