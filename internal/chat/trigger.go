package chat

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/stitchapp/stitch/internal/sessions"
)

// VerifyResult is the outcome of a confirmation-code check.
type VerifyResult int

const (
	// VerifyMismatch means the supplied code did not match. Non-fatal; the
	// dialogue continues and the client may retry without limit.
	VerifyMismatch VerifyResult = iota
	// Verified means the code matched and this call won the one-time
	// transition into committing. Exactly one caller per session sees this.
	Verified
	// AlreadyVerified means the code matched but the session had already
	// moved past collecting. Idempotent no-op.
	AlreadyVerified
)

// VerifyCode compares a supplied confirmation code against the session's
// stored code. The collecting -> committing transition happens inside the
// store's atomic update, so a duplicate match can never schedule a second
// commit.
func VerifyCode(store *sessions.Store, sessionID, supplied string) (VerifyResult, error) {
	result := VerifyMismatch
	err := store.Update(sessionID, func(s *sessions.Session) error {
		if s.Code == "" || supplied == "" || s.Code != supplied {
			result = VerifyMismatch
			return nil
		}
		if s.Status != sessions.StatusCollecting {
			result = AlreadyVerified
			return nil
		}
		s.Status = sessions.StatusCommitting
		result = Verified
		return nil
	})
	if err != nil {
		return VerifyMismatch, err
	}
	return result, nil
}

// readyMarker is the structured closing signal the caption prompt instructs
// the model to emit when the user is ready to post. Matching is
// case-insensitive.
const readyMarker = "ready_to_post"

// readyPayload is the JSON block wrapped around the marker.
type readyPayload struct {
	ReadyToPost bool   `json:"READY_TO_POST"`
	Caption1    string `json:"caption1"`
	Caption2    string `json:"caption2"`
	Location    string `json:"location"`
	Title       string `json:"title"`
}

// DetectCaptionReady scans the fully assembled output of a completed turn
// for the closing marker and extracts the generated post content. It is
// called once per turn, on the final text only, so a marker echoed earlier
// in the dialogue never fires and the trigger fires at most once per turn.
//
// A marker whose JSON block cannot be parsed degrades to default content
// rather than blocking the commit; the parse failure is logged.
func DetectCaptionReady(assembled string) (sessions.CaptionData, bool) {
	markerAt := strings.Index(strings.ToLower(assembled), readyMarker)
	if markerAt < 0 {
		return sessions.CaptionData{}, false
	}

	// The marker is a key inside the payload object, so the block's opening
	// brace is the last one before it. Anchoring there keeps braces in
	// earlier conversational text out of the parse.
	start := strings.LastIndex(assembled[:markerAt], "{")
	end := strings.LastIndex(assembled, "}")
	if start >= 0 && end > start {
		var payload readyPayload
		if err := json.Unmarshal([]byte(assembled[start:end+1]), &payload); err == nil && payload.ReadyToPost {
			return sessions.CaptionData{
				Caption1: payload.Caption1,
				Caption2: payload.Caption2,
				Location: payload.Location,
				Title:    payload.Title,
			}, true
		} else if err != nil {
			log.Printf("chat: caption marker present but payload unparseable: %v", err)
		}
	}

	// Marker without a usable payload: fall back to defaults.
	return sessions.CaptionData{
		Caption1: "check out my latest post!",
		Caption2: "new post just dropped",
		Title:    "New Post",
	}, true
}
