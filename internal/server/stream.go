package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stitchapp/stitch/internal/chat"
	"github.com/stitchapp/stitch/internal/finalize"
	"github.com/stitchapp/stitch/internal/sessions"
)

// handleChatStream runs one signup dialogue turn as an SSE stream:
// `token`* then `done`, with a `commit_initiated` event carrying the
// correlation id when this turn's code check wins the commit.
func handleChatStream(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}
		session, err := deps.Store.Get(sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		// The code check runs before the model turn so the prompt can react
		// to the result. A mismatch is non-fatal; the dialogue re-prompts
		// and the client may retry without limit.
		var correlationID string
		if looksLikeCode(q, session.Code) {
			result, verr := chat.VerifyCode(deps.Store, sessionID, strings.TrimSpace(q))
			if verr != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			if result == chat.Verified {
				correlationID, verr = deps.Worker.Submit(finalize.Job{
					Kind:      finalize.JobSignup,
					SessionID: sessionID,
				})
				if verr != nil {
					log.Printf("server: submit signup commit for %s: %v", sessionID, verr)
				}
				// The detached worker may delete the session at any moment
				// now. The prompt is built from the snapshot taken before
				// verification, advanced to the state the check just won.
				session.Status = sessions.StatusCommitting
			}
			// AlreadyVerified schedules nothing: the first match owns the
			// commit and its correlation id, and the snapshot already
			// carries the post-collecting status.
		}

		sseHeaders(c)
		system := chat.SignupPrompt(session)
		finished := relayTurn(c, deps, sessionID, system, q)
		if !finished {
			return
		}
		if correlationID != "" {
			writeSSE(c.Writer, "commit_initiated", gin.H{"correlation_id": correlationID})
			c.Writer.Flush()
		}
		writeSSE(c.Writer, "done", gin.H{})
		c.Writer.Flush()
	}
}

// handleCaptionStream runs one caption dialogue turn as an SSE stream. When
// the completed turn carries the closing marker, the staged post content is
// saved and the post commit is scheduled.
func handleCaptionStream(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}

		session, err := deps.Store.Get(sessionID)
		if err != nil {
			// First contact creates the caption session.
			userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 32)
			if userID == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
				return
			}
			session = sessions.Session{
				ID:     sessionID,
				Kind:   sessions.KindCaption,
				Status: sessions.StatusCollecting,
				UserID: uint(userID),
				Media:  splitMedia(c.Query("media")),
			}
			deps.Store.Put(session)
		}

		sseHeaders(c)
		assembled, finished := relayTurnAssembled(c, deps, sessionID, chat.CaptionPrompt, q)
		if !finished {
			return
		}

		if data, ok := chat.DetectCaptionReady(assembled); ok {
			// Only the transition out of collecting schedules the commit, so
			// a repeated closing turn cannot create a second post.
			won := false
			uerr := deps.Store.Update(sessionID, func(s *sessions.Session) error {
				if s.Status == sessions.StatusCollecting {
					s.Status = sessions.StatusCommitting
					s.Caption = data
					won = true
				}
				return nil
			})
			if uerr == nil && won {
				correlationID, serr := deps.Worker.Submit(finalize.Job{
					Kind:      finalize.JobPost,
					SessionID: sessionID,
				})
				if serr != nil {
					log.Printf("server: submit post commit for %s: %v", sessionID, serr)
				} else {
					writeSSE(c.Writer, "commit_initiated", gin.H{"correlation_id": correlationID})
					c.Writer.Flush()
				}
			}
		}

		writeSSE(c.Writer, "done", gin.H{})
		c.Writer.Flush()
	}
}

// relayTurn streams a turn's token events to the client. Returns false if
// the turn ended with an error event (already written, stream is terminal).
func relayTurn(c *gin.Context, deps Deps, threadID, system, input string) bool {
	_, ok := relayTurnAssembled(c, deps, threadID, system, input)
	return ok
}

func relayTurnAssembled(c *gin.Context, deps Deps, threadID, system, input string) (string, bool) {
	events := deps.Driver.RunTurn(c.Request.Context(), threadID, system, input)
	for ev := range events {
		switch ev.Type {
		case chat.EventToken:
			writeSSE(c.Writer, "token", gin.H{"content": ev.Text})
			c.Writer.Flush()
		case chat.EventError:
			log.Printf("server: stream turn for %s: %v", threadID, ev.Err)
			writeSSE(c.Writer, "error", gin.H{"error": "stream failed"})
			c.Writer.Flush()
			return "", false
		case chat.EventDone:
			return ev.Assembled, true
		}
	}
	return "", true
}

// looksLikeCode reports whether the input is a confirmation-code attempt:
// all digits, same length as the stored code.
func looksLikeCode(q, code string) bool {
	q = strings.TrimSpace(q)
	if code == "" || len(q) != len(code) {
		return false
	}
	for _, r := range q {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func splitMedia(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	media := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			media = append(media, p)
		}
	}
	return media
}
