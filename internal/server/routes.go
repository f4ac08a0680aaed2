package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stitchapp/stitch/internal/auth"
	"github.com/stitchapp/stitch/internal/poller"
	"github.com/stitchapp/stitch/internal/sessions"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, deps Deps) {
	router.POST("/signup/session", handleCreateSession(deps))
	router.PUT("/signup/session/:id", handleStageProfile(deps))
	router.GET("/chat/stream", handleChatStream(deps))
	router.GET("/caption/stream", handleCaptionStream(deps))
	router.GET("/status/:id", handleStatus(deps))
	router.GET("/result/:id", handleResult(deps))
	router.DELETE("/cleanup/:id", handleCleanup(deps))
}

// createSessionRequest is the optional body for session creation.
type createSessionRequest struct {
	Email string `json:"email"`
}

// handleCreateSession starts a signup staging session and issues its
// confirmation code. The code leaves the backend only through the mailer.
func handleCreateSession(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		_ = c.ShouldBindJSON(&req)

		session := sessions.Session{
			ID:      uuid.NewString(),
			Kind:    sessions.KindSignup,
			Status:  sessions.StatusCollecting,
			Code:    generateCode(),
			Profile: map[string]string{},
		}
		if req.Email != "" {
			session.Profile["email"] = req.Email
		}
		deps.Store.Put(session)
		deps.Mailer(req.Email, session.Code)

		c.JSON(http.StatusCreated, gin.H{"session_id": session.ID})
	}
}

// stageProfileRequest carries staged account fields. Password arrives in
// plaintext once and is stored only as a bcrypt hash.
type stageProfileRequest struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	Birthday    string `json:"birthday"`
	Gender      string `json:"gender"`
	Pronouns    string `json:"pronouns"`
	University  string `json:"university"`
	Occupation  string `json:"occupation"`
	PushAddress string `json:"push_address"`
}

func handleStageProfile(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req stageProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		var hash string
		if req.Password != "" {
			var err error
			hash, err = auth.HashPassword(req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "password hashing failed"})
				return
			}
		}

		err := deps.Store.Update(id, func(s *sessions.Session) error {
			set := func(key, val string) {
				if val != "" {
					s.Profile[key] = val
				}
			}
			set("name", req.Name)
			set("username", req.Username)
			set("email", req.Email)
			set("birthday", req.Birthday)
			set("gender", req.Gender)
			set("pronouns", req.Pronouns)
			set("university", req.University)
			set("occupation", req.Occupation)
			set("push_address", req.PushAddress)
			set("password_hash", hash)
			return nil
		})
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id})
	}
}

// handleStatus reports a commit's outcome from its completion marker. An
// absent marker for an unknown correlation id is "unknown", never an error.
func handleStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		marker, err := deps.Store.GetMarker(id)
		if err != nil {
			if deps.Worker.Pending(id) {
				c.JSON(http.StatusOK, gin.H{"status": "processing"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "unknown"})
			return
		}
		c.JSON(http.StatusOK, markerResponse(marker))
	}
}

// handleResult long-polls the completion marker within the poller's budget.
func handleResult(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		outcome := deps.Poller.Await(c.Request.Context(), id)
		switch outcome.Status {
		case poller.StatusTimeout:
			c.JSON(http.StatusOK, gin.H{"status": "timeout"})
		default:
			c.JSON(http.StatusOK, markerResponse(outcome.Marker))
		}
	}
}

// handleCleanup removes a staged session after the client has collected its
// result. Idempotent.
func handleCleanup(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps.Store.Delete(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"status": "cleaned"})
	}
}

func markerResponse(m sessions.Marker) gin.H {
	resp := gin.H{"status": string(m.Outcome)}
	if m.Outcome == sessions.OutcomeSuccess {
		resp["record_id"] = m.RecordID
		if m.AccessToken != "" {
			resp["access_token"] = m.AccessToken
			resp["refresh_token"] = m.RefreshToken
		}
	} else {
		resp["reason"] = m.Reason
	}
	return resp
}

// generateCode produces a 4-digit confirmation code.
func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}
