// Package fanout enumerates the interested parties for a new post and
// delivers one notification record plus one best-effort push per party.
// Recipients are independent: one recipient's failure never blocks the rest,
// and push delivery is never retried.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stitchapp/stitch/internal/models"
	"github.com/stitchapp/stitch/internal/push"
	"gorm.io/gorm"
)

// Result summarizes one fan-out run.
type Result struct {
	Recipients int // followers enumerated
	Rows       int // notification rows created
	Pushed     int // pushes delivered
	Skipped    int // pushes skipped (no address or delivery failure)
}

// Fanout delivers post notifications to an actor's followers.
type Fanout struct {
	db     *gorm.DB
	sender push.Sender
}

// New creates a Fanout.
func New(db *gorm.DB, sender push.Sender) *Fanout {
	if sender == nil {
		sender = push.NopSender{}
	}
	return &Fanout{db: db, sender: sender}
}

// NotifyNewPost creates one Notification row per follower of actorID, then
// attempts one push per follower. The notification row is always written;
// the push is best-effort. Ordering across recipients is unspecified.
func (f *Fanout) NotifyNewPost(ctx context.Context, actorID uint, post *models.Post) (Result, error) {
	var result Result

	var actor models.User
	if err := f.db.First(&actor, actorID).Error; err != nil {
		return result, fmt.Errorf("fanout: load actor %d: %w", actorID, err)
	}

	var edges []models.Follow
	if err := f.db.Where("following_id = ?", actorID).Find(&edges).Error; err != nil {
		return result, fmt.Errorf("fanout: list followers of %d: %w", actorID, err)
	}
	result.Recipients = len(edges)

	title := fmt.Sprintf("%s posted", actor.Name)
	body := post.Title
	if body == "" {
		body = truncate(post.Caption, 50)
	}
	metadata := map[string]string{
		"type":     "new_post",
		"post_id":  fmt.Sprint(post.ID),
		"user_id":  fmt.Sprint(actorID),
		"username": actor.Username,
	}

	for _, edge := range edges {
		postID := post.ID
		row := models.Notification{
			RecipientID: edge.FollowerID,
			ActorID:     actorID,
			Kind:        "new_post",
			PostID:      &postID,
			CreatedAt:   time.Now(),
		}
		if err := f.db.Create(&row).Error; err != nil {
			log.Printf("fanout: notification row for %d: %v", edge.FollowerID, err)
			continue
		}
		result.Rows++

		var follower models.User
		if err := f.db.First(&follower, edge.FollowerID).Error; err != nil {
			log.Printf("fanout: load follower %d: %v", edge.FollowerID, err)
			result.Skipped++
			continue
		}
		if err := f.sender.Send(ctx, follower.PushAddress, title, body, metadata); err != nil {
			if !errors.Is(err, push.ErrNoAddress) {
				log.Printf("fanout: push to %d: %v", edge.FollowerID, err)
			}
			result.Skipped++
			continue
		}
		result.Pushed++
	}

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
