// Package convlog persists append-only, thread-keyed dialogue history. Turns
// are written once with a monotonic per-thread sequence and never rewritten;
// the stream driver reads them back to rebuild context across requests.
package convlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stitchapp/stitch/internal/models"
	"gorm.io/gorm"
)

// Roles stored in the log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Log is the conversation log store.
type Log struct {
	db *gorm.DB
}

// New creates a Log backed by the given database.
func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Append writes one turn at the next sequence position for the thread.
func (l *Log) Append(threadID, role, content string) (*models.Turn, error) {
	if threadID == "" {
		return nil, fmt.Errorf("convlog: thread id is required")
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("convlog: unknown role %q", role)
	}

	var turn models.Turn
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		row := tx.Model(&models.Turn{}).
			Where("thread_id = ?", threadID).
			Select("COALESCE(MAX(sequence), 0)").
			Row()
		if err := row.Scan(&maxSeq); err != nil {
			return err
		}
		turn = models.Turn{
			ThreadID:  threadID,
			Sequence:  maxSeq + 1,
			Role:      role,
			Content:   content,
			CreatedAt: time.Now(),
		}
		return tx.Create(&turn).Error
	})
	if err != nil {
		return nil, fmt.Errorf("convlog: append to %s: %w", threadID, err)
	}
	return &turn, nil
}

// History returns the thread's turns in sequence order. limit bounds the
// result to the most recent turns; limit <= 0 returns the full thread.
func (l *Log) History(threadID string, limit int) ([]models.Turn, error) {
	if threadID == "" {
		return nil, fmt.Errorf("convlog: thread id is required")
	}
	var turns []models.Turn
	if err := l.db.Where("thread_id = ?", threadID).
		Order("sequence ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("convlog: history %s: %w", threadID, err)
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// archivedTurn is the JSON shape stored in a ConversationArchive row.
type archivedTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Archive snapshots the thread's turns into a durable ConversationArchive
// row owned by userID. Returns the archive row on success.
func (l *Log) Archive(threadID string, userID uint) (*models.ConversationArchive, error) {
	turns, err := l.History(threadID, 0)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("convlog: archive %s: no turns", threadID)
	}

	archived := make([]archivedTurn, 0, len(turns))
	for _, t := range turns {
		archived = append(archived, archivedTurn{
			Role:      t.Role,
			Content:   t.Content,
			Timestamp: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	data, err := json.Marshal(archived)
	if err != nil {
		return nil, fmt.Errorf("convlog: archive %s: marshal: %w", threadID, err)
	}

	archive := models.ConversationArchive{
		UserID:    userID,
		ThreadID:  threadID,
		Turns:     string(data),
		CreatedAt: time.Now(),
	}
	if err := l.db.Create(&archive).Error; err != nil {
		return nil, fmt.Errorf("convlog: archive %s: %w", threadID, err)
	}
	return &archive, nil
}
