package models

import "time"

// Turn is a single message in a thread's append-only dialogue history.
// Sequence is monotonic per thread; rows are never updated or deleted.
type Turn struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ThreadID  string `gorm:"size:64;not null;index:idx_thread_seq,priority:1"`
	Sequence  int    `gorm:"not null;index:idx_thread_seq,priority:2"`
	Role      string `gorm:"size:16;not null"` // "user", "assistant"
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// ConversationArchive is a durable snapshot of a thread's user/assistant
// turns, attached to the user created from that dialogue. Written
// best-effort during finalization.
type ConversationArchive struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    uint   `gorm:"not null;index"`
	ThreadID  string `gorm:"size:64;not null"`
	Turns     string `gorm:"type:text"` // JSON array of {role, content, timestamp}
	CreatedAt time.Time
}
