package models

import "time"

// Post is a durable content record created by the post-flow finalization.
type Post struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    uint   `gorm:"not null;index"`
	Title     string `gorm:"size:256"`
	Caption   string `gorm:"type:text"`
	Location  *string `gorm:"size:256"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Media []PostMedia `gorm:"foreignKey:PostID"`
}

// PostMedia is one media reference attached to a post.
type PostMedia struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	PostID    uint   `gorm:"not null;index"`
	MediaURL  string `gorm:"size:1024;not null"`
	CreatedAt time.Time
}

// Notification is one fan-out record for one interested party.
type Notification struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RecipientID uint   `gorm:"not null;index"`
	ActorID     uint   `gorm:"not null"`
	Kind        string `gorm:"size:32;not null"` // e.g. "new_post"
	PostID      *uint
	CreatedAt   time.Time
}
