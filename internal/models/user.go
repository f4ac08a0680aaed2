package models

import "time"

// User is a durable account created exactly once by the finalization worker.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"size:64;index"`
	Name         string `gorm:"size:128"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	Email        string `gorm:"size:256;index"`
	Birthday     string `gorm:"size:32"`
	Gender       string `gorm:"size:32"`
	Pronouns     string `gorm:"size:32"`
	University   string `gorm:"size:128"`
	Occupation   string `gorm:"size:128"`
	// PushAddress is the follower's delivery address for best-effort push
	// (webhook URL or device token, depending on the configured provider).
	PushAddress string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Posts []Post `gorm:"foreignKey:UserID"`
}

// Follow is a directed edge: FollowerID follows FollowingID.
type Follow struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	FollowerID  uint `gorm:"not null;uniqueIndex:ux_follow_edge,priority:1"`
	FollowingID uint `gorm:"not null;uniqueIndex:ux_follow_edge,priority:2;index"`
	CreatedAt   time.Time
}
