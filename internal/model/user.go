package model

import (
	"strings"
	"time"
)

// User is a registered account. Articles and tasks reference it.
type User struct {
	ID               uint   `gorm:"primaryKey"`
	Username         string `gorm:"size:150;uniqueIndex;not null"`
	Email            string `gorm:"size:254;uniqueIndex;not null"`
	FirstName        string `gorm:"size:150"`
	LastName         string `gorm:"size:150"`
	PasswordHash     string `gorm:"not null"`
	TelegramChatID   *int64 `gorm:"uniqueIndex"`
	TelegramLinkCode string `gorm:"size:36;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
