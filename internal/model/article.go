package model

import "time"

// TitleMaxLen limits article and task titles.
const TitleMaxLen = 128

// Article is a published piece of content.
type Article struct {
	ID         uint      `gorm:"primaryKey"`
	Title      string    `gorm:"size:128;not null"`
	Text       string    `gorm:"type:text;not null"`
	Date       time.Time `gorm:"type:date;not null"`
	UserID     *uint     `gorm:"index"`
	User       *User     `gorm:"constraint:OnDelete:CASCADE"`
	CategoryID *uint     `gorm:"index"`
	Category   *Category `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
