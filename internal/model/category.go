package model

import "time"

// CategoryNameMaxLen limits Category.Name.
const CategoryNameMaxLen = 64

// Category groups articles by topic.
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Articles  []Article `gorm:"foreignKey:CategoryID"`
}
