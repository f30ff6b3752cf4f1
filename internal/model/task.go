package model

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusAssigned TaskStatus = "assigned"
	StatusWork     TaskStatus = "work"
	StatusDone     TaskStatus = "done"
)

// TaskStatuses lists the canonical statuses in workflow order.
var TaskStatuses = []TaskStatus{StatusAssigned, StatusWork, StatusDone}

// Valid reports whether s is one of TaskStatuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the human-readable (Russian) name of the status.
func (s TaskStatus) Label() string {
	switch s {
	case StatusAssigned:
		return "Назначена"
	case StatusWork:
		return "В работе"
	case StatusDone:
		return "Готово"
	default:
		return string(s)
	}
}

// Task is a work item routed from a sender to a recipient.
type Task struct {
	ID          uint       `gorm:"primaryKey"`
	Title       string     `gorm:"size:128;not null"`
	Text        string     `gorm:"type:text;not null"`
	Date        time.Time  `gorm:"type:date;not null"`
	Status      TaskStatus `gorm:"size:128;not null;index"`
	SenderID    *uint      `gorm:"index"`
	Sender      *User      `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	RecipientID *uint      `gorm:"index"`
	Recipient   *User      `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRecipient reports whether userID is the task's recipient.
func (t Task) IsRecipient(userID uint) bool {
	return t.RecipientID != nil && *t.RecipientID == userID
}
