package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"workdesk/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Sender").Preload("Recipient").First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByStatus returns tasks in the given status. A non-nil recipientID
// narrows the result to tasks assigned to that user.
func (r *TaskRepository) ListByStatus(ctx context.Context, status model.TaskStatus, recipientID *uint) ([]model.Task, error) {
	db := r.db.WithContext(ctx).Preload("Sender").Preload("Recipient").Where("status = ?", status)
	if recipientID != nil {
		db = db.Where("recipient_id = ?", *recipientID)
	}
	var tasks []model.Task
	if err := db.Order("date DESC, id DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateStatus overwrites the status column as is. Callers validate.
func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID uint, status model.TaskStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update task status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task status: %w", gorm.ErrRecordNotFound)
	}
	return nil
}
