package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"workdesk/internal/logging"
	"workdesk/internal/model"
	"workdesk/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title             string
	Text              string
	Status            model.TaskStatus
	RecipientUsername string
}

// TaskDetail is a task plus the statuses it can be moved to.
type TaskDetail struct {
	Task         model.Task
	Alternatives []model.TaskStatus
}

// TaskSummary is the shape of a row in "my tasks".
type TaskSummary struct {
	ID     uint
	Title  string
	Date   time.Time
	Sender *model.User
}

// MyTasks partitions a recipient's tasks by status.
type MyTasks struct {
	Assigned []TaskSummary
	Work     []TaskSummary
	Done     []TaskSummary
}

// Board groups all tasks by status for the home page.
type Board struct {
	Assigned []model.Task
	Work     []model.Task
	Done     []model.Task
}

// TaskNotifier is told about newly assigned tasks.
type TaskNotifier interface {
	TaskAssigned(ctx context.Context, task model.Task, recipient model.User) error
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
	notifier TaskNotifier
	now      func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, userRepo: userRepo, now: time.Now}
}

// SetNotifier installs n; nil disables notifications.
func (s *TaskService) SetNotifier(n TaskNotifier) {
	s.notifier = n
}

func (s *TaskService) CreateTask(ctx context.Context, sender *model.User, input TaskInput) (*model.Task, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: anonymous sender", ErrForbidden)
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Text = strings.TrimSpace(input.Text)
	if input.Status == "" {
		input.Status = model.StatusAssigned
	}

	verr := &ValidationError{}
	switch {
	case input.Title == "":
		verr.Add("title", "Обязательное поле.")
	case utf8.RuneCountInString(input.Title) > model.TitleMaxLen:
		verr.Add("title", fmt.Sprintf("Не более %d символов.", model.TitleMaxLen))
	}
	if input.Text == "" {
		verr.Add("text", "Обязательное поле.")
	}
	if !input.Status.Valid() {
		verr.Add("status", "Неизвестный статус.")
	}

	var recipient *model.User
	if name := strings.TrimSpace(input.RecipientUsername); name == "" {
		verr.Add("user_to", "Выберите получателя.")
	} else {
		found, err := s.userRepo.FindByUsername(ctx, name)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			verr.Add("user_to", fmt.Sprintf("Пользователь %q не найден.", name))
		case err != nil:
			return nil, err
		default:
			recipient = found
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	task := model.Task{
		Title:       input.Title,
		Text:        input.Text,
		Date:        today(s.now()),
		Status:      input.Status,
		SenderID:    &sender.ID,
		RecipientID: &recipient.ID,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	task.Sender = sender
	task.Recipient = recipient

	logging.Logger.WithFields(logrus.Fields{
		"task":      task.ID,
		"sender":    sender.Username,
		"recipient": recipient.Username,
		"status":    task.Status,
	}).Info("task created")

	if s.notifier != nil {
		if err := s.notifier.TaskAssigned(ctx, task, *recipient); err != nil {
			logging.Logger.WithError(err).WithField("task", task.ID).Warn("notify recipient")
		}
	}

	return &task, nil
}

// GetTask loads a task and the canonical statuses other than its current one.
func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*TaskDetail, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", taskID))
	}
	detail := TaskDetail{Task: *task}
	for _, status := range model.TaskStatuses {
		if status != task.Status {
			detail.Alternatives = append(detail.Alternatives, status)
		}
	}
	return &detail, nil
}

// ChangeStatus moves a task to status. Only the recipient may do so and
// only canonical statuses are accepted; any status may follow any other.
func (s *TaskService) ChangeStatus(ctx context.Context, actor *model.User, taskID uint, status model.TaskStatus) (*model.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", taskID))
	}
	if actor == nil || !task.IsRecipient(actor.ID) {
		return nil, fmt.Errorf("%w: only the recipient may change task %d", ErrForbidden, taskID)
	}
	if task.Status == status {
		return task, nil
	}
	if err := s.taskRepo.UpdateStatus(ctx, taskID, status); err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", taskID))
	}
	logging.Logger.WithFields(logrus.Fields{
		"task": taskID,
		"from": task.Status,
		"to":   status,
		"user": actor.Username,
	}).Info("task status changed")
	task.Status = status
	return task, nil
}

// ListMine returns the user's tasks split by status with one query per status.
func (s *TaskService) ListMine(ctx context.Context, user *model.User) (*MyTasks, error) {
	var mine MyTasks
	targets := []struct {
		status model.TaskStatus
		dst    *[]TaskSummary
	}{
		{model.StatusAssigned, &mine.Assigned},
		{model.StatusWork, &mine.Work},
		{model.StatusDone, &mine.Done},
	}
	for _, target := range targets {
		tasks, err := s.taskRepo.ListByStatus(ctx, target.status, &user.ID)
		if err != nil {
			return nil, err
		}
		*target.dst = summarize(tasks)
	}
	return &mine, nil
}

// Board returns all tasks grouped by status.
func (s *TaskService) Board(ctx context.Context) (*Board, error) {
	var board Board
	var err error
	if board.Assigned, err = s.taskRepo.ListByStatus(ctx, model.StatusAssigned, nil); err != nil {
		return nil, err
	}
	if board.Work, err = s.taskRepo.ListByStatus(ctx, model.StatusWork, nil); err != nil {
		return nil, err
	}
	if board.Done, err = s.taskRepo.ListByStatus(ctx, model.StatusDone, nil); err != nil {
		return nil, err
	}
	return &board, nil
}

func summarize(tasks []model.Task) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, TaskSummary{
			ID:     task.ID,
			Title:  task.Title,
			Date:   task.Date,
			Sender: task.Sender,
		})
	}
	return out
}
