package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"workdesk/internal/model"
	"workdesk/internal/repository"
)

// staleAfter marks open tasks older than this with a warning icon.
const staleAfter = 7 * 24 * time.Hour

// ReminderService builds human-readable summaries for periodic notifications.
type ReminderService struct {
	taskRepo *repository.TaskRepository
}

func NewReminderService(taskRepo *repository.TaskRepository) *ReminderService {
	return &ReminderService{taskRepo: taskRepo}
}

// Digest lists the user's assigned and in-progress tasks as Telegram HTML.
// It returns an empty string when the user has nothing open.
func (s *ReminderService) Digest(ctx context.Context, user model.User, now time.Time) (string, error) {
	assigned, err := s.taskRepo.ListByStatus(ctx, model.StatusAssigned, &user.ID)
	if err != nil {
		return "", err
	}
	work, err := s.taskRepo.ListByStatus(ctx, model.StatusWork, &user.ID)
	if err != nil {
		return "", err
	}
	if len(assigned) == 0 && len(work) == 0 {
		return "", nil
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ваши задачи</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("02.01.2006")))

	writeSection(&builder, "📥 "+model.StatusAssigned.Label(), assigned, now)
	writeSection(&builder, "🔧 "+model.StatusWork.Label(), work, now)

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(builder *strings.Builder, title string, tasks []model.Task, now time.Time) {
	builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", html.EscapeString(title)))
	if len(tasks) == 0 {
		builder.WriteString("— нет задач\n")
		return
	}
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	y, m, d := task.Date.Date()
	age := today(now).Sub(time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
	icon := "🟢"
	if age >= staleAfter {
		icon = "⚠️"
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, title))

	if task.Sender != nil {
		sb.WriteString(fmt.Sprintf(" <i>(от %s)</i>", html.EscapeString(task.Sender.FullName())))
	}

	days := int(age.Hours() / 24)
	if days <= 0 {
		sb.WriteString("\n   ⏰ назначена сегодня")
	} else {
		sb.WriteString(fmt.Sprintf("\n   ⏰ назначена %s · %d дн. назад", task.Date.Format("2006-01-02"), days))
	}

	sb.WriteByte('\n')
	return sb.String()
}
