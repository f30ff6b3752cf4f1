package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"workdesk/internal/model"
	"workdesk/internal/repository"
)

type fixture struct {
	db         *gorm.DB
	users      *repository.UserRepository
	categories *repository.CategoryRepository
	articles   *repository.ArticleRepository
	tasks      *repository.TaskRepository

	accountSvc  *AccountService
	categorySvc *CategoryService
	articleSvc  *ArticleService
	taskSvc     *TaskService
	reminderSvc *ReminderService
}

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_foreign_keys=on", name))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	f := &fixture{
		db:         db,
		users:      repository.NewUserRepository(db),
		categories: repository.NewCategoryRepository(db),
		articles:   repository.NewArticleRepository(db),
		tasks:      repository.NewTaskRepository(db),
	}
	f.accountSvc = NewAccountService(f.users, bcrypt.MinCost)
	f.categorySvc = NewCategoryService(f.categories)
	f.articleSvc = NewArticleService(f.articles, f.categories, f.users)
	f.articleSvc.now = func() time.Time { return fixedNow }
	f.taskSvc = NewTaskService(f.tasks, f.users)
	f.taskSvc.now = func() time.Time { return fixedNow }
	f.reminderSvc = NewReminderService(f.tasks)
	return f
}

func (f *fixture) register(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := f.accountSvc.Register(context.Background(), RegistrationInput{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Test",
		Password1: "correct-horse",
		Password2: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (f *fixture) createTask(t *testing.T, sender *model.User, recipient string, status model.TaskStatus, title string) *model.Task {
	t.Helper()
	task, err := f.taskSvc.CreateTask(context.Background(), sender, TaskInput{
		Title:             title,
		Text:              "details",
		Status:            status,
		RecipientUsername: recipient,
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}
