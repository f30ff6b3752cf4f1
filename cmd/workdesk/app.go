package main

import (
	"fmt"

	"gorm.io/gorm"

	"workdesk/internal/config"
	"workdesk/internal/logging"
	"workdesk/internal/repository"
	"workdesk/internal/service"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg config.Config
	db  *gorm.DB

	accountSvc  *service.AccountService
	articleSvc  *service.ArticleService
	categorySvc *service.CategoryService
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
}

func newApp(envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	return &app{
		cfg:         cfg,
		db:          db,
		accountSvc:  service.NewAccountService(userRepo, 0),
		articleSvc:  service.NewArticleService(articleRepo, categoryRepo, userRepo),
		categorySvc: service.NewCategoryService(categoryRepo),
		taskSvc:     service.NewTaskService(taskRepo, userRepo),
		reminderSvc: service.NewReminderService(taskRepo),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
