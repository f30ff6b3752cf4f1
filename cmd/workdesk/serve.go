package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"workdesk/internal/auth"
	"workdesk/internal/bot"
	"workdesk/internal/logging"
	"workdesk/internal/service"
	"workdesk/internal/web"
)

const (
	digestJobTimeout = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server, plus the Telegram bot when a token is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	secret := a.cfg.SessionSecret
	if secret == "" {
		generated, err := auth.RandomSecret()
		if err != nil {
			return err
		}
		secret = generated
		logging.Logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	}
	sessions := auth.NewSessionManager(secret, a.cfg.SessionTTL, a.cfg.SecureCookies)

	srv, err := web.NewServer(a.accountSvc, a.articleSvc, a.categorySvc, a.taskSvc, sessions)
	if err != nil {
		return err
	}

	if a.cfg.TelegramToken != "" {
		telegramBot, err := bot.New(a.cfg.TelegramToken, a.accountSvc, a.taskSvc, a.reminderSvc)
		if err != nil {
			return err
		}
		a.taskSvc.SetNotifier(telegramBot)

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Logger.WithError(err).Error("bot stopped")
			}
		}()

		scheduler, err := scheduleDigests(a, telegramBot)
		if err != nil {
			return err
		}
		if scheduler != nil {
			scheduler.Start()
			defer scheduler.Stop()
		}
	} else {
		logging.Logger.Info("TELEGRAM_TOKEN is not set; bot and digests are disabled")
	}

	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.WithField("addr", a.cfg.HTTPAddr).Info("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.Logger.Info("shutdown complete")
	return nil
}

// scheduleDigests registers the digest job: daily at DIGEST_TIME, or every
// DIGEST_INTERVAL_HOURS. It returns nil when neither is configured.
func scheduleDigests(a *app, telegramBot *bot.Bot) (*service.SchedulerService, error) {
	if a.cfg.DigestTime == "" && a.cfg.DigestInterval <= 0 {
		return nil, nil
	}

	job := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), digestJobTimeout)
		defer cancel()
		if err := telegramBot.SendDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Logger.WithError(err).Error("send digests")
		}
	}

	scheduler := service.NewSchedulerService(time.Local)
	var err error
	if a.cfg.DigestTime != "" {
		_, err = scheduler.ScheduleDaily(a.cfg.DigestTime, job)
	} else {
		_, err = scheduler.ScheduleInterval(a.cfg.DigestInterval, job)
	}
	if err != nil {
		return nil, err
	}
	logging.Logger.WithFields(logrus.Fields{
		"time":     a.cfg.DigestTime,
		"interval": a.cfg.DigestInterval.String(),
	}).Info("digests scheduled")
	return scheduler, nil
}
