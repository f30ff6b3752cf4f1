package main

import (
	"errors"

	"github.com/spf13/cobra"

	"workdesk/internal/bot"
)

func newDigestCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Send the open-task digest to every linked Telegram chat once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.TelegramToken == "" {
				return errors.New("TELEGRAM_TOKEN is not set")
			}
			telegramBot, err := bot.New(a.cfg.TelegramToken, a.accountSvc, a.taskSvc, a.reminderSvc)
			if err != nil {
				return err
			}
			return telegramBot.SendDigests(cmd.Context())
		},
	}
}
