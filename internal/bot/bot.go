package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"workdesk/internal/logging"
	"workdesk/internal/model"
	"workdesk/internal/service"
)

const cbStatusPrefix = "status:"

const (
	// apiTimeout bounds every Bot API call; it must outlast the 60s long poll.
	apiTimeout = 90 * time.Second
	// notifyTimeout bounds a new-task notice sent from a web request.
	notifyTimeout = 10 * time.Second
)

const (
	// maxMessageLen is Telegram's limit in UTF-16 code units.
	maxMessageLen = 4096
	// maxTaskRows caps the /tasks listing and its keyboard.
	maxTaskRows = 20
)

const (
	iconAssigned = "📥"
	iconWork     = "🔧"
	iconDone     = "✅"
)

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot links Telegram chats to accounts, announces new tasks and lets
// recipients move their tasks between statuses.
type Bot struct {
	api         botAPI
	breaker     *gobreaker.CircuitBreaker
	accountSvc  *service.AccountService
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	now         func() time.Time

	notifyTimeout time.Duration
}

// New authorizes token against the Telegram API.
func New(token string, accountSvc *service.AccountService, taskSvc *service.TaskService, reminderSvc *service.ReminderService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: apiTimeout})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logging.Logger.WithField("account", api.Self.UserName).Info("bot authorized")

	return newBot(api, accountSvc, taskSvc, reminderSvc), nil
}

func newBot(api botAPI, accountSvc *service.AccountService, taskSvc *service.TaskService, reminderSvc *service.ReminderService) *Bot {
	return &Bot{
		api: api,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "telegram",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("circuit breaker state changed")
			},
		}),
		accountSvc:  accountSvc,
		taskSvc:     taskSvc,
		reminderSvc: reminderSvc,
		now:         time.Now,

		notifyTimeout: notifyTimeout,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logging.Logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			logging.Logger.WithError(err).Error("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			logging.Logger.WithError(err).Error("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Я понимаю только команды. Набери /help для списка.")
	}

	logging.Logger.WithFields(logrus.Fields{
		"chat":    msg.Chat.ID,
		"command": msg.Command(),
	}).Info("bot command")

	switch msg.Command() {
	case "start":
		if code := strings.TrimSpace(msg.CommandArguments()); code != "" {
			return b.handleLink(ctx, msg.Chat.ID, code)
		}
		return b.handleStart(msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "link":
		return b.handleLink(ctx, msg.Chat.ID, msg.CommandArguments())
	case "unlink":
		return b.handleUnlink(ctx, msg.Chat.ID)
	case "tasks":
		return b.handleTasks(ctx, msg.Chat.ID)
	case "digest":
		return b.handleDigest(ctx, msg.Chat.ID)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

const helpText = "ℹ️ <b>Команды</b>\n" +
	"• /link &lt;код&gt; — привязать чат к учётной записи (код есть в личном кабинете)\n" +
	"• /unlink — отвязать чат\n" +
	"• /tasks — мои открытые задачи со сменой статуса\n" +
	"• /digest — сводка по задачам прямо сейчас\n" +
	"• /help — эта подсказка"

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\nЯ присылаю новые задачи и ежедневную сводку.\n"+
		"Чтобы начать, отправь /link и код из личного кабинета.\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLink(ctx context.Context, chatID int64, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return b.sendText(chatID, "Укажи код из личного кабинета: /link &lt;код&gt;")
	}
	user, err := b.accountSvc.LinkTelegram(ctx, code, chatID)
	if errors.Is(err, service.ErrNotFound) {
		return b.sendText(chatID, "Код не найден. Обнови личный кабинет и попробуй ещё раз.")
	}
	if err != nil {
		return err
	}
	logging.Logger.WithFields(logrus.Fields{"user": user.Username, "chat": chatID}).Info("telegram linked")
	return b.sendText(chatID, fmt.Sprintf("🔗 Чат привязан к пользователю <b>%s</b>.", escape(user.Username)))
}

func (b *Bot) handleUnlink(ctx context.Context, chatID int64) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	if err := b.accountSvc.UnlinkTelegram(ctx, user); err != nil {
		return err
	}
	logging.Logger.WithFields(logrus.Fields{"user": user.Username, "chat": chatID}).Info("telegram unlinked")
	return b.sendText(chatID, "Чат отвязан. Уведомления больше не придут.")
}

func (b *Bot) handleTasks(ctx context.Context, chatID int64) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	mine, err := b.taskSvc.ListMine(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(mine.Assigned) == 0 && len(mine.Work) == 0 {
		return b.sendText(chatID, "Открытых задач нет.")
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Мои задачи</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton

	sections := []struct {
		icon   string
		status model.TaskStatus
		tasks  []service.TaskSummary
	}{
		{iconAssigned, model.StatusAssigned, mine.Assigned},
		{iconWork, model.StatusWork, mine.Work},
	}
	hidden := 0
	for _, section := range sections {
		if len(section.tasks) == 0 {
			continue
		}
		if len(buttons) == maxTaskRows {
			hidden += len(section.tasks)
			continue
		}
		builder.WriteString(fmt.Sprintf("\n<b>%s %s</b>\n", section.icon, escape(section.status.Label())))
		for _, task := range section.tasks {
			if len(buttons) == maxTaskRows {
				hidden++
				continue
			}
			builder.WriteString(fmt.Sprintf("#%d %s", task.ID, escape(task.Title)))
			if task.Sender != nil {
				builder.WriteString(fmt.Sprintf(" <i>(от %s)</i>", escape(task.Sender.FullName())))
			}
			builder.WriteByte('\n')
			buttons = append(buttons, statusButtons(task.ID, task.Title, section.status))
		}
	}

	if hidden > 0 {
		builder.WriteString(fmt.Sprintf("\n…и ещё %d. Полный список в личном кабинете.", hidden))
	}

	msg := tgbotapi.NewMessage(chatID, fitMessage(strings.TrimSpace(builder.String())))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	return b.send(msg)
}

func (b *Bot) handleDigest(ctx context.Context, chatID int64) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	text, err := b.reminderSvc.Digest(ctx, *user, b.now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сформировать сводку: %s", escape(err.Error())))
	}
	if text == "" {
		text = "Открытых задач нет. 🎉"
	}
	return b.sendText(chatID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if !strings.HasPrefix(cb.Data, cbStatusPrefix) {
		b.ack(cb.ID, "")
		return nil
	}

	taskID, status, err := parseStatusData(cb.Data)
	if err != nil {
		b.ack(cb.ID, "Некорректная кнопка")
		return nil
	}

	chatID := cb.Message.Chat.ID
	user, err := b.accountSvc.UserByTelegramChat(ctx, chatID)
	if err != nil {
		b.ack(cb.ID, "Чат не привязан")
		if errors.Is(err, service.ErrNotFound) {
			return nil
		}
		return err
	}

	task, err := b.taskSvc.ChangeStatus(ctx, user, taskID, status)
	switch {
	case errors.Is(err, service.ErrNotFound):
		b.ack(cb.ID, "Задача не найдена")
		return nil
	case errors.Is(err, service.ErrForbidden):
		b.ack(cb.ID, "Это не ваша задача")
		return nil
	case errors.Is(err, service.ErrInvalidStatus):
		b.ack(cb.ID, "Неизвестный статус")
		return nil
	case err != nil:
		b.ack(cb.ID, "Ошибка")
		return err
	}

	b.ack(cb.ID, fmt.Sprintf("#%d: %s", task.ID, task.Status.Label()))
	return b.sendText(chatID, fmt.Sprintf("%s Задача #%d «%s» теперь в статусе «%s».",
		statusIcon(task.Status), task.ID, escape(task.Title), escape(task.Status.Label())))
}

// TaskAssigned tells the recipient about a new task when their chat is linked.
func (b *Bot) TaskAssigned(ctx context.Context, task model.Task, recipient model.User) error {
	if recipient.TelegramChatID == nil {
		return nil
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s <b>Новая задача #%d</b>\n", iconAssigned, task.ID))
	builder.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(task.Title)))
	if task.Sender != nil {
		builder.WriteString(fmt.Sprintf("От: %s\n", escape(task.Sender.FullName())))
	}
	builder.WriteString(fmt.Sprintf("Статус: %s\n", escape(task.Status.Label())))
	if text := strings.TrimSpace(task.Text); text != "" {
		builder.WriteString("\n" + escape(shortText(text, 500)))
	}

	msg := tgbotapi.NewMessage(*recipient.TelegramChatID, fitMessage(strings.TrimSpace(builder.String())))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(statusButtons(task.ID, task.Title, task.Status))

	ctx, cancel := context.WithTimeout(ctx, b.notifyTimeout)
	defer cancel()
	return b.sendCtx(ctx, msg)
}

// SendDigests sends every linked user a summary of their open tasks.
func (b *Bot) SendDigests(ctx context.Context) error {
	users, err := b.accountSvc.LinkedUsers(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	sent := 0
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramChatID == nil {
			continue
		}
		text, err := b.reminderSvc.Digest(ctx, user, now)
		if err != nil {
			logging.Logger.WithError(err).WithField("user", user.Username).Error("build digest")
			continue
		}
		if text == "" {
			continue
		}
		if err := b.sendText(*user.TelegramChatID, text); err != nil {
			logging.Logger.WithError(err).WithField("user", user.Username).Error("send digest")
			continue
		}
		sent++
	}
	logging.Logger.WithFields(logrus.Fields{"users": len(users), "sent": sent}).Info("digests sent")
	return nil
}

// linkedUser resolves the account bound to chatID. When there is none it
// tells the chat how to link and reports ok=false with a nil error.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, bool, error) {
	user, err := b.accountSvc.UserByTelegramChat(ctx, chatID)
	if errors.Is(err, service.ErrNotFound) {
		return nil, false, b.sendText(chatID, "Чат не привязан. Отправь /link и код из личного кабинета.")
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, fitMessage(text))
	msg.ParseMode = tgbotapi.ModeHTML
	return b.send(msg)
}

func (b *Bot) send(msg tgbotapi.Chattable) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return b.api.Send(msg)
	})
	return err
}

// sendCtx stops waiting for the send when ctx ends. The send itself
// finishes in the background, bounded by apiTimeout.
func (b *Bot) sendCtx(ctx context.Context, msg tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		done <- b.send(msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send message: %w", ctx.Err())
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logging.Logger.WithError(err).Warn("callback ack")
	}
}

func statusButtons(taskID uint, title string, current model.TaskStatus) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	for _, status := range model.TaskStatuses {
		if status == current {
			continue
		}
		label := fmt.Sprintf("%s #%d · %s", statusIcon(status), taskID, shortText(title, 16))
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d:%s", cbStatusPrefix, taskID, status)))
	}
	return row
}

func parseStatusData(data string) (uint, model.TaskStatus, error) {
	parts := strings.SplitN(strings.TrimPrefix(data, cbStatusPrefix), ":", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed callback %q", data)
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil || id == 0 {
		return 0, "", fmt.Errorf("malformed task id in %q", data)
	}
	return uint(id), model.TaskStatus(parts[1]), nil
}

func statusIcon(status model.TaskStatus) string {
	switch status {
	case model.StatusAssigned:
		return iconAssigned
	case model.StatusWork:
		return iconWork
	case model.StatusDone:
		return iconDone
	default:
		return "•"
	}
}

func shortText(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// fitMessage drops whole trailing lines until text fits in one message.
// Lines are cut whole so HTML tags stay balanced.
func fitMessage(text string) string {
	if utf16Len(text) <= maxMessageLen {
		return text
	}
	const more = "\n…"
	budget := maxMessageLen - utf16Len(more)
	var builder strings.Builder
	used := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if used+n > budget {
			break
		}
		builder.WriteString(line)
		used += n
	}
	return strings.TrimRight(builder.String(), "\n") + more
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func escape(s string) string {
	return html.EscapeString(s)
}
