package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workdesk/internal/auth"
	"workdesk/internal/model"
	"workdesk/internal/repository"
)

const (
	usernameMaxLen    = 150
	passwordMinLength = 8
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

// RegistrationInput is the sign-up form payload.
type RegistrationInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password1 string
	Password2 string
}

// AccountService registers and authenticates users and links Telegram chats.
type AccountService struct {
	users      *repository.UserRepository
	bcryptCost int
}

// NewAccountService builds the service. bcryptCost <= 0 uses bcrypt's default.
func NewAccountService(users *repository.UserRepository, bcryptCost int) *AccountService {
	return &AccountService{users: users, bcryptCost: bcryptCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates input and creates the user.
func (s *AccountService) Register(ctx context.Context, in RegistrationInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	verr := &ValidationError{}
	switch {
	case in.Username == "":
		verr.Add("username", "Обязательное поле.")
	case utf8.RuneCountInString(in.Username) > usernameMaxLen:
		verr.Add("username", fmt.Sprintf("Не более %d символов.", usernameMaxLen))
	case !usernamePattern.MatchString(in.Username):
		verr.Add("username", "Допустимы только буквы, цифры и символы @/./+/-/_.")
	}

	if in.Email == "" {
		verr.Add("email", "Обязательное поле.")
	} else if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		verr.Add("email", "Введите правильный адрес электронной почты.")
	}

	if in.FirstName == "" {
		verr.Add("firstName", "Обязательное поле.")
	}
	if in.LastName == "" {
		verr.Add("lastName", "Обязательное поле.")
	}

	switch {
	case in.Password1 == "":
		verr.Add("password1", "Обязательное поле.")
	case utf8.RuneCountInString(in.Password1) < passwordMinLength:
		verr.Add("password1", fmt.Sprintf("Пароль должен содержать не менее %d символов.", passwordMinLength))
	case isAllDigits(in.Password1):
		verr.Add("password1", "Пароль не может состоять только из цифр.")
	case strings.EqualFold(in.Password1, in.Username):
		verr.Add("password1", "Пароль слишком похож на имя пользователя.")
	}
	if in.Password2 == "" {
		verr.Add("password2", "Обязательное поле.")
	} else if in.Password1 != in.Password2 {
		verr.Add("password2", "Пароли не совпадают.")
	}

	if err := s.checkTaken(ctx, verr, in.Username, in.Email); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password1, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     hash,
		TelegramLinkCode: uuid.NewString(),
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// a concurrent registration took the name or email after the check
		verr = &ValidationError{}
		if err := s.checkTaken(ctx, verr, in.Username, in.Email); err != nil {
			return nil, err
		}
		if len(verr.Fields) == 0 {
			verr.Add("username", msgUsernameTaken)
		}
		return nil, verr
	}
	if err := s.users.UpdateNames(ctx, &user, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	return &user, nil
}

const (
	msgUsernameTaken = "Пользователь с таким именем уже существует."
	msgEmailTaken    = "Пользователь с таким e-mail уже существует."
)

func (s *AccountService) checkTaken(ctx context.Context, verr *ValidationError, username, email string) error {
	usernameTaken, emailTaken, err := s.users.Exists(ctx, username, email)
	if err != nil {
		return err
	}
	if usernameTaken {
		verr.Add("username", msgUsernameTaken)
	}
	if emailTaken {
		verr.Add("email", msgEmailTaken)
	}
	return nil
}

// SignIn authenticates by email and password. An unknown email yields
// ErrUnknownEmail, a wrong password ErrInvalidCredentials.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownEmail
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) UserByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

func (s *AccountService) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %q", username))
	}
	return user, nil
}

// Users lists every account, e.g. for the recipient picker.
func (s *AccountService) Users(ctx context.Context) ([]model.User, error) {
	return s.users.ListAll(ctx)
}

// EnsureLinkCode returns the user's Telegram link code, creating one if missing.
func (s *AccountService) EnsureLinkCode(ctx context.Context, user *model.User) (string, error) {
	if user.TelegramLinkCode != "" {
		return user.TelegramLinkCode, nil
	}
	code := uuid.NewString()
	if err := s.users.SetLinkCode(ctx, user, code); err != nil {
		return "", err
	}
	user.TelegramLinkCode = code
	return code, nil
}

// LinkTelegram attaches chatID to the user owning code and rotates the code.
func (s *AccountService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty link code", ErrNotFound)
	}
	user, err := s.users.FindByLinkCode(ctx, code)
	if err != nil {
		return nil, notFound(err, "link code")
	}
	if err := s.users.SetTelegramChat(ctx, user, &chatID); err != nil {
		return nil, err
	}
	user.TelegramChatID = &chatID
	next := uuid.NewString()
	if err := s.users.SetLinkCode(ctx, user, next); err != nil {
		return nil, err
	}
	user.TelegramLinkCode = next
	return user, nil
}

func (s *AccountService) UnlinkTelegram(ctx context.Context, user *model.User) error {
	if err := s.users.SetTelegramChat(ctx, user, nil); err != nil {
		return err
	}
	user.TelegramChatID = nil
	return nil
}

func (s *AccountService) UserByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := s.users.FindByTelegramChatID(ctx, chatID)
	if err != nil {
		return nil, notFound(err, "telegram chat")
	}
	return user, nil
}

// LinkedUsers returns users that receive Telegram messages.
func (s *AccountService) LinkedUsers(ctx context.Context) ([]model.User, error) {
	return s.users.ListLinked(ctx)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
