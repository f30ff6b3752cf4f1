package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"workdesk/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w: %v", ErrDuplicate, err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateNames overwrites first and last name of an existing user.
func (r *UserRepository) UpdateNames(ctx context.Context, user *model.User, firstName, lastName string) error {
	updates := map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	}
	if err := r.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("update user names: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists reports which of username and email are already taken.
func (r *UserRepository) Exists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	db := r.db.WithContext(ctx).Model(&model.User{})
	var count int64
	if err := db.Where("username = ?", username).Count(&count).Error; err != nil {
		return false, false, fmt.Errorf("count users by username: %w", err)
	}
	usernameTaken = count > 0

	count = 0
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, false, fmt.Errorf("count users by email: %w", err)
	}
	emailTaken = count > 0
	return usernameTaken, emailTaken, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListLinked returns users that have a Telegram chat attached.
func (r *UserRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id IS NOT NULL").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) FindByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByLinkCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_link_code = ?", code).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) SetLinkCode(ctx context.Context, user *model.User, code string) error {
	if err := r.db.WithContext(ctx).Model(user).Update("telegram_link_code", code).Error; err != nil {
		return fmt.Errorf("set link code: %w", err)
	}
	return nil
}

// SetTelegramChat attaches chatID to user, detaching it from any other
// account first. A nil chatID unlinks the user.
func (r *UserRepository) SetTelegramChat(ctx context.Context, user *model.User, chatID *int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if chatID != nil {
			if err := tx.Model(&model.User{}).
				Where("telegram_chat_id = ? AND id <> ?", *chatID, user.ID).
				Update("telegram_chat_id", nil).Error; err != nil {
				return fmt.Errorf("detach chat: %w", err)
			}
		}
		if err := tx.Model(user).Update("telegram_chat_id", chatID).Error; err != nil {
			return fmt.Errorf("set chat: %w", err)
		}
		return nil
	})
}
