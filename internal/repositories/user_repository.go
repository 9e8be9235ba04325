package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"exchange/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrDatabaseOperation = errors.New("database operation failed")
)

// UserRepository defines the user operations the auth and order flows need.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	RecordLogin(ctx context.Context, id uint, ip string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrUsernameTaken
		}
		return errors.Join(ErrDatabaseOperation, err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return &user, nil
}

func (r *userRepository) RecordLogin(ctx context.Context, id uint, ip string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"last_login_at": now, "last_login_ip": ip}).Error
	if err != nil {
		return errors.Join(ErrDatabaseOperation, err)
	}
	return nil
}

func mapNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Join(ErrDatabaseOperation, err)
}
