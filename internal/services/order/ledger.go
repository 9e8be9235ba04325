package order

import (
	"errors"
	"fmt"

	apperrors "exchange/internal/errors"
	"exchange/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Balance mutations only run on a transaction handle that also writes the
// paired order row. The user row is re-read under a row lock each time.

func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

func setBalance(tx *gorm.DB, userID uint, balance decimal.Decimal) error {
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("balance", balance).Error; err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// debit takes amount from the user's balance or fails with
// ErrInsufficientBalance before anything is written.
func debit(tx *gorm.DB, userID uint, amount decimal.Decimal) (*models.User, error) {
	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(amount) {
		return nil, apperrors.ErrInsufficientBalance
	}
	user.Balance = user.Balance.Sub(amount)
	if err := setBalance(tx, userID, user.Balance); err != nil {
		return nil, err
	}
	return user, nil
}

func credit(tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	user, err := lockUser(tx, userID)
	if err != nil {
		return err
	}
	return setBalance(tx, userID, user.Balance.Add(amount))
}
