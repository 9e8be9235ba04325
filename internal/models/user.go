package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	Username          string          `gorm:"uniqueIndex;not null" json:"username"`
	Email             string          `gorm:"index" json:"email,omitempty"`
	PasswordHash      string          `gorm:"not null" json:"-"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	BalanceCurrency   string          `gorm:"size:3;not null;default:'EUR'" json:"balanceCurrency"`
	IsAdmin           Bool            `gorm:"not null;default:false" json:"isAdmin"`
	IsEmployee        Bool            `gorm:"not null;default:false" json:"isEmployee"`
	IsContractor      Bool            `gorm:"not null;default:false" json:"isContractor"`
	ReferralCode      *string         `gorm:"uniqueIndex" json:"referralCode,omitempty"`
	ReferredBy        *string         `gorm:"index" json:"referredBy,omitempty"`
	TwoFactorEnabled  Bool            `gorm:"not null;default:false" json:"twoFactorEnabled"`
	TwoFactorVerified Bool            `gorm:"not null;default:false" json:"twoFactorVerified"`
	LastLoginAt       *time.Time      `json:"lastLoginAt,omitempty"`
	LastLoginIP       string          `json:"-"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// PublicUser is the sanitized user payload returned to clients.
type PublicUser struct {
	ID                uint            `json:"id"`
	Username          string          `json:"username"`
	Email             string          `json:"email,omitempty"`
	Balance           decimal.Decimal `json:"balance"`
	BalanceCurrency   string          `json:"balanceCurrency"`
	IsAdmin           bool            `json:"isAdmin"`
	IsEmployee        bool            `json:"isEmployee"`
	IsContractor      bool            `json:"isContractor"`
	ReferralCode      *string         `json:"referralCode,omitempty"`
	TwoFactorEnabled  bool            `json:"twoFactorEnabled"`
	TwoFactorVerified bool            `json:"twoFactorVerified"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Balance:           u.Balance,
		BalanceCurrency:   u.BalanceCurrency,
		IsAdmin:           u.IsAdmin.Bool(),
		IsEmployee:        u.IsEmployee.Bool(),
		IsContractor:      u.IsContractor.Bool(),
		ReferralCode:      u.ReferralCode,
		TwoFactorEnabled:  u.TwoFactorEnabled.Bool(),
		TwoFactorVerified: u.TwoFactorVerified.Bool(),
	}
}
