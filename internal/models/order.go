package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderKind string

const (
	OrderKindSEPA OrderKind = "sepa"
	OrderKindUSDC OrderKind = "usdc"
	OrderKindUSDT OrderKind = "usdt"
)

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindSEPA, OrderKindUSDC, OrderKindUSDT:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSuccessful OrderStatus = "successful"
	OrderStatusFailed     OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusSuccessful, OrderStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusSuccessful || s == OrderStatusFailed
}

// Order is the single table behind SEPA deposits and USDC/USDT purchases.
type Order struct {
	ID                   uint            `gorm:"primarykey" json:"id"`
	UserID               uint            `gorm:"index;not null" json:"userId"`
	Kind                 OrderKind       `gorm:"size:8;index;not null" json:"kind"`
	AmountSourceCurrency decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amountSourceCurrency"`
	AmountTargetCurrency decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amountTargetCurrency"`
	ExchangeRate         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchangeRate"`
	SourceCurrency       string          `gorm:"size:8;not null" json:"sourceCurrency"`
	TargetCurrency       string          `gorm:"size:8;not null" json:"targetCurrency"`
	Destination          string          `gorm:"size:64;not null" json:"destination"`
	Status               OrderStatus     `gorm:"size:16;index;not null;default:'pending'" json:"status"`
	TxHash               *string         `gorm:"size:128" json:"txHash"`
	ReferralCode         *string         `gorm:"size:64" json:"referralCode,omitempty"`
	ContractorID         *uint           `gorm:"index" json:"contractorId,omitempty"`
	ContractorCommission decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"contractorCommission"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
	CompletedAt          *time.Time      `json:"completedAt"`
}
