// Package order runs the order state machine for SEPA deposits and
// USDC/USDT purchases together with the balance effects of each transition.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"exchange/internal/config"
	apperrors "exchange/internal/errors"
	"exchange/internal/metrics"
	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/services/notification"
	"exchange/internal/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound     = apperrors.NotFound("Order not found")
	ErrConcurrentUpdate  = apperrors.New(apperrors.CodeConflict, "Order was modified concurrently, retry", http.StatusConflict)
	ErrInvalidTransition = apperrors.Validation("Invalid status").With("fields", []string{"status"})
)

// policy holds the per-kind amount bounds, rate and currencies.
type policy struct {
	min, max       decimal.Decimal
	rate           decimal.Decimal
	targetCurrency string
	amountField    string
}

type CreateRequest struct {
	UserID      uint
	Kind        models.OrderKind
	Amount      decimal.Decimal
	Destination string
}

type TransitionRequest struct {
	OrderID uint
	// Kind, when set, must match the stored order.
	Kind   models.OrderKind
	Status models.OrderStatus
	TxHash string
	Actor  string
}

type Service struct {
	db             *gorm.DB
	orders         repositories.OrderRepository
	policies       map[models.OrderKind]policy
	commissionRate decimal.Decimal
	notifier       notification.Publisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

type Option func(*Service)

func WithNotifier(p notification.Publisher) Option {
	return func(s *Service) { s.notifier = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, orders repositories.OrderRepository, cfg config.OrdersConfig, opts ...Option) *Service {
	s := &Service{
		db:     db,
		orders: orders,
		policies: map[models.OrderKind]policy{
			models.OrderKindUSDC: {min: cfg.USDCMin, max: cfg.USDCMax, rate: cfg.USDCRate, targetCurrency: "USDC", amountField: "amountUsd"},
			models.OrderKindUSDT: {min: cfg.USDTMin, max: cfg.USDTMax, rate: cfg.USDTRate, targetCurrency: "USDT", amountField: "amountUsd"},
			models.OrderKindSEPA: {min: cfg.SEPAMin, max: cfg.SEPAMax, rate: cfg.SEPARate, targetCurrency: "EUR", amountField: "amountEur"},
		},
		commissionRate: cfg.CommissionRate,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create debits the user and inserts a pending order in one transaction.
// An insufficient balance aborts before anything is written.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Order, error) {
	p, ok := s.policies[req.Kind]
	if !ok {
		return nil, apperrors.Validation("Unsupported order kind")
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(p.min) || req.Amount.GreaterThan(p.max) {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid request: %s must be between %s and %s", p.amountField, p.min, p.max)).
			With("fields", []string{p.amountField})
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := debit(tx, req.UserID, req.Amount)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:               user.ID,
			Kind:                 req.Kind,
			AmountSourceCurrency: req.Amount,
			AmountTargetCurrency: req.Amount.Mul(p.rate).Round(8),
			ExchangeRate:         p.rate,
			SourceCurrency:       user.BalanceCurrency,
			TargetCurrency:       p.targetCurrency,
			Destination:          strings.TrimSpace(req.Destination),
			Status:               models.OrderStatusPending,
		}
		if err := s.applyCommission(tx, user, order); err != nil {
			return err
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.As(err)
	}

	s.metrics.OrderCreated(string(order.Kind))
	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"kind", order.Kind,
		"user_id", order.UserID,
		"amount", order.AmountSourceCurrency.String(),
	)
	s.publish(ctx, notification.EventOrderCreated, order, "")
	return order, nil
}

// applyCommission records the referring contractor's commission on the
// order. The commission is informational; nothing is credited here.
func (s *Service) applyCommission(tx *gorm.DB, user *models.User, order *models.Order) error {
	if user.ReferredBy == nil || *user.ReferredBy == "" {
		return nil
	}
	var contractor models.User
	err := tx.Where("referral_code = ?", *user.ReferredBy).First(&contractor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup contractor: %w", err)
	}
	if !contractor.IsContractor.Bool() || contractor.ID == user.ID {
		return nil
	}

	code := *user.ReferredBy
	order.ReferralCode = &code
	order.ContractorID = &contractor.ID
	order.ContractorCommission = order.AmountSourceCurrency.Mul(s.commissionRate).Round(8)
	return nil
}

// UpdateStatus moves an order to processing, successful or failed. Setting
// the current status again is a no-op. Terminal orders cannot move.
func (s *Service) UpdateStatus(ctx context.Context, req TransitionRequest) (*models.Order, error) {
	switch req.Status {
	case models.OrderStatusProcessing, models.OrderStatusSuccessful, models.OrderStatusFailed:
	default:
		return nil, ErrInvalidTransition
	}

	var (
		order    models.Order
		previous models.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, req.OrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if req.Kind != "" && order.Kind != req.Kind {
			return ErrOrderNotFound
		}

		previous = order.Status
		if previous == req.Status {
			return nil
		}
		if previous.Terminal() {
			return apperrors.Validation(fmt.Sprintf("Order is already %s", previous))
		}

		now := s.now().UTC()
		updates := map[string]any{"status": req.Status, "updated_at": now}
		if req.Status == models.OrderStatusSuccessful {
			hash := strings.TrimSpace(req.TxHash)
			if hash == "" {
				if hash, err = utils.GenerateTxHash(now); err != nil {
					return fmt.Errorf("generate tx hash: %w", err)
				}
			}
			updates["tx_hash"] = hash
			updates["completed_at"] = now
		}

		// Conditional on the status read above: a concurrent transition
		// against the same snapshot matches no row.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, previous).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update order status: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrConcurrentUpdate
		}

		if req.Status == models.OrderStatusFailed {
			if err := credit(tx, order.UserID, order.AmountSourceCurrency); err != nil {
				return err
			}
		}
		if err := tx.First(&order, order.ID).Error; err != nil {
			return fmt.Errorf("reload order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.As(err)
	}

	if previous == order.Status {
		return &order, nil
	}

	s.metrics.OrderTransition(string(order.Kind), string(order.Status))
	if order.Status == models.OrderStatusFailed {
		s.metrics.OrderRefunded(string(order.Kind))
	}
	s.logger.InfoContext(ctx, "order status changed",
		"order_id", order.ID,
		"kind", order.Kind,
		"from", previous,
		"to", order.Status,
		"actor", req.Actor,
	)
	s.publish(ctx, notification.EventOrderStatusChanged, &order, previous)
	return &order, nil
}

func (s *Service) List(ctx context.Context, filter repositories.OrderFilter, offset, limit int) ([]models.Order, int64, error) {
	orders, total, err := s.orders.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return orders, total, nil
}

// publish runs after commit. A full queue drops the event; the order stands.
func (s *Service) publish(ctx context.Context, eventType string, order *models.Order, previous models.OrderStatus) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"orderId":              order.ID,
		"userId":               order.UserID,
		"kind":                 order.Kind,
		"status":               order.Status,
		"amountSourceCurrency": order.AmountSourceCurrency.String(),
		"amountTargetCurrency": order.AmountTargetCurrency.String(),
		"targetCurrency":       order.TargetCurrency,
	}
	if previous != "" {
		payload["previousStatus"] = previous
	}
	if order.TxHash != nil {
		payload["txHash"] = *order.TxHash
	}
	s.notifier.Publish(ctx, eventType, payload)
}
