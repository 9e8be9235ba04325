package repositories

import (
	"context"
	"errors"

	"exchange/internal/models"

	"gorm.io/gorm"
)

// OrderFilter narrows admin listings. Zero values match everything.
type OrderFilter struct {
	UserID uint
	Kind   models.OrderKind
	Status models.OrderStatus
}

// OrderRepository is the read side of orders. Writes happen inside the
// order service's transactions.
type OrderRepository interface {
	List(ctx context.Context, filter OrderFilter, offset, limit int) ([]models.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter, offset, limit int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	// Count and Find each get their own copy of the filtered statement.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Join(ErrDatabaseOperation, err)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, errors.Join(ErrDatabaseOperation, err)
	}
	return orders, total, nil
}
