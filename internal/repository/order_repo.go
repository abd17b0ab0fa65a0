package repository

import (
	"errors"
	"fmt"
	"time"

	"farmlink/internal/database"
	"farmlink/internal/domain"
	"farmlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) With(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// LockByID reads the order with SELECT ... FOR UPDATE.
func (r *OrderRepository) LockByID(id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// WaiveDeliveryFee zeroes the fee and sets free_delivery_applied. The guard
// on the flag makes a second waiver match no row.
func (r *OrderRepository) WaiveDeliveryFee(o *models.Order) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND free_delivery_applied = ?", o.ID, false).
		UpdateColumns(map[string]interface{}{
			"waived_delivery_fee_cents": o.DeliveryFeeCents,
			"delivery_fee_cents":        0,
			"free_delivery_applied":     true,
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("waive delivery fee of order %s: %w", o.ID, database.ErrConflict)
	}
	o.WaivedDeliveryFeeCents = o.DeliveryFeeCents
	o.DeliveryFeeCents = 0
	o.FreeDeliveryApplied = true
	return nil
}
