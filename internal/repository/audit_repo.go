package repository

import (
	"farmlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(log *models.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.Create(log).Error
}

// ListByResource returns the entries for one resource, newest first.
func (r *AuditLogRepository) ListByResource(resource, resourceID string) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("resource = ? AND resource_id = ?", resource, resourceID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
