package repositories

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

type AuditRepository interface {
	Create(audit *models.RequestAudit) error
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Create implements AuditRepository.
func (r *auditRepository) Create(audit *models.RequestAudit) error {
	if err := r.db.Create(audit).Error; err != nil {
		return fmt.Errorf("failed to create request audit: %w", err)
	}
	return nil
}

// DeleteOlderThan implements AuditRepository.
func (r *auditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.RequestAudit{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune request audits: %w", result.Error)
	}
	return result.RowsAffected, nil
}
