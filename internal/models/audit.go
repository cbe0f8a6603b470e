package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestAudit records request metadata only. Documents, prompts and reviews are never stored.
type RequestAudit struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string    `gorm:"type:text" json:"request_id"`
	ClientKey  string    `gorm:"type:text;index" json:"client_key"`
	Feature    string    `gorm:"type:text;index" json:"feature"`
	Method     string    `gorm:"type:text" json:"method"`
	Path       string    `gorm:"type:text" json:"path"`
	Status     int       `gorm:"not null" json:"status"`
	Outcome    string    `gorm:"type:text" json:"outcome"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (RequestAudit) TableName() string {
	return "request_audits"
}

func (a *RequestAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
