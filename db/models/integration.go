package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type IntegrationKind string

const (
	IntegrationKindCSV IntegrationKind = "csv"
)

// Integration is a review source owned by a user. Imports refresh its
// aggregates.
type Integration struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string          `gorm:"not null" json:"name"`
	Kind          IntegrationKind `gorm:"size:16;not null;default:'csv'" json:"kind"`
	ReviewCount   int64           `gorm:"default:0" json:"review_count"`
	AverageRating decimal.Decimal `gorm:"type:decimal(3,2);default:0" json:"average_rating"`
	LastSyncAt    *time.Time      `json:"last_sync_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Integration) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
