package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewIDSource string

const (
	ReviewIDNative    ReviewIDSource = "native"
	ReviewIDSurrogate ReviewIDSource = "surrogate"
)

// Review is the canonical per-user review. (user_id, provider,
// external_review_id) is unique and imports overwrite on conflict.
type Review struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_dedup_key,priority:1" json:"user_id"`
	Provider         string         `gorm:"size:32;not null;uniqueIndex:idx_reviews_dedup_key,priority:2" json:"provider"`
	ExternalReviewID string         `gorm:"size:255;not null;uniqueIndex:idx_reviews_dedup_key,priority:3" json:"external_review_id"`
	IDSource         ReviewIDSource `gorm:"size:16;not null;default:'native'" json:"id_source"`
	IntegrationID    *uuid.UUID     `gorm:"type:uuid;index" json:"integration_id"`
	ImportJobID      *uuid.UUID     `gorm:"type:uuid;index" json:"import_job_id"`
	Rating           int            `gorm:"not null" json:"rating"`
	Text             string         `gorm:"type:text" json:"text"`
	Language         *string        `gorm:"size:35" json:"language"`
	Title            *string        `json:"title"`
	ResponseText     *string        `gorm:"type:text" json:"response_text"`
	ReviewedAt       time.Time      `gorm:"not null;index" json:"reviewed_at"`
	RespondedAt      *time.Time     `json:"responded_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReviewUpsertColumns are overwritten when an imported row hits an existing key.
var ReviewUpsertColumns = []string{
	"id_source",
	"integration_id",
	"import_job_id",
	"rating",
	"text",
	"language",
	"title",
	"response_text",
	"reviewed_at",
	"responded_at",
	"updated_at",
}
