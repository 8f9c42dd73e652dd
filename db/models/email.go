package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	ImportJobID    *uuid.UUID `gorm:"type:uuid;index" json:"import_job_id"`
	Recipient      string     `json:"recipient"`
	Subject        string     `json:"subject"`
	Message        string     `gorm:"type:text" json:"message"`
	AttachmentPath string     `json:"attachment_path"`
	Delivered      bool       `json:"delivered"`
	SentAt         time.Time  `json:"sent_at"`
}

func (e *EmailLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
