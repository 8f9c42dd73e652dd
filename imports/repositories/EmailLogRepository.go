package repositories

import (
	"context"

	"review-hub-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailLogRepository interface {
	Create(ctx context.Context, log *models.EmailLog) error
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]models.EmailLog, error)
}

type emailLogRepository struct {
	db *gorm.DB
}

func NewEmailLogRepository(db *gorm.DB) EmailLogRepository {
	return &emailLogRepository{db: db}
}

func (r *emailLogRepository) Create(ctx context.Context, log *models.EmailLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *emailLogRepository) ListForJob(ctx context.Context, jobID uuid.UUID) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	err := r.db.WithContext(ctx).Where("import_job_id = ?", jobID).Order("sent_at ASC").Find(&logs).Error
	return logs, err
}
