package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-hub-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrIntegrationNotFound = errors.New("integration not found")

type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.Integration) error
	GetForUser(ctx context.Context, userID, integrationID uuid.UUID) (*models.Integration, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Integration, error)
	RefreshAggregates(ctx context.Context, integrationID uuid.UUID, syncedAt time.Time) (*models.Integration, error)
}

type integrationRepository struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	if integration.Kind == "" {
		integration.Kind = models.IntegrationKindCSV
	}
	return r.db.WithContext(ctx).Create(integration).Error
}

func (r *integrationRepository) GetForUser(ctx context.Context, userID, integrationID uuid.UUID) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", integrationID, userID).Take(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Integration, error) {
	var out []models.Integration
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&out).Error
	return out, err
}

type reviewAggregate struct {
	Count int64
	Avg   *float64
}

// RefreshAggregates recomputes review_count and average_rating from the
// reviews tagged with the integration and stamps last_sync_at.
func (r *integrationRepository) RefreshAggregates(ctx context.Context, integrationID uuid.UUID, syncedAt time.Time) (*models.Integration, error) {
	var agg reviewAggregate
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS count, AVG(rating) AS avg").
		Where("integration_id = ?", integrationID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate reviews: %w", err)
	}

	avg := decimal.Zero
	if agg.Avg != nil {
		avg = decimal.NewFromFloat(*agg.Avg).Round(2)
	}
	synced := syncedAt.UTC()

	res := r.db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", integrationID).Updates(map[string]interface{}{
		"review_count":   agg.Count,
		"average_rating": avg,
		"last_sync_at":   &synced,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrIntegrationNotFound
	}

	var integration models.Integration
	if err := r.db.WithContext(ctx).Take(&integration, "id = ?", integrationID).Error; err != nil {
		return nil, err
	}
	return &integration, nil
}
