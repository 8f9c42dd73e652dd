package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"review-hub-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertResult classifies the rows of one Upsert call.
type UpsertResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Affected is the number of rows written.
func (r UpsertResult) Affected() int { return r.Inserted + r.Updated }

func (r UpsertResult) Add(o UpsertResult) UpsertResult {
	return UpsertResult{
		Inserted:  r.Inserted + o.Inserted,
		Updated:   r.Updated + o.Updated,
		Unchanged: r.Unchanged + o.Unchanged,
	}
}

type ReviewRepository interface {
	Upsert(ctx context.Context, reviews []models.Review) (UpsertResult, error)
	GetFilteredReviews(ctx context.Context, userID uuid.UUID, filters map[string]string, limit, offset int) ([]models.Review, int64, error)
	GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Review, error)
	CountForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Ping(ctx context.Context) error
	EachBatch(ctx context.Context, batchSize int, fn func([]models.Review) error) error
}

type reviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

var dedupColumns = []clause.Column{{Name: "user_id"}, {Name: "provider"}, {Name: "external_review_id"}}

// Upsert writes reviews in one transaction keyed on (user_id, provider,
// external_review_id). An existing row is overwritten with every content
// column of the incoming one, rows identical in content are left alone. On
// return each review carries the id of its stored row.
func (r *reviewRepository) Upsert(ctx context.Context, reviews []models.Review) (UpsertResult, error) {
	var res UpsertResult
	if len(reviews) == 0 {
		return res, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range reviews {
			in := &reviews[i]
			in.ReviewedAt = in.ReviewedAt.UTC().Truncate(time.Microsecond)
			if in.RespondedAt != nil {
				t := in.RespondedAt.UTC().Truncate(time.Microsecond)
				in.RespondedAt = &t
			}

			var existing models.Review
			err := tx.Where("user_id = ? AND provider = ? AND external_review_id = ?", in.UserID, in.Provider, in.ExternalReviewID).
				Take(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if in.ID == uuid.Nil {
					in.ID = uuid.New()
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   dedupColumns,
					DoUpdates: clause.AssignmentColumns(models.ReviewUpsertColumns),
				}).Create(in).Error; err != nil {
					return fmt.Errorf("insert review %s/%s: %w", in.Provider, in.ExternalReviewID, err)
				}
				res.Inserted++
			case err != nil:
				return fmt.Errorf("lookup review %s/%s: %w", in.Provider, in.ExternalReviewID, err)
			default:
				in.ID = existing.ID
				in.CreatedAt = existing.CreatedAt
				if sameContent(&existing, in) {
					res.Unchanged++
					continue
				}
				if err := tx.Model(&models.Review{}).Where("id = ?", existing.ID).Updates(overwrite(in)).Error; err != nil {
					return fmt.Errorf("update review %s: %w", existing.ID, err)
				}
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func overwrite(in *models.Review) map[string]interface{} {
	return map[string]interface{}{
		"id_source":      in.IDSource,
		"integration_id": in.IntegrationID,
		"import_job_id":  in.ImportJobID,
		"rating":         in.Rating,
		"text":           in.Text,
		"language":       in.Language,
		"title":          in.Title,
		"response_text":  in.ResponseText,
		"reviewed_at":    in.ReviewedAt,
		"responded_at":   in.RespondedAt,
		"updated_at":     time.Now().UTC(),
	}
}

func sameContent(a, b *models.Review) bool {
	return a.Rating == b.Rating &&
		a.Text == b.Text &&
		a.IDSource == b.IDSource &&
		equalString(a.Language, b.Language) &&
		equalString(a.Title, b.Title) &&
		equalString(a.ResponseText, b.ResponseText) &&
		equalUUID(a.IntegrationID, b.IntegrationID) &&
		a.ReviewedAt.Equal(b.ReviewedAt) &&
		equalTime(a.RespondedAt, b.RespondedAt)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// GetFilteredReviews supports provider, integration_id, min_rating, max_rating,
// from and to (YYYY-MM-DD) filters.
func (r *reviewRepository) GetFilteredReviews(ctx context.Context, userID uuid.UUID, filters map[string]string, limit, offset int) ([]models.Review, int64, error) {
	var reviews []models.Review
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("user_id = ?", userID)

	if v := filters["provider"]; v != "" {
		query = query.Where("provider = ?", v)
	}
	if v := filters["integration_id"]; v != "" {
		query = query.Where("integration_id = ?", v)
	}
	if v, err := strconv.Atoi(filters["min_rating"]); err == nil {
		query = query.Where("rating >= ?", v)
	}
	if v, err := strconv.Atoi(filters["max_rating"]); err == nil {
		query = query.Where("rating <= ?", v)
	}
	if t, err := time.Parse("2006-01-02", filters["from"]); err == nil {
		query = query.Where("reviewed_at >= ?", t)
	}
	if t, err := time.Parse("2006-01-02", filters["to"]); err == nil {
		query = query.Where("reviewed_at < ?", t.AddDate(0, 0, 1))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Limit(limit).Offset(offset).Order("reviewed_at DESC").Find(&reviews).Error
	return reviews, total, err
}

func (r *reviewRepository) GetByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	if len(ids) == 0 {
		return reviews, nil
	}
	err := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Review{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *reviewRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// EachBatch walks every stored review in primary key order.
func (r *reviewRepository) EachBatch(ctx context.Context, batchSize int, fn func([]models.Review) error) error {
	var batch []models.Review
	return r.db.WithContext(ctx).Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}
