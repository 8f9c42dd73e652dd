package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrStoreUnavailable means the review store is rejecting calls. Import jobs
// treat it as fatal instead of recording a row error.
var ErrStoreUnavailable = errors.New("review store unavailable")

// BreakerSettings tunes the guard around review writes.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{Name: "review-store", ConsecutiveFailures: 5, Timeout: 30 * time.Second}
}

// GuardedReviewRepository trips after consecutive write failures so that a
// job stops instead of turning every remaining row into a storage error.
type GuardedReviewRepository struct {
	ReviewRepository
	cb *gobreaker.CircuitBreaker[UpsertResult]
}

func NewGuardedReviewRepository(inner ReviewRepository, s BreakerSettings) *GuardedReviewRepository {
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[UpsertResult](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Logger.Warn("[CIRCUIT BREAKER] State transition",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &GuardedReviewRepository{ReviewRepository: inner, cb: cb}
}

// Upsert passes through while the breaker is closed. Once open every call
// fails with ErrStoreUnavailable.
func (g *GuardedReviewRepository) Upsert(ctx context.Context, reviews []models.Review) (UpsertResult, error) {
	res, err := g.cb.Execute(func() (UpsertResult, error) {
		return g.ReviewRepository.Upsert(ctx, reviews)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return UpsertResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res, err
}

// State exposes the breaker state for status checks.
func (g *GuardedReviewRepository) State() gobreaker.State {
	return g.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
