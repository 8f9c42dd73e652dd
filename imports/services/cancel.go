package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CancelSignal carries cancellation requests to the worker running a job.
type CancelSignal interface {
	RequestCancel(ctx context.Context, jobID uuid.UUID) error
	IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error)
	Clear(ctx context.Context, jobID uuid.UUID) error
}

type RedisCancelSignal struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCancelSignal(client *redis.Client, ttl time.Duration) *RedisCancelSignal {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCancelSignal{client: client, ttl: ttl}
}

func cancelKey(jobID uuid.UUID) string {
	return "import_job:cancel:" + jobID.String()
}

func (s *RedisCancelSignal) RequestCancel(ctx context.Context, jobID uuid.UUID) error {
	return s.client.Set(ctx, cancelKey(jobID), "1", s.ttl).Err()
}

func (s *RedisCancelSignal) IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	err := s.client.Get(ctx, cancelKey(jobID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisCancelSignal) Clear(ctx context.Context, jobID uuid.UUID) error {
	return s.client.Del(ctx, cancelKey(jobID)).Err()
}
