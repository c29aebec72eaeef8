package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tubeaudio/backend/internal/models"
)

const (
	// QueueExtractions is the Redis list key for audio extraction jobs.
	QueueExtractions = "worker:extractions"
	// QueueFailed keeps the most recent failed extractions for operators. Failed jobs are never retried.
	QueueFailed = "worker:extractions:failed"
	// MaxFailed caps QueueFailed.
	MaxFailed = 1000
	// DequeueTimeout bounds one BLPOP so the consumer can notice shutdown.
	DequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeAudioExtraction JobType = "audio_extraction"
)

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Error     string          `json:"error,omitempty"`
	FailedAt  *time.Time      `json:"failed_at,omitempty"`
}

// Queue enqueues and dequeues extraction jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Submit enqueues an extraction job and returns without waiting for it.
func (q *Queue) Submit(ctx context.Context, job models.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeAudioExtraction,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueExtractions, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued extraction job", zap.String("job_id", env.ID), zap.String("token", job.Token))
	return nil
}

// Dequeue waits up to DequeueTimeout for a job. It returns (nil, nil) when nothing arrived
// or the entry could not be decoded.
func (q *Queue) Dequeue(ctx context.Context) (*models.Job, error) {
	result, err := q.client.BLPop(ctx, DequeueTimeout, QueueExtractions).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var env Job
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		q.logger.Warn("invalid job envelope", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	if env.Type != JobTypeAudioExtraction {
		q.logger.Warn("unknown job type", zap.String("job_id", env.ID), zap.String("type", string(env.Type)))
		return nil, nil
	}
	var job models.Job
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("job_id", env.ID), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Fail records a failed job on the capped failed list.
func (q *Queue) Fail(ctx context.Context, job models.Job, cause error) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now()
	env := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeAudioExtraction,
		Payload:   body,
		CreatedAt: job.CreatedAt,
		FailedAt:  &now,
	}
	if cause != nil {
		env.Error = cause.Error()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, QueueFailed, raw)
	pipe.LTrim(ctx, QueueFailed, 0, MaxFailed-1)
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("failed-list push failed", zap.Error(err), zap.String("token", job.Token))
		return err
	}
	q.logger.Warn("job moved to failed list", zap.String("token", job.Token))
	return nil
}
