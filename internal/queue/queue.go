package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueProcessBatch    = "queue:process_batch"
	QueueProcessItem     = "queue:process_item"
	QueueRegenerateScene = "queue:regenerate_scene"
	QueueRenderItem      = "queue:render_item"
)

type Queue struct {
	client *redis.Client
}

// Job is the envelope pushed onto the Redis lists. Exactly one of the
// optional IDs is set depending on Type.
type Job struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"type"`
	BatchID   uuid.UUID         `json:"batch_id"`
	ItemID    *uuid.UUID        `json:"item_id,omitempty"`
	SceneID   *uuid.UUID        `json:"scene_id,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty"` // provider / prompt / format
	CreatedAt time.Time         `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueProcessBatch schedules a whole-batch run.
func (q *Queue) EnqueueProcessBatch(ctx context.Context, batchID uuid.UUID) error {
	job := &Job{
		ID:      uuid.New(),
		Type:    "process_batch",
		BatchID: batchID,
	}
	return q.Enqueue(ctx, QueueProcessBatch, job)
}

// EnqueueProcessItem schedules regeneration of a single VideoItem.
func (q *Queue) EnqueueProcessItem(ctx context.Context, batchID, itemID uuid.UUID) error {
	job := &Job{
		ID:      uuid.New(),
		Type:    "process_item",
		BatchID: batchID,
		ItemID:  &itemID,
	}
	return q.Enqueue(ctx, QueueProcessItem, job)
}

// EnqueueRegenerateScene schedules regeneration of one scene's content or
// animation. overrides may carry "target" ("content"|"animation"),
// "provider" and "prompt".
func (q *Queue) EnqueueRegenerateScene(ctx context.Context, batchID, sceneID uuid.UUID, overrides map[string]string) error {
	job := &Job{
		ID:        uuid.New(),
		Type:      "regenerate_scene",
		BatchID:   batchID,
		SceneID:   &sceneID,
		Overrides: overrides,
	}
	return q.Enqueue(ctx, QueueRegenerateScene, job)
}

// EnqueueRenderItem schedules rendering of an item; overrides["format"]
// limits the run to one format.
func (q *Queue) EnqueueRenderItem(ctx context.Context, batchID, itemID uuid.UUID, format string) error {
	job := &Job{
		ID:      uuid.New(),
		Type:    "render_item",
		BatchID: batchID,
		ItemID:  &itemID,
	}
	if format != "" {
		job.Overrides = map[string]string{"format": format}
	}
	return q.Enqueue(ctx, QueueRenderItem, job)
}
