package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/models"
)

// Mirror keeps a best-effort copy of job snapshots in Redis so status
// polls survive a process restart and sibling instances can answer them.
// The in-memory registry stays authoritative; mirror failures are logged
// and never fail the pipeline.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

const jobKeyPrefix = "render:job:"

func NewMirror(redisURL string, ttl time.Duration) (*Mirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Mirror{client: client, ttl: ttl}, nil
}

// Put writes a job snapshot. Safe to call on a nil mirror.
func (m *Mirror) Put(ctx context.Context, job models.RenderJob) {
	if m == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("[Mirror] marshal job %s: %v", job.ID, err)
		return
	}
	if err := m.client.Set(ctx, jobKeyPrefix+job.ID.String(), data, m.ttl).Err(); err != nil {
		log.Printf("[Mirror] put job %s: %v", job.ID, err)
	}
}

// Get fetches a job snapshot, returning false on miss or any error.
// Safe to call on a nil mirror.
func (m *Mirror) Get(ctx context.Context, id uuid.UUID) (models.RenderJob, bool) {
	if m == nil {
		return models.RenderJob{}, false
	}
	data, err := m.client.Get(ctx, jobKeyPrefix+id.String()).Bytes()
	if err == redis.Nil {
		return models.RenderJob{}, false
	}
	if err != nil {
		log.Printf("[Mirror] get job %s: %v", id, err)
		return models.RenderJob{}, false
	}
	var job models.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		log.Printf("[Mirror] unmarshal job %s: %v", id, err)
		return models.RenderJob{}, false
	}
	return job, true
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
