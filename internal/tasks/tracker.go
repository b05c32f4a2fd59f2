// Package tasks tracks long-running engine jobs so operators can observe
// progress and cancel a run mid-flight.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// ErrTaskNotFound is returned when a task id has no live status record.
var ErrTaskNotFound = errors.New("task not found")

// Tracker persists live task status rows. A task record exists only while
// the job is running; the runner deletes it on completion, success or not.
type Tracker interface {
	Put(ctx context.Context, status models.TaskStatus) error
	SetProgress(ctx context.Context, taskID string, progress float64) error
	Get(ctx context.Context, taskID string) (models.TaskStatus, error)
	GetByName(ctx context.Context, name string) (models.TaskStatus, error)
	List(ctx context.Context) ([]models.TaskStatus, error)
	Delete(ctx context.Context, taskID string) error
}

const redisKeyPrefix = "hunthawk:task:"

// taskTTL bounds orphaned records after an unclean shutdown.
const taskTTL = 24 * time.Hour

// RedisTracker stores task status as JSON values under a shared key prefix,
// so multiple engine instances see each other's running jobs.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Put(ctx context.Context, status models.TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal task status: %w", err)
	}
	if err := t.client.Set(ctx, redisKeyPrefix+status.TaskID, data, taskTTL).Err(); err != nil {
		return fmt.Errorf("failed to save task status: %w", err)
	}
	return nil
}

func (t *RedisTracker) SetProgress(ctx context.Context, taskID string, progress float64) error {
	status, err := t.Get(ctx, taskID)
	if err != nil {
		return err
	}
	status.Progress = progress
	return t.Put(ctx, status)
}

func (t *RedisTracker) Get(ctx context.Context, taskID string) (models.TaskStatus, error) {
	data, err := t.client.Get(ctx, redisKeyPrefix+taskID).Result()
	if errors.Is(err, redis.Nil) {
		return models.TaskStatus{}, ErrTaskNotFound
	}
	if err != nil {
		return models.TaskStatus{}, fmt.Errorf("failed to get task status: %w", err)
	}
	var status models.TaskStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return models.TaskStatus{}, fmt.Errorf("failed to unmarshal task status: %w", err)
	}
	return status, nil
}

func (t *RedisTracker) GetByName(ctx context.Context, name string) (models.TaskStatus, error) {
	all, err := t.List(ctx)
	if err != nil {
		return models.TaskStatus{}, err
	}
	for _, status := range all {
		if status.Name == name {
			return status, nil
		}
	}
	return models.TaskStatus{}, ErrTaskNotFound
}

func (t *RedisTracker) List(ctx context.Context) ([]models.TaskStatus, error) {
	keys, err := t.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list task keys: %w", err)
	}
	statuses := make([]models.TaskStatus, 0, len(keys))
	for _, key := range keys {
		data, err := t.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get task status: %w", err)
		}
		var status models.TaskStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses, nil
}

func (t *RedisTracker) Delete(ctx context.Context, taskID string) error {
	if err := t.client.Del(ctx, redisKeyPrefix+taskID).Err(); err != nil {
		return fmt.Errorf("failed to delete task status: %w", err)
	}
	return nil
}

// MemoryTracker is a process-local Tracker for single-instance deployments
// and tests.
type MemoryTracker struct {
	mu    sync.RWMutex
	tasks map[string]models.TaskStatus
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{tasks: make(map[string]models.TaskStatus)}
}

func (t *MemoryTracker) Put(ctx context.Context, status models.TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[status.TaskID] = status
	return nil
}

func (t *MemoryTracker) SetProgress(ctx context.Context, taskID string, progress float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok := t.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	status.Progress = progress
	t.tasks[taskID] = status
	return nil
}

func (t *MemoryTracker) Get(ctx context.Context, taskID string) (models.TaskStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.tasks[taskID]
	if !ok {
		return models.TaskStatus{}, ErrTaskNotFound
	}
	return status, nil
}

func (t *MemoryTracker) GetByName(ctx context.Context, name string) (models.TaskStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, status := range t.tasks {
		if status.Name == name {
			return status, nil
		}
	}
	return models.TaskStatus{}, ErrTaskNotFound
}

func (t *MemoryTracker) List(ctx context.Context) ([]models.TaskStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	statuses := make([]models.TaskStatus, 0, len(t.tasks))
	for _, status := range t.tasks {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses, nil
}

func (t *MemoryTracker) Delete(ctx context.Context, taskID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, taskID)
	return nil
}
