package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// ErrTaskAlreadyRunning is returned when a job with the same name already has
// a live status record.
var ErrTaskAlreadyRunning = errors.New("task already running")

// Job is a cancellable unit of work. The job reports progress through the
// tracker using its assigned task id.
type Job func(ctx context.Context, taskID string) error

// Runner launches named jobs, records them in the tracker for the duration of
// the run, and hard-kills them through context cancellation on demand.
type Runner struct {
	tracker Tracker
	log     *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(tracker Tracker, log *logging.Logger) *Runner {
	return &Runner{
		tracker: tracker,
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Launch starts the job in a goroutine and returns its task id. Only one job
// per name runs at a time; a duplicate launch is rejected.
func (r *Runner) Launch(ctx context.Context, name string, job Job) (string, error) {
	if _, err := r.tracker.GetByName(ctx, name); err == nil {
		return "", fmt.Errorf("%w: %s", ErrTaskAlreadyRunning, name)
	} else if !errors.Is(err, ErrTaskNotFound) {
		return "", err
	}

	taskID := uuid.Must(uuid.NewV7()).String()
	status := models.TaskStatus{
		Name:      name,
		TaskID:    taskID,
		Progress:  0,
		StartedAt: time.Now().UTC(),
	}
	if err := r.tracker.Put(ctx, status); err != nil {
		return "", err
	}

	// The job outlives the caller's request context; only an explicit
	// Cancel or process shutdown stops it.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.cancels[taskID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.cancels, taskID)
			r.mu.Unlock()
			cancel()
			cleanupCtx := context.WithoutCancel(jobCtx)
			if err := r.tracker.Delete(cleanupCtx, taskID); err != nil {
				r.log.ErrorContext(cleanupCtx, "failed to delete task record", "task_id", taskID, "error", err)
			}
		}()

		r.log.InfoContext(jobCtx, "task started", "name", name, "task_id", taskID)
		if err := job(jobCtx, taskID); err != nil {
			if errors.Is(err, context.Canceled) {
				r.log.WarnContext(jobCtx, "task cancelled", "name", name, "task_id", taskID)
			} else {
				r.log.ErrorContext(jobCtx, "task failed", "name", name, "task_id", taskID, "error", err)
			}
			return
		}
		r.log.InfoContext(jobCtx, "task completed", "name", name, "task_id", taskID)
	}()

	return taskID, nil
}

// Cancel kills a running task. Cancelling a task launched by another engine
// instance is not supported; only the record can be deleted in that case.
func (r *Runner) Cancel(ctx context.Context, taskID string) error {
	r.mu.Lock()
	cancel, ok := r.cancels[taskID]
	r.mu.Unlock()
	if !ok {
		// Not ours. Drop the record if it exists so the UI clears.
		if _, err := r.tracker.Get(ctx, taskID); err != nil {
			return err
		}
		return r.tracker.Delete(ctx, taskID)
	}
	cancel()
	return nil
}

// Shutdown cancels every task this runner launched.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}
