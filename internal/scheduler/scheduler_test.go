package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
)

type recordingJobs struct {
	mu        sync.Mutex
	purges    int
	sweeps    int
	campaigns []time.Time
	onPurge   func()
}

func (j *recordingJobs) Purge(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.purges++
	if j.onPurge != nil {
		j.onPurge()
	}
	return nil
}

func (j *recordingJobs) ReviewSweep(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sweeps++
	return 0, nil
}

func (j *recordingJobs) RunCampaignAsync(ctx context.Context, date time.Time) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.campaigns = append(j.campaigns, date)
	return "task-1", nil
}

func (j *recordingJobs) counts() (int, int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.purges, j.sweeps, len(j.campaigns)
}

func TestParseRunAt(t *testing.T) {
	h, m, err := parseRunAt("02:00")
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 0, m)

	_, _, err = parseRunAt("25:00")
	assert.Error(t, err)
	_, _, err = parseRunAt("bogus")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 8, 28, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC), nextRun(now, 2, 0))

	// Already past today's trigger: tomorrow.
	now = time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC), nextRun(now, 2, 0))
}

func TestSchedulerRunsCycle(t *testing.T) {
	jobs := &recordingJobs{}
	s := New(jobs, config.SchedulerConfig{Enabled: true, RunAt: "02:00"}, logging.New(slog.LevelError, "text"))

	// Freeze just before the trigger so the first wait is tiny; the first
	// cycle moves the clock past the trigger so the loop parks for a day.
	var mu sync.Mutex
	current := time.Date(2026, 8, 28, 1, 59, 59, int(999*time.Millisecond), time.UTC)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	jobs.onPurge = func() {
		mu.Lock()
		current = time.Date(2026, 8, 28, 2, 0, 1, 0, time.UTC)
		mu.Unlock()
	}

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool {
		p, sw, c := jobs.counts()
		return p >= 1 && sw >= 1 && c >= 1
	}, 3*time.Second, 10*time.Millisecond)
	s.Stop()

	p, sw, c := jobs.counts()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, sw)
	assert.Equal(t, 1, c)
}

func TestSchedulerInvalidRunAt(t *testing.T) {
	s := New(&recordingJobs{}, config.SchedulerConfig{RunAt: "nope"}, logging.New(slog.LevelError, "text"))
	assert.Error(t, s.Start())
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := New(&recordingJobs{}, config.SchedulerConfig{RunAt: "02:00"}, logging.New(slog.LevelError, "text"))
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
}
