package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subkit/pkg/schedule"
)

func TestRunnerAddJobValidation(t *testing.T) {
	r := schedule.NewRunner()
	noop := func(context.Context, time.Time) error { return nil }

	assert.ErrorIs(t, r.AddJob("", schedule.Every(time.Hour), noop), schedule.ErrJobNameRequired)
	assert.ErrorIs(t, r.AddJob("job", schedule.Every(time.Hour), nil), schedule.ErrJobFuncRequired)

	require.NoError(t, r.AddJob("job", schedule.Every(time.Hour), noop))
	assert.ErrorIs(t, r.AddJob("job", schedule.Every(time.Hour), noop), schedule.ErrJobAlreadyRegistered)
}

func TestRunnerStartWithoutJobs(t *testing.T) {
	r := schedule.NewRunner()
	assert.ErrorIs(t, r.Start(context.Background()), schedule.ErrNoJobsRegistered)
}

func TestRunnerRunsDueJobs(t *testing.T) {
	var runs atomic.Int32
	r := schedule.NewRunner(schedule.WithCheckInterval(5 * time.Millisecond))

	require.NoError(t, r.AddJob("tick", schedule.Every(time.Millisecond),
		func(context.Context, time.Time) error {
			runs.Add(1)
			return nil
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, runs.Load())
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	r := schedule.NewRunner(schedule.WithCheckInterval(time.Millisecond))
	require.NoError(t, r.AddJob("tick", schedule.Every(time.Hour),
		func(context.Context, time.Time) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on context cancellation")
	}
}

func TestRunnerRunJobNow(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	var gotNow time.Time
	r := schedule.NewRunner(schedule.WithClock(func() time.Time { return fixed }))

	require.NoError(t, r.AddJob("sweep", schedule.Every(24*time.Hour),
		func(_ context.Context, now time.Time) error {
			gotNow = now
			return nil
		}))

	require.NoError(t, r.RunJobNow(context.Background(), "sweep"))
	assert.Equal(t, fixed, gotNow)

	assert.Error(t, r.RunJobNow(context.Background(), "unknown"))
}

func TestRunnerRecoversPanickingJob(t *testing.T) {
	r := schedule.NewRunner()
	require.NoError(t, r.AddJob("explosive", schedule.Every(time.Hour),
		func(context.Context, time.Time) error {
			panic("boom")
		}))

	err := r.RunJobNow(context.Background(), "explosive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRunnerJobErrorDoesNotStopRunner(t *testing.T) {
	var runs atomic.Int32
	r := schedule.NewRunner(schedule.WithCheckInterval(5 * time.Millisecond))

	require.NoError(t, r.AddJob("flaky", schedule.Every(time.Millisecond),
		func(context.Context, time.Time) error {
			runs.Add(1)
			return errors.New("transient")
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = r.Start(ctx)

	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}
