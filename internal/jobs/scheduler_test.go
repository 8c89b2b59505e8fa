package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/salescrm/crm-api/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduler_Registry(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.AddJob("b_job", "0 0 2 * * *", func() { runs.Add(1) }))
	require.NoError(t, s.AddJob("a_job", "@every 1h", func() {}))

	assert.Equal(t, []string{"a_job", "b_job"}, s.JobNames())

	t.Run("duplicate name", func(t *testing.T) {
		assert.Error(t, s.AddJob("a_job", "@every 1h", func() {}))
	})

	t.Run("invalid expression", func(t *testing.T) {
		assert.Error(t, s.AddJob("broken", "not a cron", func() {}))
		assert.NotContains(t, s.JobNames(), "broken")
	})

	t.Run("run now", func(t *testing.T) {
		require.NoError(t, s.RunNow("b_job"))
		assert.Equal(t, int32(1), runs.Load())
		assert.Error(t, s.RunNow("missing"))
	})
}

func TestScheduler_RunNowUsesJobWrappers(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	started, release := make(chan struct{}), make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.AddJob("slow", "@every 1h", func() {
		runs.Add(1)
		close(started)
		<-release
	}))
	require.NoError(t, s.AddJob("panics", "@every 1h", func() { panic("boom") }))

	done := make(chan error, 1)
	go func() { done <- s.RunNow("slow") }()
	<-started

	require.NoError(t, s.RunNow("slow"), "an overlapping run is skipped")
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, <-done)

	assert.NotPanics(t, func() { require.NoError(t, s.RunNow("panics")) })
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	ran := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("tick", "* * * * * *", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))

	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop())

	var after atomic.Int32
	require.NoError(t, s.AddJob("panics", "* * * * * *", func() { panic("boom") }))
	require.NoError(t, s.AddJob("after", "* * * * * *", func() { after.Add(1) }))

	s.Start()
	assert.Eventually(t, func() bool { return after.Load() >= 2 }, 4*time.Second, 50*time.Millisecond,
		"a panicking job must not stop the scheduler")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
