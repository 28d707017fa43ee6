package cron

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	id    string
	count atomic.Int64
	delay time.Duration
}

func (j *countingJob) JobID() string { return j.id }
func (j *countingJob) Run(ctx context.Context) error {
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
		}
	}
	j.count.Add(1)
	return nil
}

func TestSchedulerSameTickFanOut(t *testing.T) {
	sched := NewScheduler(nil)
	expr := "*/1 * * * * * *"

	var starts sync.Map
	jobs := []*countingJob{{id: "j1"}, {id: "j2"}, {id: "j3", delay: 2 * time.Second}}
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for _, j := range jobs {
		j := j
		schedule, err := ParseSchedule(expr)
		require.NoError(t, err)
		job := &FuncJob{
			ID: j.id,
			JobHooks: JobHooks{
				OnStart: func() {
					starts.LoadOrStore(j.id, time.Now())
				},
				OnComplete: func() { wg.Done() },
			},
			Body: j.Run,
		}
		require.NoError(t, sched.AddJob(schedule, job))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go sched.Run(ctx)

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(3 * time.Second):
		t.Fatal("fewer than three job completions observed in time")
	}

	start1, ok1 := starts.Load("j1")
	start2, ok2 := starts.Load("j2")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Less(t, start1.(time.Time).Sub(start2.(time.Time)).Abs(), 500*time.Millisecond,
		"jobs due on the same tick must start within the same iteration")

	sched.Shutdown()
}

func TestSchedulerRejectsDuplicateJobId(t *testing.T) {
	sched := NewScheduler(nil)
	schedule, err := ParseSchedule("* * * * * * *")
	require.NoError(t, err)

	job := &FuncJob{ID: "dup", Body: func(ctx context.Context) error { return nil }}
	require.NoError(t, sched.AddJob(schedule, job))

	err = sched.AddJob(schedule, job)
	require.Error(t, err)
	var dupErr *DuplicateJobIdError
	require.ErrorAs(t, err, &dupErr)
}

func TestSchedulerRejectsUnsatisfiableSchedule(t *testing.T) {
	sched := NewScheduler(nil)
	schedule, err := ParseSchedule("0 0 0 1 1 * 2000")
	require.NoError(t, err)

	job := &FuncJob{ID: "stale", Body: func(ctx context.Context) error { return nil }}
	err = sched.AddJob(schedule, job)
	require.Error(t, err)
	var unsat *UnsatisfiableScheduleError
	require.ErrorAs(t, err, &unsat)
}

func TestSchedulerShutdownStopsRunLoop(t *testing.T) {
	sched := NewScheduler(nil)
	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	sched.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Shutdown")
	}
}

func TestSchedulerErrorRoutedToOnError(t *testing.T) {
	sched := NewScheduler(nil)
	schedule, err := ParseSchedule("* * * * * * *")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	job := &FuncJob{
		ID:   "failing",
		Body: func(ctx context.Context) error { return assert.AnError },
		JobHooks: JobHooks{
			OnError: func(err error) { errCh <- err },
		},
	}
	require.NoError(t, sched.AddJob(schedule, job))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go sched.Run(ctx)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(2 * time.Second):
		t.Fatal("on_error was never called")
	}
	sched.Shutdown()
}
