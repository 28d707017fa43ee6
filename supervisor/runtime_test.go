package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ridgeline/orchestra/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(results []SupervisionResult, id TaskId) SupervisionResult {
	for _, r := range results {
		if r.TaskID == id {
			return r
		}
	}
	return SupervisionResult{}
}

func TestHappyFleet(t *testing.T) {
	var aSetupAt, bSetupAt time.Time

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{
		ID:   "a",
		Body: func(ctx context.Context) error { return nil },
		TaskHooks: Hooks{
			Setup: func(ctx context.Context) error { aSetupAt = time.Now(); return nil },
		},
	}))
	require.NoError(t, rt.Register(&FuncTask{
		ID:        "b",
		DependsOn: []TaskId{"a"},
		Body:      func(ctx context.Context) error { return nil },
		TaskHooks: Hooks{
			Setup: func(ctx context.Context) error { bSetupAt = time.Now(); return nil },
		},
	}))

	results, err := rt.StartAndWaitAll(context.Background())
	require.NoError(t, err)

	a := resultFor(results, "a")
	b := resultFor(results, "b")
	assert.Equal(t, CompletedNormally, a.FinalStatus)
	assert.Equal(t, 1, a.TotalAttempts)
	assert.Equal(t, CompletedNormally, b.FinalStatus)
	assert.Equal(t, 1, b.TotalAttempts)
	assert.True(t, aSetupAt.Before(bSetupAt) || aSetupAt.Equal(bSetupAt), "a's setup must precede b's setup")
}

func TestCycleDetectionAbortsBeforeSpawning(t *testing.T) {
	var aSetupCalled, bSetupCalled atomic.Bool

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{
		ID:        "a",
		DependsOn: []TaskId{"b"},
		Body:      func(ctx context.Context) error { return nil },
		TaskHooks: Hooks{Setup: func(ctx context.Context) error { aSetupCalled.Store(true); return nil }},
	}))
	require.NoError(t, rt.Register(&FuncTask{
		ID:        "b",
		DependsOn: []TaskId{"a"},
		Body:      func(ctx context.Context) error { return nil },
		TaskHooks: Hooks{Setup: func(ctx context.Context) error { bSetupCalled.Store(true); return nil }},
	}))

	err := rt.Start(context.Background())
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.False(t, aSetupCalled.Load())
	assert.False(t, bSetupCalled.Load())
}

func TestDependencyFailureCascade(t *testing.T) {
	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{
		ID:   "a",
		Body: func(ctx context.Context) error { return nil },
		TaskHooks: Hooks{
			Setup: func(ctx context.Context) error { return errors.New("boom") },
		},
	}))
	require.NoError(t, rt.Register(&FuncTask{
		ID:        "b",
		DependsOn: []TaskId{"a"},
		Body:      func(ctx context.Context) error { return nil },
	}))
	require.NoError(t, rt.Register(&FuncTask{
		ID:        "c",
		DependsOn: []TaskId{"b"},
		Body:      func(ctx context.Context) error { return nil },
	}))

	results, err := rt.StartAndWaitAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SetupFailed, resultFor(results, "a").FinalStatus)
	assert.Equal(t, DependencyFailed, resultFor(results, "b").FinalStatus)
	assert.Equal(t, DependencyFailed, resultFor(results, "c").FinalStatus)
}

func TestRestartWithExponentialBackoff(t *testing.T) {
	rt := NewRuntime(nil)
	start := time.Now()
	require.NoError(t, rt.Register(&FuncTask{
		ID:      "flaky",
		Policy:  MaxAttempts(3),
		Backoff: backoff.Exponential{Initial: 10 * time.Millisecond, Max: 100 * time.Millisecond, Factor: 2},
		Body:    func(ctx context.Context) error { return errors.New("always fails") },
	}))

	result, err := rt.StartAndWaitAny(context.Background())
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, MaxAttemptsReached, result.FinalStatus)
	assert.Equal(t, 3, result.TotalAttempts)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "should observe roughly 10ms + 20ms of backoff")
}

func TestPanicCaptureThenSuccess(t *testing.T) {
	var panicAttempts []int
	attempt := 0

	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{
		ID:     "unstable",
		Policy: Always(),
		Body: func(ctx context.Context) error {
			attempt++
			if attempt == 1 {
				panic("nil pointer somewhere")
			}
			return nil
		},
		TaskHooks: Hooks{
			OnPanic: func(msg string, attempt int) { panicAttempts = append(panicAttempts, attempt) },
		},
	}))

	result, err := rt.StartAndWaitAny(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CompletedNormally, result.FinalStatus)
	assert.Equal(t, 2, result.TotalAttempts)
	assert.Equal(t, []int{1}, panicAttempts)
}

func TestMaxAttemptsOneNeverSleeps(t *testing.T) {
	rt := NewRuntime(nil)
	start := time.Now()
	require.NoError(t, rt.Register(&FuncTask{
		ID:      "one-shot",
		Policy:  MaxAttempts(1),
		Backoff: backoff.Fixed(5 * time.Second),
		Body:    func(ctx context.Context) error { return errors.New("nope") },
	}))

	result, err := rt.StartAndWaitAny(context.Background())
	require.NoError(t, err)

	assert.Equal(t, MaxAttemptsReached, result.FinalStatus)
	assert.Equal(t, 1, result.TotalAttempts)
	assert.Less(t, time.Since(start), 1*time.Second, "MaxAttempts(1) must never sleep")
}

func TestDuplicateTaskId(t *testing.T) {
	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{ID: "dup", Body: func(ctx context.Context) error { return nil }}))
	err := rt.Register(&FuncTask{ID: "dup", Body: func(ctx context.Context) error { return nil }})
	require.Error(t, err)
	var dupErr *DuplicateTaskIdError
	require.ErrorAs(t, err, &dupErr)
}

func TestShutdownIsIdempotent(t *testing.T) {
	rt := NewRuntime(nil)
	require.NoError(t, rt.Register(&FuncTask{
		ID:     "long-runner",
		Policy: Always(),
		Body: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	require.NoError(t, rt.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rt.Shutdown(ctx))
	require.NoError(t, rt.Shutdown(ctx))

	results := rt.WaitAll()
	require.Len(t, results, 1)
	assert.Equal(t, ManuallyStopped, results[0].FinalStatus)
}
