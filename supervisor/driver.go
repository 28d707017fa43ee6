package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// driver runs one task through WaitDeps -> Setup -> Running -> cleanup.
// Each registered task gets its own driver, spawned as an independent
// goroutine by Runtime.Start.
type driver struct {
	rt   *Runtime
	task SupervisedTask

	id       TaskId
	name     string
	deps     []TaskId
	policy   RestartPolicy
	strategy backoffStrategy

	hooks  Hooks
	signal *setupSignal
}

type backoffStrategy interface {
	Duration(attempt int) time.Duration
}

// decideRestart implements the fixed-order restart decision from the
// per-task attempt loop. It is only consulted after a failed or
// panicked attempt; a successful attempt always terminates with
// CompletedNormally without calling this.
func decideRestart(policy RestartPolicy, attempt int, shouldRestart func(attempt int, msg string) bool, msg string) (restart bool, terminal SupervisionStatus) {
	switch policy.Kind {
	case RestartNever:
		return false, MaxAttemptsReached
	case RestartMaxAttempts:
		if attempt >= policy.N {
			return false, MaxAttemptsReached
		}
	case RestartAlways:
	}
	if shouldRestart != nil && !shouldRestart(attempt, msg) {
		return false, RestartPrevented
	}
	return true, CompletedNormally
}

func (d *driver) run(ctx context.Context) SupervisionResult {
	result := SupervisionResult{TaskID: d.id, TaskName: d.name}

	ok, manuallyStopped := d.waitDeps(ctx)
	if manuallyStopped {
		result.FinalStatus = ManuallyStopped
		d.safeOnShutdown()
		return result
	}
	if !ok {
		d.rt.logger.Error("dependency failed setup, skipping task", "task_id", d.id)
		result.FinalStatus = DependencyFailed
		d.signal.fire(false)
		return result
	}

	setupErr := d.safeSetup(ctx)
	if setupErr != nil {
		if ctx.Err() != nil {
			result.FinalStatus = ManuallyStopped
			d.safeOnShutdown()
		} else {
			d.rt.logger.Error("task setup failed", "task_id", d.id, "error", setupErr)
			result.FinalStatus = SetupFailed
		}
		d.signal.fire(false)
		d.safeCleanup()
		return result
	}
	d.signal.fire(true)
	d.rt.logger.Info("task setup complete", "task_id", d.id)

	var shouldRestart func(attempt int, msg string) bool
	if d.hooks.ShouldRestart != nil {
		shouldRestart = func(attempt int, msg string) (allow bool) {
			allow = true
			defer d.recoverHook("should_restart")
			return d.hooks.ShouldRestart(attempt, msg)
		}
	}

	attempt := 1
	for {
		if ctx.Err() != nil {
			result.FinalStatus = ManuallyStopped
			result.TotalAttempts = attempt - 1
			d.safeOnShutdown()
			break
		}

		err, panicked, msg := d.invokeRun(ctx, attempt)
		if err == nil && !panicked {
			d.rt.logger.Info("task completed", "task_id", d.id, "attempt", attempt)
			result.FinalStatus = CompletedNormally
			result.TotalAttempts = attempt
			break
		}

		failMsg := msg
		if panicked {
			d.rt.logger.Error("task panicked", "task_id", d.id, "attempt", attempt, "panic", msg)
			d.safeOnPanic(msg, attempt)
			d.rt.taskPanics.Add(ctx, 1)
		} else {
			failMsg = err.Error()
			d.rt.logger.Error("task run failed", "task_id", d.id, "attempt", attempt, "error", err)
			d.safeOnError(failMsg, attempt)
		}
		d.rt.taskFailures.Add(ctx, 1)

		restart, terminal := decideRestart(d.policy, attempt, shouldRestart, failMsg)
		if !restart {
			result.FinalStatus = terminal
			result.TotalAttempts = attempt
			break
		}

		delay := d.strategy.Duration(attempt)
		d.rt.logger.Warn("task will restart", "task_id", d.id, "attempt", attempt, "backoff", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.FinalStatus = ManuallyStopped
			result.TotalAttempts = attempt
			d.safeOnShutdown()
			d.safeCleanup()
			return result
		}
		attempt++
		d.rt.taskRestarts.Add(ctx, 1)
		d.safeOnRestart(attempt)
	}

	d.safeCleanup()
	return result
}

func (d *driver) waitDeps(ctx context.Context) (ok bool, manuallyStopped bool) {
	for _, dep := range d.deps {
		sig := d.rt.signalFor(dep)
		success, err := sig.wait(ctx)
		if err != nil {
			return false, true
		}
		if !success {
			return false, false
		}
	}
	return true, false
}

func (d *driver) invokeRun(ctx context.Context, attempt int) (err error, panicked bool, msg string) {
	spanCtx, span := d.rt.tracer.Start(ctx, "supervisor.task.attempt")
	span.SetAttributes(
		attribute.String("task.id", d.id),
		attribute.Int("task.attempt", attempt),
		attribute.String("task.run_id", uuid.NewString()),
	)
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			msg = fmt.Sprintf("%v", r)
			span.SetStatus(codes.Error, msg)
		} else if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	err = d.task.Run(spanCtx)
	return
}

func (d *driver) safeSetup(ctx context.Context) (err error) {
	if d.hooks.Setup == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setup panicked: %v", r)
		}
	}()
	return d.hooks.Setup(ctx)
}

func (d *driver) safeCleanup() {
	if d.hooks.Cleanup == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.rt.logger.Error("cleanup panicked", "task_id", d.id, "panic", fmt.Sprintf("%v", r))
		}
	}()
	d.hooks.Cleanup(context.Background())
}

func (d *driver) safeOnRestart(attempt int) {
	if d.hooks.OnRestart == nil {
		return
	}
	defer d.recoverHook("on_restart")
	d.hooks.OnRestart(attempt)
}

func (d *driver) safeOnError(msg string, attempt int) {
	if d.hooks.OnError == nil {
		return
	}
	defer d.recoverHook("on_error")
	d.hooks.OnError(msg, attempt)
}

func (d *driver) safeOnPanic(msg string, attempt int) {
	if d.hooks.OnPanic == nil {
		return
	}
	defer d.recoverHook("on_panic")
	d.hooks.OnPanic(msg, attempt)
}

func (d *driver) safeOnShutdown() {
	if d.hooks.OnShutdown == nil {
		return
	}
	defer d.recoverHook("on_shutdown")
	d.hooks.OnShutdown()
}

func (d *driver) recoverHook(name string) {
	if r := recover(); r != nil {
		d.rt.logger.Error("hook panicked", "task_id", d.id, "hook", name, "panic", fmt.Sprintf("%v", r))
	}
}
