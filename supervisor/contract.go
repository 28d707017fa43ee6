package supervisor

import (
	"context"

	"github.com/ridgeline/orchestra/backoff"
)

// TaskId is a short, stable, globally unique identifier for a supervised
// task. Uniqueness is enforced at registration.
type TaskId = string

// Hooks are the optional lifecycle callbacks a SupervisedTask may expose.
// A task that implements none of them still runs under default behavior:
// no setup/cleanup work, always restart on failure, every restart
// permitted.
type Hooks struct {
	// Setup runs once, after all declared dependencies report SetupReady,
	// and strictly before the first Run attempt.
	Setup func(ctx context.Context) error
	// Cleanup runs exactly once after the task reaches a terminal status,
	// provided Setup was attempted. Never runs concurrently with Run.
	Cleanup func(ctx context.Context)
	// OnRestart fires before each attempt after the first, with the
	// number of the attempt about to run.
	OnRestart func(attempt int)
	// OnError fires when Run returns a non-nil error, before the restart
	// decision is made.
	OnError func(msg string, attempt int)
	// OnPanic fires when Run panics, before the restart decision is made.
	OnPanic func(msg string, attempt int)
	// ShouldRestart can veto a restart that the policy would otherwise
	// allow. It is not consulted when the policy has already decided to
	// stop (Never, or MaxAttempts exhausted).
	ShouldRestart func(attempt int, msg string) bool
	// OnShutdown fires once if the task is stopped by Runtime.Shutdown
	// rather than reaching a natural terminal state.
	OnShutdown func()
}

// RestartPolicyKind enumerates the three restart policies a task may
// declare.
type RestartPolicyKind int

const (
	restartUnset RestartPolicyKind = iota
	// RestartNever means a task never restarts: one attempt only.
	RestartNever
	// RestartMaxAttempts caps the number of attempts at N.
	RestartMaxAttempts
	// RestartAlways restarts indefinitely, subject to ShouldRestart.
	RestartAlways
)

// RestartPolicy selects how a task's driver reacts to a failed or
// panicked attempt.
type RestartPolicy struct {
	Kind RestartPolicyKind
	// N is the attempt ceiling for RestartMaxAttempts; ignored otherwise.
	N int
}

// Never returns a policy under which a task is attempted exactly once.
func Never() RestartPolicy { return RestartPolicy{Kind: RestartNever} }

// MaxAttempts returns a policy that allows at most n attempts. n is
// clamped to 1 if given a smaller value.
func MaxAttempts(n int) RestartPolicy {
	if n < 1 {
		n = 1
	}
	return RestartPolicy{Kind: RestartMaxAttempts, N: n}
}

// Always returns a policy that restarts indefinitely unless ShouldRestart
// vetoes a given attempt.
func Always() RestartPolicy { return RestartPolicy{Kind: RestartAlways} }

// SupervisedTask is the contract every task registered with a Runtime
// must satisfy. Only TaskID and Run are required; the remaining
// capabilities (display name, dependencies, restart policy, backoff
// strategy, hooks) are optional and probed for via type assertion, each
// falling back to a default when absent: the task id as name, no
// dependencies, Always(), backoff.DefaultExponential(), no hooks. This keeps the
// contract a capability set rather than a class hierarchy: a caller can
// implement as much or as little of it as a given task needs.
type SupervisedTask interface {
	TaskID() string
	Run(ctx context.Context) error
}

type namer interface{ Name() string }
type dependsOner interface{ Dependencies() []TaskId }
type restartPolicyer interface{ RestartPolicy() RestartPolicy }
type backoffStrategyer interface{ BackoffStrategy() backoff.Strategy }
type hooksProvider interface{ Hooks() Hooks }

func nameOf(t SupervisedTask) string {
	if n, ok := t.(namer); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return t.TaskID()
}

func dependenciesOf(t SupervisedTask) []TaskId {
	if d, ok := t.(dependsOner); ok {
		return d.Dependencies()
	}
	return nil
}

func restartPolicyOf(t SupervisedTask) RestartPolicy {
	if r, ok := t.(restartPolicyer); ok {
		if policy := r.RestartPolicy(); policy.Kind != restartUnset {
			return policy
		}
	}
	return Always()
}

func backoffStrategyOf(t SupervisedTask) backoff.Strategy {
	if b, ok := t.(backoffStrategyer); ok {
		if s := b.BackoffStrategy(); s != nil {
			return s
		}
	}
	return backoff.DefaultExponential()
}

func hooksOf(t SupervisedTask) Hooks {
	if h, ok := t.(hooksProvider); ok {
		return h.Hooks()
	}
	return Hooks{}
}

// FuncTask adapts a plain function plus declarative metadata into a
// SupervisedTask, for callers who would rather not define a named type
// for a one-off task.
type FuncTask struct {
	ID          string
	DisplayName string
	DependsOn   []TaskId
	Policy      RestartPolicy
	Backoff     backoff.Strategy
	TaskHooks   Hooks
	Body        func(ctx context.Context) error
}

func (f *FuncTask) TaskID() string { return f.ID }

func (f *FuncTask) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.ID
}

func (f *FuncTask) Dependencies() []TaskId { return f.DependsOn }

func (f *FuncTask) RestartPolicy() RestartPolicy { return f.Policy }

func (f *FuncTask) BackoffStrategy() backoff.Strategy { return f.Backoff }

func (f *FuncTask) Hooks() Hooks { return f.TaskHooks }

func (f *FuncTask) Run(ctx context.Context) error { return f.Body(ctx) }
