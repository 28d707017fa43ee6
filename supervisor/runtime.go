package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Stats is a point-in-time snapshot of a Runtime's state, meant for a
// health endpoint or periodic logging.
type Stats struct {
	RegisteredTasks  int
	Started          bool
	CompletedResults int
}

// Runtime owns a fleet of supervised tasks: registration, dependency
// validation, prerequisite sequencing, and dependency-driven startup.
// The registry is frozen once Start succeeds.
type Runtime struct {
	mu          sync.Mutex
	order       []TaskId
	tasks       map[TaskId]SupervisedTask
	deps        map[TaskId][]TaskId
	prereqs     []Prerequisite
	prereqNames map[string]struct{}
	signals     map[TaskId]*setupSignal

	started        bool
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	shutdownOnce   sync.Once

	results chan SupervisionResult
	wg      sync.WaitGroup

	finalMu      sync.Mutex
	finalResults []SupervisionResult

	logger *slog.Logger
	tracer trace.Tracer

	taskRestarts metric.Int64Counter
	taskFailures metric.Int64Counter
	taskPanics   metric.Int64Counter
}

// NewRuntime builds an empty, unstarted Runtime. A nil logger falls back
// to slog.Default().
func NewRuntime(logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.GetMeterProvider().Meter("orchestra.supervisor")
	restarts, _ := meter.Int64Counter("orchestra_supervisor_task_restarts_total")
	failures, _ := meter.Int64Counter("orchestra_supervisor_task_failures_total")
	panics, _ := meter.Int64Counter("orchestra_supervisor_task_panics_total")
	return &Runtime{
		tasks:        make(map[TaskId]SupervisedTask),
		deps:         make(map[TaskId][]TaskId),
		prereqNames:  make(map[string]struct{}),
		signals:      make(map[TaskId]*setupSignal),
		logger:       logger,
		tracer:       otel.Tracer("orchestra.supervisor"),
		taskRestarts: restarts,
		taskFailures: failures,
		taskPanics:   panics,
	}
}

// Register adds a task to the fleet. It fails if the runtime has already
// started or if the task's id is already registered.
func (rt *Runtime) Register(task SupervisedTask) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return &InvalidConfigurationError{Detail: "cannot register a task after Start"}
	}
	id := task.TaskID()
	if _, exists := rt.tasks[id]; exists {
		return &DuplicateTaskIdError{ID: id}
	}
	rt.tasks[id] = task
	rt.order = append(rt.order, id)
	rt.deps[id] = dependenciesOf(task)
	rt.signals[id] = newSetupSignal()
	return nil
}

// Require enqueues a named prerequisite to run, in registration order,
// before any task is spawned.
func (rt *Runtime) Require(name string, fn func(ctx context.Context) error) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return &InvalidConfigurationError{Detail: "cannot add a prerequisite after Start"}
	}
	if _, dup := rt.prereqNames[name]; dup {
		return &InvalidConfigurationError{Detail: fmt.Sprintf("duplicate prerequisite name: %q", name)}
	}
	rt.prereqNames[name] = struct{}{}
	rt.prereqs = append(rt.prereqs, Prerequisite{Name: name, Fn: fn})
	return nil
}

// Start validates the dependency graph, runs prerequisites in order, and
// spawns one driver goroutine per registered task. On any error nothing
// is spawned. The registry is frozen on success.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return &InvalidConfigurationError{Detail: "runtime already started"}
	}

	topo, err := validateGraph(rt.order, rt.deps)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	rt.logger.Info("dependency graph validated", "topological_order", topo, "task_count", len(rt.order))

	if err := runPrerequisites(ctx, rt.prereqs); err != nil {
		rt.mu.Unlock()
		rt.logger.Error("prerequisite failed, aborting startup", "error", err)
		return err
	}

	rt.started = true
	rt.shutdownCtx, rt.shutdownCancel = context.WithCancel(ctx)
	rt.results = make(chan SupervisionResult, len(rt.order))

	drivers := make([]*driver, 0, len(rt.order))
	for _, id := range rt.order {
		task := rt.tasks[id]
		drivers = append(drivers, &driver{
			rt:       rt,
			task:     task,
			id:       id,
			name:     nameOf(task),
			deps:     rt.deps[id],
			policy:   restartPolicyOf(task),
			strategy: backoffStrategyOf(task),
			hooks:    hooksOf(task),
			signal:   rt.signals[id],
		})
	}
	shutdownCtx := rt.shutdownCtx
	rt.mu.Unlock()

	for _, d := range drivers {
		d := d
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			rt.logger.Info("task starting", "task_id", d.id)
			result := d.run(shutdownCtx)
			rt.results <- result
		}()
	}
	go func() {
		rt.wg.Wait()
		close(rt.results)
	}()

	return nil
}

// WaitAny returns the next SupervisionResult to complete. The second
// return value is false once every task has reported and the channel is
// drained.
func (rt *Runtime) WaitAny() (SupervisionResult, bool) {
	res, ok := <-rt.results
	if ok {
		rt.finalMu.Lock()
		rt.finalResults = append(rt.finalResults, res)
		rt.finalMu.Unlock()
	}
	return res, ok
}

// WaitAll blocks until every task has reached a terminal state and
// returns all results in completion order.
func (rt *Runtime) WaitAll() []SupervisionResult {
	for {
		if _, ok := rt.WaitAny(); !ok {
			break
		}
	}
	rt.finalMu.Lock()
	defer rt.finalMu.Unlock()
	out := make([]SupervisionResult, len(rt.finalResults))
	copy(out, rt.finalResults)
	return out
}

// StartAndWaitAny starts the fleet and blocks for the first result.
func (rt *Runtime) StartAndWaitAny(ctx context.Context) (SupervisionResult, error) {
	if err := rt.Start(ctx); err != nil {
		return SupervisionResult{}, err
	}
	res, ok := rt.WaitAny()
	if !ok {
		return SupervisionResult{}, &InternalError{Detail: "no tasks registered"}
	}
	return res, nil
}

// StartAndWaitAll starts the fleet and blocks until every task reaches a
// terminal state.
func (rt *Runtime) StartAndWaitAll(ctx context.Context) ([]SupervisionResult, error) {
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	return rt.WaitAll(), nil
}

// Shutdown broadcasts cancellation to every driver and waits for all of
// them to report a terminal result, or for ctx to expire first. It is
// idempotent: a second call is a no-op beyond waiting again.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	started := rt.started
	cancel := rt.shutdownCancel
	rt.mu.Unlock()
	if !started {
		return nil
	}

	rt.shutdownOnce.Do(func() {
		rt.logger.Info("shutdown requested")
		cancel()
	})

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the fleet's current state.
func (rt *Runtime) Stats() Stats {
	rt.mu.Lock()
	started := rt.started
	registered := len(rt.order)
	rt.mu.Unlock()
	rt.finalMu.Lock()
	completed := len(rt.finalResults)
	rt.finalMu.Unlock()
	return Stats{RegisteredTasks: registered, Started: started, CompletedResults: completed}
}

func (rt *Runtime) signalFor(id TaskId) *setupSignal {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.signals[id]
}
