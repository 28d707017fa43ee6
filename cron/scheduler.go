package cron

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type jobEntry struct {
	nextAt   time.Time
	id       string
	job      Job
	schedule *ValidatedSchedule
	kind     JobKind
	hooks    JobHooks
}

type jobHeap []*jobEntry

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].nextAt.Before(h[j].nextAt) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(*jobEntry)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Stats is a point-in-time snapshot of a Scheduler's state.
type Stats struct {
	PendingJobs    int
	RegisteredJobs int
}

// Scheduler holds a min-heap of jobs keyed by next-run time. Its Run
// loop peeks the heap's top before sleeping and, on waking, drains every
// entry whose next_at has elapsed in that single iteration before
// sleeping again — the discipline that guarantees jobs sharing a tick
// all fire without one starving another.
type Scheduler struct {
	mu       sync.Mutex
	heap     jobHeap
	registry map[string]*jobEntry

	blockingWG sync.WaitGroup
	asyncWG    sync.WaitGroup

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	doneCh       chan struct{}
	wake         chan struct{}

	logger     *slog.Logger
	tracer     trace.Tracer
	dispatches metric.Int64Counter
	failures   metric.Int64Counter
}

// NewScheduler builds an empty Scheduler. A nil logger falls back to
// slog.Default().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.GetMeterProvider().Meter("orchestra.cron")
	dispatches, _ := meter.Int64Counter("orchestra_cron_job_dispatches_total")
	failures, _ := meter.Int64Counter("orchestra_cron_job_failures_total")
	return &Scheduler{
		registry:   make(map[string]*jobEntry),
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
		wake:       make(chan struct{}, 1),
		logger:     logger,
		tracer:     otel.Tracer("orchestra.cron"),
		dispatches: dispatches,
		failures:   failures,
	}
}

// AddJob registers job against schedule. Registration fails if id is
// already taken or if schedule never fires at or after now.
func (s *Scheduler) AddJob(schedule *ValidatedSchedule, job Job) error {
	id := job.JobID()
	s.mu.Lock()
	if _, exists := s.registry[id]; exists {
		s.mu.Unlock()
		return &DuplicateJobIdError{ID: id}
	}
	nextAt, ok := schedule.NextAfter(time.Now())
	if !ok {
		s.mu.Unlock()
		return &UnsatisfiableScheduleError{Expr: schedule.String()}
	}
	entry := &jobEntry{
		nextAt:   nextAt,
		id:       id,
		job:      job,
		schedule: schedule,
		kind:     kindOf(job),
		hooks:    jobHooksOf(job),
	}
	s.registry[id] = entry
	heap.Push(&s.heap, entry)
	s.mu.Unlock()

	s.logger.Info("cron job registered", "job_id", id, "name", jobNameOf(job), "next_at", nextAt)
	s.wakeLoop()
	return nil
}

// AddJobFunc parses expr and registers an async job in one step.
func (s *Scheduler) AddJobFunc(id, name, expr string, fn func(ctx context.Context) error) error {
	return s.addFunc(id, name, expr, Async, fn)
}

// AddBlockingJobFunc parses expr and registers a blocking job in one
// step.
func (s *Scheduler) AddBlockingJobFunc(id, name, expr string, fn func(ctx context.Context) error) error {
	return s.addFunc(id, name, expr, Blocking, fn)
}

func (s *Scheduler) addFunc(id, name, expr string, kind JobKind, fn func(ctx context.Context) error) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	job := &FuncJob{ID: id, DisplayName: name, JobKind: kind, Body: fn}
	return s.AddJob(schedule, job)
}

// RemoveJob stops id from being dispatched again: its pending heap entry
// is dropped without running when it comes due. It cannot cancel a
// dispatch already in flight.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registry, id)
}

func (s *Scheduler) wakeLoop() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run blocks, dispatching due jobs until Shutdown is called or ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.doneCh)
	for {
		s.mu.Lock()
		empty := len(s.heap) == 0
		s.mu.Unlock()

		if empty {
			s.logger.Warn("cron heap empty, waiting for registrations")
			select {
			case <-s.shutdownCh:
				return
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		s.mu.Lock()
		top := s.heap[0]
		s.mu.Unlock()

		if wait := time.Until(top.nextAt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
				continue
			case <-s.shutdownCh:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		due := s.drainDue()
		for _, entry := range due {
			s.dispatch(ctx, entry)
		}
	}
}

// drainDue pops every heap entry whose next_at has elapsed, reschedules
// each for its next occurrence, and returns them for dispatch. Called
// once per tick, after the pre-tick sleep and before the loop sleeps
// again, so peers sharing a tick are never starved by each other.
func (s *Scheduler) drainDue() []*jobEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var due []*jobEntry
	for len(s.heap) > 0 && !s.heap[0].nextAt.After(now) {
		entry := heap.Pop(&s.heap).(*jobEntry)
		if _, stillRegistered := s.registry[entry.id]; !stillRegistered {
			continue
		}
		due = append(due, entry)
	}
	for _, entry := range due {
		nextAt, ok := entry.schedule.NextAfter(now)
		if !ok {
			delete(s.registry, entry.id)
			s.logger.Warn("cron job schedule exhausted, dropping", "job_id", entry.id)
			continue
		}
		entry.nextAt = nextAt
		heap.Push(&s.heap, entry)
	}
	return due
}

func (s *Scheduler) dispatch(ctx context.Context, entry *jobEntry) {
	wg := &s.asyncWG
	if entry.kind == Blocking {
		wg = &s.blockingWG
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runOnce(ctx, entry)
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, entry *jobEntry) {
	runCtx, span := s.tracer.Start(ctx, "cron.job.dispatch")
	span.SetAttributes(
		attribute.String("job.id", entry.id),
		attribute.String("job.run_id", uuid.NewString()),
	)
	defer span.End()

	if entry.hooks.OnStart != nil {
		s.safeHook(entry.id, "on_start", entry.hooks.OnStart)
	}
	s.logger.Info("cron job dispatched", "job_id", entry.id)
	s.dispatches.Add(runCtx, 1)

	err := s.invoke(runCtx, entry.job)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.failures.Add(runCtx, 1)
		s.logger.Error("cron job failed", "job_id", entry.id, "error", err)
		if entry.hooks.OnError != nil {
			s.safeHook(entry.id, "on_error", func() { entry.hooks.OnError(err) })
		}
		return
	}
	s.logger.Info("cron job completed", "job_id", entry.id)
	if entry.hooks.OnComplete != nil {
		s.safeHook(entry.id, "on_complete", entry.hooks.OnComplete)
	}
}

func (s *Scheduler) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) safeHook(jobID, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron hook panicked", "job_id", jobID, "hook", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// Shutdown stops dispatch of new ticks and waits for the Run loop to
// exit. It does not cancel jobs already dispatched — scheduler shutdown
// stops the loop, not in-flight job bodies. Idempotent.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	<-s.doneCh
}

// Stats returns a snapshot of the scheduler's current state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{PendingJobs: len(s.heap), RegisteredJobs: len(s.registry)}
}
