package cron

import "context"

// JobKind distinguishes jobs whose body may block a goroutine for a
// while (Blocking) from ordinary short-lived async work (Async). Both
// are dispatched on their own goroutine so neither ever stalls the
// scheduler loop; the distinction exists for callers reasoning about
// resource budgets, not for correctness here.
type JobKind int

const (
	Async JobKind = iota
	Blocking
)

// JobHooks are the optional lifecycle callbacks a cron job may receive
// around each dispatch.
type JobHooks struct {
	OnStart    func()
	OnComplete func()
	OnError    func(err error)
}

// Job is the contract every job registered with a Scheduler must
// satisfy. Only JobID and Run are required.
type Job interface {
	JobID() string
	Run(ctx context.Context) error
}

type jobNamer interface{ Name() string }
type jobKinder interface{ Kind() JobKind }
type jobHooksProvider interface{ Hooks() JobHooks }

func jobNameOf(j Job) string {
	if n, ok := j.(jobNamer); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return j.JobID()
}

func kindOf(j Job) JobKind {
	if k, ok := j.(jobKinder); ok {
		return k.Kind()
	}
	return Async
}

func jobHooksOf(j Job) JobHooks {
	if h, ok := j.(jobHooksProvider); ok {
		return h.Hooks()
	}
	return JobHooks{}
}

// FuncJob adapts a plain function plus declarative metadata into a Job,
// for callers who would rather not define a named type for a one-off
// job.
type FuncJob struct {
	ID          string
	DisplayName string
	JobKind     JobKind
	JobHooks    JobHooks
	Body        func(ctx context.Context) error
}

func (f *FuncJob) JobID() string { return f.ID }

func (f *FuncJob) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.ID
}

func (f *FuncJob) Kind() JobKind { return f.JobKind }

func (f *FuncJob) Hooks() JobHooks { return f.JobHooks }

func (f *FuncJob) Run(ctx context.Context) error { return f.Body(ctx) }
