package supervisor

import "fmt"

// ConfigurationError is implemented by every error that aborts Start()
// before anything is spawned: duplicate ids, unresolved dependencies,
// cycles, and other registration-time mistakes.
type ConfigurationError interface {
	error
	configurationError()
}

// RuntimeError is implemented by errors that abort a narrower scope than
// the whole fleet: a failed prerequisite aborts startup, a failed setup
// aborts one task and cascades to its dependents.
type RuntimeError interface {
	error
	runtimeError()
}

// ExecutionError is implemented by errors describing how a task's
// attempt loop ended. The driver does not return or construct them: it
// records the outcome in a SupervisionResult's FinalStatus and passes
// hooks plain message strings.
type ExecutionError interface {
	error
	executionError()
}

// SystemError is implemented by errors describing unexpected engine
// failures unrelated to any single task's configuration or behavior.
type SystemError interface {
	error
	systemError()
}

// DuplicateTaskIdError reports that two tasks were registered under the
// same TaskId.
type DuplicateTaskIdError struct {
	ID TaskId
}

func (e *DuplicateTaskIdError) Error() string {
	return fmt.Sprintf("duplicate task id: %q", e.ID)
}
func (e *DuplicateTaskIdError) configurationError() {}

// DependencyValidationError reports that a task declared a dependency on
// an id that was never registered.
type DependencyValidationError struct {
	TaskID       TaskId
	DependencyID TaskId
}

func (e *DependencyValidationError) Error() string {
	return fmt.Sprintf("task %q depends on unregistered task %q", e.TaskID, e.DependencyID)
}
func (e *DependencyValidationError) configurationError() {}

// CircularDependencyError reports a cycle in the dependency graph,
// naming one representative edge of the cycle.
type CircularDependencyError struct {
	TaskID       TaskId
	DependencyID TaskId
}

func (e *CircularDependencyError) Error() string {
	if e.TaskID == e.DependencyID {
		return fmt.Sprintf("task %q depends on itself", e.TaskID)
	}
	return fmt.Sprintf("circular dependency: %q -> %q", e.TaskID, e.DependencyID)
}
func (e *CircularDependencyError) configurationError() {}

// InvalidConfigurationError is the catch-all configuration error, used
// for cases like a duplicated prerequisite name.
type InvalidConfigurationError struct {
	Detail string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Detail)
}
func (e *InvalidConfigurationError) configurationError() {}

// PrerequisiteFailedError reports that a named prerequisite returned an
// error, aborting startup before any task was spawned.
type PrerequisiteFailedError struct {
	Name  string
	Cause error
}

func (e *PrerequisiteFailedError) Error() string {
	return fmt.Sprintf("prerequisite %q failed: %v", e.Name, e.Cause)
}
func (e *PrerequisiteFailedError) Unwrap() error { return e.Cause }
func (e *PrerequisiteFailedError) runtimeError() {}

// SetupFailedError reports that a task's Setup hook returned an error.
type SetupFailedError struct {
	TaskID TaskId
	Cause  error
}

func (e *SetupFailedError) Error() string {
	return fmt.Sprintf("task %q setup failed: %v", e.TaskID, e.Cause)
}
func (e *SetupFailedError) Unwrap() error { return e.Cause }
func (e *SetupFailedError) runtimeError() {}

// DependencySetupFailedError reports that a task observed a dependency
// terminate with SetupFailed or DependencyFailed and so never ran its
// own setup.
type DependencySetupFailedError struct {
	TaskID       TaskId
	DependencyID TaskId
}

func (e *DependencySetupFailedError) Error() string {
	return fmt.Sprintf("task %q will not run: dependency %q failed setup", e.TaskID, e.DependencyID)
}
func (e *DependencySetupFailedError) runtimeError() {}

// TaskExecutionFailedError reports that Run returned a non-nil error on
// the attempt that the restart policy treated as terminal.
type TaskExecutionFailedError struct {
	TaskID  TaskId
	Attempt int
	Cause   error
}

func (e *TaskExecutionFailedError) Error() string {
	return fmt.Sprintf("task %q failed on attempt %d: %v", e.TaskID, e.Attempt, e.Cause)
}
func (e *TaskExecutionFailedError) Unwrap() error  { return e.Cause }
func (e *TaskExecutionFailedError) executionError() {}

// TaskPanickedError reports that Run panicked on the attempt that the
// restart policy treated as terminal.
type TaskPanickedError struct {
	TaskID  TaskId
	Attempt int
	Message string
}

func (e *TaskPanickedError) Error() string {
	return fmt.Sprintf("task %q panicked on attempt %d: %s", e.TaskID, e.Attempt, e.Message)
}
func (e *TaskPanickedError) executionError() {}

// MaxAttemptsReachedError reports that a task's restart policy exhausted
// its attempt budget.
type MaxAttemptsReachedError struct {
	TaskID   TaskId
	Attempts int
}

func (e *MaxAttemptsReachedError) Error() string {
	return fmt.Sprintf("task %q reached max attempts (%d)", e.TaskID, e.Attempts)
}
func (e *MaxAttemptsReachedError) executionError() {}

// RestartPreventedError reports that Hooks.ShouldRestart vetoed a
// restart the policy would otherwise have allowed.
type RestartPreventedError struct {
	TaskID  TaskId
	Attempt int
}

func (e *RestartPreventedError) Error() string {
	return fmt.Sprintf("task %q restart prevented after attempt %d", e.TaskID, e.Attempt)
}
func (e *RestartPreventedError) executionError() {}

// RuntimeFailureError reports an unexpected engine-level failure not
// attributable to any single task's configuration or behavior.
type RuntimeFailureError struct {
	Detail string
}

func (e *RuntimeFailureError) Error() string { return fmt.Sprintf("runtime failure: %s", e.Detail) }
func (e *RuntimeFailureError) systemError()  {}

// InternalError reports a condition the runtime considers a bug in
// itself rather than in caller configuration or task behavior.
type InternalError struct {
	Detail string
}

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %s", e.Detail) }
func (e *InternalError) systemError()  {}
