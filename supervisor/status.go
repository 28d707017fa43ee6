package supervisor

// SupervisionStatus is the terminal state a task's driver reaches.
type SupervisionStatus int

const (
	// CompletedNormally means Run returned nil on its last attempt.
	CompletedNormally SupervisionStatus = iota
	// MaxAttemptsReached means the restart policy exhausted its budget.
	MaxAttemptsReached
	// RestartPrevented means Hooks.ShouldRestart vetoed a restart.
	RestartPrevented
	// SetupFailed means the task's Setup hook returned an error.
	SetupFailed
	// DependencyFailed means a declared dependency never reached
	// SetupReady, so this task's own setup was never attempted.
	DependencyFailed
	// ManuallyStopped means the fleet was shut down before the task
	// reached any other terminal state.
	ManuallyStopped
)

func (s SupervisionStatus) String() string {
	switch s {
	case CompletedNormally:
		return "CompletedNormally"
	case MaxAttemptsReached:
		return "MaxAttemptsReached"
	case RestartPrevented:
		return "RestartPrevented"
	case SetupFailed:
		return "SetupFailed"
	case DependencyFailed:
		return "DependencyFailed"
	case ManuallyStopped:
		return "ManuallyStopped"
	default:
		return "Unknown"
	}
}

// SupervisionResult is the terminal report a task's driver produces.
type SupervisionResult struct {
	TaskID        TaskId
	TaskName      string
	TotalAttempts int
	FinalStatus   SupervisionStatus
}
