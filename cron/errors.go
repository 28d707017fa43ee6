package cron

import "fmt"

// ConfigurationError is implemented by every error that rejects a
// registration before the scheduler accepts it.
type ConfigurationError interface {
	error
	configurationError()
}

// InvalidCronExpressionError reports a schedule string that does not
// parse: the wrong number of fields, an out-of-range value, or a
// malformed range/step/list.
type InvalidCronExpressionError struct {
	FieldIndex int
	Text       string
	Reason     string
}

func (e *InvalidCronExpressionError) Error() string {
	if e.FieldIndex < 0 {
		return fmt.Sprintf("invalid cron expression %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("invalid cron expression field %d (%q): %s", e.FieldIndex, e.Text, e.Reason)
}
func (e *InvalidCronExpressionError) configurationError() {}

// DuplicateJobIdError reports that two jobs were registered under the
// same id.
type DuplicateJobIdError struct {
	ID string
}

func (e *DuplicateJobIdError) Error() string { return fmt.Sprintf("duplicate job id: %q", e.ID) }
func (e *DuplicateJobIdError) configurationError() {}

// UnsatisfiableScheduleError reports a schedule that is syntactically
// valid but provably satisfiable only in the past, such as a literal
// year field earlier than the registration time.
type UnsatisfiableScheduleError struct {
	Expr string
}

func (e *UnsatisfiableScheduleError) Error() string {
	return fmt.Sprintf("schedule %q never fires at or after registration", e.Expr)
}
func (e *UnsatisfiableScheduleError) configurationError() {}
