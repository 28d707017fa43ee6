package supervisor

import (
	"context"
	"fmt"
)

// Prerequisite is a named asynchronous initializer run once, in
// registration order, before any supervised task is spawned.
type Prerequisite struct {
	Name string
	Fn   func(ctx context.Context) error
}

// runPrerequisites executes prereqs sequentially in order. The first
// failure aborts immediately; no prerequisite after it runs, and the
// caller is guaranteed that no task has been spawned yet.
func runPrerequisites(ctx context.Context, prereqs []Prerequisite) error {
	seen := make(map[string]struct{}, len(prereqs))
	for _, p := range prereqs {
		if _, dup := seen[p.Name]; dup {
			return &InvalidConfigurationError{Detail: fmt.Sprintf("duplicate prerequisite name: %q", p.Name)}
		}
		seen[p.Name] = struct{}{}
	}
	for _, p := range prereqs {
		if err := p.Fn(ctx); err != nil {
			return &PrerequisiteFailedError{Name: p.Name, Cause: err}
		}
	}
	return nil
}
