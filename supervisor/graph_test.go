package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGraphTopologicalOrder(t *testing.T) {
	order := []TaskId{"a", "b", "c"}
	deps := map[TaskId][]TaskId{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	}
	topo, err := validateGraph(order, deps)
	require.NoError(t, err)
	assert.Equal(t, []TaskId{"a", "b", "c"}, topo)
}

func TestValidateGraphUnknownDependency(t *testing.T) {
	order := []TaskId{"a"}
	deps := map[TaskId][]TaskId{"a": {"ghost"}}
	_, err := validateGraph(order, deps)
	require.Error(t, err)
	var depErr *DependencyValidationError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, TaskId("a"), depErr.TaskID)
	assert.Equal(t, TaskId("ghost"), depErr.DependencyID)
}

func TestValidateGraphSelfLoop(t *testing.T) {
	order := []TaskId{"a"}
	deps := map[TaskId][]TaskId{"a": {"a"}}
	_, err := validateGraph(order, deps)
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, TaskId("a"), cycleErr.TaskID)
	assert.Equal(t, TaskId("a"), cycleErr.DependencyID)
}

func TestValidateGraphCycle(t *testing.T) {
	order := []TaskId{"a", "b"}
	deps := map[TaskId][]TaskId{
		"a": {"b"},
		"b": {"a"},
	}
	_, err := validateGraph(order, deps)
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

func TestValidateGraphEmptyDependencies(t *testing.T) {
	order := []TaskId{"solo"}
	deps := map[TaskId][]TaskId{"solo": nil}
	topo, err := validateGraph(order, deps)
	require.NoError(t, err)
	assert.Equal(t, []TaskId{"solo"}, topo)
}
