package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/merlin/pkg/core"
)

func task(id string, deps []string, writes []string) *core.Task {
	d := make([]core.TaskId, len(deps))
	for i, s := range deps {
		d[i] = core.TaskId(s)
	}
	return &core.Task{
		ID:        core.TaskId(id),
		DependsOn: d,
		Context:   &core.TaskContextSpec{WriteSet: writes},
	}
}

func TestCycleRejection(t *testing.T) {
	a := task("a", []string{"b"}, nil)
	b := task("b", []string{"a"}, nil)

	_, err := New([]*core.Task{a, b})
	require.Error(t, err)
	var cyc *core.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
}

func TestDependencyRespect(t *testing.T) {
	a := task("a", nil, nil)
	b := task("b", []string{"a"}, nil)

	s, err := New([]*core.Task{a, b})
	require.NoError(t, err)

	ready := s.ReadyNonConflicting(nil, nil)
	require.Len(t, ready, 1)
	require.Equal(t, core.TaskId("a"), ready[0].ID)

	ready = s.ReadyNonConflicting(map[core.TaskId]bool{"a": true}, nil)
	require.Len(t, ready, 1)
	require.Equal(t, core.TaskId("b"), ready[0].ID)
}

func TestFileConflictSerialization(t *testing.T) {
	a := task("a", nil, []string{"src/lib.rs"})
	b := task("b", nil, []string{"src/lib.rs"})

	s, err := New([]*core.Task{a, b})
	require.NoError(t, err)

	ready := s.ReadyNonConflicting(nil, nil)
	require.Len(t, ready, 1, "conflicting write-sets must not both be ready at once")
	require.Equal(t, core.TaskId("a"), ready[0].ID, "smaller id wins the tie-break")

	running := map[core.TaskId]bool{"a": true}
	ready = s.ReadyNonConflicting(nil, running)
	require.Len(t, ready, 0)

	ready = s.ReadyNonConflicting(map[core.TaskId]bool{"a": true}, nil)
	require.Len(t, ready, 1)
	require.Equal(t, core.TaskId("b"), ready[0].ID)
}

func TestIsComplete(t *testing.T) {
	a := task("a", nil, nil)
	b := task("b", nil, nil)
	s, err := New([]*core.Task{a, b})
	require.NoError(t, err)

	require.False(t, s.IsComplete(map[core.TaskId]bool{"a": true}))
	require.True(t, s.IsComplete(map[core.TaskId]bool{"a": true, "b": true}))
}

func TestDisjointWriteSetsRunInParallel(t *testing.T) {
	a := task("a", nil, []string{"a.go"})
	b := task("b", nil, []string{"b.go"})
	s, err := New([]*core.Task{a, b})
	require.NoError(t, err)

	ready := s.ReadyNonConflicting(nil, nil)
	require.Len(t, ready, 2)
}
