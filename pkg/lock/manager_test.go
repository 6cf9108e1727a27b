package lock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/merlin/pkg/core"
)

func TestAcquireWriteExclusive(t *testing.T) {
	m := New()
	a, b := core.TaskId("a"), core.TaskId("b")

	scope, err := m.AcquireWrite(a, []string{"src/lib.rs"})
	require.NoError(t, err)
	require.NotNil(t, scope)

	_, err = m.AcquireWrite(b, []string{"src/lib.rs"})
	require.Error(t, err)
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, a, conflict.Holder)

	scope.Release()

	scope2, err := m.AcquireWrite(b, []string{"src/lib.rs"})
	require.NoError(t, err)
	scope2.Release()
}

func TestAcquireReadSharedWriteExclusive(t *testing.T) {
	m := New()
	a, b, c := core.TaskId("a"), core.TaskId("b"), core.TaskId("c")

	r1, err := m.AcquireRead(a, []string{"f"})
	require.NoError(t, err)
	r2, err := m.AcquireRead(b, []string{"f"})
	require.NoError(t, err)

	_, err = m.AcquireWrite(c, []string{"f"})
	require.Error(t, err)

	r1.Release()
	r2.Release()

	w, err := m.AcquireWrite(c, []string{"f"})
	require.NoError(t, err)
	w.Release()
}

func TestAcquireAllOrNothing(t *testing.T) {
	m := New()
	a, b := core.TaskId("a"), core.TaskId("b")

	s1, err := m.AcquireWrite(a, []string{"x"})
	require.NoError(t, err)
	defer s1.Release()

	_, err = m.AcquireWrite(b, []string{"y", "x", "z"})
	require.Error(t, err)

	// y and z must not have been left locked by the failed attempt.
	s2, err := m.AcquireWrite(b, []string{"y", "z"})
	require.NoError(t, err)
	s2.Release()
}

func TestSortedAcquisitionOrderIsDeterministic(t *testing.T) {
	m := New()
	owner := core.TaskId("a")
	scope, err := m.AcquireWrite(owner, []string{"z", "a", "m"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "m", "z"}, scope.write)
	scope.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := New()
	owner := core.TaskId("a")
	scope, err := m.AcquireWrite(owner, []string{"f"})
	require.NoError(t, err)
	scope.Release()
	require.NotPanics(t, func() { scope.Release() })
}
