package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/merlin/pkg/core"
	"github.com/ternarybob/merlin/pkg/lock"
)

func TestCommitAppliesOverlayAtomically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.go"), []byte("package lib"), 0o644))

	st, err := Load(dir)
	require.NoError(t, err)

	locks := lock.New()
	tw, err := New(core.TaskId("t1"), []string{"lib.go", "bar.go"}, st, locks)
	require.NoError(t, err)

	tw.Modify("lib.go", "package lib2")
	tw.Create("bar.go", "package lib\nfunc Bar() {}\n")

	require.NoError(t, tw.Commit())

	content, ok := st.Read("lib.go")
	require.True(t, ok)
	require.Equal(t, "package lib2", content)

	content, ok = st.Read("bar.go")
	require.True(t, ok)
	require.Contains(t, content, "func Bar")

	onDisk, err := os.ReadFile(filepath.Join(dir, "bar.go"))
	require.NoError(t, err)
	require.Contains(t, string(onDisk), "func Bar")
}

func TestCommitConflictOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.go"), []byte("package lib"), 0o644))

	st, err := Load(dir)
	require.NoError(t, err)
	locks := lock.New()

	tw, err := New(core.TaskId("t1"), []string{"lib.go"}, st, locks)
	require.NoError(t, err)
	tw.Modify("lib.go", "package lib2")

	// Simulate a concurrent external mutation bumping the base version
	// after tw's construction but before its commit.
	require.NoError(t, st.ApplyChanges([]core.FileChange{{Kind: core.ChangeModify, Path: "lib.go", Content: "package lib3"}}))

	err = tw.Commit()
	require.Error(t, err)
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRollbackDiscardsOverlayAndReleasesLocks(t *testing.T) {
	dir := t.TempDir()
	st, err := Load(dir)
	require.NoError(t, err)
	locks := lock.New()

	tw, err := New(core.TaskId("t1"), []string{"new.go"}, st, locks)
	require.NoError(t, err)
	tw.Create("new.go", "package lib")
	tw.Rollback()

	_, ok := st.Read("new.go")
	require.False(t, ok)

	// Lock must be released: another task can now acquire it.
	tw2, err := New(core.TaskId("t2"), []string{"new.go"}, st, locks)
	require.NoError(t, err)
	tw2.Rollback()
}
