package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/core"
)

func TestSaveAndLoadTaskRoundTrips(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	taskId := core.NewTaskId()
	snap := TaskSnapshot{
		TaskId:    taskId,
		Task:      &core.Task{ID: taskId, Description: "add a widget endpoint"},
		List:      &core.TaskList{ID: "list-1", Title: "widget", Steps: []*core.TaskStep{{ID: core.NewStepId(), Status: core.StepCompleted}}},
		Result:    &core.TaskResult{TaskId: taskId, Success: true, Text: "done"},
		CreatedAt: 100,
		UpdatedAt: 200,
	}
	require.NoError(t, store.SaveTask(snap))

	loaded, err := store.LoadTask(taskId)
	require.NoError(t, err)
	require.Equal(t, snap.Task.Description, loaded.Task.Description)
	require.Equal(t, snap.Result.Text, loaded.Result.Text)
	require.Len(t, loaded.List.Steps, 1)
}

func TestLoadTaskMissingReturnsNotFound(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadTask(core.NewTaskId())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksReflectsSavedEntries(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	a, b := core.NewTaskId(), core.NewTaskId()
	require.NoError(t, store.SaveTask(TaskSnapshot{TaskId: a, UpdatedAt: 1}))
	require.NoError(t, store.SaveTask(TaskSnapshot{TaskId: b, UpdatedAt: 2}))

	entries, err := store.ListTasks()
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestDeleteTaskRemovesFileAndIndex(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id := core.NewTaskId()
	require.NoError(t, store.SaveTask(TaskSnapshot{TaskId: id}))
	require.NoError(t, store.DeleteTask(id))

	_, err = store.LoadTask(id)
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := store.ListTasks()
	require.NoError(t, err)
	require.Empty(t, entries)
}
