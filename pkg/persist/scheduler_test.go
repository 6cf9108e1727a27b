package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/merlin/pkg/core"
)

type fakeProvider struct {
	mu   sync.Mutex
	snap map[core.TaskId]TaskSnapshot
}

func (f *fakeProvider) Snapshot(id core.TaskId) (TaskSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snap[id]
	return s, ok
}

func TestSchedulerSavesOnTerminalEvent(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id := core.NewTaskId()
	provider := &fakeProvider{snap: map[core.TaskId]TaskSnapshot{
		id: {TaskId: id, Result: &core.TaskResult{TaskId: id, Success: true}},
	}}

	events := make(chan core.Event, 4)
	sched := NewScheduler(store, provider, events, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { sched.Run(ctx); close(done) }()

	events <- core.Event{Kind: core.EventTaskStarted, TaskId: id}
	events <- core.Event{Kind: core.EventTaskCompleted, TaskId: id}

	require.Eventually(t, func() bool {
		_, err := store.LoadTask(id)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
