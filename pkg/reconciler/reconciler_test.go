package reconciler

import (
	"testing"
	"time"

	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedTask(t *testing.T, st *storage.Storage, status types.TaskStatus, pendingImages int) *types.Task {
	t.Helper()
	task := &types.Task{
		ID:         string(status) + "-task",
		Status:     status,
		TotalCount: pendingImages,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, st.CreateTask(task))
	for i := 0; i < pendingImages; i++ {
		img := &types.Image{ID: task.ID + "-img-" + string(rune('a'+i)), TaskID: task.ID, Index: i, Status: types.ImageStatusPending}
		require.NoError(t, st.UpsertImage(img))
	}
	return task
}

func TestRunFinalizesNonTerminalTasks(t *testing.T) {
	st := newTestStorage(t)
	seedTask(t, st, types.TaskStatusQueued, 2)
	seedTask(t, st, types.TaskStatusProcessing, 1)
	completed := seedTask(t, st, types.TaskStatusCompleted, 0)

	require.NoError(t, New(st).Run())

	queued, err := st.GetTask("queued-task")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, queued.Status)
	assert.NotEmpty(t, queued.ErrorMessage)
	images, err := st.ListImagesByTask(queued.ID)
	require.NoError(t, err)
	assert.Empty(t, images)

	processing, err := st.GetTask("processing-task")
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, processing.Status)

	stillCompleted, err := st.GetTask(completed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, stillCompleted.Status)
}

func TestRunIsNoOpWithNoNonTerminalTasks(t *testing.T) {
	st := newTestStorage(t)
	seedTask(t, st, types.TaskStatusCompleted, 0)

	require.NoError(t, New(st).Run())
}
