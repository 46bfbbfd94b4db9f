package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/events"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/provider"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/cuemby/pixelforge/pkg/worker"
	"github.com/google/uuid"
)

// Manager is the single writer for Task rows and the only component
// that emits Progress Bus events. It implements worker.TaskSink so the
// Worker Pool reports landed images and final outcomes back through
// it rather than touching storage directly.
type Manager struct {
	store    *storage.Storage
	registry *provider.Registry
	bus      *events.Bus
	pool     *worker.Pool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a Manager over store, registry, and bus. SetPool must be
// called once the Worker Pool exists, since the Pool itself depends on
// the Manager as its TaskSink — callers construct the Manager first,
// build the Pool with it as the sink, then call SetPool.
func New(store *storage.Storage, registry *provider.Registry, bus *events.Bus) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		bus:      bus,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetPool wires the Worker Pool used to execute Submitted tasks.
func (m *Manager) SetPool(pool *worker.Pool) {
	m.pool = pool
}

func (m *Manager) taskLock(id string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Manager) dropLock(id string) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	delete(m.locks, id)
}

// Create validates params against providerName's adapter, persists the
// Task and its placeholder Image rows, opens the Task's Progress Bus
// topic, and enqueues it on the Worker Pool. If the pool's queue is
// full, nothing is left behind: the Task row is rolled back and a
// KindQueueFull error is returned.
func (m *Manager) Create(ctx context.Context, providerName string, params types.GenerateParams) (*types.Task, error) {
	adapter, err := m.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	if err := adapter.Validate(params); err != nil {
		return nil, err
	}

	timeout := 60 * time.Second
	if cfg, err := m.store.GetProviderConfig(providerName); err == nil && cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	now := time.Now()
	snapshot, err := json.Marshal(params)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidParams, "failed to snapshot params", err)
	}

	task := &types.Task{
		ID:             uuid.NewString(),
		Prompt:         params.Prompt,
		Provider:       providerName,
		ModelID:        params.ModelID,
		Timeout:        timeout,
		AspectRatio:    params.AspectRatio,
		ImageSize:      params.ImageSize,
		Count:          params.Count,
		RefImages:      params.RefImages,
		Status:         types.TaskStatusQueued,
		TotalCount:     params.Count,
		CreatedAt:      now,
		UpdatedAt:      now,
		ParamsSnapshot: snapshot,
	}

	if err := m.store.CreateTask(task); err != nil {
		return nil, apierr.Wrap(apierr.KindIOError, "failed to persist task", err)
	}

	for i := 0; i < params.Count; i++ {
		placeholder := &types.Image{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			Index:     i,
			Status:    types.ImageStatusPending,
			CreatedAt: now,
		}
		if err := m.store.UpsertImage(placeholder); err != nil {
			_ = m.store.DeleteTaskCascade(task.ID)
			return nil, apierr.Wrap(apierr.KindIOError, "failed to persist placeholder image", err)
		}
	}

	m.bus.Open(task.ID)

	if err := m.pool.Submit(task, params); err != nil {
		_ = m.store.DeleteTaskCascade(task.ID)
		m.bus.CloseAfterGrace(task.ID)
		m.dropLock(task.ID)
		return nil, err
	}

	metrics.TasksSubmittedTotal.Inc()
	metrics.TasksTotal.WithLabelValues(string(types.TaskStatusQueued)).Inc()
	log.WithTaskID(task.ID).Info().Str("provider", providerName).Int("count", params.Count).Msg("task queued")

	return task, nil
}

// Start transitions a Task from queued to processing and emits the
// topic's start event. Called by the Worker Pool immediately after it
// dequeues the Task, before invoking the adapter.
func (m *Manager) Start(ctx context.Context, taskID string) error {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.GetTask(taskID)
	if err != nil {
		return apierr.Wrap(apierr.KindIOError, "task not found at start", err)
	}

	metrics.TasksTotal.WithLabelValues(string(task.Status)).Dec()
	task.Status = types.TaskStatusProcessing
	task.UpdatedAt = time.Now()
	if err := m.store.UpdateTask(task); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to mark task processing", err)
	}
	metrics.TasksTotal.WithLabelValues(string(task.Status)).Inc()

	m.bus.Publish(&events.Event{TaskID: taskID, Type: events.EventStart, Total: task.TotalCount})
	return nil
}

// OnImage upserts the Image row at index with result's outcome — bytes
// landed via Storage on success, or an error message on failure —
// recomputes completedCount, and emits a progress event.
func (m *Manager) OnImage(ctx context.Context, taskID string, index int, result provider.ImageResult) error {
	lock := m.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	images, err := m.store.ListImagesByTask(taskID)
	if err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to list images", err)
	}
	var target *types.Image
	for _, img := range images {
		if img.Index == index {
			target = img
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no placeholder image at index %d for task %s", index, taskID)
	}

	if result.Err != nil {
		target.Status = types.ImageStatusFailed
		target.ErrorMessage = result.Err.Error()
		if err := m.store.UpsertImage(target); err != nil {
			return apierr.Wrap(apierr.KindIOError, "failed to persist failed image", err)
		}
	} else {
		target.Status = types.ImageStatusSuccess
		target.Width = result.Width
		target.Height = result.Height
		target.MIME = result.MIME
		if err := m.store.LandImage(target, result.Bytes, extFromMIME(result.MIME), nil, ""); err != nil {
			target.Status = types.ImageStatusFailed
			target.ErrorMessage = err.Error()
			_ = m.store.UpsertImage(target)
		}
	}
	metrics.ImagesTotal.WithLabelValues(string(target.Status)).Inc()

	task, err := m.store.GetTask(taskID)
	if err != nil {
		return apierr.Wrap(apierr.KindIOError, "task not found on image landed", err)
	}
	task.CompletedCount++
	task.UpdatedAt = time.Now()
	if err := m.store.UpdateTask(task); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to update task counters", err)
	}

	m.bus.Publish(&events.Event{
		TaskID:    taskID,
		Type:      events.EventProgress,
		Completed: task.CompletedCount,
		Total:     task.TotalCount,
		Image:     target,
	})
	return nil
}

// Finalize writes the Task's terminal status and completedAt, emits
// complete/error, and tears the Progress Bus topic down after its
// grace window. A non-nil outcome.FatalErr means the adapter call
// failed or the task was canceled; images already landed through
// OnImage stay, and any still-pending placeholders are removed rather
// than left dangling.
func (m *Manager) Finalize(ctx context.Context, taskID string, outcome worker.Outcome) error {
	lock := m.taskLock(taskID)
	defer m.dropLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.GetTask(taskID)
	if err != nil {
		return apierr.Wrap(apierr.KindIOError, "task not found at finalize", err)
	}

	metrics.TasksTotal.WithLabelValues(string(task.Status)).Dec()
	now := time.Now()
	task.CompletedAt = now
	task.UpdatedAt = now

	if outcome.FatalErr != nil {
		task.Status = types.TaskStatusFailed
		task.ErrorMessage = outcome.FatalErr.Error()
		if err := m.clearPendingPlaceholders(taskID); err != nil {
			log.WithTaskID(taskID).Error().Err(err).Msg("failed to clear pending placeholders")
		}
	} else {
		images, err := m.store.ListImagesByTask(taskID)
		if err != nil {
			return apierr.Wrap(apierr.KindIOError, "failed to list images at finalize", err)
		}
		succeeded := 0
		for _, img := range images {
			if img.Status == types.ImageStatusSuccess {
				succeeded++
			}
		}
		switch {
		case succeeded == task.TotalCount:
			task.Status = types.TaskStatusCompleted
		case succeeded > 0:
			task.Status = types.TaskStatusPartial
			task.ErrorMessage = fmt.Sprintf("%d of %d images failed", task.TotalCount-succeeded, task.TotalCount)
		default:
			task.Status = types.TaskStatusFailed
			task.ErrorMessage = "all images failed"
		}
	}

	if err := m.store.UpdateTask(task); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to persist final task status", err)
	}
	metrics.TasksTotal.WithLabelValues(string(task.Status)).Inc()
	metrics.TaskDuration.Observe(task.CompletedAt.Sub(task.CreatedAt).Seconds())

	if task.Status == types.TaskStatusFailed {
		m.bus.Publish(&events.Event{TaskID: taskID, Type: events.EventError, Message: task.ErrorMessage})
	} else {
		m.bus.Publish(&events.Event{TaskID: taskID, Type: events.EventComplete, Completed: task.CompletedCount, Total: task.TotalCount})
	}
	m.bus.CloseAfterGrace(taskID)

	log.WithTaskID(taskID).Info().Str("status", string(task.Status)).Msg("task finalized")
	return nil
}

func (m *Manager) clearPendingPlaceholders(taskID string) error {
	images, err := m.store.ListImagesByTask(taskID)
	if err != nil {
		return err
	}
	for _, img := range images {
		if img.Status == types.ImageStatusPending {
			if err := m.store.DeleteImage(img.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a Task. A non-terminal Task is not cascaded away
// directly: its in-flight worker is cooperatively canceled instead,
// and the Pool's own Finalize call lands the Task as failed("canceled")
// once it observes the cancellation, preserving any images that had
// already succeeded. A terminal (or unknown) Task is cascaded from
// Storage immediately. Idempotent either way: a Task that no longer
// exists, or that has nothing left to cancel, is not an error.
func (m *Manager) Delete(ctx context.Context, taskID string) error {
	lock := m.taskLock(taskID)
	lock.Lock()

	task, err := m.store.GetTask(taskID)
	if err != nil {
		lock.Unlock()
		m.dropLock(taskID)
		return nil
	}

	if !task.Status.Terminal() && m.pool != nil && m.pool.Cancel(taskID) {
		lock.Unlock()
		log.WithTaskID(taskID).Info().Msg("task canceled by client delete")
		return nil
	}

	defer m.dropLock(taskID)
	defer lock.Unlock()
	if err := m.store.DeleteTaskCascade(taskID); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to delete task", err)
	}
	return nil
}

// Get returns a Task by id.
func (m *Manager) Get(taskID string) (*types.Task, error) {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidParams, "task not found")
	}
	return task, nil
}

// List returns a page of Tasks matching filter.
func (m *Manager) List(filter storage.TaskFilter, page storage.Page) ([]*types.Task, int, error) {
	return m.store.ListTasks(filter, page)
}

// Images returns every Image row for taskID, in index order.
func (m *Manager) Images(taskID string) ([]*types.Image, error) {
	return m.store.ListImagesByTask(taskID)
}

// FindImage returns a single Image row by id.
func (m *Manager) FindImage(imageID string) (*types.Image, error) {
	img, err := m.store.FindImage(imageID)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidParams, "image not found")
	}
	return img, nil
}

// DeleteImage removes imageID's row and bytes. If that was the last
// remaining Image for its owning Task, the whole Task is cascaded away
// too rather than left behind with zero images.
func (m *Manager) DeleteImage(imageID string) error {
	img, err := m.store.FindImage(imageID)
	if err != nil {
		return apierr.New(apierr.KindInvalidParams, "image not found")
	}

	lock := m.taskLock(img.TaskID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Blobs.Remove(img.Path); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to remove image bytes", err)
	}
	if err := m.store.Blobs.Remove(img.ThumbPath); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to remove thumbnail bytes", err)
	}
	if err := m.store.DeleteImage(img.ID); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to delete image row", err)
	}

	remaining, err := m.store.ListImagesByTask(img.TaskID)
	if err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to list remaining images", err)
	}
	if len(remaining) == 0 {
		if err := m.store.DeleteTaskCascade(img.TaskID); err != nil {
			return apierr.Wrap(apierr.KindIOError, "failed to cascade empty task", err)
		}
	}
	return nil
}

// Subscribe attaches to taskID's Progress Bus topic, for the HTTP
// streaming endpoint. ok is false when no topic is open (unknown task,
// or its grace window already elapsed).
func (m *Manager) Subscribe(taskID string) (<-chan *events.Event, bool) {
	return m.bus.Subscribe(taskID)
}

// Unsubscribe detaches ch from taskID's topic.
func (m *Manager) Unsubscribe(taskID string, ch <-chan *events.Event) {
	m.bus.Unsubscribe(taskID, ch)
}

// ListProviderConfigs returns every stored ProviderConfig, regardless
// of whether its adapter is currently registered.
func (m *Manager) ListProviderConfigs() ([]*types.ProviderConfig, error) {
	return m.store.ListProviderConfigs()
}

// GetProviderConfig returns one stored ProviderConfig by name.
func (m *Manager) GetProviderConfig(name string) (*types.ProviderConfig, error) {
	cfg, err := m.store.GetProviderConfig(name)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidParams, "unknown provider: "+name)
	}
	return cfg, nil
}

// UpsertProviderConfig persists cfg and reloads the Provider Registry
// so the change takes effect immediately for new Tasks.
func (m *Manager) UpsertProviderConfig(cfg *types.ProviderConfig) error {
	if err := m.store.UpsertProviderConfig(cfg); err != nil {
		return apierr.Wrap(apierr.KindIOError, "failed to persist provider config", err)
	}
	return m.registry.Reload()
}

// ProviderNames returns the live, enabled adapter names.
func (m *Manager) ProviderNames() []string {
	return m.registry.List()
}

// ResolveAdapter returns the live adapter for name, for callers (like
// the prompt-optimize endpoint) that need capabilities beyond Create.
func (m *Manager) ResolveAdapter(name string) (provider.Adapter, error) {
	return m.registry.Get(name)
}

func extFromMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		if idx := strings.LastIndex(mime, "/"); idx >= 0 && idx+1 < len(mime) {
			return mime[idx+1:]
		}
		return "bin"
	}
}
