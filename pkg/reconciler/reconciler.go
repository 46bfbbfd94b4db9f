// Package reconciler runs the one-time startup pass that finalizes any
// Task left non-terminal by a previous crash, per the
// restart-reconciliation policy: upstream provider state cannot be
// queried after a restart, so queued/processing Tasks are conservatively
// failed rather than resumed.
package reconciler

import (
	"fmt"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/storage"
	"github.com/cuemby/pixelforge/pkg/types"
	"github.com/rs/zerolog"
)

// Reconciler performs the startup reconciliation pass directly against
// Storage. It runs before the Worker Pool and HTTP API start accepting
// work, so it never races a live Task Manager.
type Reconciler struct {
	store  *storage.Storage
	logger zerolog.Logger
}

// New creates a Reconciler over store.
func New(store *storage.Storage) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: log.WithComponent("reconciler"),
	}
}

// Run finalizes every Task persisted as queued or processing as
// failed("restart"), deleting their pending placeholder Images. It
// must complete before the service accepts new submissions.
func (r *Reconciler) Run() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	tasks, err := r.store.ListNonTerminalTasks()
	if err != nil {
		return fmt.Errorf("failed to list non-terminal tasks: %w", err)
	}

	r.logger.Info().Int("count", len(tasks)).Msg("reconciling non-terminal tasks from previous run")

	for _, task := range tasks {
		previousStatus := task.Status
		if err := r.reconcileOne(task); err != nil {
			r.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to reconcile task")
			continue
		}
		r.logger.Warn().Str("task_id", task.ID).Str("previous_status", string(previousStatus)).Msg("task force-finalized after restart")
		metrics.ReconciledTasksTotal.Inc()
	}

	return nil
}

func (r *Reconciler) reconcileOne(task *types.Task) error {
	images, err := r.store.ListImagesByTask(task.ID)
	if err != nil {
		return fmt.Errorf("failed to list images for task %s: %w", task.ID, err)
	}
	for _, img := range images {
		if img.Status != types.ImageStatusPending {
			continue
		}
		if err := r.store.DeleteImage(img.ID); err != nil {
			return fmt.Errorf("failed to delete pending image %s: %w", img.ID, err)
		}
	}

	restartErr := apierr.New(apierr.KindRestart, "task was non-terminal at process start")
	task.Status = types.TaskStatusFailed
	task.ErrorMessage = restartErr.Error()
	if err := r.store.UpdateTask(task); err != nil {
		return fmt.Errorf("failed to mark task %s failed: %w", task.ID, err)
	}
	return nil
}
