package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/log"
	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/provider"
	"github.com/cuemby/pixelforge/pkg/types"
)

// Outcome is what a Pool reports back to a TaskSink once a Task's
// upstream work is done: every produced image result, in upstream
// order, plus a fatal error when the adapter call failed or the task
// was canceled (images that landed before a cancel are reported through
// OnImage, not carried here).
type Outcome struct {
	Images   []provider.ImageResult
	FatalErr error
}

// TaskSink is the single writer for Task rows (implemented by
// pkg/manager.Manager). The Pool never touches Task or Image rows
// itself; it only resolves an adapter, calls it, and reports the
// outcome.
type TaskSink interface {
	Start(ctx context.Context, taskID string) error
	OnImage(ctx context.Context, taskID string, index int, result provider.ImageResult) error
	Finalize(ctx context.Context, taskID string, outcome Outcome) error
}

// Config controls the Pool's parallelism and backpressure.
type Config struct {
	Workers       int // fixed worker count, default 6
	QueueCapacity int // bounded FIFO queue capacity, default 100
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 6
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	return c
}

// item is one queued unit of work: a Task plus the frozen params its
// adapter call should use, and the per-task context that Generate is
// driven with.
type item struct {
	task   *types.Task
	params types.GenerateParams
	ctx    context.Context
}

// Pool is the fixed-size worker pool that drains a bounded FIFO queue
// of Tasks, invoking each Task's Provider Adapter and reporting image
// results back to the TaskSink as they land.
type Pool struct {
	cfg      Config
	registry *provider.Registry
	sink     TaskSink

	queue  chan item
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cancelsMu sync.Mutex
	cancels   map[string]context.CancelFunc
}

// NewPool creates a Pool. Call Start to begin processing.
func NewPool(cfg Config, registry *provider.Registry, sink TaskSink) *Pool {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		queue:    make(chan item, cfg.QueueCapacity),
		ctx:      ctx,
		cancel:   cancel,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start launches the fixed worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

// Shutdown cancels in-flight work and waits for every worker to
// return. In-flight adapter calls observe the canceled context at
// their next upstream I/O boundary; partially produced images are
// preserved because the worker reports every image the adapter
// returned to the sink before finalizing the task as canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues task for processing with the given frozen params. A
// per-task cancellation handle is registered immediately, so Cancel
// can interrupt the task whether it is still queued or already being
// processed. Non-blocking: returns a KindQueueFull error immediately
// if the queue is at capacity rather than blocking the caller.
func (p *Pool) Submit(task *types.Task, params types.GenerateParams) error {
	taskCtx, cancel := withTaskDeadline(p.ctx, task.Timeout)
	p.registerCancel(task.ID, cancel)

	select {
	case p.queue <- item{task: task, params: params, ctx: taskCtx}:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		p.clearCancel(task.ID)
		metrics.TasksRejectedTotal.WithLabelValues("queue-full").Inc()
		return apierr.New(apierr.KindQueueFull, "worker queue is at capacity")
	}
}

// Cancel cooperatively cancels taskID's cancellation handle, whether
// the task is still queued or mid-flight in an adapter call. Reports
// false when no handle is registered — the task is unknown to the
// pool or has already finished.
func (p *Pool) Cancel(taskID string) bool {
	p.cancelsMu.Lock()
	cancel, ok := p.cancels[taskID]
	p.cancelsMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (p *Pool) registerCancel(taskID string, cancel context.CancelFunc) {
	p.cancelsMu.Lock()
	p.cancels[taskID] = cancel
	p.cancelsMu.Unlock()
}

// clearCancel releases a task's cancellation handle once it is no
// longer eligible for cancellation (rejected at submit, or finished
// processing).
func (p *Pool) clearCancel(taskID string) {
	p.cancelsMu.Lock()
	cancel, ok := p.cancels[taskID]
	delete(p.cancels, taskID)
	p.cancelsMu.Unlock()
	if ok {
		cancel()
	}
}

// withTaskDeadline derives a cancelable context for one task's adapter
// call: parent's cancellation (process shutdown) always applies, plus
// the task's own Timeout when set, plus an independent manual cancel
// a caller can trigger through Cancel. The returned CancelFunc release
// every layer.
func withTaskDeadline(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	deadlineCtx, deadlineCancel := context.WithTimeout(parent, timeout)
	taskCtx, taskCancel := context.WithCancel(deadlineCtx)
	return taskCtx, func() {
		taskCancel()
		deadlineCancel()
	}
}

// QueueDepth reports the current number of queued, not-yet-picked-up
// items.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	logger := log.WithComponent("worker-pool")

	for {
		select {
		case it := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			metrics.WorkersBusy.Inc()
			p.process(it)
			metrics.WorkersBusy.Dec()
		case <-p.ctx.Done():
			logger.Debug().Int("worker_id", id).Msg("worker stopping")
			return
		}
	}
}

func (p *Pool) process(it item) {
	taskLogger := log.WithTaskID(it.task.ID)
	defer p.clearCancel(it.task.ID)

	adapter, err := p.registry.Get(it.task.Provider)
	if err != nil {
		taskLogger.Error().Err(err).Msg("unknown provider at dequeue time")
		_ = p.sink.Finalize(p.ctx, it.task.ID, Outcome{FatalErr: err})
		return
	}

	if err := p.sink.Start(p.ctx, it.task.ID); err != nil {
		taskLogger.Error().Err(err).Msg("failed to mark task processing")
		_ = p.sink.Finalize(p.ctx, it.task.ID, Outcome{FatalErr: err})
		return
	}

	timer := metrics.NewTimer()
	result, err := adapter.Generate(it.ctx, it.params)
	timer.ObserveDurationVec(metrics.ProviderRequestDuration, adapter.Name())

	// A canceled task context (client delete, a Task.Timeout deadline,
	// or pool Shutdown, since it.ctx derives from p.ctx) wins over any
	// error or partial result Generate returned: the task finalizes as
	// failed("canceled") regardless of how many images had already
	// landed, and whatever landed is preserved. The sink calls below use
	// p.ctx.
	if it.ctx.Err() != nil {
		taskLogger.Info().Str("provider", adapter.Name()).Msg("task canceled mid-flight")
		metrics.ProviderRequestsTotal.WithLabelValues(adapter.Name(), "canceled").Inc()
		if result != nil {
			for i, img := range result.Images {
				if img.Err != nil {
					continue
				}
				if err := p.sink.OnImage(p.ctx, it.task.ID, i, img); err != nil {
					taskLogger.Error().Err(err).Int("index", i).Msg("failed to record landed image")
				}
			}
		}
		_ = p.sink.Finalize(p.ctx, it.task.ID, Outcome{FatalErr: apierr.New(apierr.KindCanceled, "canceled")})
		return
	}

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(adapter.Name(), "error").Inc()
		taskLogger.Error().Err(err).Str("provider", adapter.Name()).Msg("adapter generate failed")
		_ = p.sink.Finalize(p.ctx, it.task.ID, Outcome{FatalErr: err})
		return
	}
	metrics.ProviderRequestsTotal.WithLabelValues(adapter.Name(), "success").Inc()

	for i, img := range result.Images {
		if err := p.sink.OnImage(p.ctx, it.task.ID, i, img); err != nil {
			taskLogger.Error().Err(err).Int("index", i).Msg("failed to record landed image")
		}
	}

	if err := p.sink.Finalize(p.ctx, it.task.ID, Outcome{Images: result.Images}); err != nil {
		taskLogger.Error().Err(err).Msg("failed to finalize task")
	}
}
