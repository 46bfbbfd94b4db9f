/*
Package worker implements the fixed-size Worker Pool that drains a
bounded FIFO queue of generation Tasks. Each worker resolves the
Task's Provider Adapter from the Registry, invokes it, and reports
every landed image (and the final outcome) to a TaskSink — the Task
Manager owns all Task/Image row mutations, so the pool itself never
touches storage.

	pool := worker.NewPool(worker.Config{Workers: 6, QueueCapacity: 100}, registry, manager)
	pool.Start()
	if err := pool.Submit(task, params); err != nil {
		// apierr.KindQueueFull when at capacity
	}
*/
package worker
