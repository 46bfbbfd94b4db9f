/*
Package manager implements the Task Manager: the single writer for
Task and Image rows and the only component that emits Progress Bus
events.

A Manager sits between the HTTP API and the Worker Pool. Create
validates a request against its Provider Adapter, persists the Task
row plus one pending Image placeholder per requested count, opens the
Task's Progress Bus topic, and submits it to the Worker Pool. The Pool
calls back into the Manager — which implements worker.TaskSink — as
each image lands and once the task's upstream work is finished:

	mgr := manager.New(store, registry, bus)
	pool := worker.NewPool(worker.Config{}, registry, mgr)
	mgr.SetPool(pool)
	pool.Start()

	task, err := mgr.Create(ctx, "gemini", params)

Every Task mutation acquires a per-task mutex (see taskLock) so
concurrent callbacks from the Pool and concurrent API requests (e.g. a
delete racing a landing image) never interleave writes to the same
Task's rows.
*/
package manager
