/*
Package reconciler runs PixelForge's one-time startup reconciliation
pass.

Upstream provider calls are not resumable: if the process crashed or
was restarted while a Task was queued or processing, there is no way
to know what the provider actually produced. Rather than guess,
Reconciler.Run walks every non-terminal Task at boot, deletes its
pending placeholder Images, and marks the Task failed with an
apierr.KindRestart error. This must complete before the Worker Pool or
HTTP API start accepting new submissions, so a stale Task can never be
observed by a client as still in flight.

	rec := reconciler.New(store)
	if err := rec.Run(); err != nil {
		log.Fatal("reconciliation failed: " + err.Error())
	}
*/
package reconciler
