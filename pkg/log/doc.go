/*
Package log provides structured logging for PixelForge using zerolog.

It wraps zerolog with a global Logger, an Init(Config) that switches
between console (development) and JSON (production) output, and a set
of With* constructors that return a child logger carrying one context
field — component, task ID, image ID, or provider name — so call sites
never have to repeat boilerplate field names.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	taskLog := log.WithTaskID(task.ID)
	taskLog.Info().Int("count", task.TotalCount).Msg("task queued")

The reconciler acquires its own WithComponent logger once at
construction and reuses it for its life; each worker goroutine of the
pool acquires one when it starts. The provider registry logs through
the global Logger, and the event bus does not log.
*/
package log
