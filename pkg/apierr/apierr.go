// Package apierr defines the stable error taxonomy that crosses every
// transport boundary in PixelForge: workers, the task manager, and the
// HTTP API all classify failures into one of a small set of Kinds so
// callers can branch on behavior (retry, surface to user, drop) without
// string-matching error messages.
package apierr

import "errors"

// Kind is one of the error categories fixed by the spec. Stable across
// transports: a Kind never changes meaning once assigned.
type Kind string

const (
	// KindInvalidParams means validation failed before the task was
	// enqueued. Never retried.
	KindInvalidParams Kind = "invalid-params"

	// KindQueueFull means the worker pool's bounded queue was at
	// capacity when submit was attempted. Never retried automatically;
	// caller may retry after a delay.
	KindQueueFull Kind = "queue-full"

	// KindUpstreamTransient means a network timeout, 5xx, or rate-limit
	// from the provider. Retried inside the adapter up to MaxRetries.
	KindUpstreamTransient Kind = "upstream-transient"

	// KindUpstreamRefused means an explicit content refusal or a
	// permanent 4xx from the provider. Never retried.
	KindUpstreamRefused Kind = "upstream-refused"

	// KindIOError means Storage or the metadata store failed while
	// writing an image. Never retried inside the worker.
	KindIOError Kind = "io-error"

	// KindCanceled means client deletion or process shutdown canceled
	// the task.
	KindCanceled Kind = "canceled"

	// KindRestart means the task was non-terminal when the process
	// started and was force-finalized by the reconciler.
	KindRestart Kind = "restart"

	// KindUnknown is assigned to errors this package cannot classify;
	// callers should treat it the same as an unclassified io-error.
	KindUnknown Kind = "unknown"
)

// Error is an error tagged with a stable Kind and an optional wrapped
// cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf recovers the Kind from err, walking Unwrap chains. Errors that
// were never classified report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// Retryable reports whether an error of this Kind should be retried by
// the adapter's backoff loop.
func (k Kind) Retryable() bool {
	return k == KindUpstreamTransient
}
