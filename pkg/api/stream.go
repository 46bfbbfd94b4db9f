package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cuemby/pixelforge/pkg/apierr"
	"github.com/cuemby/pixelforge/pkg/events"
	"github.com/cuemby/pixelforge/pkg/types"
)

// handleStream serves /tasks/{id}/stream: a text/event-stream of the
// task's Progress Bus events. A subscriber that attaches after the
// task already reached a terminal state gets one synthetic status
// event (derived from the persisted Task row) and the stream closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := s.mgr.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, apierr.New(apierr.KindIOError, "streaming unsupported by this transport"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if task.Status.Terminal() {
		writeSSE(w, syntheticEvent(task))
		flusher.Flush()
		return
	}

	ch, ok := s.mgr.Subscribe(id)
	if !ok {
		// Topic already closed between the Get above and Subscribe here;
		// the task must have just finalized. Re-read and emit synthetic.
		task, err = s.mgr.Get(id)
		if err == nil {
			writeSSE(w, syntheticEvent(task))
			flusher.Flush()
		}
		return
	}
	defer s.mgr.Unsubscribe(id, ch)

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			if ev.Type == events.EventComplete || ev.Type == events.EventError {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, ev *events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
}

// syntheticEvent derives a terminal event from a Task row already past
// its terminal transition, for subscribers that arrive too late to see
// the live event.
func syntheticEvent(task *types.Task) *events.Event {
	ev := &events.Event{
		TaskID:    task.ID,
		Completed: task.CompletedCount,
		Total:     task.TotalCount,
	}
	if task.Status == types.TaskStatusFailed {
		ev.Type = events.EventError
		ev.Message = task.ErrorMessage
	} else {
		ev.Type = events.EventComplete
	}
	return ev
}
