package events

import (
	"sync"
	"time"

	"github.com/cuemby/pixelforge/pkg/metrics"
	"github.com/cuemby/pixelforge/pkg/types"
)

// EventType is one of the four progress event kinds a Task's topic
// emits, in emission order: start, any number of progress, then
// exactly one of complete/error.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message on a Task's progress topic.
type Event struct {
	TaskID    string       `json:"taskId"`
	Type      EventType    `json:"type"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Image     *types.Image `json:"image,omitempty"` // set on progress when a new image landed
	Message   string       `json:"message,omitempty"` // set on error
	Timestamp time.Time    `json:"timestamp"`
}

// subscriberBuffer bounds how many progress events a slow subscriber
// can lag behind before intermediate events start being dropped.
const subscriberBuffer = 32

// terminalSendTimeout bounds how long Publish blocks delivering a
// complete/error event to a slow subscriber before giving up on that
// one subscriber; other subscribers are unaffected.
const terminalSendTimeout = 2 * time.Second

type topic struct {
	mu          sync.Mutex
	subscribers map[chan *Event]bool
	closed      bool
}

// Bus is the Progress Bus: a per-task topic, multi-subscriber fan-out
// of progress events. Topics exist from Open until GraceWindow after
// the terminal event, so late subscribers can still observe the
// outcome before the topic tears down.
type Bus struct {
	mu          sync.Mutex
	topics      map[string]*topic
	graceWindow time.Duration
}

// NewBus creates a Bus whose topics live graceWindow past their
// terminal event before being torn down.
func NewBus(graceWindow time.Duration) *Bus {
	return &Bus{
		topics:      make(map[string]*topic),
		graceWindow: graceWindow,
	}
}

// Open creates the topic for taskID. Called by the Task Manager when a
// Task is created, before any subscriber can attach.
func (b *Bus) Open(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.topics[taskID]; exists {
		return
	}
	b.topics[taskID] = &topic{subscribers: make(map[chan *Event]bool)}
}

// Subscribe attaches a new subscriber to taskID's topic. ok is false
// when no topic is open for taskID (task never existed, or its grace
// window already elapsed) — callers must fall back to a synthetic
// final status derived from persisted state.
func (b *Bus) Subscribe(taskID string) (ch <-chan *Event, ok bool) {
	b.mu.Lock()
	t, exists := b.topics[taskID]
	b.mu.Unlock()
	if !exists {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false
	}

	sub := make(chan *Event, subscriberBuffer)
	t.subscribers[sub] = true
	metrics.StreamSubscribersActive.Inc()
	return sub, true
}

// Unsubscribe detaches sub from taskID's topic, if still present.
func (b *Bus) Unsubscribe(taskID string, sub <-chan *Event) {
	b.mu.Lock()
	t, exists := b.topics[taskID]
	b.mu.Unlock()
	if !exists {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.subscribers {
		if s == sub {
			delete(t.subscribers, s)
			metrics.StreamSubscribersActive.Dec()
			return
		}
	}
}

// Publish delivers ev to every current subscriber of its TaskID's
// topic. Progress events are best-effort (dropped for a subscriber
// whose buffer is full); for complete/error events the oldest buffered
// event is dropped when the buffer is full, then the event is delivered
// with a bounded blocking send so a slow subscriber still receives the
// outcome before the topic closes.
func (b *Bus) Publish(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	t, exists := b.topics[ev.TaskID]
	b.mu.Unlock()
	if !exists {
		return
	}

	t.mu.Lock()
	subs := make([]chan *Event, 0, len(t.subscribers))
	for s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	terminal := ev.Type == EventComplete || ev.Type == EventError
	for _, s := range subs {
		if terminal {
			select {
			case s <- ev:
				continue
			default:
			}
			select {
			case <-s:
			default:
			}
			select {
			case s <- ev:
			case <-time.After(terminalSendTimeout):
			}
			continue
		}
		select {
		case s <- ev:
		default:
		}
	}
}

// CloseAfterGrace schedules taskID's topic for teardown after the
// Bus's grace window: every subscriber channel is closed and removed,
// and future Subscribe calls report ok=false. Called by the Task
// Manager once a terminal event has been published.
func (b *Bus) CloseAfterGrace(taskID string) {
	time.AfterFunc(b.graceWindow, func() {
		b.mu.Lock()
		t, exists := b.topics[taskID]
		if exists {
			delete(b.topics, taskID)
		}
		b.mu.Unlock()
		if !exists {
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		t.closed = true
		for s := range t.subscribers {
			close(s)
			metrics.StreamSubscribersActive.Dec()
		}
	})
}

// SubscriberCount returns the number of active subscribers on taskID's
// topic, or 0 if no topic is open.
func (b *Bus) SubscriberCount(taskID string) int {
	b.mu.Lock()
	t, exists := b.topics[taskID]
	b.mu.Unlock()
	if !exists {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}
