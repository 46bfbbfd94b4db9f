package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeUnknownTaskNotOK(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	_, ok := bus.Subscribe("nope")
	assert.False(t, ok)
}

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	bus.Open("task-1")

	ch, ok := bus.Subscribe("task-1")
	require.True(t, ok)

	bus.Publish(&Event{TaskID: "task-1", Type: EventStart, Total: 2})
	bus.Publish(&Event{TaskID: "task-1", Type: EventProgress, Completed: 1, Total: 2})
	bus.Publish(&Event{TaskID: "task-1", Type: EventComplete, Completed: 2, Total: 2})

	assert.Equal(t, EventStart, (<-ch).Type)
	assert.Equal(t, EventProgress, (<-ch).Type)
	assert.Equal(t, EventComplete, (<-ch).Type)
}

func TestCloseAfterGraceClosesSubscribers(t *testing.T) {
	bus := NewBus(20 * time.Millisecond)
	bus.Open("task-1")

	ch, ok := bus.Subscribe("task-1")
	require.True(t, ok)

	bus.Publish(&Event{TaskID: "task-1", Type: EventComplete})
	<-ch // drain the complete event

	bus.CloseAfterGrace("task-1")

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed after grace window")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("subscriber channel was not closed after grace window")
	}

	_, ok = bus.Subscribe("task-1")
	assert.False(t, ok, "late subscribe after grace window must report not-ok")
}

func TestSlowSubscriberDropsProgressButGetsTerminal(t *testing.T) {
	bus := NewBus(50 * time.Millisecond)
	bus.Open("task-1")

	ch, ok := bus.Subscribe("task-1")
	require.True(t, ok)

	// Flood more progress events than the subscriber buffer holds,
	// without ever reading — simulates a slow consumer.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(&Event{TaskID: "task-1", Type: EventProgress, Completed: i})
	}
	bus.Publish(&Event{TaskID: "task-1", Type: EventComplete})

	var last *Event
	for ev := range drain(ch) {
		last = ev
	}
	require.NotNil(t, last)
	assert.Equal(t, EventComplete, last.Type)
}

func drain(ch <-chan *Event) <-chan *Event {
	out := make(chan *Event, subscriberBuffer*3)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				out <- ev
			case <-time.After(100 * time.Millisecond):
				return
			}
		}
	}()
	return out
}

func TestSubscriberCount(t *testing.T) {
	bus := NewBus(time.Second)
	bus.Open("task-1")

	assert.Equal(t, 0, bus.SubscriberCount("task-1"))

	ch1, _ := bus.Subscribe("task-1")
	ch2, _ := bus.Subscribe("task-1")
	assert.Equal(t, 2, bus.SubscriberCount("task-1"))

	bus.Unsubscribe("task-1", ch1)
	assert.Equal(t, 1, bus.SubscriberCount("task-1"))
	bus.Unsubscribe("task-1", ch2)
	assert.Equal(t, 0, bus.SubscriberCount("task-1"))
}
