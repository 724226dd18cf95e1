package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/graph"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(Event{Type: EventTypeDisconnect, Disconnect: graph.LinkID(i)}))
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, graph.LinkID(i), e.Disconnect)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(Event{Type: EventTypeCall})
	q.Enqueue(Event{Type: EventTypeCall})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Event{Type: EventTypeCall}))
	select {
	case _, ok := <-q.Wait():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("closed queue should wake waiters")
	}
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "connect", EventTypeConnect.String())
	assert.Equal(t, "parse_result", EventTypeParseResult.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
