package engine

import (
	"sync"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeConnect wires an output slot to an input slot.
	EventTypeConnect EventType = iota + 1
	// EventTypeDisconnect removes a link.
	EventTypeDisconnect
	// EventTypeUpdate starts a Highway update: the query goes to the parser.
	EventTypeUpdate
	// EventTypeParseResult carries a parser answer back onto the loop.
	EventTypeParseResult
	// EventTypeCall runs an arbitrary function against the graph.
	EventTypeCall
)

func (t EventType) String() string {
	switch t {
	case EventTypeConnect:
		return "connect"
	case EventTypeDisconnect:
		return "disconnect"
	case EventTypeUpdate:
		return "update"
	case EventTypeParseResult:
		return "parse_result"
	case EventTypeCall:
		return "call"
	default:
		return "unknown"
	}
}

// ConnectRequest names both ends of a new link.
type ConnectRequest struct {
	OriginID   graph.NodeID
	OriginSlot int
	TargetID   graph.NodeID
	TargetSlot int
}

// UpdateRequest asks a Highway node to reparse. When Query is set it
// replaces the query widget text first. Done, if non-nil, receives the
// outcome once the parse result has been applied or discarded.
type UpdateRequest struct {
	NodeID graph.NodeID
	Query  *string
	Done   chan<- UpdateOutcome
}

// UpdateOutcome pairs an update's result with its error.
type UpdateOutcome struct {
	Result *UpdateResult
	Err    error
}

// parseResult is enqueued by the goroutine that called the parser.
type parseResult struct {
	ticket   UpdateTicket
	response *ir.ParseResponse
	err      error
	done     chan<- UpdateOutcome
}

// Event is one unit of work for the Run loop. Exactly one payload field
// matching Type is set. Reply, if non-nil, receives the processing error
// (nil on success) for connect, disconnect, and call events. It must be
// buffered; the loop never blocks on it.
type Event struct {
	Type       EventType
	Seq        int64
	Connect    *ConnectRequest
	Disconnect graph.LinkID
	Update     *UpdateRequest
	Call       func(g *graph.Graph) error
	Reply      chan<- error

	result *parseResult
}

// eventQueue is a thread-safe FIFO queue for events.
//
// Thread-safety is provided for external enqueuing (HTTP handlers, parse
// goroutines) while the Engine's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Clear the slot so the backing array does not pin payloads.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
