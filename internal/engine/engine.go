package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// ErrStopped is returned when an event is submitted after the loop ended.
var ErrStopped = errors.New("engine stopped")

// Parser turns query text into a pin schema. Implemented by the parse
// client (production) and testutil.StubParser (tests).
type Parser interface {
	Parse(ctx context.Context, query string) (*ir.ParseResponse, error)
}

// Engine owns one graph and is its single writer.
//
// Mutations are either called directly from one goroutine (CLI) or
// submitted through Enqueue and applied by Run. Parse calls are the only
// work done off the loop: the request runs on its own goroutine and its
// answer is enqueued back as a parse-result event.
//
// Thread-safety model:
//   - Enqueue(), Submit(), RequestUpdate(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - every other method: loop goroutine only, or before Run starts
type Engine struct {
	graph   *graph.Graph
	parser  Parser
	queue   *eventQueue
	clock   *Clock
	pending sync.WaitGroup
}

type options struct {
	kit      Kit
	observer graph.RenameObserver
}

// Option configures an Engine.
type Option func(*options)

// WithRandom sets the randomness source of every update gate.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.kit.Rand = r }
}

// WithNotifier sets the user-visible failure surface.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.kit.Notifier = n }
}

// WithRenameObserver sets the observer for interactive pin renames.
func WithRenameObserver(obs graph.RenameObserver) Option {
	return func(o *options) { o.observer = obs }
}

// New creates an engine with an empty graph that knows the Highway,
// Junction and Reroute node types.
func New(p Parser, opts ...Option) *Engine {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	gopts := NodeTypes(o.kit)
	if o.observer != nil {
		gopts = append(gopts, graph.WithRenameObserver(o.observer))
	}
	return &Engine{
		graph:  graph.New(gopts...),
		parser: p,
		queue:  newEventQueue(),
		clock:  NewClock(),
	}
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Clock returns the event sequence clock.
func (e *Engine) Clock() *Clock { return e.clock }

// QueueLen returns the number of events waiting for the loop.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Load replaces the graph contents with doc.
func (e *Engine) Load(doc *graph.Document) error {
	if err := e.graph.Load(doc); err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	return nil
}

// Serialize captures the graph. Update gates hand out their hash here.
func (e *Engine) Serialize() (*graph.Document, error) {
	return e.graph.Serialize()
}

// Connect wires an output slot to an input slot.
func (e *Engine) Connect(req ConnectRequest) (*graph.Link, error) {
	l, err := e.graph.Connect(req.OriginID, req.OriginSlot, req.TargetID, req.TargetSlot)
	if err != nil {
		return l, fmt.Errorf("connect %d:%d -> %d:%d: %w",
			req.OriginID, req.OriginSlot, req.TargetID, req.TargetSlot, err)
	}
	return l, nil
}

// Disconnect removes a link.
func (e *Engine) Disconnect(id graph.LinkID) error {
	if err := e.graph.Disconnect(id); err != nil {
		return fmt.Errorf("disconnect link %d: %w", id, err)
	}
	return nil
}

// Highway returns node id and its Highway behavior.
func (e *Engine) Highway(id graph.NodeID) (*graph.Node, *Highway, error) {
	n, err := e.graph.Node(id)
	if err != nil {
		return nil, nil, NewUnknownNodeError(id, TypeHighway)
	}
	h, ok := n.Behavior().(*Highway)
	if !ok {
		return nil, nil, NewUnknownNodeError(id, TypeHighway)
	}
	return n, h, nil
}

// Junction returns node id and its Junction behavior.
func (e *Engine) Junction(id graph.NodeID) (*graph.Node, *Junction, error) {
	n, err := e.graph.Node(id)
	if err != nil {
		return nil, nil, NewUnknownNodeError(id, TypeJunction)
	}
	j, ok := n.Behavior().(*Junction)
	if !ok {
		return nil, nil, NewUnknownNodeError(id, TypeJunction)
	}
	return n, j, nil
}

// UpdateNow runs a Highway update synchronously: it optionally sets the
// query text, calls the parser, and applies the answer.
func (e *Engine) UpdateNow(ctx context.Context, id graph.NodeID, query *string) (*UpdateResult, error) {
	n, h, err := e.Highway(id)
	if err != nil {
		return nil, err
	}
	setQuery(n, query)
	t := h.BeginUpdate(n)
	resp, callErr := e.parser.Parse(ctx, t.Query)
	return h.CompleteUpdate(n, t, resp, callErr)
}

func setQuery(n *graph.Node, query *string) {
	if query == nil {
		return
	}
	if w := n.Widget(WidgetQuery); w != nil {
		w.Value = *query
	}
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev Event) bool {
	return e.queue.Enqueue(ev)
}

// Submit runs fn on the loop and waits for it to finish.
func (e *Engine) Submit(ctx context.Context, fn func(g *graph.Graph) error) error {
	reply := make(chan error, 1)
	if !e.Enqueue(Event{Type: EventTypeCall, Call: fn, Reply: reply}) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestUpdate starts a Highway update on the loop and waits until its
// answer has been applied or discarded as stale.
func (e *Engine) RequestUpdate(ctx context.Context, id graph.NodeID, query *string) (*UpdateResult, error) {
	done := make(chan UpdateOutcome, 1)
	if !e.Enqueue(Event{Type: EventTypeUpdate, Update: &UpdateRequest{NodeID: id, Query: query, Done: done}}) {
		return nil, ErrStopped
	}
	select {
	case out := <-done:
		return out.Result, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts the single-writer event loop.
// Blocks until the context is cancelled, Stop() is called, or a
// host-contract violation occurs.
//
// ERROR HANDLING: any other event failure is logged with the event's
// context and processing continues. A host-contract violation means the
// host no longer behaves as documented; Run returns it.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")
	defer e.pending.Wait()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			event.Seq = e.clock.Next()
			err := e.processEvent(ctx, event)
			status := "ok"
			if err != nil {
				status = "error"
				logEventError(event, err)
			}
			eventsProcessed.WithLabelValues(event.Type.String(), status).Inc()
			if event.Reply != nil {
				select {
				case event.Reply <- err:
				default:
					slog.Warn("event reply dropped: receiver not ready", "seq", event.Seq)
				}
			}
			if IsContractError(err) {
				slog.Error("engine stopping: host contract violation", "error", err)
				e.queue.Close()
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case _, open := <-e.queue.Wait():
			// The signal channel is closed by Stop; drain before returning.
			if !open && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the event queue, which causes Run to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processEvent routes an event to its handler.
// Called only from the Run goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeConnect:
		if event.Connect == nil {
			return fmt.Errorf("connect event missing request")
		}
		_, err := e.Connect(*event.Connect)
		return err

	case EventTypeDisconnect:
		return e.Disconnect(event.Disconnect)

	case EventTypeUpdate:
		if event.Update == nil {
			return fmt.Errorf("update event missing request")
		}
		return e.startUpdate(ctx, event.Update)

	case EventTypeParseResult:
		if event.result == nil {
			return fmt.Errorf("parse result event missing result")
		}
		return e.finishUpdate(event.result)

	case EventTypeCall:
		if event.Call == nil {
			return fmt.Errorf("call event missing function")
		}
		return event.Call(e.graph)

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}

// startUpdate issues a generation and hands the parse call to a goroutine.
// The node is not touched again until the result comes back through the
// queue.
func (e *Engine) startUpdate(ctx context.Context, req *UpdateRequest) error {
	n, h, err := e.Highway(req.NodeID)
	if err != nil {
		reply(req.Done, UpdateOutcome{Err: err})
		return err
	}
	setQuery(n, req.Query)
	t := h.BeginUpdate(n)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		resp, callErr := e.parser.Parse(ctx, t.Query)
		ok := e.queue.Enqueue(Event{
			Type:   EventTypeParseResult,
			result: &parseResult{ticket: t, response: resp, err: callErr, done: req.Done},
		})
		if !ok {
			reply(req.Done, UpdateOutcome{Err: ErrStopped})
		}
	}()
	return nil
}

func (e *Engine) finishUpdate(r *parseResult) error {
	n, h, err := e.Highway(r.ticket.NodeID)
	if err != nil {
		reply(r.done, UpdateOutcome{Err: err})
		return err
	}
	res, err := h.CompleteUpdate(n, r.ticket, r.response, r.err)
	reply(r.done, UpdateOutcome{Result: res, Err: err})
	if IsValidationError(err) || IsTransportError(err) {
		// Already reported to the user; not a loop failure.
		return nil
	}
	return err
}

func reply(done chan<- UpdateOutcome, out UpdateOutcome) {
	if done == nil {
		return
	}
	select {
	case done <- out:
	default:
		slog.Warn("update outcome dropped: receiver not ready")
	}
}

// logEventError logs an event processing failure with full context.
func logEventError(event Event, err error) {
	switch event.Type {
	case EventTypeConnect:
		if event.Connect != nil {
			slog.Error("connect failed",
				"error", err,
				"seq", event.Seq,
				"origin", event.Connect.OriginID,
				"origin_slot", event.Connect.OriginSlot,
				"target", event.Connect.TargetID,
				"target_slot", event.Connect.TargetSlot,
			)
			return
		}
	case EventTypeDisconnect:
		slog.Error("disconnect failed", "error", err, "seq", event.Seq, "link", event.Disconnect)
		return
	case EventTypeUpdate:
		if event.Update != nil {
			slog.Error("update failed", "error", err, "seq", event.Seq, "node", event.Update.NodeID)
			return
		}
	case EventTypeParseResult:
		if event.result != nil {
			slog.Error("parse result failed",
				"error", err,
				"seq", event.Seq,
				"node", event.result.ticket.NodeID,
				"generation", event.result.ticket.Generation,
			)
			return
		}
	}
	slog.Error("event processing failed", "error", err, "seq", event.Seq, "event_type", event.Type.String())
}
