// Package sse implements a Server-Sent Events broker for live runtime
// updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/yamui/internal/telemetry"
)

// Event types sent to clients.
const (
	TypeStateChanged   = "state.changed"
	TypeScreenLoaded   = "screen.loaded"
	TypeModalOpened    = "modal.opened"
	TypeModalClosed    = "modal.closed"
	TypeDocumentLoaded = "document.loaded"
	TypeRuntimeError   = "runtime.error"
	TypeTreeUpdated    = "tree.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients + tree throttle timestamp). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	treeMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	runtimeCh     chan telemetry.Event
	countReqCh    chan chan int

	dropped atomic.Int64
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends tree.updated at most once per
// treeThrottle.
func NewBroker(treeThrottle time.Duration) *Broker {
	if treeThrottle <= 0 {
		treeThrottle = time.Second
	}

	b := &Broker{
		treeMin:       treeThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		runtimeCh:     make(chan telemetry.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// translate maps a telemetry event to the client event, if any, and reports
// whether it changes the widget tree.
func translate(e telemetry.Event) (Event, bool, bool) {
	switch e.Type {
	case telemetry.TypeStateChange:
		return Event{Type: TypeStateChanged, Data: map[string]string{"key": e.Subject, "value": e.Arg0}}, true, true
	case telemetry.TypeScreenLoad:
		return Event{Type: TypeScreenLoaded, Data: map[string]any{"screen": e.Subject, "widgets": int(e.Value)}}, true, true
	case telemetry.TypeModal:
		if e.Detail == "close" {
			return Event{Type: TypeModalClosed, Data: map[string]string{}}, true, true
		}
		return Event{Type: TypeModalOpened, Data: map[string]string{"component": e.Subject}}, true, true
	case telemetry.TypeDocumentLoad:
		return Event{Type: TypeDocumentLoaded, Data: map[string]string{"document": e.Subject, "kind": e.Detail, "screen": e.Arg0}}, true, false
	case telemetry.TypeError:
		return Event{Type: TypeRuntimeError, Data: map[string]string{"subject": e.Subject, "detail": e.Detail}}, true, false
	}
	return Event{}, false, false
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastTree time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case e := <-b.runtimeCh:
			event, ok, treeChanged := translate(e)
			if !ok {
				continue
			}
			broadcast(event)
			if !treeChanged {
				continue
			}
			now := time.Now()
			if now.Sub(lastTree) >= b.treeMin {
				lastTree = now
				broadcast(Event{Type: TypeTreeUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Emit implements telemetry.Sink. It never blocks; events that find the
// queue full are dropped.
func (b *Broker) Emit(e telemetry.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.runtimeCh <- e:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns the number of runtime events dropped by Emit.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
