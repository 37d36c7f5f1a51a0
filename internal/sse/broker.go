// Package sse streams workspace changes to browsers and editors as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types sent on the stream.
const (
	TypeFileCreated        = "file.created"
	TypeFileUpdated        = "file.updated"
	TypeFileDeleted        = "file.deleted"
	TypeAnnotationsUpdated = "annotations.updated"
	TypeWorkspaceUpdated   = "workspace.updated"
)

const keepAliveInterval = 30 * time.Second

// Event is one message on the stream. Path scopes the event to a file; an
// empty Path reaches every subscriber.
type Event struct {
	Type string `json:"type"`
	Path string `json:"-"`
	Data any    `json:"data"`
}

// subscription is a client channel plus the file it follows ("" = all).
type subscription struct {
	ch   chan []byte
	path string
}

type fileEventReq struct {
	kind string
	path string
}

// Broker fans events out to connected clients.
//
// A single loop goroutine owns the client set, the event sequence and the
// workspace throttle timestamp; public methods talk to it over channels.
type Broker struct {
	workspaceMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fileEventCh   chan fileEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. throttle is the minimum spacing of
// workspace.updated events; zero or less means two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		workspaceMin:  throttle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fileEventCh:   make(chan fileEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		seq           uint64
		lastWorkspace time.Time
	)

	broadcast := func(event Event) {
		seq++
		raw, err := encode(seq, event)
		if err != nil {
			return
		}
		for ch, path := range clients {
			if path != "" && event.Path != "" && path != event.Path {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client: drop rather than stall the loop.
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

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.path

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.fileEventCh:
			typ, ok := fileEventType(req.kind)
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Path: req.path, Data: map[string]string{"path": req.path}})

			now := time.Now()
			if now.Sub(lastWorkspace) >= b.workspaceMin {
				lastWorkspace = now
				broadcast(Event{Type: TypeWorkspaceUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func fileEventType(kind string) (string, bool) {
	switch kind {
	case "created":
		return TypeFileCreated, true
	case "updated":
		return TypeFileUpdated, true
	case "deleted":
		return TypeFileDeleted, true
	}
	return "", false
}

// encode renders one SSE frame.
func encode(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload)), nil
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. A non-empty path limits delivery to events
// about that file plus workspace-wide events.
func (b *Broker) Subscribe(path string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, path: path}:
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

// Publish sends an event to every matching client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFileEvent announces that a file was created, updated or deleted,
// followed by a throttled workspace.updated. Unknown kinds are ignored.
func (b *Broker) PublishFileEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fileEventCh <- fileEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events[?file=path]).
// A comment line is sent periodically so proxies keep the stream open.
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
	_, _ = w.Write([]byte("retry: 3000\n\n"))
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("file"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAliveInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
