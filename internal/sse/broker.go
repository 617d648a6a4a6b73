// Package sse streams gallery changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"
)

// CatalogUpdated is the coalesced "something changed" event.
const CatalogUpdated = "catalog.updated"

// BatchFinished announces the outcome of one upload request.
const BatchFinished = "batch.finished"

const reconnectDelay = 3 * time.Second

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// GalleryChange is the payload of asset and category events.
type GalleryChange struct {
	Category string `json:"category"`
	Name     string `json:"name,omitempty"`
}

// CatalogChange is the payload of catalog.updated: the categories touched
// since the previous one.
type CatalogChange struct {
	Categories []string `json:"categories"`
}

// BatchSummary is the payload of batch.finished.
type BatchSummary struct {
	BatchID   string `json:"batch_id"`
	Category  string `json:"category"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

type galleryEventReq struct {
	kind   string
	change GalleryChange
}

// Broker fans events out to SSE clients.
//
// A single internal loop owns the client set and the throttle timestamp.
// Public methods talk to it over channels.
type Broker struct {
	catalogMin time.Duration
	heartbeat  time.Duration

	subscribeCh    chan chan []byte
	unsubscribeCh  chan chan []byte
	publishCh      chan Event
	galleryEventCh chan galleryEventReq
	countReqCh     chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits catalog.updated at most once per
// catalogThrottle and pings idle streams every heartbeat (0 disables pings).
// Changes inside a throttle window are reported when it closes.
func NewBroker(catalogThrottle, heartbeat time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:     catalogThrottle,
		heartbeat:      heartbeat,
		subscribeCh:    make(chan chan []byte),
		unsubscribeCh:  make(chan chan []byte),
		publishCh:      make(chan Event, 256),
		galleryEventCh: make(chan galleryEventReq, 256),
		countReqCh:     make(chan chan int),
		stopCh:         make(chan struct{}),
		stopped:        make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})

	// catalog.updated is throttled on both edges: the first change in a quiet
	// period goes out at once, later ones are folded into one trailing event.
	var (
		lastCatalog time.Time
		touched     = make(map[string]struct{})
		flushTimer  *time.Timer
		flush       <-chan time.Time
	)
	defer func() {
		if flushTimer != nil {
			flushTimer.Stop()
		}
	}()

	broadcast := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall every other stream.
			}
		}
	}

	emitCatalog := func(now time.Time) {
		cats := make([]string, 0, len(touched))
		for c := range touched {
			cats = append(cats, c)
		}
		slices.Sort(cats)
		clear(touched)
		lastCatalog = now
		broadcast(Event{Type: CatalogUpdated, Data: CatalogChange{Categories: cats}})
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

		case req := <-b.galleryEventCh:
			broadcast(Event{Type: req.kind, Data: req.change})

			touched[req.change.Category] = struct{}{}
			if flush == nil {
				now := time.Now()
				if wait := b.catalogMin - now.Sub(lastCatalog); wait > 0 {
					flushTimer = time.NewTimer(wait)
					flush = flushTimer.C
				} else {
					emitCatalog(now)
				}
			}

		case now := <-flush:
			flush, flushTimer = nil, nil
			emitCatalog(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
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

// PublishGalleryEvent broadcasts an asset or category change (kind is e.g.
// "asset.created") followed by a throttled catalog.updated.
// Its signature matches index.EventCallback.
func (b *Broker) PublishGalleryEvent(kind, category, name string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.galleryEventCh <- galleryEventReq{kind: kind, change: GalleryChange{Category: category, Name: name}}:
	case <-b.stopped:
	}
}

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
	w.WriteHeader(http.StatusOK)
	// Browsers reconnect after this many milliseconds when the stream drops.
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", reconnectDelay.Milliseconds())
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
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
