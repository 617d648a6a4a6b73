package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100*time.Millisecond, 0)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100*time.Millisecond, 0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "batch.finished", Data: map[string]int{"succeeded": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: batch.finished") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"succeeded":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishGalleryEvent_CatalogThrottle(t *testing.T) {
	b := NewBroker(500*time.Millisecond, 0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// A renumbering burst: only the first change triggers catalog.updated
	// before the window closes.
	b.PublishGalleryEvent("asset.deleted", "cats", "3.webp")
	b.PublishGalleryEvent("asset.created", "cats", "2.webp")

	time.Sleep(50 * time.Millisecond)
	catalogCount := 0
	var changes []string
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, CatalogUpdated) {
				catalogCount++
			} else {
				changes = append(changes, s)
			}
		default:
			break loop
		}
	}

	if len(changes) != 2 {
		t.Fatalf("change events = %d, want 2", len(changes))
	}
	if !strings.Contains(changes[0], "event: asset.deleted") || !strings.Contains(changes[0], `"category":"cats","name":"3.webp"`) {
		t.Errorf("first change = %q", changes[0])
	}
	if catalogCount != 1 {
		t.Errorf("catalog events = %d, want 1 (throttled)", catalogCount)
	}
}

func TestCategoryEventOmitsName(t *testing.T) {
	b := NewBroker(time.Hour, 0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishGalleryEvent("category.created", "dogs", "")
	select {
	case msg := <-ch:
		if s := string(msg); strings.Contains(s, `"name"`) || !strings.Contains(s, `"category":"dogs"`) {
			t.Errorf("payload = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, 0)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishGalleryEvent("asset.updated", "cats", "1.webp")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 3000\n\n") {
		t.Errorf("handler output missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: asset.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBroker(time.Second, 20*time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second, 0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100*time.Millisecond, 0)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: "asset.updated", Data: GalleryChange{Category: "c"}})
	b.PublishGalleryEvent("asset.updated", "c", "1.webp")
}

func TestCatalogUpdated_TrailingFlush(t *testing.T) {
	b := NewBroker(100*time.Millisecond, 0)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishGalleryEvent("asset.created", "cats", "1.webp")
	b.PublishGalleryEvent("asset.created", "dogs", "1.webp")
	b.PublishGalleryEvent("asset.created", "cats", "2.webp")

	var catalog []string
	deadline := time.After(2 * time.Second)
	for len(catalog) < 2 {
		select {
		case msg := <-ch:
			if s := string(msg); strings.Contains(s, CatalogUpdated) {
				catalog = append(catalog, s)
			}
		case <-deadline:
			t.Fatalf("catalog events = %q, want 2", catalog)
		}
	}
	if !strings.Contains(catalog[0], `{"categories":["cats"]}`) {
		t.Errorf("leading event = %q", catalog[0])
	}
	if !strings.Contains(catalog[1], `{"categories":["cats","dogs"]}`) {
		t.Errorf("trailing event = %q", catalog[1])
	}
}
