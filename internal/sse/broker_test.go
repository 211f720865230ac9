package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/yamui/internal/telemetry"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeDocumentLoaded, Data: map[string]string{"document": "main"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: document.loaded\ndata: ") || !strings.HasSuffix(s, "\n\n") {
			t.Errorf("framing = %q", s)
		}
		if !strings.Contains(s, `"document":"main"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestEmitTranslatesRuntimeEvents(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Emit(telemetry.Event{Type: telemetry.TypeStateChange, Subject: "count", Arg0: "3"})
	b.Emit(telemetry.Event{Type: telemetry.TypeModal, Subject: "confirm", Detail: "open"})
	b.Emit(telemetry.Event{Type: telemetry.TypeAction, Subject: "set"})
	b.Emit(telemetry.Event{Type: telemetry.TypeModal, Detail: "close"})
	time.Sleep(50 * time.Millisecond)

	var kinds []string
	for _, msg := range drain(ch) {
		kinds = append(kinds, strings.TrimPrefix(strings.SplitN(msg, "\n", 2)[0], "event: "))
	}
	// tree.updated is throttled to the first tree-changing event.
	want := []string{TypeStateChanged, TypeTreeUpdated, TypeModalOpened, TypeModalClosed}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestStateChangedPayload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Emit(telemetry.Event{Type: telemetry.TypeStateChange, Subject: "count", Arg0: "3"})
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), `{"key":"count","value":"3"}`) {
			t.Errorf("payload = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Emit(telemetry.Event{Type: telemetry.TypeScreenLoad, Subject: "home", Value: 4})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: screen.loaded") || !strings.Contains(body, `"screen":"home"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeStateChanged, Data: map[string]string{}})
	b.Emit(telemetry.Event{Type: telemetry.TypeStateChange})
}
