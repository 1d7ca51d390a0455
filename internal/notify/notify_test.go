package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Output: io.Discard})
}

func TestSplitAtLimit(t *testing.T) {
	t.Run("short text single piece", func(t *testing.T) {
		chunks := SplitAtLimit("hola", 1500)
		if len(chunks) != 1 || chunks[0] != "hola" {
			t.Fatalf("chunks = %v", chunks)
		}
	})

	t.Run("empty text no pieces", func(t *testing.T) {
		if chunks := SplitAtLimit("", 1500); chunks != nil {
			t.Fatalf("chunks = %v", chunks)
		}
	})

	t.Run("breaks at newline", func(t *testing.T) {
		text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
		chunks := SplitAtLimit(text, 40)
		if len(chunks) != 2 {
			t.Fatalf("chunks = %v", chunks)
		}
		if chunks[0] != strings.Repeat("a", 30) || chunks[1] != strings.Repeat("b", 30) {
			t.Fatalf("bad split: %q | %q", chunks[0], chunks[1])
		}
	})

	t.Run("hard break without newline", func(t *testing.T) {
		text := strings.Repeat("x", 100)
		chunks := SplitAtLimit(text, 40)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 pieces, got %d", len(chunks))
		}
		for _, c := range chunks {
			if len(c) > 40 {
				t.Errorf("piece exceeds limit: %d chars", len(c))
			}
		}
		if strings.Join(chunks, "") != text {
			t.Error("hard break lost characters")
		}
	})
}

type graphStub struct {
	mu       sync.Mutex
	payloads []map[string]any
	failures int
}

func (g *graphStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.failures > 0 {
			g.failures--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		g.payloads = append(g.payloads, payload)
		w.Write([]byte(`{"messages":[{"id":"wamid.X"}]}`))
	})
}

func newTestSender(t *testing.T, stub *graphStub) *WhatsAppSender {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)
	sender := NewWhatsAppSender(config.WhatsAppConfig{
		Token:         "wa-token",
		PhoneNumberID: "12345",
		APIVersion:    "v22.0",
		WordsLimit:    50,
	}, testLogger())
	sender.SetBaseURL(server.URL)
	return sender
}

func TestSendText_Payload(t *testing.T) {
	stub := &graphStub{}
	sender := newTestSender(t, stub)

	if err := sender.SendText(context.Background(), "+59812345678", "hola"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	payload := stub.payloads[0]
	if payload["type"] != "text" || payload["to"] != "+59812345678" {
		t.Errorf("payload = %v", payload)
	}
	text := payload["text"].(map[string]any)
	if text["body"] != "hola" {
		t.Errorf("body = %v", text["body"])
	}
}

func TestMarkAsRead_Payload(t *testing.T) {
	stub := &graphStub{}
	sender := newTestSender(t, stub)

	if err := sender.MarkAsRead(context.Background(), "wamid.123"); err != nil {
		t.Fatalf("MarkAsRead: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	payload := stub.payloads[0]
	if payload["status"] != "read" || payload["message_id"] != "wamid.123" {
		t.Errorf("payload = %v", payload)
	}
}

func TestSendTextWithRetry_RecoversFromFailures(t *testing.T) {
	stub := &graphStub{failures: 2}
	sender := newTestSender(t, stub)

	if err := sender.SendTextWithRetry(context.Background(), "+598", "importante"); err != nil {
		t.Fatalf("retry send should recover: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.payloads) != 1 {
		t.Fatalf("expected exactly one delivered payload, got %d", len(stub.payloads))
	}
}

func TestSendChunked_SplitsLongAnswers(t *testing.T) {
	stub := &graphStub{}
	sender := newTestSender(t, stub)

	long := strings.Repeat("línea corta\n", 15) // well past the 50-char limit
	if err := sender.SendChunked(context.Background(), "+598", long); err != nil {
		t.Fatalf("SendChunked: %v", err)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.payloads) < 2 {
		t.Fatalf("expected multiple chunks, got %d sends", len(stub.payloads))
	}
}

func TestDispatcher_RunsTasks(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{QueueSize: 8, Workers: 2}, testLogger())

	var mu sync.Mutex
	ran := 0
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		d.Submit("test", func(ctx context.Context) error {
			mu.Lock()
			ran++
			if ran == 5 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never ran")
	}
	d.Stop()
}

func TestDispatcher_ShedsWhenFull(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{QueueSize: 1, Workers: 1}, testLogger())
	defer d.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	d.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started // the single worker is now occupied
	d.Submit("queued", func(ctx context.Context) error { return nil })

	// Queue is now full; the next submission is shed, not blocked.
	done := make(chan bool, 1)
	go func() {
		done <- d.Submit("shed", func(ctx context.Context) error { return errors.New("never runs") })
	}()
	select {
	case accepted := <-done:
		if accepted {
			t.Error("expected task to be shed when queue is full")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	close(block)
}

func TestDispatcher_StopRejectsNewWork(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{QueueSize: 4, Workers: 1}, testLogger())
	d.Stop()
	if d.Submit("late", func(ctx context.Context) error { return nil }) {
		t.Fatal("stopped dispatcher accepted work")
	}
	d.Stop() // second stop is a no-op
}
