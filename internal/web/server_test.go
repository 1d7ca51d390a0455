package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akivoy/orion/internal/admission"
	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/conversation"
	"github.com/akivoy/orion/internal/notify"
	"github.com/akivoy/orion/internal/observability"
	"github.com/akivoy/orion/internal/odoo"
)

type fakeAssistant struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  []string // userIDs, in order
	waIDs  []string // raw sender ids, in order
}

func (f *fakeAssistant) Process(ctx context.Context, userID, whatsAppID, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userID)
	f.waIDs = append(f.waIDs, whatsAppID)
	f.mu.Unlock()
	return f.answer, f.err
}

type fakePartners struct {
	partner odoo.Record
	err     error
}

func (f *fakePartners) GetPartnerByPhone(ctx context.Context, phone string) (odoo.Record, error) {
	return f.partner, f.err
}

type graphStub struct {
	mu     sync.Mutex
	bodies []string
}

func (g *graphStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.mu.Lock()
		g.bodies = append(g.bodies, string(body))
		g.mu.Unlock()
		w.Write([]byte(`{"messages":[{"id":"wamid.X"}]}`))
	})
}

func (g *graphStub) anyBodyContains(substr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range g.bodies {
		if strings.Contains(b, substr) {
			return true
		}
	}
	return false
}

type harness struct {
	server    *Server
	assistant *fakeAssistant
	sessions  *conversation.MemoryStore
	gate      *admission.Gate
	graph     *graphStub
}

func newHarness(t *testing.T, assistant *fakeAssistant, partners *fakePartners) *harness {
	t.Helper()
	log := observability.NewLogger(observability.LogConfig{Output: io.Discard})

	graph := &graphStub{}
	graphServer := httptest.NewServer(graph.handler())
	t.Cleanup(graphServer.Close)
	sender := notify.NewWhatsAppSender(config.WhatsAppConfig{
		Token: "wa", PhoneNumberID: "1", APIVersion: "v22.0", WordsLimit: 1500,
	}, log)
	sender.SetBaseURL(graphServer.URL)

	dispatcher := notify.NewDispatcher(config.NotifyConfig{QueueSize: 64, Workers: 2}, log)
	t.Cleanup(dispatcher.Stop)
	background := notify.NewBackground(dispatcher, sender)

	sessions := conversation.NewMemoryStore()
	gate := admission.NewGate(background, log, nil)

	cfg := config.DefaultConfig()
	cfg.WhatsApp.VerifyToken = "verify-me"
	cfg.Server.StaticDir = t.TempDir()

	server := NewServer(*cfg, Deps{
		Assistant:  assistant,
		Sessions:   sessions,
		Gate:       gate,
		Partners:   partners,
		WhatsApp:   sender,
		Background: background,
	}, log)

	return &harness{server: server, assistant: assistant, sessions: sessions, gate: gate, graph: graph}
}

func postWebhook(t *testing.T, h *harness, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func textPayload(from, body string) string {
	return fmt.Sprintf(`{"entry":[{"changes":[{"value":{"messages":[
		{"from":%q,"id":"wamid.1","type":"text","text":{"body":%q}}
	]}}]}]}`, from, body)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &fakeAssistant{answer: "hola"}, &fakePartners{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "healthy" || body["service"] != "WhatsApp Webhook API" {
		t.Errorf("body = %v", body)
	}
}

func TestVerifyWebhook(t *testing.T) {
	h := newHarness(t, &fakeAssistant{}, &fakePartners{})

	t.Run("valid token echoes challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
			t.Fatalf("code = %d body = %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("wrong token is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("code = %d", rec.Code)
		}
	})
}

func TestWebhook_KnownCustomerFlow(t *testing.T) {
	assistant := &fakeAssistant{answer: "¡Hola Ana! ¿En qué puedo ayudarte?"}
	partners := &fakePartners{partner: odoo.Record{"name": "Ana", "email": "ana@example.com"}}
	h := newHarness(t, assistant, partners)

	rec := postWebhook(t, h, textPayload("59812345678", "hola"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	formatted := FormatPhoneNumber("59812345678")
	if !h.sessions.Has(formatted) {
		t.Fatal("session was not initialized")
	}
	messages, err := h.sessions.Messages(formatted)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if !strings.Contains(messages[0].Content, "Ana") || !strings.Contains(messages[0].Content, "Llámale por su nombre") {
		t.Errorf("preamble = %q", messages[0].Content)
	}

	assistant.mu.Lock()
	calls := append([]string{}, assistant.calls...)
	waIDs := append([]string{}, assistant.waIDs...)
	assistant.mu.Unlock()
	if len(calls) != 1 || calls[0] != formatted {
		t.Errorf("assistant calls = %v", calls)
	}
	// The raw sender id rides alongside so tool notices skip the spaced
	// ERP form.
	if len(waIDs) != 1 || waIDs[0] != "59812345678" {
		t.Errorf("assistant whatsapp ids = %v", waIDs)
	}

	// Read receipt and answer both go out in the background.
	waitFor(t, func() bool { return h.graph.anyBodyContains("¡Hola Ana!") })
	waitFor(t, func() bool { return h.graph.anyBodyContains("wamid.1") })
}

func TestWebhook_UnknownCustomerGetsOnboardingPreamble(t *testing.T) {
	h := newHarness(t, &fakeAssistant{answer: "ok"}, &fakePartners{partner: nil})

	postWebhook(t, h, textPayload("59812345678", "hola"))

	messages, err := h.sessions.Messages(FormatPhoneNumber("59812345678"))
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if !strings.Contains(messages[0].Content, "El usuario no existe en Odoo") {
		t.Errorf("preamble = %q", messages[0].Content)
	}
}

func TestWebhook_ErpOutageApologizesWithoutSession(t *testing.T) {
	h := newHarness(t, &fakeAssistant{answer: "ok"}, &fakePartners{err: errors.New("connection refused")})

	rec := postWebhook(t, h, textPayload("59812345678", "hola"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if h.sessions.Has(FormatPhoneNumber("59812345678")) {
		t.Error("no session should exist after an ERP outage")
	}
	waitFor(t, func() bool { return h.graph.anyBodyContains("error conectándose al servidor Odoo") })
}

func TestWebhook_ModelFailureResetsSession(t *testing.T) {
	assistant := &fakeAssistant{err: errors.New("model request: boom")}
	h := newHarness(t, assistant, &fakePartners{partner: odoo.Record{"name": "Ana"}})

	postWebhook(t, h, textPayload("59812345678", "hola"))

	formatted := FormatPhoneNumber("59812345678")
	if h.sessions.Has(formatted) {
		t.Error("session must be deleted after a model failure")
	}
	if h.gate.IsBusy(formatted) {
		t.Error("gate must be released after a model failure")
	}
	waitFor(t, func() bool { return h.graph.anyBodyContains("el chat fue reiniciado") })
}

func TestWebhook_BusyUserIsTurnedAway(t *testing.T) {
	assistant := &fakeAssistant{answer: "ok"}
	h := newHarness(t, assistant, &fakePartners{partner: odoo.Record{"name": "Ana"}})

	formatted := FormatPhoneNumber("59812345678")
	h.gate.TryEnter(formatted, "59812345678") // occupy the slot
	defer h.gate.Leave(formatted)

	postWebhook(t, h, textPayload("59812345678", "sigo esperando"))

	assistant.mu.Lock()
	defer assistant.mu.Unlock()
	if len(assistant.calls) != 0 {
		t.Error("busy user must not reach the assistant")
	}
}

func TestWebhook_NonMessageEventIsIgnored(t *testing.T) {
	assistant := &fakeAssistant{answer: "ok"}
	h := newHarness(t, assistant, &fakePartners{})

	rec := postWebhook(t, h, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.9"}]}}]}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(assistant.calls) != 0 {
		t.Error("status events must not trigger processing")
	}
}

func TestWebhook_InteractiveReply(t *testing.T) {
	assistant := &fakeAssistant{answer: "ok"}
	h := newHarness(t, assistant, &fakePartners{partner: odoo.Record{"name": "Ana"}})

	payload := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"59812345678","id":"wamid.2","type":"interactive",
		 "interactive":{"type":"button_reply","button_reply":{"id":"b1","title":"Ver catálogo"}}}
	]}}]}]}`
	postWebhook(t, h, payload)

	assistant.mu.Lock()
	defer assistant.mu.Unlock()
	if len(assistant.calls) != 1 {
		t.Fatalf("assistant calls = %d", len(assistant.calls))
	}
}

func TestFormatPhoneNumber(t *testing.T) {
	got := FormatPhoneNumber("59812345678")
	if got != "+59 812 34 56 78" {
		t.Errorf("FormatPhoneNumber = %q", got)
	}
	if short := FormatPhoneNumber("12345"); short != "+12345" {
		t.Errorf("short number = %q", short)
	}
}
