package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Output: io.Discard})
}

// erpStub fakes the token and search_read endpoints.
type erpStub struct {
	tokenRequests int32
	// rejectTokens counts how many bearer requests get a 401 before the
	// stub starts accepting.
	rejectTokens int32
	lastQuery    map[string]string
	records      []Record
}

func (s *erpStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := atomic.AddInt32(&s.tokenRequests, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   3600,
		})
	})
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&s.rejectTokens) > 0 {
			atomic.AddInt32(&s.rejectTokens, -1)
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "invalid_token")
			return
		}
		s.lastQuery = map[string]string{
			"model":  r.URL.Query().Get("model"),
			"fields": r.URL.Query().Get("fields"),
			"domain": r.URL.Query().Get("domain"),
			"limit":  r.URL.Query().Get("limit"),
			"auth":   r.Header.Get("Authorization"),
		}
		json.NewEncoder(w).Encode(s.records)
	})
	return mux
}

func newTestClient(t *testing.T, stub *erpStub) *Client {
	t.Helper()
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)
	return NewClient(config.OdooConfig{
		BaseURL:            server.URL,
		ClientID:           "client-id",
		ClientSecret:       "client-secret",
		TokenRenewalBuffer: 300 * time.Second,
	}, t.TempDir(), testLogger())
}

func TestFetch_SendsQueryAndBearer(t *testing.T) {
	stub := &erpStub{records: []Record{{"id": float64(7), "name": "ACME"}}}
	client := newTestClient(t, stub)

	records, err := client.Fetch(context.Background(), Query{
		Model:  "res.partner",
		Fields: []string{"id", "name"},
		Domain: [][]any{{"phone", "=", "+59812345678"}},
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "ACME" {
		t.Fatalf("unexpected records: %v", records)
	}

	if stub.lastQuery["model"] != "res.partner" {
		t.Errorf("model = %q", stub.lastQuery["model"])
	}
	if stub.lastQuery["fields"] != `["id","name"]` {
		t.Errorf("fields = %q", stub.lastQuery["fields"])
	}
	if stub.lastQuery["domain"] != `[["phone","=","+59812345678"]]` {
		t.Errorf("domain = %q", stub.lastQuery["domain"])
	}
	if stub.lastQuery["limit"] != "1" {
		t.Errorf("limit = %q", stub.lastQuery["limit"])
	}
	if stub.lastQuery["auth"] != "Bearer token-1" {
		t.Errorf("authorization = %q", stub.lastQuery["auth"])
	}
}

func TestFetch_ReusesTokenAcrossRequests(t *testing.T) {
	stub := &erpStub{records: []Record{}}
	client := newTestClient(t, stub)

	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background(), Query{Model: "res.partner", Fields: []string{"id"}, Domain: [][]any{}}); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&stub.tokenRequests); n != 1 {
		t.Fatalf("expected 1 token request, got %d", n)
	}
}

func TestFetch_RenewsOn401(t *testing.T) {
	stub := &erpStub{records: []Record{{"id": float64(1)}}, rejectTokens: 1}
	client := newTestClient(t, stub)

	records, err := client.Fetch(context.Background(), Query{Model: "res.partner", Fields: []string{"id"}, Domain: [][]any{}})
	if err != nil {
		t.Fatalf("Fetch should survive one 401: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("unexpected records: %v", records)
	}
	if n := atomic.LoadInt32(&stub.tokenRequests); n != 2 {
		t.Fatalf("expected a token renewal, got %d token requests", n)
	}
	if stub.lastQuery["auth"] != "Bearer token-2" {
		t.Errorf("retried request used %q", stub.lastQuery["auth"])
	}
}

func TestFetch_PersistentAuthFailure(t *testing.T) {
	stub := &erpStub{rejectTokens: 10}
	client := newTestClient(t, stub)

	_, err := client.Fetch(context.Background(), Query{Model: "res.partner", Fields: []string{"id"}, Domain: [][]any{}})
	if err == nil {
		t.Fatal("expected error after exhausting token retries")
	}
	var httpErr *HTTPError
	if !asHTTPError(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func asHTTPError(err error, target **HTTPError) bool {
	he, ok := err.(*HTTPError)
	if ok {
		*target = he
	}
	return ok
}

func TestRelHelpers(t *testing.T) {
	rel := []any{float64(42), "Solar / Paneles"}
	if id, ok := RelID(rel); !ok || id != 42 {
		t.Errorf("RelID = %d ok=%v", id, ok)
	}
	if name, ok := RelName(rel); !ok || name != "Solar / Paneles" {
		t.Errorf("RelName = %q ok=%v", name, ok)
	}
	// Odoo sends false for empty relations.
	if _, ok := RelID(false); ok {
		t.Error("RelID should reject non-array values")
	}
	if AsString(false) != "" {
		t.Error("AsString should map false to empty")
	}
}

func TestParseCreatedID(t *testing.T) {
	cases := map[string]int{"17": 17, "[17]": 17, " [ 17 ] ": 17}
	for raw, want := range cases {
		got, err := parseCreatedID([]byte(raw))
		if err != nil || got != want {
			t.Errorf("parseCreatedID(%q) = %d err=%v, want %d", raw, got, err, want)
		}
	}
	if _, err := parseCreatedID([]byte(`{"ok":true}`)); err == nil {
		t.Error("expected error for non-numeric create response")
	}
}
