package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["stream"] != false || body["model"] != "llama3" {
			t.Errorf("unexpected body %v", body)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":" SKIP "}}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL).CompleteWithSystem(context.Background(), "llama3", "be brief", "chat?")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "SKIP" {
		t.Fatalf("expected SKIP, got %q", got)
	}
}

func TestChatErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Fail") != "" {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Complete(context.Background(), "llama3", "x")
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("expected embedded error, got %v", err)
	}

	c := New(srv.URL)
	c.http = &http.Client{Transport: headerTransport{"X-Fail", "1"}}
	_, err = c.Complete(context.Background(), "llama3", "x")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

type headerTransport struct{ key, value string }

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(h.key, h.value)
	return http.DefaultTransport.RoundTrip(r)
}
