package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "gpt-4o-mini" || len(body.Messages) != 2 || body.Messages[0]["content"] != defaultSystemPrompt {
			t.Errorf("unexpected body %+v", body)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  doge.jpg \n"}}]}`))
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL+"/")
	got, err := c.Complete(context.Background(), "gpt-4o-mini", "pick a card")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "doge.jpg" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
}

func TestLegacyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"text":"2"}]}`))
	}))
	defer srv.Close()

	got, err := New("sk-test", srv.URL).CompleteWithSystem(context.Background(), "gpt-3.5-turbo-instruct", "sys", "vote")
	if err != nil || got != "2" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestErrors(t *testing.T) {
	if _, err := New("", "").Complete(context.Background(), "gpt-4o", "x"); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New("sk-test", srv.URL).Complete(context.Background(), "gpt-4o", "x")
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error with body, got %v", err)
	}
	if _, err := New("sk-test", srv.URL).Complete(context.Background(), "davinci-002", "x"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
