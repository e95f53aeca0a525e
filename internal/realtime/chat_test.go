package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteSendsInstructionsFirst(t *testing.T) {
	var got completionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Happy to help."}}]}`))
	}))
	defer srv.Close()

	client := NewCompletionsClient(srv.URL, "gpt-4.1-mini", "sk-test", "You are Melodie.")
	reply, err := client.Complete(context.Background(), []ChatTurn{
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Happy to help." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "gpt-4.1-mini" || len(got.Messages) != 2 {
		t.Fatalf("request = %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "You are Melodie." {
		t.Fatalf("first message = %+v", got.Messages[0])
	}
}

func TestCompleteRetriesRetryableStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := NewCompletionsClient(srv.URL, "gpt-4.1-mini", "sk-test", "")
	reply, err := client.Complete(context.Background(), []ChatTurn{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "ok" || calls != 2 {
		t.Fatalf("reply = %q, calls = %d", reply, calls)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewCompletionsClient(srv.URL, "gpt-4.1-mini", "sk-bad", "")
	if _, err := client.Complete(context.Background(), []ChatTurn{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestConfigured(t *testing.T) {
	if NewCompletionsClient("u", "m", "  ", "").Configured() {
		t.Fatalf("blank key must report unconfigured")
	}
	if !NewCompletionsClient("u", "m", "sk", "").Configured() {
		t.Fatalf("key must report configured")
	}
}
