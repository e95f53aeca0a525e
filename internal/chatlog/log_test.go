package chatlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogAppendFillsDefaults(t *testing.T) {
	l := NewLog()
	msg := l.Append(ChatMessage{Text: "Hello, Start chatting with me.", Sender: SenderBot})
	if msg.ID == "" {
		t.Fatalf("ID must be assigned")
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("Timestamp must be assigned")
	}
	got := l.Messages()
	if len(got) != 1 || got[0].Text != "Hello, Start chatting with me." {
		t.Fatalf("messages = %+v", got)
	}
}

func TestLogAppendIsAppendOnly(t *testing.T) {
	l := NewLog()
	l.Append(ChatMessage{Text: "one", Sender: SenderUser})
	l.Append(ChatMessage{Text: "two", Sender: SenderBot})

	msgs := l.Messages()
	msgs[0].Text = "mutated"
	if l.Messages()[0].Text != "one" {
		t.Fatalf("Messages must return a copy")
	}
	if l.Messages()[1].Text != "two" {
		t.Fatalf("order lost: %+v", l.Messages())
	}
}

func TestLogSubscribersSeeAppends(t *testing.T) {
	l := NewLog()
	var seen []string
	l.Subscribe(func(m ChatMessage) { seen = append(seen, m.Text) })
	l.Append(ChatMessage{Text: "a", Sender: SenderUser})
	l.Append(ChatMessage{Text: "b", Sender: SenderBot})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestLogUnsubscribeStopsDelivery(t *testing.T) {
	l := NewLog()
	var first, second []string
	unsub := l.Subscribe(func(m ChatMessage) { first = append(first, m.Text) })
	l.Subscribe(func(m ChatMessage) { second = append(second, m.Text) })

	l.Append(ChatMessage{Text: "a", Sender: SenderUser})
	unsub()
	l.Append(ChatMessage{Text: "b", Sender: SenderBot})

	if len(first) != 1 || first[0] != "a" {
		t.Fatalf("unsubscribed fn still delivered: %v", first)
	}
	if len(second) != 2 {
		t.Fatalf("remaining subscriber lost messages: %v", second)
	}
	// A second call is a no-op, not a panic.
	unsub()
}

func TestRecorderStorePostsEntityModel(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("token")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewRecorderStore(srv.URL, "secret")
	err := store.SaveTurn(context.Background(), TurnRecord{
		InitiatorID:           3,
		UserCompanyID:         7,
		UserID:                11,
		InitiatorName:         "Melodie",
		AnswerByAI:            true,
		ResponseAnswerID:      "resp_1",
		ResponseAnswerRole:    "assistant",
		ResponseAnswerStatus:  "completed",
		ResponseAnswerContent: "Here are your products.",
		ResponseAnswerType:    "text",
		CreatedAt:             time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveTurn error = %v", err)
	}
	if gotPath != "/api/voicemessagewithopenai/postvoicemessagewithopenai" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotToken != "secret" {
		t.Fatalf("token header = %q", gotToken)
	}
	if gotBody["initiatorName"] != "Melodie" || gotBody["isAnswerByAI"] != true {
		t.Fatalf("body = %v", gotBody)
	}
	if gotBody["responseAnswerContent"] != "Here are your products." {
		t.Fatalf("content = %v", gotBody["responseAnswerContent"])
	}
}

func TestRecorderStoreRedactsBeforePost(t *testing.T) {
	var gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotContent, _ = body["responseAnswerContent"].(string)
	}))
	defer srv.Close()

	store := NewRecorderStore(srv.URL, "")
	err := store.SaveTurn(context.Background(), TurnRecord{
		ResponseAnswerContent: "Reach me at jo@example.com please.",
	})
	if err != nil {
		t.Fatalf("SaveTurn error = %v", err)
	}
	if strings.Contains(gotContent, "jo@example.com") {
		t.Fatalf("email must not leave the process: %q", gotContent)
	}
	if !strings.Contains(gotContent, "[REDACTED_EMAIL]") {
		t.Fatalf("content = %q", gotContent)
	}
}

func TestRecorderStoreRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewRecorderStore(srv.URL, "")
	if err := store.SaveTurn(context.Background(), TurnRecord{}); err == nil {
		t.Fatalf("expected error for 502")
	}
}
