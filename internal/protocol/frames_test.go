package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSessionConfigSerializesNullTurnDetection(t *testing.T) {
	frame := NewSessionUpdate(SessionConfig{
		Modalities:    []string{"text"},
		Instructions:  "instructions",
		Voice:         "shimmer",
		TurnDetection: nil,
	})

	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"turn_detection":null`) {
		t.Fatalf("expected explicit null turn_detection, got %s", raw)
	}
}

func TestServerVADDefaults(t *testing.T) {
	vad := ServerVAD()
	if vad.Type != "server_vad" {
		t.Fatalf("Type = %q", vad.Type)
	}
	if vad.Threshold != 0.5 || vad.PrefixPaddingMs != 300 || vad.SilenceDurationMs != 500 {
		t.Fatalf("unexpected VAD tuning: %+v", vad)
	}
}

func TestNewUserTextItem(t *testing.T) {
	frame := NewUserTextItem("Hi")
	if frame.Type != TypeConversationItemCreate {
		t.Fatalf("Type = %q", frame.Type)
	}
	if frame.Item.Type != ItemTypeMessage || frame.Item.Role != RoleUser {
		t.Fatalf("item = %+v", frame.Item)
	}
	if len(frame.Item.Content) != 1 || frame.Item.Content[0].Type != ContentInputText || frame.Item.Content[0].Text != "Hi" {
		t.Fatalf("content = %+v", frame.Item.Content)
	}
}

func TestNewFunctionOutputItem(t *testing.T) {
	frame := NewFunctionOutputItem("call_123", "done")
	if frame.Item.Type != ItemTypeFunctionCallOutput {
		t.Fatalf("item type = %q", frame.Item.Type)
	}
	if frame.Item.CallID != "call_123" || frame.Item.Output != "done" {
		t.Fatalf("item = %+v", frame.Item)
	}
	if frame.Item.Role != "" || len(frame.Item.Content) != 0 {
		t.Fatalf("function output item must not carry message fields: %+v", frame.Item)
	}
}

func TestNewResponseCreateOmitsEmptyBody(t *testing.T) {
	raw, err := json.Marshal(NewResponseCreate(nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "response\"") && strings.Contains(string(raw), "modalities") {
		t.Fatalf("nil modalities must omit the response body, got %s", raw)
	}

	raw, err = json.Marshal(NewResponseCreate([]string{"text", "audio"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"modalities":["text","audio"]`) {
		t.Fatalf("expected modalities in response body, got %s", raw)
	}
}

func TestParseServerEventResponseDone(t *testing.T) {
	raw := []byte(`{
		"type": "response.done",
		"response": {
			"id": "resp_1",
			"output": [
				{"type": "function_call", "name": "source_mortgage_products", "call_id": "call_9", "arguments": "{\"loanAmount\":1}"}
			]
		}
	}`)

	parsed, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent error = %v", err)
	}
	done, ok := parsed.(ResponseDone)
	if !ok {
		t.Fatalf("parsed type = %T", parsed)
	}
	call, ok := done.Response.FunctionCall()
	if !ok {
		t.Fatalf("expected function call in output")
	}
	if call.Name != "source_mortgage_products" || call.CallID != "call_9" {
		t.Fatalf("call = %+v", call)
	}
}

func TestParseServerEventTextDelta(t *testing.T) {
	parsed, err := ParseServerEvent([]byte(`{"type":"response.output_text.delta","response_id":"resp_2","delta":"Hel"}`))
	if err != nil {
		t.Fatalf("ParseServerEvent error = %v", err)
	}
	delta, ok := parsed.(OutputTextDelta)
	if !ok {
		t.Fatalf("parsed type = %T", parsed)
	}
	if delta.ResponseID != "resp_2" || delta.Delta != "Hel" {
		t.Fatalf("delta = %+v", delta)
	}
}

func TestParseServerEventUnknownType(t *testing.T) {
	_, err := ParseServerEvent([]byte(`{"type":"session.created"}`))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("err = %v, want ErrUnsupportedEvent", err)
	}
}

func TestParseServerEventNonJSON(t *testing.T) {
	_, err := ParseServerEvent([]byte("not json"))
	if err == nil {
		t.Fatalf("expected error for non-JSON frame")
	}
	if errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("non-JSON must not classify as unsupported type")
	}
}

func TestMessageTextPrefersTextOverTranscript(t *testing.T) {
	item := OutputItem{
		Type: ItemTypeMessage,
		Role: RoleAssistant,
		Content: []ContentPart{
			{Type: "audio", Transcript: "spoken words"},
		},
	}
	if got := item.MessageText(); got != "spoken words" {
		t.Fatalf("MessageText = %q", got)
	}

	item.Content = []ContentPart{{Type: "text", Text: "typed words"}}
	if got := item.MessageText(); got != "typed words" {
		t.Fatalf("MessageText = %q", got)
	}
}
