package realtime

import (
	"fmt"
	"testing"
)

type dispatchRecorder struct {
	messages    []string
	deltas      []string
	transcripts []string
	calls       []string
	completed   []string
	failures    int
}

func newRecordedDispatcher() (*Dispatcher, *dispatchRecorder) {
	rec := &dispatchRecorder{}
	d := NewDispatcher(DispatchHandlers{
		OnAssistantMessage: func(text string) { rec.messages = append(rec.messages, text) },
		OnTextDelta:        func(id string) { rec.deltas = append(rec.deltas, id) },
		OnUserTranscript:   func(text string) { rec.transcripts = append(rec.transcripts, text) },
		OnFunctionCall: func(name, args, callID string) {
			rec.calls = append(rec.calls, name+"|"+args+"|"+callID)
		},
		OnTurnComplete: func(id string) { rec.completed = append(rec.completed, id) },
		OnFailure:      func() { rec.failures++ },
	})
	return d, rec
}

func TestDeltasConcatenateWhenTerminalHasNoText(t *testing.T) {
	d, rec := newRecordedDispatcher()

	for _, delta := range []string{"Hel", "lo ", "there"} {
		d.HandleFrame([]byte(fmt.Sprintf(
			`{"type":"response.output_text.delta","response_id":"resp_1","delta":%q}`, delta)))
	}
	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_1","output":[]}}`))

	if len(rec.messages) != 1 || rec.messages[0] != "Hello there" {
		t.Fatalf("messages = %v", rec.messages)
	}
	if len(rec.completed) != 1 || rec.completed[0] != "resp_1" {
		t.Fatalf("completed = %v", rec.completed)
	}
	if len(rec.deltas) != 3 {
		t.Fatalf("deltas = %v, want one signal per fragment", rec.deltas)
	}
}

func TestTerminalTextWinsOverBuffer(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.output_text.delta","response_id":"resp_2","delta":"partial"}`))
	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_2","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"Hi"}]}]}}`))

	if len(rec.messages) != 1 || rec.messages[0] != "Hi" {
		t.Fatalf("messages = %v", rec.messages)
	}

	// The buffer entry must be gone: a second terminal for the same response
	// delivers nothing.
	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_2","output":[]}}`))
	if len(rec.messages) != 1 {
		t.Fatalf("buffer leaked: messages = %v", rec.messages)
	}
}

func TestFunctionCallDispatchAndJSONEchoSuppression(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_3","output":[` +
		`{"type":"function_call","name":"source_mortgage_products","call_id":"call_1","arguments":"{\"loanAmount\":1}"},` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"{\"loanAmount\":1}"}]}]}}`))

	if len(rec.calls) != 1 || rec.calls[0] != `source_mortgage_products|{"loanAmount":1}|call_1` {
		t.Fatalf("calls = %v", rec.calls)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("JSON echo must be suppressed, messages = %v", rec.messages)
	}
}

func TestCallFirstSuppressesTrailingText(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_4","output":[` +
		`{"type":"function_call","name":"handle_fact_find_navigation","call_id":"call_2","arguments":"{}"},` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"Taking you there now."}]}]}}`))

	if len(rec.calls) != 1 {
		t.Fatalf("calls = %v", rec.calls)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("call-led turn must not deliver text, messages = %v", rec.messages)
	}
}

func TestMessageFirstWinsOverTrailingCall(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_7","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"Here is what I found."}]},` +
		`{"type":"function_call","name":"source_mortgage_products","call_id":"call_3","arguments":"{}"}]}}`))

	if len(rec.calls) != 0 {
		t.Fatalf("message-led turn must not dispatch the trailing call, calls = %v", rec.calls)
	}
	if len(rec.messages) != 1 || rec.messages[0] != "Here is what I found." {
		t.Fatalf("messages = %v", rec.messages)
	}
}

func TestJSONEchoBeforeCallIsSuppressed(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_8","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"{\"loanAmount\":1}"}]},` +
		`{"type":"function_call","name":"source_mortgage_products","call_id":"call_4","arguments":"{\"loanAmount\":1}"}]}}`))

	if len(rec.messages) != 0 {
		t.Fatalf("JSON echo must be suppressed, messages = %v", rec.messages)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("completed = %v", rec.completed)
	}
}

func TestJSONMessageWithoutCallIsDelivered(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_9","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"{\"rate\": \"4.2%\"}"}]}]}}`))

	if len(rec.messages) != 1 || rec.messages[0] != `{"rate": "4.2%"}` {
		t.Fatalf("messages = %v", rec.messages)
	}
}

func TestAudioTranscriptDelivered(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":" I need a mortgage "}`))

	if len(rec.transcripts) != 1 || rec.transcripts[0] != "I need a mortgage" {
		t.Fatalf("transcripts = %v", rec.transcripts)
	}
}

func TestUnreadableFramesAreDropped(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`not json at all`))
	d.HandleFrame([]byte(`{"type":"session.created"}`))
	d.HandleFrame(nil)

	if len(rec.messages)+len(rec.calls)+len(rec.transcripts)+rec.failures != 0 {
		t.Fatalf("dropped frames changed state: %+v", rec)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	failures := 0
	d := NewDispatcher(DispatchHandlers{
		OnAssistantMessage: func(string) { panic("boom") },
		OnFailure:          func() { failures++ },
	})

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_5","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"text","text":"Hi"}]}]}}`))

	if failures != 1 {
		t.Fatalf("failures = %d, want 1", failures)
	}
}

func TestAudioTurnUsesTranscriptField(t *testing.T) {
	d, rec := newRecordedDispatcher()

	d.HandleFrame([]byte(`{"type":"response.done","response":{"id":"resp_6","output":[` +
		`{"type":"message","role":"assistant","content":[{"type":"audio","transcript":"Spoken reply"}]}]}}`))

	if len(rec.messages) != 1 || rec.messages[0] != "Spoken reply" {
		t.Fatalf("messages = %v", rec.messages)
	}
}
