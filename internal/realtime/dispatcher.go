package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/evernorth/melodie/internal/protocol"
)

// DispatchHandlers receive the demultiplexed outcomes of inbound side-channel
// frames. Any handler may be nil.
type DispatchHandlers struct {
	// OnAssistantMessage delivers one complete assistant turn.
	OnAssistantMessage func(text string)
	// OnTextDelta fires for every streamed text fragment, before the turn
	// completes. Drives the typing indicator while the model is generating.
	OnTextDelta func(responseID string)
	// OnUserTranscript delivers a completed transcription of spoken input.
	OnUserTranscript func(text string)
	// OnFunctionCall delivers a model tool invocation.
	OnFunctionCall func(name, arguments, callID string)
	// OnTurnComplete fires once per response.done, after delivery, whether or
	// not the turn produced a visible message.
	OnTurnComplete func(responseID string)
	// OnFailure fires when frame handling panics. The frame is dropped.
	OnFailure func()
}

// Dispatcher demultiplexes inbound side-channel frames. It accumulates
// streamed text deltas per response and falls back to the buffered stream
// when response.done carries no usable assistant message.
type Dispatcher struct {
	handlers DispatchHandlers
	buffers  map[string]string
}

func NewDispatcher(handlers DispatchHandlers) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		buffers:  make(map[string]string),
	}
}

// HandleFrame processes one raw frame. Unknown and malformed frames are
// dropped without interrupting the event loop; a panic in a handler is
// contained and reported through OnFailure.
func (d *Dispatcher) HandleFrame(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("realtime: dispatch panic: %v", r)
			if d.handlers.OnFailure != nil {
				d.handlers.OnFailure()
			}
		}
	}()

	event, err := protocol.ParseServerEvent(raw)
	if err != nil {
		if !errors.Is(err, protocol.ErrUnsupportedEvent) {
			log.Printf("realtime: drop unreadable frame: %v", err)
		}
		return
	}

	switch msg := event.(type) {
	case protocol.OutputTextDelta:
		d.buffers[msg.ResponseID] += msg.Delta
		if d.handlers.OnTextDelta != nil {
			d.handlers.OnTextDelta(msg.ResponseID)
		}
	case protocol.InputAudioTranscribed:
		if text := strings.TrimSpace(msg.Transcript); text != "" && d.handlers.OnUserTranscript != nil {
			d.handlers.OnUserTranscript(text)
		}
	case protocol.ResponseDone:
		d.finishResponse(msg.Response)
	}
}

// finishResponse classifies a terminal frame by its first output item only.
// A turn that leads with a function call produces no visible message, even
// when later items carry text.
func (d *Dispatcher) finishResponse(resp protocol.ResponseBody) {
	buffered := d.buffers[resp.ID]
	delete(d.buffers, resp.ID)

	if len(resp.Output) == 0 {
		if buffered != "" {
			d.deliver(buffered)
		}
		d.complete(resp.ID)
		return
	}

	first := resp.Output[0]
	switch {
	case first.Type == protocol.ItemTypeFunctionCall:
		if d.handlers.OnFunctionCall != nil {
			d.handlers.OnFunctionCall(first.Name, first.Arguments, first.CallID)
		}
	case first.Type == protocol.ItemTypeMessage && first.Role == protocol.RoleAssistant:
		text := first.MessageText()
		if text == "" {
			text = buffered
		}
		// A tool-call turn sometimes carries the call arguments echoed back
		// as a JSON-shaped assistant message. Suppress that echo.
		_, siblingCall := resp.FunctionCall()
		if text != "" && !(siblingCall && isJSONObject(text)) {
			d.deliver(text)
		}
	default:
		if buffered != "" {
			d.deliver(buffered)
		}
	}
	d.complete(resp.ID)
}

func (d *Dispatcher) deliver(text string) {
	if d.handlers.OnAssistantMessage != nil {
		d.handlers.OnAssistantMessage(text)
	}
}

func (d *Dispatcher) complete(responseID string) {
	if d.handlers.OnTurnComplete != nil {
		d.handlers.OnTurnComplete(responseID)
	}
}

func isJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
