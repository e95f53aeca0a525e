package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType identifies realtime wire frame variants in both directions.
type EventType string

const (
	// Client to server.
	TypeSessionUpdate          EventType = "session.update"
	TypeConversationItemCreate EventType = "conversation.item.create"
	TypeResponseCreate         EventType = "response.create"
	TypeResponseCancel         EventType = "response.cancel"
	TypeInputAudioBufferClear  EventType = "input_audio_buffer.clear"
	TypeInputAudioBufferCommit EventType = "input_audio_buffer.commit"

	// Server to client.
	TypeResponseDone          EventType = "response.done"
	TypeOutputTextDelta       EventType = "response.output_text.delta"
	TypeInputAudioTranscribed EventType = "conversation.item.input_audio_transcription.completed"
)

// Item and output discriminators used inside frames.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"

	RoleUser      = "user"
	RoleAssistant = "assistant"

	ContentInputText = "input_text"
)

var ErrUnsupportedEvent = errors.New("unsupported server event")

type Envelope struct {
	Type EventType `json:"type"`
}

// SessionConfig is the session object carried by session.update. TurnDetection
// is a pointer with no omitempty: the server treats an explicit null as "turn
// detection off", which is how text-only mode is selected.
type SessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *AudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection      `json:"turn_detection"`
	Tools                   []ToolDefinition    `json:"tools,omitempty"`
	ToolChoice              string              `json:"tool_choice,omitempty"`
}

type AudioTranscription struct {
	Model string `json:"model"`
}

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// ServerVAD is the turn detection used while the microphone is live.
func ServerVAD() *TurnDetection {
	return &TurnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
	}
}

type ToolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

type ToolProperty struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Enum        []string                `json:"enum,omitempty"`
	Items       *ToolProperty           `json:"items,omitempty"`
	Properties  map[string]ToolProperty `json:"properties,omitempty"`
}

type SessionUpdate struct {
	Type    EventType     `json:"type"`
	Session SessionConfig `json:"session"`
}

func NewSessionUpdate(session SessionConfig) SessionUpdate {
	return SessionUpdate{Type: TypeSessionUpdate, Session: session}
}

type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type ConversationItemCreate struct {
	Type EventType        `json:"type"`
	Item ConversationItem `json:"item"`
}

// NewUserTextItem wraps user-typed text as a conversation item.
func NewUserTextItem(text string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: ConversationItem{
			Type: ItemTypeMessage,
			Role: RoleUser,
			Content: []ContentPart{
				{Type: ContentInputText, Text: text},
			},
		},
	}
}

// NewFunctionOutputItem wraps a tool result for the call it answers.
func NewFunctionOutputItem(callID, output string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: TypeConversationItemCreate,
		Item: ConversationItem{
			Type:   ItemTypeFunctionCallOutput,
			CallID: callID,
			Output: output,
		},
	}
}

type ResponseConfig struct {
	Modalities []string `json:"modalities"`
}

type ResponseCreate struct {
	Type     EventType       `json:"type"`
	Response *ResponseConfig `json:"response,omitempty"`
}

// NewResponseCreate requests a model turn constrained to the given modalities.
// A nil slice requests a turn with the session defaults.
func NewResponseCreate(modalities []string) ResponseCreate {
	frame := ResponseCreate{Type: TypeResponseCreate}
	if modalities != nil {
		frame.Response = &ResponseConfig{Modalities: modalities}
	}
	return frame
}

type ResponseCancel struct {
	Type EventType `json:"type"`
}

func NewResponseCancel() ResponseCancel {
	return ResponseCancel{Type: TypeResponseCancel}
}

type InputAudioBufferClear struct {
	Type EventType `json:"type"`
}

func NewInputAudioBufferClear() InputAudioBufferClear {
	return InputAudioBufferClear{Type: TypeInputAudioBufferClear}
}

type InputAudioBufferCommit struct {
	Type EventType `json:"type"`
}

func NewInputAudioBufferCommit() InputAudioBufferCommit {
	return InputAudioBufferCommit{Type: TypeInputAudioBufferCommit}
}

// Server events.

type ResponseDone struct {
	Type     EventType    `json:"type"`
	Response ResponseBody `json:"response"`
}

type ResponseBody struct {
	ID     string       `json:"id"`
	Status string       `json:"status,omitempty"`
	Output []OutputItem `json:"output"`
}

type OutputItem struct {
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
}

// FunctionCall returns the first function_call item, if any.
func (r ResponseBody) FunctionCall() (OutputItem, bool) {
	for _, item := range r.Output {
		if item.Type == ItemTypeFunctionCall {
			return item, true
		}
	}
	return OutputItem{}, false
}

// MessageText returns the text of a message item. Audio responses carry the
// spoken words in the transcript field instead of text.
func (i OutputItem) MessageText() string {
	for _, part := range i.Content {
		if part.Text != "" {
			return part.Text
		}
		if part.Transcript != "" {
			return part.Transcript
		}
	}
	return ""
}

type OutputTextDelta struct {
	Type       EventType `json:"type"`
	ResponseID string    `json:"response_id"`
	Delta      string    `json:"delta"`
}

type InputAudioTranscribed struct {
	Type       EventType `json:"type"`
	ItemID     string    `json:"item_id,omitempty"`
	Transcript string    `json:"transcript"`
}

// ParseServerEvent decodes one inbound side-channel frame. Frames the agent
// does not consume return ErrUnsupportedEvent; malformed JSON returns a
// wrapping error. Callers drop both without interrupting the event loop.
func ParseServerEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeResponseDone:
		var msg ResponseDone
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeOutputTextDelta:
		var msg OutputTextDelta
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeInputAudioTranscribed:
		var msg InputAudioTranscribed
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}
