// Package bridge carries messages between the agent and the hosting page.
// Outbound envelopes are forwarded to the parent frame; inbound envelopes
// arrive from it and are filtered by source before dispatch.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Envelope sources.
const (
	SourceAgent  = "MELODIE_AI"
	SourceParent = "MELODIE_PARENT"
)

// Outbound event types.
const (
	EventMortgageSearch     = "MELODIE_MORTGAGE_SEARCH"
	EventCriteriaSearch     = "MELODIE_CRITERIA_SEARCH"
	EventCreateMortgageCase = "MELODIE_CREATE_MORTGAGE_CASE"
	EventApplicationCreated = "MORTGAGE_APPLICATION_CREATED"
	EventNavigateToSourcing = "NAVIGATE_TO_MORTGAGE_SOURCING"
	EventNavigateToFactFind = "NAVIGATE_TO_FACT_FIND"
	EventCloseModal         = "CLOSE_MODAL"
)

// Inbound event types.
const (
	EventSearchResultCount = "SEARCH_RESULT_COUNT"
	EventSwitchToChatMode  = "SWITCH_TO_CHAT_MODE"
)

// Envelope is the wire shape shared by both directions.
type Envelope struct {
	Source    string          `json:"source"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// NewEnvelope builds an outbound envelope stamped with the current time.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	env := Envelope{
		Source:    SourceAgent,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode envelope data: %w", err)
		}
		env.Data = raw
	}
	return env, nil
}

// SearchResultCount reports how many products the host page is showing.
type SearchResultCount struct {
	Shown int `json:"shown"`
	Total int `json:"total"`
}

// Notice is the chat line rendered for a result-count message.
func (c SearchResultCount) Notice() string {
	return fmt.Sprintf("Below Showing %d of %d products.", c.Shown, c.Total)
}

// SwitchToChatMode instructs the agent to leave voice mode immediately.
type SwitchToChatMode struct{}

var ErrNotParentMessage = errors.New("not a parent bridge message")

// ParseHostMessage decodes an inbound frame from the hosting page. Frames
// whose source is not the parent, or whose type is unknown, return
// ErrNotParentMessage so callers can ignore them without logging noise.
func ParseHostMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid bridge envelope: %w", err)
	}
	if env.Source != SourceParent {
		return nil, ErrNotParentMessage
	}

	switch env.Type {
	case EventSearchResultCount:
		var count SearchResultCount
		if err := json.Unmarshal(env.Data, &count); err != nil {
			return nil, fmt.Errorf("invalid %s data: %w", EventSearchResultCount, err)
		}
		return count, nil
	case EventSwitchToChatMode:
		return SwitchToChatMode{}, nil
	default:
		return nil, ErrNotParentMessage
	}
}

// Hub fans outbound envelopes out to subscribers. The widget gateway
// subscribes and relays each envelope to the parent frame.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]func(Envelope)
	nextSub int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Envelope))}
}

// Subscribe registers fn for every subsequent envelope. The returned func
// removes the subscription; callers that outlive a single widget connection
// must invoke it on detach.
func (h *Hub) Subscribe(fn func(Envelope)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Notify builds an envelope and delivers it to all subscribers.
func (h *Hub) Notify(eventType string, data any) error {
	env, err := NewEnvelope(eventType, data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	subs := make([]func(Envelope), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(env)
	}
	return nil
}
