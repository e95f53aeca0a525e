package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/chatlog"
	"github.com/evernorth/melodie/internal/realtime"
)

// Widget websocket wire frames.

type clientCommand struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Mode string          `json:"mode,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	cmdSendText       = "send_text"
	cmdSwitchMode     = "switch_mode"
	cmdStartRecording = "start_recording"
	cmdStopRecording  = "stop_recording"
	cmdHostMessage    = "host_message"
	cmdStop           = "stop"
)

type wsChatMessage struct {
	Type    string              `json:"type"`
	Message chatlog.ChatMessage `json:"message"`
}

type wsTyping struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type wsHostEvent struct {
	Type     string          `json:"type"`
	Envelope bridge.Envelope `json:"envelope"`
}

type wsAudio struct {
	Type string `json:"type"`
	WAV  []byte `json:"wav"`
}

type wsError struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// handleSessionWS attaches a widget to its conversation: chat log, typing
// indicator, and host events flow out; UI commands flow in. The agent is
// started on the first attach.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	convo, ok := s.conversation(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "conversation released")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	enqueue := func(msg any) {
		select {
		case <-ctx.Done():
		case outbound <- msg:
		default:
			// Keep websocket writes single-threaded; drop when saturated.
			log.Printf("httpapi: outbound queue full for session %s", sessionID)
		}
	}

	agent := convo.Agent
	unsubLog := agent.Log().Subscribe(func(msg chatlog.ChatMessage) {
		enqueue(wsChatMessage{Type: "chat_message", Message: msg})
	})
	defer unsubLog()
	agent.OnTyping(func(active bool) {
		enqueue(wsTyping{Type: "typing", Active: active})
	})
	agent.OnAudio(func(wav []byte) {
		enqueue(wsAudio{Type: "audio", WAV: wav})
	})
	unsubHost := convo.Host.Subscribe(func(env bridge.Envelope) {
		enqueue(wsHostEvent{Type: "host_event", Envelope: env})
	})
	defer unsubHost()

	// Replay the transcript so a reconnecting widget is not blank.
	for _, msg := range agent.Log().Messages() {
		enqueue(wsChatMessage{Type: "chat_message", Message: msg})
	}

	if agent.Mode() == realtime.ModeUninitialized {
		mode := realtime.ModeChat
		if strings.TrimSpace(r.URL.Query().Get("mode")) == string(realtime.ModeVoice) {
			mode = realtime.ModeVoice
		}
		if err := agent.Start(ctx, mode); err != nil {
			log.Printf("httpapi: start agent for session %s: %v", sessionID, err)
			enqueue(wsError{Type: "error", Code: "start_failed", Detail: err.Error()})
		}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		// Binary frames carry microphone audio captured by the widget.
		if msgType == websocket.BinaryMessage {
			if err := agent.PushAudio(data); err != nil {
				log.Printf("httpapi: push audio for session %s: %v", sessionID, err)
			}
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			enqueue(wsError{Type: "error", Code: "invalid_command", Detail: err.Error()})
			continue
		}
		if err := s.sessions.Touch(sessionID); err != nil {
			break
		}
		if done := s.runCommand(ctx, agent, cmd, enqueue); done {
			break
		}
	}

	cancel()
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

// runCommand executes one UI command. Returns true when the session should
// close.
func (s *Server) runCommand(ctx context.Context, agent *realtime.Manager, cmd clientCommand, enqueue func(any)) bool {
	switch cmd.Type {
	case cmdSendText:
		if err := agent.SendText(ctx, cmd.Text); err != nil {
			enqueue(wsError{Type: "error", Code: "send_failed", Detail: err.Error()})
		}
	case cmdSwitchMode:
		var err error
		switch cmd.Mode {
		case string(realtime.ModeVoice):
			err = agent.SwitchToVoice(ctx)
		case string(realtime.ModeChat):
			err = agent.SwitchToChat()
		default:
			enqueue(wsError{Type: "error", Code: "invalid_mode", Detail: "mode must be chat or voice"})
			return false
		}
		if err != nil {
			enqueue(wsError{Type: "error", Code: "switch_failed", Detail: err.Error()})
		}
	case cmdStartRecording:
		if err := agent.StartRecording(); err != nil {
			enqueue(wsError{Type: "error", Code: "recording_failed", Detail: err.Error()})
		}
	case cmdStopRecording:
		if err := agent.StopRecording(); err != nil {
			enqueue(wsError{Type: "error", Code: "recording_failed", Detail: err.Error()})
		}
	case cmdHostMessage:
		if err := agent.HandleHostMessage(cmd.Data); err != nil {
			enqueue(wsError{Type: "error", Code: "host_message_failed", Detail: err.Error()})
		}
	case cmdStop:
		agent.Stop()
		return true
	default:
		enqueue(wsError{Type: "error", Code: "unknown_command", Detail: cmd.Type})
	}
	return false
}
