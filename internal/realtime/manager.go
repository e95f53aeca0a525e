package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/evernorth/melodie/internal/audio"
	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/chatlog"
	"github.com/evernorth/melodie/internal/observability"
	"github.com/evernorth/melodie/internal/protocol"
	"github.com/evernorth/melodie/internal/tools"
)

// Mode is the conversation mode of a session.
type Mode string

const (
	ModeUninitialized Mode = "uninitialized"
	ModeConnecting    Mode = "connecting"
	ModeVoice         Mode = "voice"
	ModeChat          Mode = "chat"
	// ModeChatDemo is the degraded state entered when the realtime connection
	// cannot be established. Sends are accepted and answered locally so the
	// widget never hangs.
	ModeChatDemo Mode = "chat_demo"
	ModeStopped  Mode = "stopped"
)

// Bot-visible texts. These are part of the widget contract.
const (
	msgWelcome          = "Hello, Start chatting with me."
	msgWelcomeDemo      = "Hello! (Demo Mode)"
	msgConnectionFailed = "Connection failed. Running in limited mode."
	msgGenericFailure   = "Something went wrong. Please try again."
	msgSendFailed       = "Failed to send. Please try again."
	msgAuthFailed       = "Authentication failed. Please contact support."
)

const demoEchoDelay = 500 * time.Millisecond

// ToolHandler receives model function calls for local execution.
type ToolHandler interface {
	HandleCall(name, argumentsJSON, callID string)
}

// ManagerConfig carries identity and timing for one conversation session.
type ManagerConfig struct {
	SessionID     string
	UserID        int
	CompanyID     int
	InitiatorID   int
	InitiatorName string

	Voice             string
	ResponseTimeout   time.Duration
	CommitDelay       time.Duration
	SwitchSettleDelay time.Duration
}

// Manager owns the realtime session: the active transport, the mode state
// machine, the response deadline, and the chat log. All public methods are
// safe for concurrent use; mode switches are serialized by a busy flag.
type Manager struct {
	cfg       ManagerConfig
	factory   func() VoiceTransport
	creds     CredentialSource
	completer ChatCompleter
	synth     Synthesizer
	chatLog   *chatlog.Log
	store     chatlog.Store
	histStore chatlog.HistorySource
	metrics   *observability.Metrics

	dispatcher  *Dispatcher
	toolHandler ToolHandler

	onTyping func(bool)
	onAudio  func(wav []byte)

	// Replaced in tests.
	after func(time.Duration, func()) *time.Timer
	sleep func(time.Duration)
	now   func() time.Time

	mu        sync.Mutex
	mode      Mode
	transport VoiceTransport
	switching bool
	history   []ChatTurn

	respTimer   *time.Timer
	respArmedAt time.Time
}

// ManagerDeps are the collaborators a Manager is built from. Completer,
// Synth, Store, History, and Metrics may be nil. History, when set, replays
// previously persisted turns into the transcript on Start so a resumed
// session is not blank.
type ManagerDeps struct {
	Factory     func() VoiceTransport
	Credentials CredentialSource
	Completer   ChatCompleter
	Synth       Synthesizer
	Log         *chatlog.Log
	Store       chatlog.Store
	History     chatlog.HistorySource
	Metrics     *observability.Metrics
}

func NewManager(cfg ManagerConfig, deps ManagerDeps) *Manager {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 20 * time.Second
	}
	if deps.Log == nil {
		deps.Log = chatlog.NewLog()
	}
	if deps.Store == nil {
		deps.Store = chatlog.NoopStore{}
	}
	m := &Manager{
		cfg:       cfg,
		factory:   deps.Factory,
		creds:     deps.Credentials,
		completer: deps.Completer,
		synth:     deps.Synth,
		chatLog:   deps.Log,
		store:     deps.Store,
		histStore: deps.History,
		metrics:   deps.Metrics,
		mode:      ModeUninitialized,
		after:     time.AfterFunc,
		sleep:     time.Sleep,
		now:       time.Now,
	}
	m.dispatcher = NewDispatcher(DispatchHandlers{
		OnAssistantMessage: m.assistantArrived,
		OnTextDelta:        m.textDeltaArrived,
		OnUserTranscript:   m.transcriptArrived,
		OnFunctionCall:     m.functionCallArrived,
		OnTurnComplete:     m.turnCompleted,
		OnFailure:          m.dispatchFailed,
	})
	return m
}

// SetToolHandler wires the function-call bridge. Must be called before Start.
func (m *Manager) SetToolHandler(h ToolHandler) { m.toolHandler = h }

// OnTyping registers the typing-indicator callback.
func (m *Manager) OnTyping(fn func(bool)) { m.onTyping = fn }

// OnAudio registers the callback for synthesized fallback speech, delivered
// as a complete WAV clip.
func (m *Manager) OnAudio(fn func(wav []byte)) { m.onAudio = fn }

// Log exposes the session transcript.
func (m *Manager) Log() *chatlog.Log { return m.chatLog }

// Mode returns the current conversation mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// InVoiceMode reports whether responses should carry audio.
func (m *Manager) InVoiceMode() bool { return m.Mode() == ModeVoice }

// ResponseModalities returns the modalities for the current mode.
func (m *Manager) ResponseModalities() []string {
	if m.InVoiceMode() {
		return []string{"text", "audio"}
	}
	return []string{"text"}
}

// Start brings the session up in the requested mode. Credential and
// connection failures do not fail Start: the session degrades to demo mode
// and the user is told, so the widget is never stuck loading.
func (m *Manager) Start(ctx context.Context, mode Mode) error {
	if mode != ModeVoice && mode != ModeChat {
		return fmt.Errorf("cannot start in mode %q", mode)
	}

	m.mu.Lock()
	if m.mode != ModeUninitialized {
		m.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	m.mode = ModeConnecting
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc()
		m.metrics.SessionEvents.WithLabelValues("start").Inc()
	}
	m.restoreTranscript(ctx)

	key, err := m.creds.EphemeralKey(ctx)
	if err != nil {
		log.Printf("realtime: credential fetch: %v", err)
		m.appendBot(msgAuthFailed)
		m.enterDemo()
		return nil
	}

	t := m.factory()
	t.OnEvent(m.handleRawFrame)
	if err := t.Start(ctx, key); err != nil {
		log.Printf("realtime: connect: %v", err)
		t.Stop()
		m.appendBot(msgConnectionFailed)
		m.enterDemo()
		return nil
	}

	m.mu.Lock()
	if m.mode == ModeStopped {
		m.mu.Unlock()
		t.Stop()
		return fmt.Errorf("session stopped while connecting")
	}
	m.transport = t
	m.mode = mode
	m.mu.Unlock()

	if mode == ModeChat {
		t.SetMicEnabled(false)
		t.SetSinkMuted(true)
	}
	if err := m.sendFrame(protocol.NewSessionUpdate(m.sessionConfig(mode))); err != nil {
		log.Printf("realtime: initial session update: %v", err)
	}
	m.appendBot(msgWelcome)
	return nil
}

func (m *Manager) enterDemo() {
	m.mu.Lock()
	if m.mode == ModeStopped {
		m.mu.Unlock()
		return
	}
	m.mode = ModeChatDemo
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SessionEvents.WithLabelValues("demo_fallback").Inc()
	}
	m.appendBot(msgWelcomeDemo)
}

// sessionConfig builds the session.update body for a mode. Chat mode turns
// server-side turn detection off with an explicit null.
func (m *Manager) sessionConfig(mode Mode) protocol.SessionConfig {
	cfg := protocol.SessionConfig{
		Modalities:        []string{"text"},
		Instructions:      tools.Instructions,
		Voice:             m.cfg.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		InputAudioTranscription: &protocol.AudioTranscription{
			Model: "whisper-1",
		},
		Tools:      tools.Definitions(),
		ToolChoice: "auto",
	}
	if mode == ModeVoice {
		cfg.Modalities = []string{"text", "audio"}
		cfg.TurnDetection = protocol.ServerVAD()
	}
	return cfg
}

// SendText forwards one user message and requests a model response.
// Delivery failures surface as a bot message rather than an error.
func (m *Manager) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()

	switch mode {
	case ModeUninitialized, ModeConnecting, ModeStopped:
		return fmt.Errorf("session not ready for text in mode %q", mode)
	case ModeChatDemo:
		m.appendUser(text)
		m.answerLocally(ctx, text)
		return nil
	}

	m.appendUser(text)
	if err := m.sendFrame(protocol.NewUserTextItem(text)); err != nil {
		m.appendBot(msgSendFailed)
		return nil
	}
	if err := m.sendFrame(protocol.NewResponseCreate(m.ResponseModalities())); err != nil {
		m.appendBot(msgSendFailed)
		return nil
	}
	m.armResponseTimer()
	return nil
}

// answerLocally produces the degraded-mode reply: the completions fallback
// when configured, a canned echo otherwise.
func (m *Manager) answerLocally(ctx context.Context, text string) {
	m.setTyping(true)
	if m.completer == nil {
		echo := fmt.Sprintf("Demo: Received %q", text)
		m.after(demoEchoDelay, func() {
			m.appendBot(echo)
			m.setTyping(false)
		})
		return
	}

	turns := m.historyCopy()
	go func() {
		reply, err := m.completer.Complete(ctx, turns)
		if err != nil {
			log.Printf("realtime: fallback completion: %v", err)
			m.appendBot(msgGenericFailure)
			m.setTyping(false)
			return
		}
		m.appendBot(reply)
		m.setTyping(false)
		m.speak(ctx, reply)
	}()
}

func (m *Manager) speak(ctx context.Context, text string) {
	if m.synth == nil || m.onAudio == nil {
		return
	}
	pcm, rate, err := m.synth.Speak(ctx, text)
	if err != nil {
		log.Printf("realtime: synthesize reply: %v", err)
		return
	}
	wav, err := audio.EncodeWAVPCM16LE(pcm, rate)
	if err != nil {
		log.Printf("realtime: encode reply audio: %v", err)
		return
	}
	m.onAudio(wav)
}

// SwitchToChat moves voice→chat without reconnecting: the microphone track
// is disabled, not removed, playback is muted, any in-flight response is
// cancelled, and the server session is flipped to text-only.
func (m *Manager) SwitchToChat() error {
	if err := m.beginSwitch(ModeVoice); err != nil {
		return err
	}
	defer m.endSwitch()

	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()
	if t == nil {
		return fmt.Errorf("no active transport")
	}

	t.SetMicEnabled(false)
	t.SetSinkMuted(true)
	if err := m.sendFrame(protocol.NewResponseCancel()); err != nil {
		log.Printf("realtime: cancel on chat switch: %v", err)
	}
	if err := m.sendFrame(protocol.NewInputAudioBufferClear()); err != nil {
		log.Printf("realtime: clear on chat switch: %v", err)
	}
	m.clearResponseTimer()
	m.setTyping(false)

	m.sleep(m.cfg.SwitchSettleDelay)
	if err := m.sendFrame(protocol.NewSessionUpdate(m.sessionConfig(ModeChat))); err != nil {
		m.recordSwitch("chat", "error")
		return fmt.Errorf("session update for chat: %w", err)
	}

	m.setMode(ModeChat)
	m.recordSwitch("chat", "ok")
	return nil
}

// SwitchToVoice moves chat→voice, re-enabling the existing microphone track
// when it is still live. On failure it falls back to a full reconnect; only
// if that also fails does the error reach the caller.
func (m *Manager) SwitchToVoice(ctx context.Context) error {
	if err := m.beginSwitch(ModeChat); err != nil {
		return err
	}
	defer m.endSwitch()

	if err := m.enableVoice(ctx); err != nil {
		log.Printf("realtime: voice switch failed, reconnecting: %v", err)
		if rerr := m.reconnectVoice(ctx); rerr != nil {
			m.recordSwitch("voice", "error")
			return fmt.Errorf("voice reconnect: %w", rerr)
		}
	}

	m.setMode(ModeVoice)
	m.recordSwitch("voice", "ok")
	return nil
}

func (m *Manager) enableVoice(ctx context.Context) error {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()
	if t == nil {
		return fmt.Errorf("no active transport")
	}

	if t.MicLive() {
		if err := t.SetMicEnabled(true); err != nil {
			return fmt.Errorf("enable microphone: %w", err)
		}
	} else if err := t.ReacquireMic(ctx); err != nil {
		return fmt.Errorf("reacquire microphone: %w", err)
	}
	t.SetSinkMuted(false)

	m.sleep(m.cfg.SwitchSettleDelay)
	if err := m.sendFrame(protocol.NewSessionUpdate(m.sessionConfig(ModeVoice))); err != nil {
		return fmt.Errorf("session update for voice: %w", err)
	}
	return nil
}

// reconnectVoice tears the current transport down and builds a fresh one.
func (m *Manager) reconnectVoice(ctx context.Context) error {
	m.mu.Lock()
	old := m.transport
	m.transport = nil
	m.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	key, err := m.creds.EphemeralKey(ctx)
	if err != nil {
		return err
	}

	t := m.factory()
	t.OnEvent(m.handleRawFrame)
	if err := t.Start(ctx, key); err != nil {
		t.Stop()
		return err
	}

	m.mu.Lock()
	if m.mode == ModeStopped {
		m.mu.Unlock()
		t.Stop()
		return fmt.Errorf("session stopped during reconnect")
	}
	m.transport = t
	m.mu.Unlock()

	if err := m.sendFrame(protocol.NewSessionUpdate(m.sessionConfig(ModeVoice))); err != nil {
		return fmt.Errorf("session update after reconnect: %w", err)
	}
	return nil
}

func (m *Manager) beginSwitch(from Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.switching {
		return ErrSwitchInProgress
	}
	if m.mode != from {
		return fmt.Errorf("cannot switch from mode %q", m.mode)
	}
	m.switching = true
	return nil
}

func (m *Manager) endSwitch() {
	m.mu.Lock()
	m.switching = false
	m.mu.Unlock()
}

func (m *Manager) setMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *Manager) recordSwitch(target, outcome string) {
	if m.metrics != nil {
		m.metrics.ModeSwitches.WithLabelValues(target, outcome).Inc()
	}
}

// StartRecording begins a spoken user turn. Any in-flight assistant response
// is cancelled and buffered input is discarded so the user can barge in.
func (m *Manager) StartRecording() error {
	m.mu.Lock()
	mode := m.mode
	t := m.transport
	m.mu.Unlock()
	if mode != ModeVoice || t == nil {
		return nil
	}

	if err := m.sendFrame(protocol.NewResponseCancel()); err != nil {
		log.Printf("realtime: cancel on record start: %v", err)
	}
	t.InterruptPlayback()
	if err := m.sendFrame(protocol.NewInputAudioBufferClear()); err != nil {
		log.Printf("realtime: clear on record start: %v", err)
	}
	m.clearResponseTimer()
	m.setTyping(false)
	return t.SetMicEnabled(true)
}

// StopRecording ends a spoken user turn: the input buffer is committed and,
// once the commit has had time to land, a response is requested. The delay
// is a protocol-ordering requirement.
func (m *Manager) StopRecording() error {
	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()
	if mode != ModeVoice {
		return nil
	}

	if err := m.sendFrame(protocol.NewInputAudioBufferCommit()); err != nil {
		return err
	}
	m.sleep(m.cfg.CommitDelay)
	if err := m.sendFrame(protocol.NewResponseCreate(m.ResponseModalities())); err != nil {
		return err
	}
	m.armResponseTimer()
	return nil
}

// Stop tears the session down. Idempotent and safe from any state, including
// while a Start is still connecting.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.mode == ModeStopped {
		m.mu.Unlock()
		return nil
	}
	prev := m.mode
	m.mode = ModeStopped
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	m.clearResponseTimer()
	if t != nil {
		t.Stop()
	}
	if m.metrics != nil && prev != ModeUninitialized {
		m.metrics.ActiveSessions.Dec()
		m.metrics.SessionEvents.WithLabelValues("stop").Inc()
	}
	return nil
}

// HandleHostMessage processes one inbound frame from the hosting page.
// Frames from other sources are ignored.
func (m *Manager) HandleHostMessage(raw []byte) error {
	event, err := bridge.ParseHostMessage(raw)
	if err != nil {
		if errors.Is(err, bridge.ErrNotParentMessage) {
			return nil
		}
		return err
	}

	switch msg := event.(type) {
	case bridge.SearchResultCount:
		m.appendBot(msg.Notice())
	case bridge.SwitchToChatMode:
		if err := m.StopRecording(); err != nil {
			log.Printf("realtime: stop recording on host switch: %v", err)
		}
		if err := m.SwitchToChat(); err != nil && !errors.Is(err, ErrSwitchInProgress) {
			log.Printf("realtime: host-forced chat switch: %v", err)
		}
	}
	return nil
}

// SendSideChannel sends one protocol frame to the model.
func (m *Manager) SendSideChannel(v any) error {
	return m.sendFrame(v)
}

// PushAudio forwards one frame of user audio to the live voice session.
// Frames arriving outside voice mode are dropped without error; the widget
// keeps streaming across a mode switch and the stragglers are meaningless.
func (m *Manager) PushAudio(frame []byte) error {
	m.mu.Lock()
	mode := m.mode
	t := m.transport
	m.mu.Unlock()
	if mode != ModeVoice || t == nil {
		return nil
	}
	return t.WriteAudio(frame)
}

func (m *Manager) sendFrame(v any) error {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()
	if t == nil {
		return ErrSideChannelClosed
	}
	if err := t.SendEvent(v); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.SideChannelFrames.WithLabelValues("outbound", frameType(v)).Inc()
	}
	return nil
}

func (m *Manager) handleRawFrame(raw []byte) {
	if m.metrics != nil {
		m.metrics.SideChannelFrames.WithLabelValues("inbound", inboundFrameType(raw)).Inc()
	}
	m.dispatcher.HandleFrame(raw)
}

// Dispatcher callbacks.

func (m *Manager) assistantArrived(text string) {
	m.clearResponseTimer()
	m.setTyping(false)
	m.appendBot(text)
}

// textDeltaArrived shows the typing indicator while a response streams, which
// matters in voice mode where server-side turn detection starts responses the
// manager never requested.
func (m *Manager) textDeltaArrived(string) {
	m.setTyping(true)
}

func (m *Manager) transcriptArrived(text string) {
	m.appendUser(text)
}

func (m *Manager) functionCallArrived(name, arguments, callID string) {
	// The tool output triggers a continuation response, so the deadline is
	// re-armed rather than cleared.
	m.armResponseTimer()
	m.setTyping(true)
	if m.toolHandler == nil {
		log.Printf("realtime: function call %s with no handler", name)
		return
	}
	m.toolHandler.HandleCall(name, arguments, callID)
}

func (m *Manager) turnCompleted(string) {
	if m.metrics != nil {
		m.metrics.SessionEvents.WithLabelValues("response_done").Inc()
	}
}

func (m *Manager) dispatchFailed() {
	m.setTyping(false)
	m.appendBot(msgGenericFailure)
}

// Response deadline.

func (m *Manager) armResponseTimer() {
	m.setTyping(true)
	m.mu.Lock()
	if m.respTimer != nil {
		m.respTimer.Stop()
	}
	m.respArmedAt = m.now()
	m.respTimer = m.after(m.cfg.ResponseTimeout, m.responseTimedOut)
	m.mu.Unlock()
}

func (m *Manager) clearResponseTimer() {
	m.mu.Lock()
	timer := m.respTimer
	armedAt := m.respArmedAt
	m.respTimer = nil
	m.respArmedAt = time.Time{}
	m.mu.Unlock()

	if timer == nil {
		return
	}
	timer.Stop()
	if m.metrics != nil && !armedAt.IsZero() {
		m.metrics.ObserveResponseLatency(m.now().Sub(armedAt))
	}
}

func (m *Manager) responseTimedOut() {
	m.mu.Lock()
	m.respTimer = nil
	m.respArmedAt = time.Time{}
	stopped := m.mode == ModeStopped
	m.mu.Unlock()
	if stopped {
		return
	}

	if m.metrics != nil {
		m.metrics.ResponseTimeouts.Inc()
	}
	m.setTyping(false)
	m.appendBot(msgGenericFailure)
}

// Transcript helpers.

// restoreTranscript replays persisted turns for this session id into the
// visible transcript and the fallback history. Fills the widget when a
// client resumes a session the process no longer has in memory.
func (m *Manager) restoreTranscript(ctx context.Context) {
	if m.histStore == nil {
		return
	}
	records, err := m.histStore.RecentTurns(ctx, m.cfg.SessionID, 50)
	if err != nil {
		log.Printf("realtime: restore transcript: %v", err)
		return
	}
	for _, rec := range records {
		sender := chatlog.SenderUser
		role := "user"
		if rec.AnswerByAI {
			sender = chatlog.SenderBot
			role = "assistant"
		}
		// Replayed turns are already persisted, so they bypass append().
		m.chatLog.Append(chatlog.ChatMessage{
			ID:        rec.ResponseAnswerID,
			Text:      rec.ResponseAnswerContent,
			Sender:    sender,
			Timestamp: rec.CreatedAt,
		})
		m.mu.Lock()
		m.history = append(m.history, ChatTurn{Role: role, Content: rec.ResponseAnswerContent})
		m.mu.Unlock()
	}
}

func (m *Manager) appendUser(text string) { m.append(text, chatlog.SenderUser) }
func (m *Manager) appendBot(text string)  { m.append(text, chatlog.SenderBot) }

func (m *Manager) append(text, sender string) {
	msg := m.chatLog.Append(chatlog.ChatMessage{Text: text, Sender: sender})

	role := "user"
	if sender == chatlog.SenderBot {
		role = "assistant"
	}
	m.mu.Lock()
	m.history = append(m.history, ChatTurn{Role: role, Content: text})
	m.mu.Unlock()

	go m.persist(msg, role)
}

func (m *Manager) persist(msg chatlog.ChatMessage, role string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := chatlog.TurnRecord{
		ID:                    msg.ID,
		SessionID:             m.cfg.SessionID,
		InitiatorID:           m.cfg.InitiatorID,
		UserCompanyID:         m.cfg.CompanyID,
		UserID:                m.cfg.UserID,
		InitiatorName:         m.cfg.InitiatorName,
		AnswerByAI:            msg.Sender == chatlog.SenderBot,
		ResponseStatus:        "completed",
		ResponseAnswerID:      msg.ID,
		ResponseAnswerRole:    role,
		ResponseAnswerStatus:  "completed",
		ResponseAnswerContent: msg.Text,
		ResponseAnswerType:    "text",
		CreatedAt:             msg.Timestamp,
	}
	if err := m.store.SaveTurn(ctx, record); err != nil {
		log.Printf("realtime: persist turn: %v", err)
	}
}

func (m *Manager) historyCopy() []ChatTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatTurn, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) setTyping(on bool) {
	if m.onTyping != nil {
		m.onTyping(on)
	}
}

func frameType(v any) string {
	switch f := v.(type) {
	case protocol.SessionUpdate:
		return string(f.Type)
	case protocol.ConversationItemCreate:
		return string(f.Type)
	case protocol.ResponseCreate:
		return string(f.Type)
	case protocol.ResponseCancel:
		return string(f.Type)
	case protocol.InputAudioBufferClear:
		return string(f.Type)
	case protocol.InputAudioBufferCommit:
		return string(f.Type)
	default:
		return "other"
	}
}

func inboundFrameType(raw []byte) string {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return "unknown"
	}
	return string(env.Type)
}
