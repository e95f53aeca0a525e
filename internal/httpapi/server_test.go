package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/chatlog"
	"github.com/evernorth/melodie/internal/config"
	"github.com/evernorth/melodie/internal/realtime"
	"github.com/evernorth/melodie/internal/session"
)

type stubTransport struct {
	mu      sync.Mutex
	handler func([]byte)
	frames  []any
	audio   [][]byte
}

func (s *stubTransport) Start(context.Context, string) error { return nil }
func (s *stubTransport) Stop() error                         { return nil }

func (s *stubTransport) SendEvent(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, v)
	return nil
}

func (s *stubTransport) WriteAudio(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, frame)
	return nil
}

func (s *stubTransport) audioFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

func (s *stubTransport) OnEvent(fn func(raw []byte))        { s.handler = fn }
func (s *stubTransport) SetMicEnabled(bool) error           { return nil }
func (s *stubTransport) MicLive() bool                      { return true }
func (s *stubTransport) ReacquireMic(context.Context) error { return nil }
func (s *stubTransport) SetSinkMuted(bool)                  {}
func (s *stubTransport) InterruptPlayback()                 {}
func (s *stubTransport) Connected() bool                    { return true }

type stubCreds struct{}

func (stubCreds) EphemeralKey(context.Context) (string, error) { return "ek_test", nil }

// transportLog collects the stub transports the factory hands out so tests
// can inspect what reached them.
type transportLog struct {
	mu         sync.Mutex
	transports []*stubTransport
}

func (l *transportLog) add(st *stubTransport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transports = append(l.transports, st)
}

func (l *transportLog) last() *stubTransport {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.transports) == 0 {
		return nil
	}
	return l.transports[len(l.transports)-1]
}

func testFactory(tl *transportLog) ConversationFactory {
	return func(sessionID string, userID, companyID int) *Conversation {
		hub := bridge.NewHub()
		agent := realtime.NewManager(realtime.ManagerConfig{
			SessionID:       sessionID,
			UserID:          userID,
			CompanyID:       companyID,
			Voice:           "shimmer",
			ResponseTimeout: 20 * time.Second,
		}, realtime.ManagerDeps{
			Factory: func() realtime.VoiceTransport {
				st := &stubTransport{}
				if tl != nil {
					tl.add(st)
				}
				return st
			},
			Credentials: stubCreds{},
			Log:         chatlog.NewLog(),
		})
		return &Conversation{Agent: agent, Host: hub}
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, ts, _ := newTestServerWithTransports(t)
	return srv, ts
}

func newTestServerWithTransports(t *testing.T) (*Server, *httptest.Server, *transportLog) {
	t.Helper()
	tl := &transportLog{}
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewRegistry(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, testFactory(tl), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts, tl
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"user_id": 11, "company_id": 7, "mode": "chat"})
	res, err := http.Post(ts.URL+"/v1/widget/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created createSessionResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatalf("missing session_id in create response")
	}
	return created.SessionID
}

func TestHealthAndReady(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, res.StatusCode)
		}
	}
}

func TestCreateAndEndSession(t *testing.T) {
	_, ts := newTestServer(t)
	sessionID := createSession(t, ts)

	endRes, err := http.Post(ts.URL+"/v1/widget/session/"+sessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}

	var entry session.Entry
	if err := json.NewDecoder(endRes.Body).Decode(&entry); err != nil {
		t.Fatalf("decode end response: %v", err)
	}
	if entry.Status != session.StatusEnded {
		t.Fatalf("status = %q", entry.Status)
	}
}

func TestCreateSessionRejectsBadMode(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"mode": "video"})
	res, err := http.Post(ts.URL+"/v1/widget/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestEndUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)

	res, err := http.Post(ts.URL+"/v1/widget/session/nope/end", "application/json", nil)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestWidgetWebsocketConversation(t *testing.T) {
	_, ts := newTestServer(t)
	sessionID := createSession(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/widget/session/ws?session_id=" + sessionID
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	// The agent connects on attach and greets.
	readUntilChatMessage(t, conn, "Hello, Start chatting with me.")

	if err := conn.WriteJSON(clientCommand{Type: cmdSendText, Text: "hello"}); err != nil {
		t.Fatalf("write command: %v", err)
	}
	readUntilChatMessage(t, conn, "hello")
}

func TestWebsocketBinaryFramesReachVoiceTransport(t *testing.T) {
	_, ts, tl := newTestServerWithTransports(t)
	sessionID := createSession(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/widget/session/ws?session_id=" + sessionID + "&mode=voice"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	readUntilChatMessage(t, conn, "Hello, Start chatting with me.")

	frame := []byte{0xF8, 0xFF, 0xFE}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st := tl.last()
		if st != nil && len(st.audioFrames()) > 0 {
			if got := st.audioFrames()[0]; !bytes.Equal(got, frame) {
				t.Fatalf("forwarded frame = %v, want %v", got, frame)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("binary frame never reached the transport")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateSessionHonorsResumeID(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"user_id": 11, "company_id": 7, "mode": "chat", "session_id": "sess_resume_1"})
	res, err := http.Post(ts.URL+"/v1/widget/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created createSessionResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.SessionID != "sess_resume_1" {
		t.Fatalf("session_id = %q, want the resumed id", created.SessionID)
	}
}

func TestWebsocketRequiresKnownSession(t *testing.T) {
	_, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/widget/session/ws?session_id=nope"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial must fail for unknown session")
	}
	if res == nil || res.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %+v", res)
	}
	res.Body.Close()
}

func readUntilChatMessage(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame map[string]json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame waiting for %q: %v", text, err)
		}
		var kind string
		json.Unmarshal(frame["type"], &kind)
		if kind != "chat_message" {
			continue
		}
		var msg chatlog.ChatMessage
		if err := json.Unmarshal(frame["message"], &msg); err != nil {
			t.Fatalf("decode chat message: %v", err)
		}
		if msg.Text == text {
			return
		}
	}
}
