package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

const sideChannelLabel = "oai-events"

// MediaSession is the WebRTC transport to the remote realtime service: one
// peer connection, one outbound audio track, one remote audio track, and the
// ordered reliable side channel used for protocol frames.
type MediaSession struct {
	baseURL   string
	model     string
	newSource func() TrackSource
	sink      AudioSink
	client    *http.Client

	handler func(raw []byte)

	mu      sync.Mutex
	source  TrackSource
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	sender  *webrtc.RTPSender
	opened  chan struct{}
	stopped bool
}

// NewMediaSession builds an unstarted session. newSource produces the capture
// source, both at start and whenever the microphone must be reacquired; nil
// defaults to a widget-fed stream source. A nil sink discards remote audio.
func NewMediaSession(baseURL, model string, newSource func() TrackSource, sink AudioSink) *MediaSession {
	if newSource == nil {
		newSource = func() TrackSource { return NewStreamSource() }
	}
	if sink == nil {
		sink = NewDiscardSink()
	}
	return &MediaSession{
		baseURL:   baseURL,
		model:     model,
		newSource: newSource,
		source:    newSource(),
		sink:      sink,
		client:    &http.Client{Timeout: 20 * time.Second},
		opened:    make(chan struct{}),
	}
}

// OnEvent registers the inbound frame handler. Must be set before Start.
func (m *MediaSession) OnEvent(fn func(raw []byte)) {
	m.handler = fn
}

// Start negotiates the peer connection and blocks until the side channel is
// open. A Stop racing Start wins: media is released and Start returns an
// error.
func (m *MediaSession) Start(ctx context.Context, bearer string) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("media session already stopped")
	}
	m.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		pc.Close()
		return fmt.Errorf("media session stopped during start")
	}
	m.pc = pc
	m.mu.Unlock()

	source := m.currentSource()
	track, err := source.Track(ctx)
	if err != nil {
		// No usable capture source: negotiate with a silent sender so the
		// session still carries audio when a real source arrives later.
		log.Printf("realtime: capture source unavailable, using silence: %v", err)
		source = NewSilentSource()
		track, err = source.Track(ctx)
		if err != nil {
			m.Stop()
			return fmt.Errorf("create silent track: %w", err)
		}
		m.mu.Lock()
		m.source = source
		m.mu.Unlock()
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		m.Stop()
		return fmt.Errorf("add local track: %w", err)
	}
	m.mu.Lock()
	m.sender = sender
	m.mu.Unlock()
	go drainRTCP(sender)

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.sink.Play(remote)
	})

	ordered := true
	dc, err := pc.CreateDataChannel(sideChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		m.Stop()
		return fmt.Errorf("create side channel: %w", err)
	}
	dc.OnOpen(func() {
		m.mu.Lock()
		select {
		case <-m.opened:
		default:
			close(m.opened)
		}
		m.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if m.handler != nil {
			m.handler(msg.Data)
		}
	})
	m.mu.Lock()
	m.dc = dc
	m.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		m.Stop()
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		m.Stop()
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		m.Stop()
		return ctx.Err()
	}

	answer, err := m.exchangeSDP(ctx, pc.LocalDescription().SDP, bearer)
	if err != nil {
		m.Stop()
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		m.Stop()
		return fmt.Errorf("set remote description: %w", err)
	}

	select {
	case <-m.opened:
		return nil
	case <-ctx.Done():
		m.Stop()
		return ctx.Err()
	}
}

// exchangeSDP posts the local offer and returns the remote answer. Non-2xx
// responses become ConnectionError carrying status and body.
func (m *MediaSession) exchangeSDP(ctx context.Context, offerSDP, bearer string) (string, error) {
	endpoint := m.baseURL + "?model=" + url.QueryEscape(m.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("build sdp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &ConnectionError{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read sdp answer: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ConnectionError{Status: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

// SendEvent marshals and sends one frame on the side channel.
func (m *MediaSession) SendEvent(v any) error {
	m.mu.Lock()
	dc := m.dc
	m.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrSideChannelClosed
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode side channel frame: %w", err)
	}
	return dc.SendText(string(raw))
}

// Connected reports whether the side channel is open.
func (m *MediaSession) Connected() bool {
	m.mu.Lock()
	dc := m.dc
	m.mu.Unlock()
	return dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen
}

// SetMicEnabled toggles outbound capture without renegotiating.
func (m *MediaSession) SetMicEnabled(enabled bool) error {
	m.currentSource().SetEnabled(enabled)
	return nil
}

// MicLive reports whether the capture source is still usable.
func (m *MediaSession) MicLive() bool {
	return m.currentSource().Live()
}

// WriteAudio pushes one user audio frame onto the outbound track.
func (m *MediaSession) WriteAudio(frame []byte) error {
	writer, ok := m.currentSource().(AudioWriter)
	if !ok {
		return fmt.Errorf("capture source does not accept pushed audio")
	}
	return writer.Write(frame)
}

// ReacquireMic swaps a fresh capture source of the configured kind onto the
// live sender.
func (m *MediaSession) ReacquireMic(ctx context.Context) error {
	m.mu.Lock()
	sender := m.sender
	old := m.source
	m.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("no audio sender")
	}

	fresh := m.newSource()
	track, err := fresh.Track(ctx)
	if err != nil {
		return fmt.Errorf("reacquire capture: %w", err)
	}
	if err := sender.ReplaceTrack(track); err != nil {
		fresh.Close()
		return fmt.Errorf("replace track: %w", err)
	}
	m.mu.Lock()
	m.source = fresh
	m.mu.Unlock()
	old.Close()
	return nil
}

func (m *MediaSession) currentSource() TrackSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// SetSinkMuted toggles remote audio playback.
func (m *MediaSession) SetSinkMuted(muted bool) {
	m.sink.SetMuted(muted)
}

// InterruptPlayback drops queued remote audio immediately.
func (m *MediaSession) InterruptPlayback() {
	m.sink.Interrupt()
}

// Stop releases the peer connection, capture source, and sink. Idempotent.
func (m *MediaSession) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	pc := m.pc
	source := m.source
	m.pc = nil
	m.dc = nil
	m.sender = nil
	m.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Printf("realtime: close peer connection: %v", err)
		}
	}
	source.Close()
	m.sink.Close()
	return nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
