package realtime

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/evernorth/melodie/internal/audio"
)

// TrackSource supplies the outbound audio track. Implementations own the
// capture device; SetEnabled toggles capture without releasing it.
type TrackSource interface {
	Track(ctx context.Context) (webrtc.TrackLocal, error)
	SetEnabled(enabled bool)
	Live() bool
	Close() error
}

// AudioWriter is implemented by track sources that accept pushed audio
// frames, such as capture relayed from the widget.
type AudioWriter interface {
	Write(frame []byte) error
}

// AudioSink consumes the remote audio track.
type AudioSink interface {
	Play(track *webrtc.TrackRemote)
	SetMuted(muted bool)
	Interrupt()
	Close() error
}

// SilentSource emits opus DTX silence at the packet cadence. It stands in
// when no capture device is available so the peer still negotiates an audio
// sender that a real source can later replace.
type SilentSource struct {
	mu      sync.Mutex
	track   *webrtc.TrackLocalStaticSample
	enabled bool
	closed  bool
	done    chan struct{}
}

func NewSilentSource() *SilentSource {
	return &SilentSource{enabled: true, done: make(chan struct{})}
}

func (s *SilentSource) Track(ctx context.Context) (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track != nil {
		return s.track, nil
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "melodie-mic",
	)
	if err != nil {
		return nil, err
	}
	s.track = track
	go s.pump()
	return track, nil
}

func (s *SilentSource) pump() {
	ticker := audio.OpusFrameDuration
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.Lock()
		track := s.track
		enabled := s.enabled
		s.mu.Unlock()

		if enabled && track != nil {
			err := track.WriteSample(media.Sample{
				Data:     audio.OpusSilenceFrame(),
				Duration: ticker,
			})
			if err != nil && err != io.ErrClosedPipe {
				log.Printf("realtime: silent source write: %v", err)
			}
		}

		select {
		case <-s.done:
			return
		case <-time.After(ticker):
		}
	}
}

func (s *SilentSource) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *SilentSource) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *SilentSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// ErrSourceClosed is returned by writes to a released capture source.
var ErrSourceClosed = errors.New("capture source closed")

// StreamSource carries opus frames pushed by the widget onto the local
// track. Gaps between pushed frames are padded with DTX silence so the
// sender keeps its packet cadence. Frames pushed while disabled are dropped,
// which is how the microphone mutes without renegotiating.
type StreamSource struct {
	mu      sync.Mutex
	track   *webrtc.TrackLocalStaticSample
	enabled bool
	closed  bool
	done    chan struct{}
	frames  chan []byte
}

func NewStreamSource() *StreamSource {
	return &StreamSource{
		enabled: true,
		done:    make(chan struct{}),
		frames:  make(chan []byte, 64),
	}
}

func (s *StreamSource) Track(ctx context.Context) (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.track != nil {
		return s.track, nil
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 1},
		"audio", "melodie-mic",
	)
	if err != nil {
		return nil, err
	}
	s.track = track
	go s.pump()
	return track, nil
}

// Write queues one encoded frame. Under backpressure the oldest queued frame
// is dropped: live audio must not lag behind real time.
func (s *StreamSource) Write(frame []byte) error {
	s.mu.Lock()
	closed := s.closed
	enabled := s.enabled
	s.mu.Unlock()
	if closed {
		return ErrSourceClosed
	}
	if !enabled {
		return nil
	}

	data := make([]byte, len(frame))
	copy(data, frame)
	select {
	case s.frames <- data:
	default:
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- data:
		default:
		}
	}
	return nil
}

func (s *StreamSource) pump() {
	cadence := audio.OpusFrameDuration
	for {
		var sample media.Sample

		select {
		case <-s.done:
			return
		case data := <-s.frames:
			sample = media.Sample{Data: data, Duration: cadence}
		case <-time.After(cadence):
			s.mu.Lock()
			enabled := s.enabled
			s.mu.Unlock()
			if !enabled {
				continue
			}
			sample = media.Sample{Data: audio.OpusSilenceFrame(), Duration: cadence}
		}

		s.mu.Lock()
		track := s.track
		s.mu.Unlock()
		if track == nil {
			continue
		}
		if err := track.WriteSample(sample); err != nil && err != io.ErrClosedPipe {
			log.Printf("realtime: stream source write: %v", err)
		}
	}
}

func (s *StreamSource) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *StreamSource) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// DiscardSink drains the remote track so the peer's buffers never back up.
type DiscardSink struct {
	mu     sync.Mutex
	muted  bool
	closed bool
}

func NewDiscardSink() *DiscardSink {
	return &DiscardSink{}
}

func (d *DiscardSink) Play(track *webrtc.TrackRemote) {
	go func() {
		buf := make([]byte, 1500)
		for {
			d.mu.Lock()
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}

func (d *DiscardSink) SetMuted(muted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.muted = muted
}

func (d *DiscardSink) Interrupt() {}

func (d *DiscardSink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
