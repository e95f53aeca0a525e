// Package realtime owns the connection to the remote realtime model: the
// WebRTC media session, the side-channel protocol, the text-only fallback,
// and the session manager that switches between them.
package realtime

import (
	"context"
	"errors"
	"fmt"
)

// ErrSideChannelClosed is returned by sends on a channel that is not open.
// Protocol-internal callers drop the frame; user-facing callers surface a
// delivery failure instead.
var ErrSideChannelClosed = errors.New("side channel not open")

// ErrSwitchInProgress is returned when a mode switch is requested while
// another switch has not finished.
var ErrSwitchInProgress = errors.New("mode switch already in progress")

// ConnectionError reports a failed SDP exchange with the remote service.
type ConnectionError struct {
	Status int
	Body   string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("realtime connect failed: status %d: %s", e.Status, e.Body)
}

// VoiceTransport is the media session contract the manager drives. A
// transport is single-use: once stopped it cannot be restarted, the manager
// builds a fresh one to reconnect.
type VoiceTransport interface {
	// Start performs the SDP exchange with the given bearer credential and
	// blocks until the side channel is open or ctx ends.
	Start(ctx context.Context, bearer string) error
	// Stop tears the session down. Safe to call repeatedly and concurrently
	// with a racing Start.
	Stop() error
	// SendEvent marshals and sends one side-channel frame. Returns
	// ErrSideChannelClosed when the channel is not open.
	SendEvent(v any) error
	// OnEvent registers the inbound frame handler. Must be called before
	// Start.
	OnEvent(fn func(raw []byte))
	// SetMicEnabled toggles outbound audio without renegotiating.
	SetMicEnabled(enabled bool) error
	// WriteAudio forwards one encoded frame of user audio onto the outbound
	// track. Returns an error when the capture source does not accept pushed
	// audio.
	WriteAudio(frame []byte) error
	// MicLive reports whether the capture source is still usable.
	MicLive() bool
	// ReacquireMic swaps in a fresh capture source on the live sender.
	ReacquireMic(ctx context.Context) error
	// SetSinkMuted toggles remote audio playback.
	SetSinkMuted(muted bool)
	// InterruptPlayback drops any queued remote audio immediately.
	InterruptPlayback()
	// Connected reports whether the side channel is open.
	Connected() bool
}

// CredentialSource issues ephemeral bearer tokens for the SDP exchange.
type CredentialSource interface {
	EphemeralKey(ctx context.Context) (string, error)
}
