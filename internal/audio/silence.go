package audio

import "time"

// OpusFrameDuration is the packet cadence for the outbound opus track.
const OpusFrameDuration = 20 * time.Millisecond

// OpusSilenceFrame returns a minimal opus DTX frame. Sending these keeps the
// RTP sender alive when no microphone is attached.
func OpusSilenceFrame() []byte {
	return []byte{0xF8, 0xFF, 0xFE}
}
