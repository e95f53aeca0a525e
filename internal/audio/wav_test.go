package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	out, err := EncodeWAVPCM16LE(pcm, 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE error = %v", err)
	}
	if len(out) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), 44+len(pcm))
	}
	if !bytes.Equal(out[:4], []byte("RIFF")) || !bytes.Equal(out[8:12], []byte("WAVE")) {
		t.Fatalf("bad container header: % x", out[:12])
	}
	rate := binary.LittleEndian.Uint32(out[24:28])
	if rate != 24000 {
		t.Fatalf("sample rate = %d, want 24000", rate)
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Fatalf("payload mismatch")
	}
}

func TestOpusSilenceFrame(t *testing.T) {
	frame := OpusSilenceFrame()
	if !bytes.Equal(frame, []byte{0xF8, 0xFF, 0xFE}) {
		t.Fatalf("silence frame = % x", frame)
	}
	// Callers may mutate the returned slice; each call must be independent.
	frame[0] = 0
	if OpusSilenceFrame()[0] != 0xF8 {
		t.Fatalf("silence frame shares backing storage")
	}
}
