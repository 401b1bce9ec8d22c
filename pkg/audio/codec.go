package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

const (
	opusSampleRate = 48000
	opusChannels   = 1
	opusBitrate    = 32000 // 32 kbps is plenty for voice notes
	opusFrameSize  = 960   // 20ms at 48kHz

	// FrameDurationMs is the length of one captured PCM frame.
	FrameDurationMs = 20
)

// FrameEncoder turns one PCM frame into one compressed packet.
type FrameEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// Encoder wraps an Opus encoder.
type Encoder struct {
	enc *opus.Encoder
	buf []byte // reusable output buffer
}

// NewEncoder creates an Opus encoder tuned for recorded speech.
func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(opusSampleRate, opusChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("audio: new encoder: %w", err)
	}
	_ = enc.SetBitrate(opusBitrate)
	_ = enc.SetComplexity(8)

	return &Encoder{
		enc: enc,
		buf: make([]byte, 1024), // max Opus frame size
	}, nil
}

// Encode encodes a PCM frame to Opus. Returns a copy of the encoded bytes.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != opusFrameSize {
		return nil, fmt.Errorf("audio: encode: frame has %d samples, want %d", len(pcm), opusFrameSize)
	}
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("audio: encode: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}
