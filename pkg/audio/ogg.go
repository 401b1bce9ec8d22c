package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

// ClipMimeType is the content type of recorded voice notes.
const ClipMimeType = "audio/ogg"

var errNoPackets = errors.New("audio: no packets to mux")

// muxOgg wraps Opus packets into an Ogg/Opus stream. Packets are assumed
// to be consecutive 20ms frames.
func muxOgg(packets [][]byte) ([]byte, error) {
	if len(packets) == 0 {
		return nil, errNoPackets
	}

	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: ogg writer: %w", err)
	}

	var ts uint32
	for i, p := range packets {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: uint16(i), //nolint:gosec // wraps like RTP does
				Timestamp:      ts,
			},
			Payload: p,
		}
		if err := w.WriteRTP(pkt); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("audio: ogg write packet %d: %w", i, err)
		}
		ts += opusFrameSize
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("audio: ogg close: %w", err)
	}
	return buf.Bytes(), nil
}
