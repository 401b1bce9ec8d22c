package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	chimeSampleRate = 48000
	chimeFrameSize  = 480 // 10ms
)

// PlaybackDevice plays PCM audio to an output device.
type PlaybackDevice struct {
	stream     *portaudio.Stream
	sampleRate float64
	frameSize  int
	buffer     []int16
	deviceName string // empty = default
	mu         sync.Mutex
	running    bool
}

// NewPlaybackDevice creates a new audio playback device.
// deviceName may be empty to use the system default.
func NewPlaybackDevice(sampleRate float64, frameSize int, deviceName string) *PlaybackDevice {
	return &PlaybackDevice{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buffer:     make([]int16, frameSize),
		deviceName: deviceName,
	}
}

// Start begins audio playback.
func (p *PlaybackDevice) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var output *portaudio.DeviceInfo
	if p.deviceName != "" {
		output = FindDevice(p.deviceName)
	}
	if output == nil {
		var err error
		output, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return fmt.Errorf("audio: no output device: %w", err)
		}
	}

	params := portaudio.LowLatencyParameters(nil, output)
	params.Output.Channels = 1
	params.Input.Device = nil
	params.Input.Channels = 0
	params.SampleRate = p.sampleRate
	params.FramesPerBuffer = p.frameSize

	stream, err := portaudio.OpenStream(params, p.buffer)
	if err != nil {
		return fmt.Errorf("audio: open playback stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start playback: %w", err)
	}

	p.stream = stream
	p.running = true
	slog.Debug("audio playback started", "device", output.Name, "rate", p.sampleRate)
	return nil
}

// WriteFrame writes one frame of PCM audio to the output. Blocks until written.
func (p *PlaybackDevice) WriteFrame(frame []int16) error {
	if len(frame) != len(p.buffer) {
		return fmt.Errorf("audio: frame size mismatch: got %d, want %d", len(frame), len(p.buffer))
	}
	copy(p.buffer, frame)
	if err := p.stream.Write(); err != nil {
		return fmt.Errorf("audio: write frame: %w", err)
	}
	return nil
}

// Stop stops audio playback.
func (p *PlaybackDevice) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false

	if p.stream != nil {
		_ = p.stream.Stop()
		_ = p.stream.Close()
	}
	return nil
}

// Chime is the new-message sound: two short decaying tones.
type Chime struct {
	deviceName string
	frames     [][]int16
	playing    sync.Mutex
}

// NewChime synthesises the chime for the given output device (empty = default).
func NewChime(deviceName string) *Chime {
	return &Chime{
		deviceName: deviceName,
		frames:     splitFrames(synthChime(chimeSampleRate), chimeFrameSize),
	}
}

// Play blocks until the chime has played. Overlapping calls are dropped.
func (c *Chime) Play() error {
	if !c.playing.TryLock() {
		return nil
	}
	defer c.playing.Unlock()

	if err := WaitPreInit(); err != nil {
		return fmt.Errorf("audio: chime: %w", err)
	}
	dev := NewPlaybackDevice(chimeSampleRate, chimeFrameSize, c.deviceName)
	if err := dev.Start(); err != nil {
		return fmt.Errorf("audio: chime: %w", err)
	}
	defer func() { _ = dev.Stop() }()

	for _, f := range c.frames {
		if err := dev.WriteFrame(f); err != nil {
			return fmt.Errorf("audio: chime: %w", err)
		}
	}
	return nil
}

// synthChime renders 880Hz then 1320Hz, 120ms each, exponentially decaying.
func synthChime(rate int) []int16 {
	tone := func(freq float64, n int) []int16 {
		out := make([]int16, n)
		for i := range out {
			t := float64(i) / float64(rate)
			env := math.Exp(-t * 18)
			out[i] = int16(math.Sin(2*math.Pi*freq*t) * env * 9000) //nolint:gosec // bounded by amplitude
		}
		return out
	}
	n := rate * 120 / 1000
	pcm := append(tone(880, n), tone(1320, n)...)
	return pcm
}

// splitFrames cuts pcm into fixed-size frames, zero-padding the last one.
func splitFrames(pcm []int16, size int) [][]int16 {
	var frames [][]int16
	for off := 0; off < len(pcm); off += size {
		f := make([]int16, size)
		copy(f, pcm[off:])
		frames = append(frames, f)
	}
	return frames
}
