// Package audio provides microphone capture, Opus voice-note encoding and
// the notification chime, all on top of PortAudio.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrDeviceUnavailable is returned when no usable input device can be opened.
// Callers present it as a microphone permission problem.
var ErrDeviceUnavailable = errors.New("audio: input device unavailable")

// Capturer is a started input stream delivering fixed-size PCM frames.
type Capturer interface {
	Start() error
	ReadFrame() ([]int16, error)
	Stop() error
	Close() error
}

// CaptureDevice captures PCM audio from an input device.
type CaptureDevice struct {
	stream     *portaudio.Stream
	sampleRate float64
	frameSize  int
	buffer     []int16
	deviceName string // empty = default
	mu         sync.Mutex
	running    bool
}

// NewCaptureDevice creates a new audio capture device.
// frameSize is the number of samples per frame (e.g., 960 for 20ms at 48kHz).
// deviceName may be empty to use the system default.
func NewCaptureDevice(sampleRate float64, frameSize int, deviceName string) (*CaptureDevice, error) {
	if err := WaitPreInit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &CaptureDevice{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		buffer:     make([]int16, frameSize),
		deviceName: deviceName,
	}, nil
}

// Start opens the input stream. Call ReadFrame() to get captured audio.
func (c *CaptureDevice) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var input *portaudio.DeviceInfo
	if c.deviceName != "" {
		input = FindDevice(c.deviceName)
	}
	if input == nil {
		var err error
		input, err = portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
	}

	params := portaudio.LowLatencyParameters(input, nil)
	params.Input.Channels = 1
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = c.sampleRate
	params.FramesPerBuffer = c.frameSize

	stream, err := portaudio.OpenStream(params, c.buffer)
	if err != nil {
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	c.stream = stream
	c.running = true
	slog.Debug("audio capture started", "device", input.Name, "rate", c.sampleRate)
	return nil
}

// ReadFrame reads one frame of PCM audio. Blocks until a frame is available.
// Returns a copy of the frame buffer.
func (c *CaptureDevice) ReadFrame() ([]int16, error) {
	c.mu.Lock()
	stream := c.stream
	running := c.running
	c.mu.Unlock()
	if !running || stream == nil {
		return nil, fmt.Errorf("audio: read frame: stream stopped")
	}
	if err := stream.Read(); err != nil {
		return nil, fmt.Errorf("audio: read frame: %w", err)
	}
	frame := make([]int16, len(c.buffer))
	copy(frame, c.buffer)
	return frame, nil
}

// Stop stops audio capture. A blocked ReadFrame returns with an error.
func (c *CaptureDevice) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
		c.stream = nil
	}
	return nil
}

// Close releases the stream. PortAudio itself stays initialised for the
// process lifetime so the next recording opens quickly.
func (c *CaptureDevice) Close() error {
	return c.Stop()
}
