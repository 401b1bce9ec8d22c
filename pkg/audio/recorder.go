package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxRecordingDuration caps a voice note. At 32 kbps five minutes of Opus
// is a little over 1 MiB.
const MaxRecordingDuration = 5 * time.Minute

var (
	// ErrPermissionDenied is returned by Start when the microphone cannot be opened.
	ErrPermissionDenied = errors.New("audio: microphone access denied")
	// ErrEmptyRecording is returned by Stop when no audio was captured.
	ErrEmptyRecording = errors.New("audio: recording is empty")
)

// RecorderState is idle or recording.
type RecorderState int

const (
	RecorderIdle RecorderState = iota
	RecorderRecording
)

func (s RecorderState) String() string {
	if s == RecorderRecording {
		return "recording"
	}
	return "idle"
}

// Clip is a finished voice note.
type Clip struct {
	Data     []byte
	MimeType string
	Filename string
	Duration time.Duration
}

// RecorderConfig holds the recorder's collaborators. Zero fields fall back
// to PortAudio capture and the Opus encoder.
type RecorderConfig struct {
	DeviceName  string
	MaxDuration time.Duration
	OpenDevice  func(deviceName string) (Capturer, error)
	NewEncoder  func() (FrameEncoder, error)
	OnLevel     func(level float64) // 0..1, called from the capture goroutine
}

type captureResult struct {
	packets [][]byte
	err     error
}

// Recorder records one voice note at a time. It owns the microphone
// exclusively while recording.
type Recorder struct {
	mu      sync.Mutex
	cfg     RecorderConfig
	state   RecorderState
	dev     Capturer
	cancel  context.CancelFunc
	results chan captureResult
}

// NewRecorder creates an idle recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = MaxRecordingDuration
	}
	if cfg.OpenDevice == nil {
		cfg.OpenDevice = func(name string) (Capturer, error) {
			return NewCaptureDevice(opusSampleRate, opusFrameSize, name)
		}
	}
	if cfg.NewEncoder == nil {
		cfg.NewEncoder = func() (FrameEncoder, error) { return NewEncoder() }
	}
	return &Recorder{cfg: cfg}
}

// State returns the current state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Recording reports whether a recording is in progress.
func (r *Recorder) Recording() bool {
	return r.State() == RecorderRecording
}

// Start opens the microphone and begins capturing. It is a no-op while
// already recording. ctx only bounds opening the device.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecorderRecording {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	enc, err := r.cfg.NewEncoder()
	if err != nil {
		return fmt.Errorf("audio: recorder: %w", err)
	}
	dev, err := r.cfg.OpenDevice(r.cfg.DeviceName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if err := dev.Start(); err != nil {
		_ = dev.Close()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.dev = dev
	r.cancel = cancel
	r.results = make(chan captureResult, 1)
	r.state = RecorderRecording

	maxFrames := int(r.cfg.MaxDuration / (FrameDurationMs * time.Millisecond))
	go r.captureLoop(loopCtx, dev, enc, maxFrames, r.results)

	slog.Info("recording started", "device", r.cfg.DeviceName)
	return nil
}

// Stop ends the recording, releases the microphone and returns the clip.
// Stop while idle returns (nil, nil).
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != RecorderRecording {
		return nil, nil
	}

	r.cancel()
	_ = r.dev.Stop() // unblocks ReadFrame
	res := <-r.results
	if err := r.dev.Close(); err != nil {
		slog.Debug("close capture device", "err", err)
	}
	r.dev = nil
	r.cancel = nil
	r.results = nil
	r.state = RecorderIdle

	if len(res.packets) == 0 {
		if res.err != nil {
			return nil, fmt.Errorf("audio: recording failed: %w", res.err)
		}
		return nil, ErrEmptyRecording
	}
	if res.err != nil {
		slog.Warn("recording ended early", "err", res.err, "frames", len(res.packets))
	}

	data, err := muxOgg(res.packets)
	if err != nil {
		return nil, err
	}
	clip := &Clip{
		Data:     data,
		MimeType: ClipMimeType,
		Filename: "voice-" + uuid.NewString() + ".ogg",
		Duration: time.Duration(len(res.packets)) * FrameDurationMs * time.Millisecond,
	}
	slog.Info("recording stopped", "duration", clip.Duration, "bytes", len(clip.Data))
	return clip, nil
}

// captureLoop reads and encodes frames until cancelled, the device fails or
// the duration cap is reached.
func (r *Recorder) captureLoop(ctx context.Context, dev Capturer, enc FrameEncoder, maxFrames int, out chan<- captureResult) {
	var res captureResult
	defer func() { out <- res }()

	for len(res.packets) < maxFrames {
		pcm, err := dev.ReadFrame()
		if err != nil {
			if ctx.Err() == nil {
				res.err = err
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		pkt, err := enc.Encode(pcm)
		if err != nil {
			slog.Debug("encode frame", "err", err)
			continue
		}
		res.packets = append(res.packets, pkt)
		if r.cfg.OnLevel != nil {
			r.cfg.OnLevel(NormalizedLevel(computeRMS(pcm)))
		}
	}
	slog.Info("recording reached maximum duration", "max", r.cfg.MaxDuration)
}
