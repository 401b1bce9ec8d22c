package media

import (
	"context"

	"github.com/NicolasHaas/roulette/pkg/audio"
)

// ClipRecorder is the part of audio.Recorder the composer needs.
type ClipRecorder interface {
	Start(ctx context.Context) error
	Stop() (*audio.Clip, error)
	Recording() bool
}

// Recorder turns voice recordings into attachments.
type Recorder struct {
	rec ClipRecorder
}

// NewRecorder wraps rec.
func NewRecorder(rec ClipRecorder) *Recorder {
	return &Recorder{rec: rec}
}

// Start begins recording. No-op while already recording.
func (r *Recorder) Start(ctx context.Context) error {
	return r.rec.Start(ctx)
}

// Recording reports whether the microphone is live.
func (r *Recorder) Recording() bool {
	return r.rec.Recording()
}

// Stop finishes the recording. It returns (nil, nil) when nothing was
// being recorded.
func (r *Recorder) Stop() (*Attachment, error) {
	clip, err := r.rec.Stop()
	if err != nil || clip == nil {
		return nil, err
	}
	a := &Attachment{
		Data:      clip.Data,
		Filename:  clip.Filename,
		MimeType:  clip.MimeType,
		SizeBytes: int64(len(clip.Data)),
		Source:    SourceMicrophone,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
