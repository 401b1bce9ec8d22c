package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/model"
	"github.com/NicolasHaas/roulette/pkg/protocol"
)

var (
	ErrSendInProgress        = errors.New("a message is already being sent")
	ErrRecordingUnavailable  = errors.New("voice recording is not available")
	ErrAttachmentWhileRecord = errors.New("stop the recording first")
)

// Draft is the unsent message: text plus an optional pending attachment.
type Draft struct {
	Text       string
	Attachment *media.Attachment
	Recording  bool
}

// Empty reports whether submitting the draft would do nothing.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && d.Attachment == nil
}

// Draft returns the current draft.
func (e *Engine) Draft() Draft {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.draft
}

// Sending reports whether a submit is in flight.
func (e *Engine) Sending() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sending
}

// SetDraftText replaces the draft text.
func (e *Engine) SetDraftText(text string) {
	e.mu.Lock()
	e.draft.Text = text
	e.mu.Unlock()
}

// AttachFile validates a picked file and makes it the pending attachment.
// A rejected file leaves the draft unchanged.
func (e *Engine) AttachFile(path string) error {
	a, err := media.FromFile(path)
	if err != nil {
		return e.fail(err)
	}
	return e.attach(a)
}

// AttachBytes is AttachFile for content already in memory.
func (e *Engine) AttachBytes(name string, data []byte) error {
	a, err := media.FromBytes(name, data)
	if err != nil {
		return e.fail(err)
	}
	return e.attach(a)
}

func (e *Engine) attach(a *media.Attachment) error {
	e.mu.Lock()
	if e.draft.Recording {
		e.mu.Unlock()
		return e.fail(ErrAttachmentWhileRecord)
	}
	e.draft.Attachment = a
	e.mu.Unlock()
	slog.Debug("attachment added", "file", a.Filename, "mime", a.MimeType, "size", a.SizeBytes)
	e.notifyDraft()
	return nil
}

// ClearAttachment drops the pending attachment.
func (e *Engine) ClearAttachment() {
	e.mu.Lock()
	e.draft.Attachment = nil
	e.mu.Unlock()
	e.notifyDraft()
}

// Recording reports whether a voice note is being recorded.
func (e *Engine) Recording() bool {
	return e.deps.Recorder != nil && e.deps.Recorder.Recording()
}

// StartRecording starts a voice note. It is a no-op while recording.
func (e *Engine) StartRecording(ctx context.Context) error {
	rec := e.deps.Recorder
	if rec == nil {
		return e.fail(ErrRecordingUnavailable)
	}
	if err := rec.Start(ctx); err != nil {
		return e.fail(err)
	}
	e.mu.Lock()
	e.draft.Recording = true
	e.mu.Unlock()
	e.notifyDraft()
	return nil
}

// StopRecording finishes the voice note and makes it the pending
// attachment. Without an active recording it does nothing.
func (e *Engine) StopRecording() error {
	rec := e.deps.Recorder
	if rec == nil {
		return nil
	}
	a, err := rec.Stop()

	e.mu.Lock()
	e.draft.Recording = false
	if a != nil {
		e.draft.Attachment = a
	}
	e.mu.Unlock()
	e.notifyDraft()

	if err != nil {
		return e.fail(err)
	}
	return nil
}

// Submit sends the draft. A blank draft is a no-op. The attachment is
// uploaded before the message is posted; on any failure the draft is kept
// for a retry. If the session ends or the attachment is cleared or replaced
// while uploading, nothing is posted.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return e.fail(ErrNotSignedIn)
	}
	d := e.draft
	if d.Empty() {
		e.mu.Unlock()
		return nil
	}
	if e.sending {
		e.mu.Unlock()
		return e.fail(ErrSendInProgress)
	}
	e.sending = true
	s := e.session.Clone()
	gen := e.gen
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if gen == e.gen {
			e.sending = false
		}
		e.mu.Unlock()
	}()

	req := protocol.PostMessageRequest{
		UserID:      s.UserID,
		Username:    s.Username,
		Message:     strings.TrimSpace(d.Text),
		MessageType: model.MessageText.String(),
	}
	if a := d.Attachment; a != nil {
		url, err := e.deps.Uploader.Upload(ctx, a)
		if err != nil {
			slog.Warn("upload attachment", "file", a.Filename, "err", err)
			if e.submitStale(gen, s, d) {
				return nil
			}
			return e.fail(err)
		}
		req.MediaURL = url
		if a.IsImage() {
			req.MessageType = model.MessageImage.String()
		} else {
			req.MessageType = model.MessageAudio.String()
		}
	}

	if e.submitStale(gen, s, d) {
		slog.Debug("discarding submit", "reason", "session or attachment changed")
		return nil
	}

	if err := e.deps.Chat.PostMessage(ctx, req); err != nil {
		slog.Warn("post message", "err", err)
		return e.fail(err)
	}

	e.mu.Lock()
	current := gen == e.gen
	if current && e.draft.Attachment == d.Attachment {
		e.draft.Attachment = nil
		if e.draft.Text == d.Text {
			e.draft.Text = ""
		}
	}
	e.mu.Unlock()
	if !current {
		return nil
	}
	e.notifyDraft()
	e.refreshIfCurrent(ctx, gen)
	return nil
}

// submitStale reports whether the session or the pending attachment changed
// since d was taken for sending.
func (e *Engine) submitStale(gen uint64, s *model.Session, d Draft) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return gen != e.gen || !e.session.Same(s) || e.draft.Attachment != d.Attachment
}

func (e *Engine) notifyDraft() {
	if e.OnDraftChange != nil {
		e.OnDraftChange(e.Draft())
	}
}
