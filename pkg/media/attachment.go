// Package media turns picked files and voice recordings into pending
// attachments ready for upload.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxAttachmentSize is the largest file the upload service accepts.
const MaxAttachmentSize = 10 << 20

// AllowedMimeTypes are the picked-file types the chat can render.
var AllowedMimeTypes = []string{"image/png", "image/jpeg", "audio/mpeg"}

var (
	// ErrFileTooLarge is returned when an attachment exceeds MaxAttachmentSize.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidMimeType is returned when a picked file is not an allowed type.
	ErrInvalidMimeType = errors.New("invalid MIME type")
	// ErrEmptyFile is returned for zero-length input.
	ErrEmptyFile = errors.New("file is empty")
)

// Source records where an attachment came from.
type Source int

const (
	SourceFilePicker Source = iota
	SourceMicrophone
)

func (s Source) String() string {
	switch s {
	case SourceMicrophone:
		return "microphone"
	default:
		return "file"
	}
}

// Attachment is a file waiting to be uploaded with the next message.
type Attachment struct {
	Data      []byte
	Filename  string
	MimeType  string
	SizeBytes int64
	Source    Source
}

// IsImage reports whether the attachment should be posted as an image.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// FromFile reads and validates a picked file. The size is checked before
// the file is read.
func FromFile(path string) (*Attachment, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("media: stat %s: %w", name, err)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %d bytes (file: %s)", ErrFileTooLarge, info.Size(), name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("media: read %s: %w", name, err)
	}
	return FromBytes(name, data)
}

// FromBytes validates picked file content, e.g. from a file dialog reader.
func FromBytes(name string, data []byte) (*Attachment, error) {
	if err := checkSize(name, int64(len(data))); err != nil {
		return nil, err
	}
	mimeType, err := DetectMimeType(name, data)
	if err != nil {
		return nil, err
	}
	return &Attachment{
		Data:      data,
		Filename:  name,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
		Source:    SourceFilePicker,
	}, nil
}

// DetectMimeType sniffs data and returns the matching allowed type.
func DetectMimeType(name string, data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for _, allowed := range AllowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s (file: %s)", ErrInvalidMimeType, detected.String(), name)
}

// Validate re-checks an attachment before upload. Recordings skip the type
// allow-list but are still size-limited.
func (a *Attachment) Validate() error {
	if err := checkSize(a.Filename, int64(len(a.Data))); err != nil {
		return err
	}
	if a.Source == SourceMicrophone {
		return nil
	}
	for _, allowed := range AllowedMimeTypes {
		if a.MimeType == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (file: %s)", ErrInvalidMimeType, a.MimeType, a.Filename)
}

func checkSize(name string, n int64) error {
	if n == 0 {
		return fmt.Errorf("%w (file: %s)", ErrEmptyFile, name)
	}
	if n > MaxAttachmentSize {
		return fmt.Errorf("%w: %d bytes (file: %s)", ErrFileTooLarge, n, name)
	}
	return nil
}
