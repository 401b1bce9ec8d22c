package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/protocol"
	"github.com/NicolasHaas/roulette/pkg/version"
)

// ErrUploadFailed wraps every upload failure.
var ErrUploadFailed = errors.New("upload failed")

// directDownloadSegment is inserted after the host to turn a landing page
// URL into a direct file URL.
const directDownloadSegment = "dl"

// Uploader sends attachments to object storage and returns their URL.
type Uploader interface {
	Upload(ctx context.Context, a *media.Attachment) (string, error)
}

// HTTPUploader posts attachments as multipart/form-data.
type HTTPUploader struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPUploader creates an uploader for the object storage endpoint.
func NewHTTPUploader(endpoint string) *HTTPUploader {
	return &HTTPUploader{
		URL:        endpoint,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Upload transfers the attachment and returns a direct download URL.
func (u *HTTPUploader) Upload(ctx context.Context, a *media.Attachment) (string, error) {
	if a == nil {
		return "", fmt.Errorf("%w: no attachment", ErrUploadFailed)
	}
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(a.Filename)))
	h.Set("Content-Type", a.MimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent("client"))

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := protocol.ReadError(resp.Body)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, msg)
	}

	var out protocol.UploadResponse
	if err := protocol.Decode(resp.Body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if out.Data == nil || out.Data.URL == "" {
		return "", fmt.Errorf("%w: response has no url", ErrUploadFailed)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	direct, err := DirectDownloadURL(out.Data.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return direct, nil
}

// DirectDownloadURL rewrites https://host/123/a.png to
// https://host/dl/123/a.png. URLs already in direct form are returned as is.
func DirectDownloadURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("upload url %q is not absolute", raw)
	}
	p := strings.TrimPrefix(u.Path, "/")
	if p == "" {
		return "", fmt.Errorf("upload url %q has no path", raw)
	}
	if p == directDownloadSegment || strings.HasPrefix(p, directDownloadSegment+"/") {
		return u.String(), nil
	}
	u.Path = "/" + directDownloadSegment + "/" + p
	u.RawPath = ""
	return u.String(), nil
}
