package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NicolasHaas/roulette/pkg/media"
	"github.com/NicolasHaas/roulette/pkg/protocol"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

var errBadObjectName = errors.New("invalid object name")

// handleUpload stores a multipart "file" part and returns its landing URL.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxAttachmentSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			protocol.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		protocol.WriteError(w, http.StatusBadRequest, "File required")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > media.MaxAttachmentSize {
		protocol.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	name, err := objectName(header.Filename)
	if err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	id := uuid.NewString()
	n, err := s.saveObject(id, name, file)
	if err != nil {
		slog.Error("save upload", "name", name, "err", err)
		protocol.WriteError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	s.metrics.Uploads.Add(1)
	s.metrics.UploadBytes.Add(n)
	slog.Info("object stored", "id", id, "name", name, "bytes", n, "type", header.Header.Get("Content-Type"))
	protocol.WriteJSON(w, http.StatusOK, protocol.UploadResponse{
		Status: "success",
		Data:   &protocol.UploadData{URL: s.cfg.PublicURL() + "/" + id + "/" + url.PathEscape(name)},
	})
}

func (s *Server) saveObject(id, name string, src io.Reader) (int64, error) {
	dir := filepath.Join(s.cfg.uploadDir(), id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}
	dst, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640) //nolint:gosec // name is sanitized by objectName
	if err != nil {
		return 0, fmt.Errorf("create object: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return 0, fmt.Errorf("write object: %w", err)
	}
	return n, nil
}

// handleDownload serves a stored object directly.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, ok := s.objectPath(chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mt.String())
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

// handleLanding is the object page URL returned by uploads; it forwards to
// the direct download.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	if _, ok := s.objectPath(id, name); !ok {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/dl/"+id+"/"+url.PathEscape(name), http.StatusFound)
}

func (s *Server) objectPath(id, name string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	clean, err := objectName(name)
	if err != nil || clean != name {
		return "", false
	}
	path := filepath.Join(s.cfg.uploadDir(), id, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// objectName reduces a client-supplied filename to a single safe path element.
func objectName(raw string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(raw, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" || strings.HasPrefix(name, ".") {
		return "", errBadObjectName
	}
	return name, nil
}
