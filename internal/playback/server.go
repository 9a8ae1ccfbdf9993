// Package playback streams stored media to the browser player and serves
// finished exports as downloads.
package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Media describes what to send. Name is used for the content type when
// ContentType is empty, and for the download name when Attachment is set.
type Media struct {
	Name        string
	ContentType string
	Attachment  bool
}

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, path string, m Media) error
	ServeBytes(w http.ResponseWriter, r *http.Request, data []byte, m Media) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeFile streams the file at path, honouring Range requests.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, path string, m Media) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(path)
	}
	return s.serve(w, r, f, info.Size(), m)
}

// ServeBytes sends an in-memory body, such as a generated thumbnail.
func (s *Server) ServeBytes(w http.ResponseWriter, r *http.Request, data []byte, m Media) error {
	return s.serve(w, r, bytes.NewReader(data), int64(len(data)), m)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, body io.ReadSeeker, size int64, m Media) error {
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(m))
	if m.Attachment {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": m.Name}))
	}

	br, ranged, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case err != nil:
		// malformed headers are ignored and the full body is sent
		ranged = false
	}

	length := size
	status := http.StatusOK
	if ranged {
		if _, err := body.Seek(br.Start, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		length = br.Length()
		status = http.StatusPartialContent
		h.Set("Content-Range", br.ContentRange(size))
	}

	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := io.CopyN(w, body, length); err != nil {
		s.logger.Debug("media stream ended early", "name", m.Name, "error", err)
	}
	return nil
}

func contentType(m Media) string {
	if m.ContentType != "" {
		return m.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(m.Name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
