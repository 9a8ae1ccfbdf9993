package playback

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/trimmer/internal/logging"
)

func writeMedia(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServeFile(t *testing.T) {
	path := writeMedia(t, "clip.mp4", "0123456789")
	srv := NewServer(logging.Discard())

	tests := []struct {
		name        string
		method      string
		rangeHeader string
		wantStatus  int
		wantBody    string
		wantRange   string
		wantLength  string
	}{
		{"full", http.MethodGet, "", http.StatusOK, "0123456789", "", "10"},
		{"partial", http.MethodGet, "bytes=2-5", http.StatusPartialContent, "2345", "bytes 2-5/10", "4"},
		{"suffix", http.MethodGet, "bytes=-3", http.StatusPartialContent, "789", "bytes 7-9/10", "3"},
		{"malformed ignored", http.MethodGet, "items=1-2", http.StatusOK, "0123456789", "", "10"},
		{"unsatisfiable", http.MethodGet, "bytes=50-", http.StatusRequestedRangeNotSatisfiable, "", "bytes */10", ""},
		{"head", http.MethodHead, "", http.StatusOK, "", "", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/media", nil)
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}
			rec := httptest.NewRecorder()

			if err := srv.ServeFile(rec, req, path, Media{ContentType: "video/mp4"}); err != nil {
				t.Fatalf("ServeFile() error = %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", got, tt.wantRange)
			}
			if tt.wantLength != "" && rec.Header().Get("Content-Length") != tt.wantLength {
				t.Errorf("Content-Length = %q, want %q", rec.Header().Get("Content-Length"), tt.wantLength)
			}
			if rec.Header().Get("Accept-Ranges") != "bytes" {
				t.Error("Accept-Ranges header missing")
			}
		})
	}
}

func TestServeFile_NotFound(t *testing.T) {
	srv := NewServer(logging.Discard())
	rec := httptest.NewRecorder()

	err := srv.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/", nil), filepath.Join(t.TempDir(), "gone.mp4"), Media{})
	if err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServeFile_Attachment(t *testing.T) {
	path := writeMedia(t, "job-output.mp4", "trimmed")
	srv := NewServer(logging.Discard())
	rec := httptest.NewRecorder()

	m := Media{Name: "Holiday Clip-trimmed.mp4", ContentType: "video/mp4", Attachment: true}
	if err := srv.ServeFile(rec, httptest.NewRequest(http.MethodGet, "/", nil), path, m); err != nil {
		t.Fatalf("ServeFile() error = %v", err)
	}

	want := `attachment; filename="Holiday Clip-trimmed.mp4"`
	if got := rec.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if rec.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestServeBytes(t *testing.T) {
	srv := NewServer(logging.Discard())
	rec := httptest.NewRecorder()

	if err := srv.ServeBytes(rec, httptest.NewRequest(http.MethodGet, "/", nil), []byte("png"), Media{Name: "output1.png"}); err != nil {
		t.Fatalf("ServeBytes() error = %v", err)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "png" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
