package catalog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/trimmer/internal/editor"
)

// Asset is an uploaded source video.
type Asset struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Path        string    `json:"-"`
	Size        int64     `json:"size"`
	Fingerprint string    `json:"fingerprint"`
	Duration    float64   `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
}

// EditorAsset converts a to the form an editor session works on.
func (a *Asset) EditorAsset() *editor.Asset {
	return &editor.Asset{
		ID:       a.ID,
		Name:     a.Filename,
		Path:     a.Path,
		Duration: a.Duration,
	}
}

const (
	JobTypeThumbnails = "thumbnails"
	JobTypeExport     = "export"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	AssetID    string    `json:"asset_id"`
	TrimStart  float64   `json:"trim_start,omitempty"`
	TrimEnd    float64   `json:"trim_end,omitempty"`
	OutputPath string    `json:"-"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OutputName is the file name of a finished export.
func (j *Job) OutputName() string {
	if j.OutputPath == "" {
		return ""
	}
	return filepath.Base(j.OutputPath)
}

var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
