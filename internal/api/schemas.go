package api

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/editor"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	Engine      string       `json:"engine"`
	LastError   string       `json:"last_error,omitempty"`
	AssetsCount int          `json:"assets_count"`
	JobsPending int          `json:"jobs_pending"`
	JobsRunning int          `json:"jobs_running"`
	JobsFailed  int          `json:"jobs_failed"`
	Paused      bool         `json:"paused"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

type EngineResponse struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type AssetResponse struct {
	ID          string  `json:"id"`
	Filename    string  `json:"filename"`
	Size        int64   `json:"size"`
	SizeHuman   string  `json:"size_human"`
	Fingerprint string  `json:"fingerprint"`
	Duration    float64 `json:"duration"`
	MediaURL    string  `json:"media_url"`
	CreatedAt   string  `json:"created_at"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type AssetStateResponse struct {
	Asset  AssetResponse `json:"asset"`
	Editor editor.State  `json:"editor"`
}

type MetadataRequest struct {
	Duration float64 `json:"duration"`
}

type TrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type TrimResponse struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	CurrentTime float64 `json:"current_time"`
}

type TimeRequest struct {
	Time float64 `json:"time"`
}

type TimelineRequest struct {
	ClientX float64 `json:"client_x"`
	Width   float64 `json:"width"`
}

type TimelineResponse struct {
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}

type ThumbnailResponse struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
	URL   string  `json:"url"`
}

type ThumbnailsResponse struct {
	Thumbnails []ThumbnailResponse `json:"thumbnails"`
	Generating bool                `json:"generating"`
}

type JobResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	AssetID     string  `json:"asset_id,omitempty"`
	TrimStart   float64 `json:"trim_start,omitempty"`
	TrimEnd     float64 `json:"trim_end,omitempty"`
	Progress    int     `json:"progress"`
	Error       string  `json:"error,omitempty"`
	DownloadURL string  `json:"download_url,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AssetToResponse(a *catalog.Asset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Filename:    a.Filename,
		Size:        a.Size,
		SizeHuman:   humanize.Bytes(uint64(a.Size)),
		Fingerprint: a.Fingerprint,
		Duration:    a.Duration,
		MediaURL:    fmt.Sprintf("/assets/%s/media", a.ID),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *catalog.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		AssetID:   j.AssetID,
		TrimStart: j.TrimStart,
		TrimEnd:   j.TrimEnd,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
	if j.Type == catalog.JobTypeExport && j.Status == catalog.JobStatusCompleted {
		resp.DownloadURL = fmt.Sprintf("/exports/%s/download", j.ID)
	}
	return resp
}

func ThumbnailToResponse(assetID string, t editor.Thumbnail) ThumbnailResponse {
	return ThumbnailResponse{
		Index: t.Index,
		Time:  t.Time,
		URL:   fmt.Sprintf("/assets/%s/thumbnails/%d", assetID, t.Index),
	}
}
