package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/logging"
	"github.com/heimdex/trimmer/internal/slider"
)

const fingerprintSize = 64 * 1024

var (
	ErrNotFound         = errors.New("not found")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("upload too large")
	ErrNotReady         = errors.New("export not finished")
)

type CatalogService interface {
	ImportAsset(ctx context.Context, filename string, r io.Reader) (*Asset, error)
	GetAsset(ctx context.Context, id string) (*Asset, error)
	ListAssets(ctx context.Context) ([]*Asset, error)
	DeleteAsset(ctx context.Context, id string) error
	Session(ctx context.Context, assetID string) (*editor.Session, error)
	SetDuration(ctx context.Context, assetID string, duration float64) error
	RequestThumbnails(ctx context.Context, assetID string) (*Job, error)
	RequestExport(ctx context.Context, assetID string) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ExportFile(ctx context.Context, jobID string) (path, name string, err error)
	JobCounts(ctx context.Context) (map[string]int, error)
}

var _ CatalogService = (*Service)(nil)

type ServiceConfig struct {
	AssetsDir      string
	ExportsDir     string
	MaxUploadBytes int64 // 0 = unlimited
}

type Service struct {
	repo    Repository
	editors *editor.Manager
	prober  engine.Prober
	cfg     ServiceConfig
	logger  *slog.Logger
}

// NewService wires the catalog to the editor sessions. prober may be nil, in
// which case durations arrive later through SetDuration.
func NewService(repo Repository, editors *editor.Manager, prober engine.Prober, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:    repo,
		editors: editors,
		prober:  prober,
		cfg:     cfg,
		logger:  logger,
	}
}

// ImportAsset stores an uploaded video, opens an editor session for it and
// queues thumbnail generation when the duration is known.
func (s *Service) ImportAsset(ctx context.Context, filename string, r io.Reader) (*Asset, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || !IsVideoFile(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, filename)
	}

	if err := os.MkdirAll(s.cfg.AssetsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	id := NewID()
	path := filepath.Join(s.cfg.AssetsDir, id+strings.ToLower(filepath.Ext(name)))

	size, err := s.store(path, r)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	fingerprint, err := computeFingerprint(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to fingerprint upload: %w", err)
	}

	asset := &Asset{
		ID:          id,
		Filename:    name,
		Path:        path,
		Size:        size,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now(),
	}

	if s.prober != nil {
		d, err := s.prober.Duration(ctx, path)
		if err != nil {
			s.logger.Warn("failed to probe duration", "asset_id", id, "error", err)
		} else {
			asset.Duration = d
		}
	}

	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		os.Remove(path)
		return nil, err
	}

	if _, err := s.editors.Open(asset.EditorAsset()); err != nil {
		return nil, err
	}

	s.logger.Info("asset imported",
		"asset_id", id,
		"filename", name,
		"size", humanize.Bytes(uint64(size)),
		"duration", asset.Duration,
	)

	if asset.Duration > 0 {
		if _, err := s.RequestThumbnails(ctx, id); err != nil {
			s.logger.Warn("failed to queue thumbnails", "asset_id", id, "error", err)
		}
	}
	return asset, nil
}

func (s *Service) store(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create asset file: %w", err)
	}

	src := r
	if s.cfg.MaxUploadBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxUploadBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to store upload: %w", err)
	}
	if s.cfg.MaxUploadBytes > 0 && n > s.cfg.MaxUploadBytes {
		return 0, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.Bytes(uint64(s.cfg.MaxUploadBytes)))
	}
	return n, nil
}

func (s *Service) GetAsset(ctx context.Context, id string) (*Asset, error) {
	a, err := s.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *Service) ListAssets(ctx context.Context) ([]*Asset, error) {
	return s.repo.ListAssets(ctx)
}

// DeleteAsset removes the asset, its jobs and its stored file.
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	s.editors.Close(id)
	if err := s.repo.DeleteAsset(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove asset file", "asset_id", id, "path", logging.SanitizePath(a.Path), "error", err)
	}
	s.logger.Info("asset deleted", "asset_id", id)
	return nil
}

// Session returns the editor session for an asset, reopening it after a
// restart.
func (s *Service) Session(ctx context.Context, assetID string) (*editor.Session, error) {
	if sess, ok := s.editors.Get(assetID); ok {
		return sess, nil
	}
	a, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return s.editors.Open(a.EditorAsset())
}

// SetDuration records the duration reported by the player. The first known
// duration of an asset queues its thumbnails.
func (s *Service) SetDuration(ctx context.Context, assetID string, duration float64) error {
	a, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	sess, err := s.Session(ctx, assetID)
	if err != nil {
		return err
	}
	if err := sess.LoadMetadata(duration); err != nil {
		return err
	}
	if err := s.repo.UpdateAssetDuration(ctx, assetID, duration); err != nil {
		return err
	}
	if a.Duration <= 0 {
		if _, err := s.RequestThumbnails(ctx, assetID); err != nil {
			s.logger.Warn("failed to queue thumbnails", "asset_id", assetID, "error", err)
		}
	}
	return nil
}

func (s *Service) RequestThumbnails(ctx context.Context, assetID string) (*Job, error) {
	if _, err := s.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.enqueue(ctx, &Job{Type: JobTypeThumbnails, AssetID: assetID})
}

// RequestExport queues an export of the session's current trim range. It is
// refused while the engine is not loaded.
func (s *Service) RequestExport(ctx context.Context, assetID string) (*Job, error) {
	sess, err := s.Session(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err := s.editors.EngineReady(); err != nil {
		return nil, err
	}
	r := sess.Trim()
	if !(r.End > r.Start) {
		return nil, fmt.Errorf("%w: %v-%v", editor.ErrInvalidTrim, r.Start, r.End)
	}
	return s.enqueue(ctx, &Job{
		Type:      JobTypeExport,
		AssetID:   assetID,
		TrimStart: r.Start,
		TrimEnd:   r.End,
	})
}

func (s *Service) enqueue(ctx context.Context, job *Job) (*Job, error) {
	now := time.Now()
	job.ID = NewID()
	job.Status = JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job created", "job_id", job.ID, "type", job.Type, "asset_id", job.AssetID)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return j, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) JobCounts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountJobsByStatus(ctx)
}

// ExportFile returns the location and download name of a finished export.
func (s *Service) ExportFile(ctx context.Context, jobID string) (string, string, error) {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	if j.Type != JobTypeExport {
		return "", "", fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if j.Status != JobStatusCompleted || j.OutputPath == "" {
		return "", "", fmt.Errorf("job %s is %s: %w", jobID, j.Status, ErrNotReady)
	}
	return j.OutputPath, j.OutputName(), nil
}

// ExecuteThumbnails runs a thumbnails job through the asset's session.
func (s *Service) ExecuteThumbnails(ctx context.Context, job *Job) error {
	logger := logging.WithJobID(s.logger, job.ID)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	sess, err := s.Session(ctx, job.AssetID)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	thumbs, err := sess.GenerateThumbnails(ctx)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	logger.Info("thumbnails job completed", "asset_id", job.AssetID, "count", len(thumbs))
	return nil
}

// ExecuteExport trims the asset to the job's range and writes the clip to
// <exports>/<job id>/<name>.
func (s *Service) ExecuteExport(ctx context.Context, job *Job) error {
	logger := logging.WithJobID(s.logger, job.ID)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	fail := func(err error) error {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	sess, err := s.Session(ctx, job.AssetID)
	if err != nil {
		return fail(err)
	}

	clip, err := sess.ExportRange(ctx, slider.Range{Start: job.TrimStart, End: job.TrimEnd})
	if err != nil {
		return fail(err)
	}
	s.repo.UpdateJobProgress(ctx, job.ID, 90)

	dir := filepath.Join(s.cfg.ExportsDir, job.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create export directory: %w", err))
	}
	out := filepath.Join(dir, clip.Name)
	if err := os.WriteFile(out, clip.Data, 0644); err != nil {
		return fail(fmt.Errorf("failed to write export: %w", err))
	}

	if err := s.repo.SetJobOutput(ctx, job.ID, out); err != nil {
		return fail(err)
	}
	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")

	logger.Info("export job completed",
		"asset_id", job.AssetID,
		"output", logging.SanitizePath(out),
		"size", humanize.Bytes(uint64(len(clip.Data))),
	)
	return nil
}

func computeFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(f, fingerprintSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
