package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const defaultPollInterval = time.Second

// Runner executes queued jobs one at a time.
type Runner struct {
	service      *Service
	repo         Repository
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(service *Service, repo Repository, logger *slog.Logger) *Runner {
	return &Runner{
		service:      service,
		repo:         repo,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval changes how often pending jobs are checked. Call before
// Start.
func (r *Runner) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started", "poll_interval", r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob runs the oldest pending job, if any, and reports whether
// one was found.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type, "asset_id", job.AssetID)

	switch job.Type {
	case JobTypeThumbnails:
		if err := r.service.ExecuteThumbnails(ctx, job); err != nil {
			r.logger.Error("thumbnails job failed", "job_id", job.ID, "error", err)
		}

	case JobTypeExport:
		if err := r.service.ExecuteExport(ctx, job); err != nil {
			r.logger.Error("export job failed", "job_id", job.ID, "error", err)
		}

	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
	return true
}

// Drain processes pending jobs until none are left or ctx is done.
func (r *Runner) Drain(ctx context.Context) {
	for ctx.Err() == nil && r.processNextJob(ctx) {
	}
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	counts, err := r.repo.CountJobsByStatus(ctx)
	if err != nil {
		return 0
	}
	return counts[JobStatusRunning]
}
