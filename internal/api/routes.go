package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/engine/load", loadEngineHandler(cfg))

		r.Get("/assets", listAssetsHandler(cfg))
		r.Post("/assets", uploadAssetHandler(cfg))

		r.Route("/assets/{id}", func(r chi.Router) {
			r.Get("/", assetStateHandler(cfg))
			r.Delete("/", deleteAssetHandler(cfg))
			r.Put("/metadata", metadataHandler(cfg))
			r.Put("/trim", trimHandler(cfg))
			r.Put("/time", timeUpdateHandler(cfg))
			r.Post("/timeline", timelineHandler(cfg))
			r.Get("/thumbnails", listThumbnailsHandler(cfg))
			r.Post("/thumbnails", requestThumbnailsHandler(cfg))
			r.Post("/export", requestExportHandler(cfg))
			r.Get("/slider", sliderSocketHandler(cfg))

			r.Group(func(r chi.Router) {
				r.Use(LoopbackGuard())
				r.Get("/media", mediaHandler(cfg))
				r.Head("/media", mediaHandler(cfg))
				r.Get("/thumbnails/{n}", thumbnailHandler(cfg))
			})
		})

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.With(LoopbackGuard()).Get("/exports/{id}/download", downloadHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{
			State:  cfg.Editors.Status(),
			Engine: string(cfg.Editors.EngineState()),
		}
		resp.LastError = cfg.Editors.EngineError()

		if assets, err := cfg.CatalogService.ListAssets(ctx); err == nil {
			resp.AssetsCount = len(assets)
		}
		if counts, err := cfg.CatalogService.JobCounts(ctx); err == nil {
			resp.JobsPending = counts[catalog.JobStatusPending]
			resp.JobsRunning = counts[catalog.JobStatusRunning]
			resp.JobsFailed = counts[catalog.JobStatusFailed]
		}
		if cfg.Runner != nil {
			resp.Paused = cfg.Runner.IsPaused()
		}

		if resp.JobsRunning > 0 {
			jobs, _ := cfg.CatalogService.ListJobs(ctx, 10)
			for _, j := range jobs {
				if j.Status == catalog.JobStatusRunning {
					jr := JobToResponse(j)
					resp.ActiveJob = &jr
					break
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadEngineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Editors.LoadEngine(r.Context())
		if err != nil && !errors.Is(err, engine.ErrBusy) {
			cfg.Logger.Error("engine load failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, editor.KindEngineLoad.Message(), "ENGINE_LOAD_FAILED")
			return
		}

		status := http.StatusOK
		if err != nil {
			status = http.StatusAccepted
		}
		WriteJSON(w, status, EngineResponse{
			State:  string(cfg.Editors.EngineState()),
			Status: cfg.Editors.Status(),
			Error:  cfg.Editors.EngineError(),
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.CatalogService.ListJobs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.CatalogService.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// writeServiceError maps catalog and editor failures to HTTP responses.
// Editor failures carry their user-visible message.
func writeServiceError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, catalog.ErrUnsupportedMedia):
		WriteError(w, http.StatusUnsupportedMediaType, err.Error(), "UNSUPPORTED_MEDIA")
	case errors.Is(err, catalog.ErrTooLarge), errors.As(err, &maxErr):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), "TOO_LARGE")
	case errors.Is(err, catalog.ErrNotReady):
		WriteError(w, http.StatusConflict, err.Error(), "NOT_READY")
	case errors.Is(err, engine.ErrBusy):
		WriteError(w, http.StatusConflict, "engine busy", "ENGINE_BUSY")
	case errors.Is(err, editor.ErrNoDuration):
		WriteError(w, http.StatusConflict, err.Error(), "NO_DURATION")
	case errors.Is(err, editor.ErrInvalidTrim):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TRIM")
	default:
		kind, ok := editor.KindOf(err)
		if !ok {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		switch kind {
		case editor.KindEngineLoad:
			WriteError(w, http.StatusServiceUnavailable, kind.Message(), "ENGINE_NOT_READY")
		case editor.KindNoFile:
			WriteError(w, http.StatusBadRequest, kind.Message(), "NO_FILE")
		default:
			WriteError(w, http.StatusInternalServerError, kind.Message(), "EDITOR_ERROR")
		}
	}
}
