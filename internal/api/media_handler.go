package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/export"
	"github.com/heimdex/trimmer/internal/playback"
)

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		asset, err := cfg.CatalogService.GetAsset(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, asset.Path, playback.Media{Name: asset.Filename}); err != nil {
			cfg.Logger.Error("playback error", "error", err, "asset_id", id)
		}
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "thumbnail index must be an integer", "BAD_REQUEST")
			return
		}

		sess, err := cfg.CatalogService.Session(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		thumb, ok := sess.Thumbnail(n)
		if !ok {
			WriteError(w, http.StatusNotFound, "thumbnail not found", "NOT_FOUND")
			return
		}

		w.Header().Set("Cache-Control", "private, max-age=300")
		m := playback.Media{Name: engine.ThumbnailName(n), ContentType: "image/png"}
		if err := cfg.PlaybackServer.ServeBytes(w, r, thumb.Data, m); err != nil {
			cfg.Logger.Error("thumbnail error", "error", err, "asset_id", id)
		}
	}
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")
		path, name, err := cfg.CatalogService.ExportFile(r.Context(), jobID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		m := playback.Media{
			Name:        export.SanitizeName(name, 200),
			ContentType: export.ContentType,
			Attachment:  true,
		}
		if m.Name == "" {
			m.Name = "video" + export.TrimmedSuffix
		}
		if err := cfg.PlaybackServer.ServeFile(w, r, path, m); err != nil {
			cfg.Logger.Error("download error", "error", err, "job_id", jobID)
		}
	}
}
