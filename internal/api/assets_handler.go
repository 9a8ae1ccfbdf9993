package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/slider"
)

var errNoFilePart = errors.New("no file part in upload")

// uploadOverhead covers multipart framing on top of the file itself.
const uploadOverhead = 1 << 20

func listAssetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assets, err := cfg.CatalogService.ListAssets(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list assets", "INTERNAL_ERROR")
			return
		}

		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// uploadAssetHandler streams the multipart "file" part straight into the
// catalog without buffering the whole upload.
func uploadAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+uploadOverhead)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, http.StatusBadRequest, "expected multipart/form-data", "BAD_REQUEST")
			return
		}

		part, err := nextFilePart(mr)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeServiceError(w, err)
				return
			}
			if errors.Is(err, errNoFilePart) {
				WriteError(w, http.StatusBadRequest, editor.KindNoFile.Message(), "NO_FILE")
				return
			}
			WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}
		defer part.Close()

		asset, err := cfg.CatalogService.ImportAsset(r.Context(), part.FileName(), part)
		if err != nil {
			cfg.Logger.Warn("asset import failed", "error", err)
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusCreated, AssetToResponse(asset))
	}
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func assetStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		asset, err := cfg.CatalogService.GetAsset(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		sess, err := cfg.CatalogService.Session(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, AssetStateResponse{
			Asset:  AssetToResponse(asset),
			Editor: sess.Snapshot(),
		})
	}
}

func deleteAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.CatalogService.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func metadataHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MetadataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		id := chi.URLParam(r, "id")
		if err := cfg.CatalogService.SetDuration(ctx, id, req.Duration); err != nil {
			writeServiceError(w, err)
			return
		}

		sess, err := cfg.CatalogService.Session(ctx, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.CatalogService.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		applied, err := sess.SetTrim(slider.Range{Start: req.Start, End: req.End})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TrimResponse{
			Start:       applied.Start,
			End:         applied.End,
			CurrentTime: sess.Snapshot().CurrentTime,
		})
	}
}

func timeUpdateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.CatalogService.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		sess.TimeUpdate(req.Time)
		WriteJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TimelineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Width <= 0 {
			WriteError(w, http.StatusBadRequest, "width must be positive", "BAD_REQUEST")
			return
		}

		sess, err := cfg.CatalogService.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		t := sess.TimelineClick(req.ClientX, req.Width)
		WriteJSON(w, http.StatusOK, TimelineResponse{Time: t, Playing: sess.Snapshot().Playing})
	}
}

func listThumbnailsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := cfg.CatalogService.Session(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		thumbs := sess.Thumbnails()
		resp := ThumbnailsResponse{
			Thumbnails: make([]ThumbnailResponse, len(thumbs)),
			Generating: sess.Snapshot().Generating,
		}
		for i, t := range thumbs {
			resp.Thumbnails[i] = ThumbnailToResponse(id, t)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func requestThumbnailsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.CatalogService.RequestThumbnails(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func requestExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.CatalogService.RequestExport(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}
