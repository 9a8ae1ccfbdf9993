package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/trimmer/internal/catalog"
	"github.com/heimdex/trimmer/internal/db"
	"github.com/heimdex/trimmer/internal/editor"
	"github.com/heimdex/trimmer/internal/engine"
	"github.com/heimdex/trimmer/internal/logging"
	"github.com/heimdex/trimmer/internal/playback"
)

const testToken = "test-token-0123456789"

// fakeBackend stands in for ffmpeg. Thumbnail commands write frames PNGs,
// other commands write "trimmed" to their last argument.
type fakeBackend struct {
	mu      sync.Mutex
	loadErr error
	frames  int
	files   map[string][]byte
	execs   int
}

func (f *fakeBackend) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) WriteFile(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = data
	return nil
}

func (f *fakeBackend) Exec(ctx context.Context, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs++
	last := args[len(args)-1]
	if last == engine.ThumbnailPattern {
		for i := 1; i <= f.frames; i++ {
			f.files[engine.ThumbnailName(i)] = testFrame()
		}
		return nil
	}
	f.files[last] = []byte("trimmed")
	return nil
}

func (f *fakeBackend) ReadFile(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrFileNotFound, name)
	}
	return data, nil
}

func (f *fakeBackend) Remove(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *fakeBackend) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execs
}

func testFrame() []byte {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 18)))
	return buf.Bytes()
}

type fakeProber struct{ duration float64 }

func (p fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	if p.duration <= 0 {
		return 0, errors.New("unknown duration")
	}
	return p.duration, nil
}

type testAPI struct {
	router  http.Handler
	svc     *catalog.Service
	repo    catalog.Repository
	editors *editor.Manager
	runner  *catalog.Runner
	backend *fakeBackend
}

func newTestAPI(t *testing.T, duration float64, loadErr error) *testAPI {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := catalog.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	logger := logging.Discard()
	backend := &fakeBackend{loadErr: loadErr, frames: int(math.Round(duration)), files: make(map[string][]byte)}
	editors := editor.NewManager(engine.NewAdapter(backend, logger), editor.Options{ThumbnailHeight: 12})
	editors.LoadEngine(context.Background())

	dir := t.TempDir()
	svc := catalog.NewService(repo, editors, fakeProber{duration: duration}, catalog.ServiceConfig{
		AssetsDir:      filepath.Join(dir, "assets"),
		ExportsDir:     filepath.Join(dir, "exports"),
		MaxUploadBytes: 1 << 20,
	}, logger)
	runner := catalog.NewRunner(svc, repo, logger)

	router := NewRouter(ServerConfig{
		Version:        "test",
		CatalogService: svc,
		Editors:        editors,
		PlaybackServer: playback.NewServer(logger),
		Repository:     repo,
		Runner:         runner,
		Logger:         logger,
		StartTime:      time.Now(),
		MaxUploadBytes: 1 << 20,
	})

	return &testAPI{router: router, svc: svc, repo: repo, editors: editors, runner: runner, backend: backend}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "ignored")
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) mustUpload(t *testing.T, filename string) AssetResponse {
	t.Helper()
	rr := a.upload(t, filename, "fake video bytes")
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rr.Code, rr.Body.String())
	}
	var asset AssetResponse
	decodeInto(t, rr, &asset)
	return asset
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	decodeInto(t, rr, &body)
	return body
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHealth_NoAuth(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	decodeInto(t, rr, &resp)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	rr := api.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp StatusResponse
	decodeInto(t, rr, &resp)
	if resp.State != editor.StatusIdle || resp.Engine != string(engine.StateReady) {
		t.Errorf("status = %+v, want idle/ready", resp)
	}

	api.mustUpload(t, "a.mp4")
	rr = api.do(t, http.MethodGet, "/status", nil)
	decodeInto(t, rr, &resp)
	if resp.AssetsCount != 1 || resp.JobsPending != 1 {
		t.Errorf("counts = assets %d pending %d, want 1/1", resp.AssetsCount, resp.JobsPending)
	}
}

func TestEngineLoadFailure(t *testing.T) {
	api := newTestAPI(t, 5, errors.New("ffmpeg: not found"))

	rr := api.do(t, http.MethodGet, "/status", nil)
	var status StatusResponse
	decodeInto(t, rr, &status)
	if status.State != editor.StatusError || status.LastError != "Failed to load FFmpeg" {
		t.Errorf("status = %+v, want error state with load message", status)
	}

	rr = api.do(t, http.MethodPost, "/engine/load", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /engine/load status = %d, want 503", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["error"] != "Failed to load FFmpeg" {
		t.Errorf("error = %v", body["error"])
	}

	asset := api.mustUpload(t, "clip.mp4")
	rr = api.do(t, http.MethodPost, "/assets/"+asset.ID+"/export", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("export status = %d, want 503, body %s", rr.Code, rr.Body.String())
	}
	if body := decodeJSONBody(t, rr); body["code"] != "ENGINE_NOT_READY" || body["error"] != "Failed to load FFmpeg" {
		t.Errorf("export body = %v, want ENGINE_NOT_READY with load message", body)
	}

	rr = api.do(t, http.MethodGet, "/jobs", nil)
	var jobs JobsResponse
	decodeInto(t, rr, &jobs)
	for _, j := range jobs.Jobs {
		if j.Type == catalog.JobTypeExport {
			t.Errorf("export job %s created while the engine failed to load", j.ID)
		}
	}

	api.runner.Drain(context.Background())

	if n := api.backend.execCount(); n != 0 {
		t.Errorf("engine commands issued = %d, want 0", n)
	}
	rr = api.do(t, http.MethodGet, "/jobs", nil)
	decodeInto(t, rr, &jobs)
	for _, j := range jobs.Jobs {
		if j.Status != catalog.JobStatusFailed || !strings.HasPrefix(j.Error, "Failed to load FFmpeg") {
			t.Errorf("job %s = %s/%q, want failed with load message", j.Type, j.Status, j.Error)
		}
	}

	rr = api.do(t, http.MethodGet, "/assets/"+asset.ID, nil)
	var state AssetStateResponse
	decodeInto(t, rr, &state)
	if state.Editor.Status != editor.StatusError || state.Editor.Error != "Failed to load FFmpeg" {
		t.Errorf("editor = %+v", state.Editor)
	}
}

func TestEngineLoadRetry(t *testing.T) {
	api := newTestAPI(t, 5, errors.New("missing"))

	api.backend.mu.Lock()
	api.backend.loadErr = nil
	api.backend.mu.Unlock()

	rr := api.do(t, http.MethodPost, "/engine/load", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp EngineResponse
	decodeInto(t, rr, &resp)
	if resp.State != string(engine.StateReady) || resp.Status != editor.StatusIdle || resp.Error != "" {
		t.Errorf("engine = %+v, want ready", resp)
	}
}

func TestUpload(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	tests := []struct {
		name     string
		filename string
		content  string
		want     int
		code     string
	}{
		{"video", "Holiday.MOV", "data", http.StatusCreated, ""},
		{"not a video", "notes.txt", "data", http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA"},
		{"no file", "", "", http.StatusBadRequest, "NO_FILE"},
		{"too large", "big.mp4", strings.Repeat("x", 1<<20+1), http.StatusRequestEntityTooLarge, "TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.upload(t, tt.filename, tt.content)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
			if tt.code != "" {
				if body := decodeJSONBody(t, rr); body["code"] != tt.code {
					t.Errorf("code = %v, want %s", body["code"], tt.code)
				}
			}
		})
	}

	rr := api.do(t, http.MethodGet, "/assets", nil)
	var list AssetsResponse
	decodeInto(t, rr, &list)
	if len(list.Assets) != 1 || list.Assets[0].Filename != "Holiday.MOV" {
		t.Errorf("assets = %+v, want only Holiday.MOV", list.Assets)
	}
}

func TestUpload_NoFileMessage(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	rr := api.upload(t, "", "")
	if body := decodeJSONBody(t, rr); body["error"] != "No selected file" {
		t.Errorf("error = %v, want No selected file", body["error"])
	}
}

func TestEditorFlow(t *testing.T) {
	api := newTestAPI(t, 10, nil)
	asset := api.mustUpload(t, "clip.mp4")
	base := "/assets/" + asset.ID

	rr := api.do(t, http.MethodGet, base, nil)
	var state AssetStateResponse
	decodeInto(t, rr, &state)
	if state.Editor.Duration != 10 || state.Editor.TrimRange.End != 10 {
		t.Fatalf("editor = %+v, want duration 10 and full trim", state.Editor)
	}

	rr = api.do(t, http.MethodPut, base+"/trim", TrimRequest{Start: 2.04, End: 8.06})
	if rr.Code != http.StatusOK {
		t.Fatalf("trim status = %d, body %s", rr.Code, rr.Body.String())
	}
	var trim TrimResponse
	decodeInto(t, rr, &trim)
	if !approx(trim.Start, 2) || !approx(trim.End, 8.1) || !approx(trim.CurrentTime, 2) {
		t.Errorf("trim = %+v, want 2-8.1 at 2", trim)
	}

	rr = api.do(t, http.MethodPut, base+"/time", TimeRequest{Time: 4.5})
	var snap editor.State
	decodeInto(t, rr, &snap)
	if snap.CurrentTime != 4.5 || !approx(snap.Playhead, 45) {
		t.Errorf("after time update = %+v", snap)
	}

	rr = api.do(t, http.MethodPost, base+"/timeline", TimelineRequest{ClientX: 250, Width: 500})
	var tl TimelineResponse
	decodeInto(t, rr, &tl)
	if !approx(tl.Time, 5) || !tl.Playing {
		t.Errorf("timeline = %+v, want 5 and playing", tl)
	}

	rr = api.do(t, http.MethodPost, base+"/timeline", TimelineRequest{ClientX: 10, Width: 0})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero-width timeline status = %d, want 400", rr.Code)
	}
}

func TestMetadata_UnknownDuration(t *testing.T) {
	api := newTestAPI(t, 0, nil)
	asset := api.mustUpload(t, "clip.webm")
	base := "/assets/" + asset.ID

	rr := api.do(t, http.MethodPut, base+"/trim", TrimRequest{Start: 1, End: 2})
	if rr.Code != http.StatusConflict {
		t.Errorf("trim before metadata status = %d, want 409", rr.Code)
	}

	rr = api.do(t, http.MethodPut, base+"/metadata", MetadataRequest{Duration: 6})
	if rr.Code != http.StatusOK {
		t.Fatalf("metadata status = %d, body %s", rr.Code, rr.Body.String())
	}
	var snap editor.State
	decodeInto(t, rr, &snap)
	if snap.Duration != 6 || snap.TrimRange.End != 6 {
		t.Errorf("state = %+v, want duration 6", snap)
	}

	rr = api.do(t, http.MethodGet, "/jobs", nil)
	var jobs JobsResponse
	decodeInto(t, rr, &jobs)
	if len(jobs.Jobs) != 1 || jobs.Jobs[0].Type != catalog.JobTypeThumbnails {
		t.Errorf("jobs = %+v, want one thumbnails job", jobs.Jobs)
	}
}

func TestThumbnails(t *testing.T) {
	api := newTestAPI(t, 4, nil)
	asset := api.mustUpload(t, "clip.mp4")
	base := "/assets/" + asset.ID

	api.runner.Drain(context.Background())

	rr := api.do(t, http.MethodGet, base+"/thumbnails", nil)
	var list ThumbnailsResponse
	decodeInto(t, rr, &list)
	if len(list.Thumbnails) != 4 {
		t.Fatalf("thumbnails = %d, want 4", len(list.Thumbnails))
	}
	if list.Thumbnails[2].Index != 3 || list.Thumbnails[2].Time != 2 {
		t.Errorf("third thumbnail = %+v", list.Thumbnails[2])
	}

	rr = api.do(t, http.MethodGet, list.Thumbnails[0].URL, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("thumbnail = %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(rr.Body); err != nil {
		t.Errorf("thumbnail is not a PNG: %v", err)
	}

	for _, n := range []string{"0", "9", "x"} {
		rr = api.do(t, http.MethodGet, base+"/thumbnails/"+n, nil)
		if rr.Code == http.StatusOK {
			t.Errorf("thumbnail %s status = 200", n)
		}
	}

	rr = api.do(t, http.MethodPost, base+"/thumbnails", nil)
	if rr.Code != http.StatusAccepted {
		t.Errorf("regenerate status = %d, want 202", rr.Code)
	}
}

func TestExportAndDownload(t *testing.T) {
	api := newTestAPI(t, 10, nil)
	asset := api.mustUpload(t, "Été à Paris.mov")
	base := "/assets/" + asset.ID

	api.do(t, http.MethodPut, base+"/trim", TrimRequest{Start: 1, End: 3})
	rr := api.do(t, http.MethodPost, base+"/export", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("export status = %d, body %s", rr.Code, rr.Body.String())
	}
	var job JobResponse
	decodeInto(t, rr, &job)
	if job.TrimStart != 1 || job.TrimEnd != 3 || job.DownloadURL != "" {
		t.Errorf("queued job = %+v", job)
	}

	rr = api.do(t, http.MethodGet, "/exports/"+job.ID+"/download", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("download before completion status = %d, want 409", rr.Code)
	}

	api.runner.Drain(context.Background())

	rr = api.do(t, http.MethodGet, "/jobs/"+job.ID, nil)
	decodeInto(t, rr, &job)
	if job.Status != catalog.JobStatusCompleted || job.DownloadURL == "" {
		t.Fatalf("job = %+v, want completed with download url", job)
	}

	rr = api.do(t, http.MethodGet, job.DownloadURL, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download status = %d", rr.Code)
	}
	if rr.Body.String() != "trimmed" {
		t.Errorf("download body = %q", rr.Body.String())
	}
	want := `attachment; filename="Ete a Paris-trimmed.mp4"`
	if got := rr.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if rr.Header().Get("Content-Type") != "video/mp4" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestMediaRange(t *testing.T) {
	api := newTestAPI(t, 10, nil)
	asset := api.mustUpload(t, "clip.mp4")

	req := httptest.NewRequest(http.MethodGet, asset.MediaURL+"?token="+testToken, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Range", "bytes=0-3")
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if rr.Body.String() != "fake" {
		t.Errorf("body = %q, want fake", rr.Body.String())
	}
}

func TestAssetNotFound(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	for _, path := range []string{"/assets/missing", "/assets/missing/thumbnails", "/jobs/missing", "/exports/missing/download"} {
		rr := api.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rr.Code)
		}
	}
	rr := api.do(t, http.MethodDelete, "/assets/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("DELETE status = %d, want 404", rr.Code)
	}
}

func TestDeleteAsset(t *testing.T) {
	api := newTestAPI(t, 10, nil)
	asset := api.mustUpload(t, "clip.mp4")

	rr := api.do(t, http.MethodDelete, "/assets/"+asset.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	rr = api.do(t, http.MethodGet, "/assets/"+asset.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", rr.Code)
	}
}

func TestListJobs_BadLimit(t *testing.T) {
	api := newTestAPI(t, 10, nil)

	rr := api.do(t, http.MethodGet, "/jobs?limit=-1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("asset x: %w", catalog.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"busy", engine.ErrBusy, http.StatusConflict, "ENGINE_BUSY"},
		{"no duration", editor.ErrNoDuration, http.StatusConflict, "NO_DURATION"},
		{"engine load", &editor.Error{Kind: editor.KindEngineLoad}, http.StatusServiceUnavailable, "ENGINE_NOT_READY"},
		{"no file", &editor.Error{Kind: editor.KindNoFile}, http.StatusBadRequest, "NO_FILE"},
		{"export", &editor.Error{Kind: editor.KindExport, Err: errors.New("exit 1")}, http.StatusInternalServerError, "EDITOR_ERROR"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeServiceError(rr, tt.err)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if body := decodeJSONBody(t, rr); body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
		})
	}
}
