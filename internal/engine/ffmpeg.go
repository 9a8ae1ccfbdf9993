package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	maxStderrBytes   = 8 * 1024 // tail of ffmpeg stderr kept for error messages
	versionTimeout   = 30 * time.Second
	defaultFFmpegBin = "ffmpeg"
)

// FFmpegConfig configures the ffmpeg backend.
type FFmpegConfig struct {
	FFmpegPath  string        // binary path or name; empty = "ffmpeg" on PATH
	WorkDir     string        // parent of the workspace directory; empty = os.TempDir()
	ExecTimeout time.Duration // per command; 0 = no timeout
	Logger      *slog.Logger
}

// FFmpegBackend runs the ffmpeg binary against a private workspace directory
// that acts as the engine's virtual filesystem.
type FFmpegBackend struct {
	cfg FFmpegConfig

	mu        sync.RWMutex
	binary    string
	version   string
	workspace string
}

func NewFFmpegBackend(cfg FFmpegConfig) *FFmpegBackend {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FFmpegBackend{cfg: cfg}
}

// Load resolves the binary, checks that it runs and creates the workspace.
func (b *FFmpegBackend) Load(ctx context.Context) error {
	binary, err := resolveFFmpeg(b.cfg.FFmpegPath)
	if err != nil {
		return err
	}

	vctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(vctx, binary, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg -version failed: %w", err)
	}
	version := firstLine(string(out))

	workspace, err := os.MkdirTemp(b.cfg.WorkDir, "engine-*")
	if err != nil {
		return fmt.Errorf("cannot create engine workspace: %w", err)
	}

	b.mu.Lock()
	old := b.workspace
	b.binary = binary
	b.version = version
	b.workspace = workspace
	b.mu.Unlock()

	if old != "" {
		os.RemoveAll(old)
	}

	b.cfg.Logger.Info("ffmpeg engine loaded", "binary", binary, "version", version, "workspace", workspace)
	return nil
}

// Version returns the first line of `ffmpeg -version` once loaded.
func (b *FFmpegBackend) Version() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Workspace returns the directory backing the virtual filesystem.
func (b *FFmpegBackend) Workspace() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.workspace
}

func (b *FFmpegBackend) WriteFile(ctx context.Context, name string, r io.Reader) error {
	path, err := b.resolve(name)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", name, err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("cannot write %s: %w", name, err)
	}

	b.cfg.Logger.Debug("engine file written", "name", name, "size", humanize.Bytes(uint64(n)))
	return nil
}

func (b *FFmpegBackend) Exec(ctx context.Context, args []string) error {
	b.mu.RLock()
	binary, workspace := b.binary, b.workspace
	b.mu.RUnlock()
	if workspace == "" {
		return ErrNotReady
	}
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	if b.cfg.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.ExecTimeout)
		defer cancel()
	}

	cmdArgs := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	cmd := exec.CommandContext(ctx, binary, cmdArgs...)
	cmd.Dir = workspace
	cmd.Stdout = io.Discard

	var tail bytes.Buffer
	logw := &lineLogger{logger: b.cfg.Logger}
	cmd.Stderr = io.MultiWriter(&limitedWriter{w: &tail, limit: maxStderrBytes}, logw)

	b.cfg.Logger.Info("executing engine command", "args", args)
	start := time.Now()

	err := cmd.Run()
	logw.flush()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		b.cfg.Logger.Warn("engine command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail.String(), 512),
		)
		return fmt.Errorf("ffmpeg exited %d: %s", exitCode, truncate(strings.TrimSpace(tail.String()), 512))
	}

	b.cfg.Logger.Info("engine command succeeded", "duration_ms", elapsed.Milliseconds())
	return nil
}

func (b *FFmpegBackend) ReadFile(ctx context.Context, name string) ([]byte, error) {
	path, err := b.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("cannot read %s: %w", name, err)
	}
	return data, nil
}

func (b *FFmpegBackend) Remove(ctx context.Context, name string) error {
	path, err := b.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove %s: %w", name, err)
	}
	return nil
}

// Close deletes the workspace.
func (b *FFmpegBackend) Close() error {
	b.mu.Lock()
	workspace := b.workspace
	b.workspace = ""
	b.mu.Unlock()

	if workspace == "" {
		return nil
	}
	return os.RemoveAll(workspace)
}

func (b *FFmpegBackend) resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	b.mu.RLock()
	workspace := b.workspace
	b.mu.RUnlock()
	if workspace == "" {
		return "", ErrNotReady
	}
	return filepath.Join(workspace, name), nil
}

func resolveFFmpeg(preferred string) (string, error) {
	name := preferred
	if name == "" {
		name = defaultFFmpegBin
	}
	p, err := exec.LookPath(name)
	if err != nil {
		if preferred != "" {
			return "", fmt.Errorf("configured ffmpeg %q not found: %w", preferred, err)
		}
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return p, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		keep := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(keep)
	}
	return n, nil
}

// lineLogger forwards ffmpeg's stderr to the debug log one line at a time.
type lineLogger struct {
	logger  *slog.Logger
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		l.emit(string(l.pending[:i]))
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

func (l *lineLogger) flush() {
	if len(l.pending) > 0 {
		l.emit(string(l.pending))
		l.pending = nil
	}
}

func (l *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	l.logger.Debug("ffmpeg", "line", line)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
