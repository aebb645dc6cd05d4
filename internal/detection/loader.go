package detection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrModelNotFound is returned when the configured model file is absent.
	ErrModelNotFound = errors.New("model file not found")

	// ErrChecksumMismatch is returned when a downloaded model does not
	// match its expected SHA-256 digest.
	ErrChecksumMismatch = errors.New("model checksum mismatch")
)

// ModelLoader resolves a model to a local file path.
type ModelLoader interface {
	Load(ctx context.Context) (string, error)
}

// LoaderConfig selects and configures a ModelLoader.
type LoaderConfig struct {
	Path     string
	URL      string
	CacheDir string
	SHA256   string
	Timeout  time.Duration
}

// NewLoader returns a RemoteLoader when a URL is configured and a
// LocalLoader otherwise.
func NewLoader(cfg LoaderConfig, logger *slog.Logger) ModelLoader {
	if cfg.URL == "" {
		return &LocalLoader{Path: cfg.Path}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RemoteLoader{
		URL:      cfg.URL,
		CacheDir: cfg.CacheDir,
		SHA256:   cfg.SHA256,
		Client:   &http.Client{Timeout: timeout},
		Logger:   logger,
	}
}

// LocalLoader loads a model that already exists on disk.
type LocalLoader struct {
	Path string
}

// Load returns the absolute model path, or ErrModelNotFound.
func (l *LocalLoader) Load(ctx context.Context) (string, error) {
	if l.Path == "" {
		return "", fmt.Errorf("%w: no model path configured", ErrModelNotFound)
	}
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return "", fmt.Errorf("invalid model path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, abs)
		}
		return "", fmt.Errorf("failed to stat model: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrModelNotFound, abs)
	}
	return abs, nil
}

// RemoteLoader downloads a model once and serves it from CacheDir afterwards.
type RemoteLoader struct {
	URL      string
	CacheDir string

	// SHA256 is the expected hex digest. Empty skips verification.
	SHA256 string

	Client *http.Client
	Logger *slog.Logger
}

// CachePath returns where the downloaded model is stored.
func (r *RemoteLoader) CachePath() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid model URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		name = "model.onnx"
	}
	dir := r.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		dir = filepath.Join(base, "xray-cdss", "models")
	}
	return filepath.Join(dir, name), nil
}

// Load returns the cached model, downloading it first if needed.
func (r *RemoteLoader) Load(ctx context.Context) (string, error) {
	dest, err := r.CachePath()
	if err != nil {
		return "", err
	}
	log := r.logger().With("url", r.URL, "path", dest)

	if _, err := os.Stat(dest); err == nil {
		if err := r.verify(dest); err != nil {
			log.Warn("cached model failed verification, downloading again", "error", err)
		} else {
			log.Debug("using cached model")
			return dest, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	log.Info("downloading model")
	start := time.Now()
	if err := r.download(ctx, dest); err != nil {
		return "", err
	}
	log.Info("model downloaded", "duration", time.Since(start))
	return dest, nil
}

func (r *RemoteLoader) download(ctx context.Context, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	if err := r.checkDigest(hex.EncodeToString(h.Sum(nil))); err != nil {
		return err
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move model into cache: %w", err)
	}
	return nil
}

func (r *RemoteLoader) verify(p string) error {
	if r.SHA256 == "" {
		return nil
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return r.checkDigest(hex.EncodeToString(h.Sum(nil)))
}

func (r *RemoteLoader) checkDigest(got string) error {
	if r.SHA256 == "" {
		return nil
	}
	if !strings.EqualFold(got, r.SHA256) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, r.SHA256)
	}
	return nil
}

func (r *RemoteLoader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
