// Package audio downloads call recordings to local disk for transcription.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"crm-webhook/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultMaxBytes = 100 << 20
	// Some recording hosts refuse requests without a browser-like agent.
	UserAgent = "Mozilla/5.0 (compatible; crm-webhook/1.0)"
)

var ErrDownload = errors.New("audio: download failed")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Config struct {
	Dir     string
	Timeout time.Duration
	// MaxBytes caps a single recording. Zero means DefaultMaxBytes.
	MaxBytes   int64
	HTTPClient *http.Client
}

// Fetcher saves recordings as {name}.mp3 under Dir.
type Fetcher struct {
	dir  string
	max  int64
	http *http.Client
}

func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("audio: dir required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("audio: create dir: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{dir: cfg.Dir, max: cfg.MaxBytes, http: hc}, nil
}

// Fetch downloads url and returns the local path. name is usually the
// provider call id; an empty or unusable name gets a random one.
func (f *Fetcher) Fetch(ctx context.Context, url, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}
	if resp.ContentLength > f.max {
		return "", fmt.Errorf("%w: %d bytes exceeds limit %d", ErrDownload, resp.ContentLength, f.max)
	}

	path := filepath.Join(f.dir, fileName(name))
	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("audio: create file: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.max+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > f.max {
		err = fmt.Errorf("body exceeds limit %d", f.max)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("audio: move file: %w", err)
	}

	logger.From(ctx).Debug("audio downloaded", "path", path, "bytes", n)
	return path, nil
}

// Remove deletes a downloaded file. Missing files are not an error.
func (f *Fetcher) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("audio: remove: %w", err)
	}
	return nil
}

func fileName(name string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = uuid.NewString()
	}
	return name + ".mp3"
}
