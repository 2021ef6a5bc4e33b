package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"go-covid-pipeline/internal/model"
)

// ErrLoad is wrapped by every dataset load failure.
var ErrLoad = errors.New("dataset load failed")

// Load operations reported in LoadError.
const (
	OpReadCache = "read-cache"
	OpFetch     = "fetch"
	OpParse     = "parse"
)

// LoadError describes why the dataset could not be loaded.
type LoadError struct {
	Source string
	Op     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrLoad, e.Op, e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// Loader obtains the raw record set from a local cache file or, when the cache
// is absent, from the remote source. A fetched payload is copied verbatim to the
// cache. The cache is never revalidated or expired.
type Loader struct {
	CachePath string
	SourceURL string
	Client    *http.Client
	Timeout   time.Duration // applies to the remote fetch only, 0 means none
	Logger    *slog.Logger
	Progress  io.Writer // download progress bar is rendered here when set
}

// Load returns the parsed record set or a *LoadError. It never returns partial data.
func (l *Loader) Load(ctx context.Context) (*model.RecordSet, error) {
	log := l.logger()

	if l.CachePath != "" {
		file, err := os.Open(l.CachePath)
		switch {
		case err == nil:
			defer file.Close()
			log.Info("Loading dataset from cache", "path", l.CachePath)
			rs, err := ParseRecords(file)
			if err != nil {
				return nil, &LoadError{Source: l.CachePath, Op: OpParse, Err: err}
			}
			loadsTotal.WithLabelValues(sourceCache).Inc()
			log.Info("Dataset loaded", "source", sourceCache, "records", rs.Len(), "metrics", len(rs.Metrics))
			return rs, nil
		case !cacheAbsent(err):
			return nil, &LoadError{Source: l.CachePath, Op: OpReadCache, Err: err}
		}
	}

	payload, err := l.fetch(ctx)
	if err != nil {
		return nil, &LoadError{Source: l.SourceURL, Op: OpFetch, Err: err}
	}

	rs, err := ParseRecords(bytes.NewReader(payload))
	if err != nil {
		return nil, &LoadError{Source: l.SourceURL, Op: OpParse, Err: err}
	}
	// only a payload that parsed is cached
	l.writeCache(payload)
	loadsTotal.WithLabelValues(sourceRemote).Inc()
	log.Info("Dataset loaded", "source", sourceRemote, "records", rs.Len(), "metrics", len(rs.Metrics))
	return rs, nil
}

// cacheAbsent reports whether an open error means there is no cache file. A
// parent path that is not a directory cannot hold one either.
func cacheAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.SourceURL == "" {
		return nil, errors.New("no cache file and no source URL configured")
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	l.logger().Info("Fetching dataset", "url", l.SourceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET CSV: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if l.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(l.Progress),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		body = io.TeeReader(resp.Body, bar)
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return payload, nil
}

// writeCache persists the fetched payload. Failure is logged and otherwise ignored.
func (l *Loader) writeCache(payload []byte) {
	if l.CachePath == "" {
		return
	}
	log := l.logger()
	if dir := filepath.Dir(l.CachePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn("Failed to create cache directory", "path", dir, "error", err)
			return
		}
	}
	if err := os.WriteFile(l.CachePath, payload, 0644); err != nil {
		log.Warn("Failed to write dataset cache", "path", l.CachePath, "error", err)
		return
	}
	log.Debug("Dataset cached", "path", l.CachePath, "bytes", len(payload))
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
