// Package ndbc downloads the National Data Buoy Center text feeds.
package ndbc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

const (
	directoryPath = "/data/stations/station_table.txt"
	latestObsPath = "/data/latest_obs/latest_obs.txt"
	realtimePath  = "/data/realtime2/%s.txt"
)

// maxBodyBytes caps a feed download; latest_obs.txt is well under 1 MiB.
const maxBodyBytes = 16 << 20

// Client fetches NDBC feeds over HTTP. When a mirror directory is configured,
// the last good directory and latest-observations bodies are kept there and
// served when a download fails.
type Client struct {
	httpClient *http.Client
	baseURL    string
	mirrorDir  string
	maxBody    int64
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NDBC feed client. An empty mirrorDir disables the mirror.
func NewClient(baseURL string, timeout time.Duration, mirrorDir string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		mirrorDir: mirrorDir,
		maxBody:   maxBodyBytes,
		metrics:   metrics,
		logger:    logger,
	}
}

// Directory downloads the pipe-delimited station table.
func (c *Client) Directory(ctx context.Context) (string, error) {
	return c.fetchMirrored(ctx, domain.FeedDirectory, directoryPath, "station_table.txt")
}

// LatestObservations downloads the multi-station scheduled report.
func (c *Client) LatestObservations(ctx context.Context) (string, error) {
	return c.fetchMirrored(ctx, domain.FeedLatestObs, latestObsPath, "latest_obs.txt")
}

// Realtime downloads one station's realtime feed. A station without realtime
// capability answers 404; that yields an empty body and no error.
func (c *Client) Realtime(ctx context.Context, stationID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(stationID))
	if id == "" {
		return "", errors.New("station id is required")
	}
	body, err := c.fetch(ctx, domain.FeedRealtime, fmt.Sprintf(realtimePath, url.PathEscape(id)))
	if errors.Is(err, errNotFound) {
		c.logger.Debug("station has no realtime feed", "station", id)
		return "", nil
	}
	return body, err
}

var errNotFound = errors.New("not found")

func (c *Client) fetchMirrored(ctx context.Context, feed, path, mirrorName string) (string, error) {
	body, err := c.fetch(ctx, feed, path)
	if err == nil {
		c.saveMirror(feed, mirrorName, body)
		return body, nil
	}
	if c.mirrorDir == "" || ctx.Err() != nil {
		return "", err
	}

	data, readErr := os.ReadFile(filepath.Join(c.mirrorDir, mirrorName))
	if readErr != nil {
		c.logger.Warn("mirror unavailable", "feed", feed, "error", readErr)
		return "", err
	}
	c.logger.Warn("download failed, using mirror copy", "feed", feed, "error", err)
	c.metrics.FeedDownloads.WithLabelValues(feed, "mirror").Inc()
	return string(data), nil
}

func (c *Client) fetch(ctx context.Context, feed, path string) (string, error) {
	start := time.Now()
	defer func() {
		c.metrics.FeedDownloadDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FeedDownloads.WithLabelValues(feed, "error").Inc()
		return "", fmt.Errorf("%w: %s download: %v", domain.ErrTransportFailure, feed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.FeedDownloads.WithLabelValues(feed, "not_found").Inc()
		return "", fmt.Errorf("%w: %s %s: %w", domain.ErrTransportFailure, feed, path, errNotFound)
	case resp.StatusCode != http.StatusOK:
		c.metrics.FeedDownloads.WithLabelValues(feed, "error").Inc()
		return "", fmt.Errorf("%w: %s download: status %d", domain.ErrTransportFailure, feed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		c.metrics.FeedDownloads.WithLabelValues(feed, "error").Inc()
		return "", fmt.Errorf("%w: %s read body: %v", domain.ErrTransportFailure, feed, err)
	}
	// A truncated feed would parse as a shorter station list.
	if int64(len(data)) > c.maxBody {
		c.metrics.FeedDownloads.WithLabelValues(feed, "error").Inc()
		return "", fmt.Errorf("%w: %s body exceeds %d bytes", domain.ErrTransportFailure, feed, c.maxBody)
	}

	c.metrics.FeedDownloads.WithLabelValues(feed, "success").Inc()
	return string(data), nil
}

// saveMirror writes body next to its final name and renames it into place so
// a reader never sees a partial file.
func (c *Client) saveMirror(feed, name, body string) {
	if c.mirrorDir == "" {
		return
	}
	if err := os.MkdirAll(c.mirrorDir, 0o755); err != nil {
		c.logger.Warn("create mirror dir failed", "feed", feed, "error", err)
		return
	}

	tmp, err := os.CreateTemp(c.mirrorDir, name+".*.tmp")
	if err != nil {
		c.logger.Warn("write mirror failed", "feed", feed, "error", err)
		return
	}
	_, werr := tmp.WriteString(body)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		c.logger.Warn("write mirror failed", "feed", feed, "error", errors.Join(werr, cerr))
		return
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.mirrorDir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		c.logger.Warn("write mirror failed", "feed", feed, "error", err)
	}
}
