// Package nws talks to the National Weather Service API for gridpoint
// forecasts and active alerts at a position.
package nws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

const (
	endpointPoints     = "points"
	endpointGridpoints = "gridpoints"
	endpointAlerts     = "alerts"
)

const maxBodyBytes = 8 << 20

// Client fetches forecasts and alerts from api.weather.gov. Points lookups
// map a position to a fixed forecast grid and are cached; forecasts and alerts
// are always fetched fresh.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	points     *lruCache[string]
	maxBody    int64
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NWS client. A cacheSize of zero or less disables the
// points cache.
func NewClient(baseURL, userAgent string, timeout time.Duration, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		maxBody:   maxBodyBytes,
		metrics:   metrics,
		logger:    logger,
	}
	if cacheSize > 0 {
		c.points = newLRUCache[string](cacheSize)
	}
	return c
}

// Forecast returns the aligned forecast table for a position. It reports false
// when the service has no forecast grid there (e.g. open ocean outside NWS
// coverage).
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]domain.ForecastRow, bool, error) {
	gridURL, ok, err := c.GridDataURL(ctx, lat, lon)
	if err != nil || !ok {
		return nil, false, err
	}

	doc, found, err := c.get(ctx, endpointGridpoints, gridURL)
	if err != nil {
		return nil, false, err
	}
	if !found {
		c.metrics.NWSRequests.WithLabelValues(endpointGridpoints, "empty").Inc()
		return nil, false, nil
	}

	series, err := domain.ExtractForecastSeries(doc)
	if err != nil {
		c.metrics.NWSRequests.WithLabelValues(endpointGridpoints, "error").Inc()
		return nil, false, fmt.Errorf("gridpoint %s: %w", gridURL, err)
	}
	c.metrics.NWSRequests.WithLabelValues(endpointGridpoints, "success").Inc()
	return domain.AlignForecast(series), true, nil
}

// GridDataURL resolves a position to its forecastGridData URL.
func (c *Client) GridDataURL(ctx context.Context, lat, lon float64) (string, bool, error) {
	u := domain.ForecastPointURL(c.baseURL, lat, lon)
	if c.points != nil {
		if gridURL, ok := c.points.get(u); ok {
			c.metrics.NWSCache.WithLabelValues(endpointPoints, "hit").Inc()
			return gridURL, true, nil
		}
		c.metrics.NWSCache.WithLabelValues(endpointPoints, "miss").Inc()
	}

	doc, found, err := c.get(ctx, endpointPoints, u)
	if err != nil {
		return "", false, err
	}
	if !found {
		c.metrics.NWSRequests.WithLabelValues(endpointPoints, "empty").Inc()
		return "", false, nil
	}

	gridURL, ok, err := domain.ExtractForecastGridData(doc)
	if err != nil {
		c.metrics.NWSRequests.WithLabelValues(endpointPoints, "error").Inc()
		return "", false, err
	}
	if !ok {
		c.metrics.NWSRequests.WithLabelValues(endpointPoints, "empty").Inc()
		c.logger.Debug("no forecast grid for position", "lat", lat, "lon", lon)
		return "", false, nil
	}

	c.metrics.NWSRequests.WithLabelValues(endpointPoints, "success").Inc()
	// Only cache resolved grids so positions outside coverage are retried.
	if c.points != nil {
		c.points.put(u, gridURL)
	}
	return gridURL, true, nil
}

// ActiveAlert returns the first active alert at a position, or false when
// none are in effect.
func (c *Client) ActiveAlert(ctx context.Context, lat, lon float64) (domain.Alert, bool, error) {
	doc, found, err := c.get(ctx, endpointAlerts, domain.AlertsURL(c.baseURL, lat, lon))
	if err != nil {
		return domain.Alert{}, false, err
	}
	if !found {
		c.metrics.NWSRequests.WithLabelValues(endpointAlerts, "empty").Inc()
		return domain.Alert{}, false, nil
	}

	alert, ok, err := domain.ExtractActiveAlert(doc)
	if err != nil {
		c.metrics.NWSRequests.WithLabelValues(endpointAlerts, "error").Inc()
		return domain.Alert{}, false, err
	}
	outcome := "success"
	if !ok {
		outcome = "empty"
	}
	c.metrics.NWSRequests.WithLabelValues(endpointAlerts, outcome).Inc()
	return alert, ok, nil
}

// get fetches a JSON document. A 404 reports found=false without an error.
func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.NWSRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, false, fmt.Errorf("%w: %s request: %v", domain.ErrTransportFailure, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.NWSRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, false, fmt.Errorf("%w: nws %s: status %d: %s", domain.ErrTransportFailure, endpoint, resp.StatusCode, body)
	}

	doc, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		c.metrics.NWSRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, false, fmt.Errorf("%w: %s read body: %v", domain.ErrTransportFailure, endpoint, err)
	}
	if int64(len(doc)) > c.maxBody {
		c.metrics.NWSRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, false, fmt.Errorf("%w: %s body exceeds %d bytes", domain.ErrTransportFailure, endpoint, c.maxBody)
	}
	return doc, true, nil
}
