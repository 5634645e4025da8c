// Package pipeline downloads NDBC feeds, parses them, and publishes the
// resulting station snapshots.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/config"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/store"
)

// FeedSource downloads raw NDBC feed bodies.
type FeedSource interface {
	Directory(ctx context.Context) (string, error)
	LatestObservations(ctx context.Context) (string, error)
	Realtime(ctx context.Context, stationID string) (string, error)
}

// SnapshotPublisher forwards a refreshed station set downstream.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, mode string, loadedAt time.Time, stations []domain.StationRecord) error
}

// RefreshResult summarizes one refresh.
type RefreshResult struct {
	Mode     string    `json:"mode"`
	Parsed   int       `json:"parsed"`
	Added    int       `json:"added"`
	Stations int       `json:"stations"`
	Issues   int       `json:"issues"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Refresher runs download-parse-swap cycles against the store. Scheduled mode
// replaces the station set; directory mode appends to it. Refreshes never
// overlap. A failed download leaves the previous snapshot in place; there
// are no retries.
type Refresher struct {
	source    FeedSource
	store     *store.Store
	publisher SnapshotPublisher
	mode      string
	logger    *slog.Logger
	metrics   *observability.Metrics
	mu        sync.Mutex
}

// New creates a Refresher. Pass a nil publisher to disable snapshot publishing.
func New(source FeedSource, st *store.Store, publisher SnapshotPublisher, mode string, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		source:    source,
		store:     st,
		publisher: publisher,
		mode:      mode,
		logger:    logger,
		metrics:   metrics,
	}
}

// Mode returns the refresh mode.
func (r *Refresher) Mode() string {
	return r.mode
}

// Refresh downloads and parses the feed for the configured mode and
// publishes the result.
func (r *Refresher) Refresh(ctx context.Context) (RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := RefreshResult{Mode: r.mode}

	var (
		snap *store.Snapshot
		res  domain.ParseResult
	)
	switch r.mode {
	case config.ModeDirectory:
		body, err := r.source.Directory(ctx)
		if err != nil {
			r.logger.Error("directory download failed, keeping previous snapshot", "error", err)
			return result, fmt.Errorf("refresh directory: %w", err)
		}
		res = domain.ParseDirectory(domain.SplitLines(body))
		r.recordIssues(domain.FeedDirectory, res.Issues)
		snap, result.Added = r.store.Append(res.Stations)

	case config.ModeScheduled:
		body, err := r.source.LatestObservations(ctx)
		if err != nil {
			r.logger.Error("latest observations download failed, keeping previous snapshot", "error", err)
			return result, fmt.Errorf("refresh latest observations: %w", err)
		}
		res = domain.ParseLatestObservations(domain.SplitLines(body))
		r.recordIssues(domain.FeedLatestObs, res.Issues)
		snap = r.store.Replace(res.Stations)
		result.Added = len(snap.Stations)

	default:
		return result, fmt.Errorf("unknown refresh mode %q", r.mode)
	}

	result.Parsed = len(res.Stations)
	result.Stations = len(snap.Stations)
	result.Issues = len(res.Issues)
	result.LoadedAt = snap.LoadedAt

	r.publish(ctx, snap)

	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("refresh complete",
		"mode", r.mode,
		"parsed", result.Parsed,
		"added", result.Added,
		"stations", result.Stations,
		"issues", result.Issues,
		"duration", time.Since(start),
	)
	return result, nil
}

func (r *Refresher) publish(ctx context.Context, snap *store.Snapshot) {
	if r.publisher == nil || len(snap.Stations) == 0 {
		return
	}
	if err := r.publisher.PublishSnapshot(ctx, r.mode, snap.LoadedAt, snap.Stations); err != nil {
		r.logger.Error("publish snapshot failed", "error", err, "stations", len(snap.Stations))
		return
	}
	r.metrics.RecordsPublished.Add(float64(len(snap.Stations)))
}

// Observation returns the latest observation for a station. In scheduled mode
// it is the station's record in the visible set. In directory mode the
// station's realtime feed is downloaded; stations without one report false.
func (r *Refresher) Observation(ctx context.Context, stationID string) (domain.StationRecord, bool, error) {
	if r.mode == config.ModeScheduled {
		rec, ok := r.store.VisibleStation(stationID)
		return rec, ok, nil
	}

	history, err := r.History(ctx, stationID, 1)
	if err != nil || len(history) == 0 {
		return domain.StationRecord{}, false, err
	}
	return history[0], true, nil
}

// History returns up to limit realtime observations for a station, newest
// first. Directory metadata (name, position) is merged in when known.
func (r *Refresher) History(ctx context.Context, stationID string, limit int) ([]domain.StationRecord, error) {
	body, err := r.source.Realtime(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("realtime %s: %w", stationID, err)
	}

	res := domain.ParseRealtimeHistory(domain.SplitLines(body), stationID, limit)
	r.recordIssues(domain.FeedRealtime, res.Issues)

	if known, ok := r.store.Snapshot().Station(stationID); ok {
		for i := range res.Stations {
			res.Stations[i].Name = known.Name
			if res.Stations[i].Geo == nil {
				res.Stations[i].Geo = known.Geo
			}
		}
	}
	return res.Stations, nil
}

// recordIssues logs and counts parse issues. An empty report is an expected
// outcome (a station without realtime data) and is logged at Info.
func (r *Refresher) recordIssues(feed string, issues []domain.ParseIssue) {
	for _, issue := range issues {
		r.metrics.ParseIssues.WithLabelValues(feed, domain.IssueKind(issue.Err)).Inc()
		if errors.Is(issue.Err, domain.ErrEmptyReport) {
			r.logger.Info("feed has no data lines", "feed", feed, "detail", issue.Detail)
			continue
		}
		r.logger.Warn("parse issue", "feed", feed, "line", issue.Line, "error", issue)
	}
}
