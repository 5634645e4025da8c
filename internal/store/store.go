// Package store holds the station snapshots shared between the refresh
// pipeline and the HTTP API.
//
// AllStations and VisibleStations are published as immutable values behind
// atomic pointers. Writers build a complete replacement and swap it in, so a
// reader sees either the old or the new set, never a mix.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

// ErrInvalidPosition is returned for a vessel fix outside ±90/±180.
var ErrInvalidPosition = errors.New("invalid position")

// Snapshot is one published set of stations. It is never modified after
// publication.
type Snapshot struct {
	Stations []domain.StationRecord
	LoadedAt time.Time

	index *spatialIndex
	byID  map[string]int
}

func newSnapshot(stations []domain.StationRecord, loadedAt time.Time) *Snapshot {
	byID := make(map[string]int, len(stations))
	for i, rec := range stations {
		byID[rec.ID] = i
	}
	return &Snapshot{
		Stations: stations,
		LoadedAt: loadedAt,
		index:    newSpatialIndex(stations),
		byID:     byID,
	}
}

// Loaded reports whether any refresh has completed.
func (s *Snapshot) Loaded() bool {
	return !s.LoadedAt.IsZero()
}

// Station looks up a station by id.
func (s *Snapshot) Station(id string) (domain.StationRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.StationRecord{}, false
	}
	return s.Stations[i], true
}

type visibleSet struct {
	viewport domain.Viewport
	set      bool
	stations []domain.StationRecord
}

// Store is the context object owning AllStations, VisibleStations, and the
// vessel position.
type Store struct {
	mu        sync.Mutex // serializes writers
	snapshot  atomic.Pointer[Snapshot]
	visible   atomic.Pointer[visibleSet]
	position  atomic.Pointer[domain.Geo]
	clock     clockwork.Clock
	metrics   *observability.Metrics
	tolerance float64
}

// New creates an empty store. A non-positive tolerance selects
// domain.DefaultCursorTolerance.
func New(clock clockwork.Clock, metrics *observability.Metrics, tolerance float64) *Store {
	if tolerance <= 0 {
		tolerance = domain.DefaultCursorTolerance
	}
	s := &Store{clock: clock, metrics: metrics, tolerance: tolerance}
	s.snapshot.Store(newSnapshot(nil, time.Time{}))
	s.visible.Store(&visibleSet{stations: []domain.StationRecord{}})
	return s
}

// Snapshot returns the current AllStations snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Replace publishes stations as the new AllStations, discarding the previous
// set. Scheduled refreshes use it so stale stations never survive.
func (s *Store) Replace(stations []domain.StationRecord) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := newSnapshot(slices.Clone(stations), s.clock.Now())
	s.publish(snap)
	return snap
}

// Append merges stations into the current set and publishes the result.
// Directory refreshes use it: entries from earlier loads are kept, a station
// already present is overwritten in place by the newer record (so a corrected
// position or name takes effect), and new ids are added at the end. Within one
// call the first record for an id wins. It returns the number of stations added.
func (s *Store) Append(stations []domain.StationRecord) (*Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot.Load()
	merged := make([]domain.StationRecord, len(prev.Stations), len(prev.Stations)+len(stations))
	copy(merged, prev.Stations)

	seen := make(map[string]bool, len(stations))
	added := 0
	for _, rec := range stations {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		if i, ok := prev.byID[rec.ID]; ok {
			merged[i] = rec
			continue
		}
		merged = append(merged, rec)
		added++
	}

	snap := newSnapshot(merged, s.clock.Now())
	s.publish(snap)
	return snap, added
}

// publish swaps in snap and rebuilds VisibleStations for the current viewport.
// Callers hold s.mu.
func (s *Store) publish(snap *Snapshot) {
	s.snapshot.Store(snap)
	s.metrics.StationsLoaded.Set(float64(len(snap.Stations)))

	if cur := s.visible.Load(); cur.set {
		s.storeVisible(snap, cur.viewport)
	}
}

// SetViewport recomputes VisibleStations for vp and returns it.
func (s *Store) SetViewport(vp domain.Viewport) []domain.StationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.storeVisible(s.snapshot.Load(), vp))
}

func (s *Store) storeVisible(snap *Snapshot, vp domain.Viewport) []domain.StationRecord {
	stations := snap.index.visible(snap.Stations, vp)
	s.visible.Store(&visibleSet{viewport: vp, set: true, stations: stations})
	s.metrics.StationsVisible.Set(float64(len(stations)))
	return stations
}

// Viewport returns the last viewport set, if any.
func (s *Store) Viewport() (domain.Viewport, bool) {
	v := s.visible.Load()
	return v.viewport, v.set
}

// Visible returns a copy of VisibleStations.
func (s *Store) Visible() []domain.StationRecord {
	return slices.Clone(s.visible.Load().stations)
}

// VisibleStation looks up a station by id among the visible stations.
func (s *Store) VisibleStation(id string) (domain.StationRecord, bool) {
	for _, rec := range s.visible.Load().stations {
		if rec.ID == id {
			return rec, true
		}
	}
	return domain.StationRecord{}, false
}

// At returns the visible station under the cursor, if any.
func (s *Store) At(lat, lon float64) (domain.CursorHit, bool) {
	rec, ok := domain.FindNearWithin(s.visible.Load().stations, lat, lon, s.tolerance)
	if !ok {
		s.metrics.CursorQueries.WithLabelValues("miss").Inc()
		return domain.CursorHit{}, false
	}
	s.metrics.CursorQueries.WithLabelValues("hit").Inc()
	return domain.CursorHit{ID: rec.ID, Name: rec.Name}, true
}

// SetPosition records the vessel fix used for forecast and alert lookups.
func (s *Store) SetPosition(g domain.Geo) error {
	if !g.Valid() {
		return fmt.Errorf("%w: lat=%g lon=%g", ErrInvalidPosition, g.Lat, g.Lon)
	}
	s.position.Store(&g)
	return nil
}

// Position returns the last vessel fix, if any.
func (s *Store) Position() (domain.Geo, bool) {
	g := s.position.Load()
	if g == nil {
		return domain.Geo{}, false
	}
	return *g, true
}

// CheckReadiness returns nil once a refresh has published a snapshot.
func (s *Store) CheckReadiness(_ context.Context) error {
	if !s.snapshot.Load().Loaded() {
		return errors.New("no station snapshot loaded yet")
	}
	return nil
}
