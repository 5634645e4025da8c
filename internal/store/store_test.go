package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

var testNow = time.Date(2025, 4, 7, 15, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	return New(clock, observability.NewMetricsForTesting(), 0), clock
}

func station(id string, lat, lon float64) domain.StationRecord {
	return domain.StationRecord{ID: id, Name: "Station " + id, Geo: &domain.Geo{Lat: lat, Lon: lon}}
}

func ids(recs []domain.StationRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

var eastCoast = domain.Viewport{LatMin: 30, LatMax: 40, LonMin: -80, LonMax: -70}

func TestStore_Readiness(t *testing.T) {
	s, _ := newTestStore(t)
	require.Error(t, s.CheckReadiness(context.Background()))

	snap := s.Replace(nil)
	assert.NoError(t, s.CheckReadiness(context.Background()))
	assert.Equal(t, testNow, snap.LoadedAt)
}

func TestStore_ReplaceDropsStaleStations(t *testing.T) {
	s, clock := newTestStore(t)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7), station("41002", 31.8, -74.8)})

	clock.Advance(30 * time.Minute)
	snap := s.Replace([]domain.StationRecord{station("41002", 31.8, -74.8)})

	assert.Equal(t, []string{"41002"}, ids(snap.Stations))
	assert.Equal(t, testNow.Add(30*time.Minute), snap.LoadedAt)
	_, ok := snap.Station("41001")
	assert.False(t, ok)
}

func TestStore_AppendKeepsStaleStations(t *testing.T) {
	s, _ := newTestStore(t)
	s.Append([]domain.StationRecord{station("41001", 34.7, -72.7), station("41002", 31.8, -74.8)})

	moved := station("41001", 34.9, -72.5)
	snap, added := s.Append([]domain.StationRecord{moved, station("46026", 37.75, -122.8), station("46026", 1, 1)})

	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"41001", "41002", "46026"}, ids(snap.Stations), "ids stay unique and keep their slot")

	rec, ok := snap.Station("41001")
	require.True(t, ok)
	assert.InDelta(t, 34.9, rec.Geo.Lat, 1e-9, "newer record overwrites in place")

	rec, ok = snap.Station("46026")
	require.True(t, ok)
	assert.InDelta(t, 37.75, rec.Geo.Lat, 1e-9, "first record in one load wins")

	_, ok = snap.Station("41002")
	assert.True(t, ok, "stations absent from the newer load survive")
}

func TestStore_AppendCorrectsUnlocatedStation(t *testing.T) {
	s, _ := newTestStore(t)
	vp := domain.Viewport{LatMin: 20, LatMax: 22, LonMin: -24, LonMax: -22}
	s.SetViewport(vp)

	s.Append([]domain.StationRecord{{ID: "13002", Name: "NE Extension"}})
	assert.Empty(t, s.Visible(), "a station without a position is never visible")

	snap, added := s.Append([]domain.StationRecord{station("13002", 21, -23)})
	assert.Zero(t, added)
	require.Len(t, snap.Stations, 1)
	assert.Equal(t, []string{"13002"}, ids(s.Visible()))

	hit, ok := s.At(21.05, -23.05)
	require.True(t, ok)
	assert.Equal(t, "Station 13002", hit.Name)
}

func TestStore_ReplaceCopiesInput(t *testing.T) {
	s, _ := newTestStore(t)
	in := []domain.StationRecord{station("41001", 34.7, -72.7)}
	s.Replace(in)
	in[0].ID = "mutated"

	assert.Equal(t, "41001", s.Snapshot().Stations[0].ID)
}

func TestStore_VisibleRecomputedAfterLoad(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.SetViewport(eastCoast))

	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7), station("46026", 37.75, -122.8)})
	assert.Equal(t, []string{"41001"}, ids(s.Visible()))

	s.Replace([]domain.StationRecord{station("46026", 37.75, -122.8)})
	assert.Empty(t, s.Visible())

	vp, ok := s.Viewport()
	require.True(t, ok)
	assert.Equal(t, eastCoast, vp)
}

func TestStore_VisibleWithoutViewport(t *testing.T) {
	s, _ := newTestStore(t)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7)})

	assert.Empty(t, s.Visible())
	_, ok := s.Viewport()
	assert.False(t, ok)
}

func TestStore_VisibleIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7)})
	got := s.SetViewport(eastCoast)
	got[0].ID = "mutated"

	assert.Equal(t, []string{"41001"}, ids(s.Visible()))
}

func TestStore_IndexMatchesFilterVisible(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	stations := make([]domain.StationRecord, 0, 2000)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("S%04d", i)
		if i%50 == 0 {
			stations = append(stations, domain.StationRecord{ID: id})
			continue
		}
		lat := float64(rng.Intn(1800)-900) / 10
		lon := float64(rng.Intn(3600)-1800) / 10
		stations = append(stations, station(id, lat, lon))
	}
	// Stations exactly on the viewport edges and corners.
	stations = append(stations,
		station("EDGE-S", 30, -75), station("EDGE-N", 40, -75),
		station("EDGE-W", 35, -80), station("EDGE-E", 35, -70),
		station("CORNER", 40, -70),
	)

	s, _ := newTestStore(t)
	s.Replace(stations)

	viewports := []domain.Viewport{
		eastCoast,
		{LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 180},
		{LatMin: 35, LatMax: 35, LonMin: -80, LonMax: -70},
		{LatMin: -10.5, LatMax: 12.3, LonMin: 100, LonMax: 179.9},
		{LatMin: 10, LatMax: 0, LonMin: 0, LonMax: 10},
	}
	for _, vp := range viewports {
		want := domain.FilterVisible(stations, vp)
		got := s.SetViewport(vp)
		if diff := cmp.Diff(ids(want), ids(got)); diff != "" {
			t.Errorf("viewport %+v mismatch (-filter +index):\n%s", vp, diff)
		}
	}

	got := ids(s.SetViewport(eastCoast))
	for _, id := range []string{"EDGE-S", "EDGE-N", "EDGE-W", "EDGE-E", "CORNER"} {
		assert.Contains(t, got, id)
	}
}

func TestStore_At(t *testing.T) {
	s, _ := newTestStore(t)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7), station("41002", 34.75, -72.75)})
	s.SetViewport(eastCoast)

	hit, ok := s.At(34.72, -72.72)
	require.True(t, ok)
	assert.Equal(t, domain.CursorHit{ID: "41001", Name: "Station 41001"}, hit)

	_, ok = s.At(10, 10)
	assert.False(t, ok)
}

func TestStore_AtOnlySearchesVisible(t *testing.T) {
	s, _ := newTestStore(t)
	s.Replace([]domain.StationRecord{station("46026", 37.75, -122.8)})
	s.SetViewport(eastCoast)

	_, ok := s.At(37.75, -122.8)
	assert.False(t, ok)
}

func TestStore_CustomTolerance(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	s := New(clock, observability.NewMetricsForTesting(), 0.5)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7)})
	s.SetViewport(eastCoast)

	_, ok := s.At(35.1, -72.7)
	assert.True(t, ok)
}

func TestStore_VisibleStation(t *testing.T) {
	s, _ := newTestStore(t)
	s.Replace([]domain.StationRecord{station("41001", 34.7, -72.7), station("46026", 37.75, -122.8)})
	s.SetViewport(eastCoast)

	_, ok := s.VisibleStation("41001")
	assert.True(t, ok)
	_, ok = s.VisibleStation("46026")
	assert.False(t, ok)
}

func TestStore_Position(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok := s.Position()
	assert.False(t, ok)

	require.NoError(t, s.SetPosition(domain.Geo{Lat: 47.6, Lon: -122.3}))
	g, ok := s.Position()
	require.True(t, ok)
	assert.Equal(t, domain.Geo{Lat: 47.6, Lon: -122.3}, g)

	err := s.SetPosition(domain.Geo{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, ErrInvalidPosition)
	g, _ = s.Position()
	assert.Equal(t, 47.6, g.Lat, "invalid fix is not stored")
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	small := []domain.StationRecord{station("A", 35, -75)}
	large := []domain.StationRecord{station("A", 35, -75), station("B", 36, -75), station("C", 37, -75)}
	s.Replace(small)
	s.SetViewport(eastCoast)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.Replace(large)
			} else {
				s.Replace(small)
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		n := len(s.Visible())
		assert.True(t, n == 1 || n == 3, "torn visible set of %d stations", n)
	}
}
