package store

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
)

// pointEpsilon gives station points a non-zero extent; rtreego rejects
// zero-length rectangles. Queries are widened by the same margin and results
// re-checked with the inclusive viewport test, so the index only pre-filters.
const pointEpsilon = 1e-6

// spatialIndex is an R-tree over the located stations of one snapshot.
type spatialIndex struct {
	rtree *rtreego.Rtree
}

// indexedStation wraps a station's position and its offset in the snapshot.
type indexedStation struct {
	pos int
	geo domain.Geo
}

// Bounds implements rtreego.Spatial.
func (s *indexedStation) Bounds() rtreego.Rect {
	point := rtreego.Point{s.geo.Lon - pointEpsilon/2, s.geo.Lat - pointEpsilon/2}
	rect, _ := rtreego.NewRect(point, []float64{pointEpsilon, pointEpsilon})
	return rect
}

func newSpatialIndex(stations []domain.StationRecord) *spatialIndex {
	rtree := rtreego.NewTree(2, 25, 50)
	for i, rec := range stations {
		if rec.Geo == nil {
			continue
		}
		rtree.Insert(&indexedStation{pos: i, geo: *rec.Geo})
	}
	return &spatialIndex{rtree: rtree}
}

// visible returns the stations inside vp in snapshot order, matching
// domain.FilterVisible.
func (idx *spatialIndex) visible(stations []domain.StationRecord, vp domain.Viewport) []domain.StationRecord {
	if vp.Empty() {
		return []domain.StationRecord{}
	}

	point := rtreego.Point{vp.LonMin - pointEpsilon, vp.LatMin - pointEpsilon}
	lengths := []float64{
		vp.LonMax - vp.LonMin + 2*pointEpsilon,
		vp.LatMax - vp.LatMin + 2*pointEpsilon,
	}
	queryRect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return domain.FilterVisible(stations, vp)
	}

	hits := idx.rtree.SearchIntersect(queryRect)
	positions := make([]int, 0, len(hits))
	for _, hit := range hits {
		s := hit.(*indexedStation)
		if vp.Contains(s.geo) {
			positions = append(positions, s.pos)
		}
	}
	sort.Ints(positions)

	result := make([]domain.StationRecord, len(positions))
	for i, pos := range positions {
		result[i] = stations[pos]
	}
	return result
}
