package domain

// DefaultCursorTolerance is the half-width, in degrees on both axes, of the box
// around a station that counts as "under the cursor". Longitude degrees shrink
// toward the poles, so the box narrows on the ground at high latitudes.
const DefaultCursorTolerance = 0.15

// FilterVisible returns the located stations inside vp, edges included, in
// their original order. The result is a fresh slice.
func FilterVisible(all []StationRecord, vp Viewport) []StationRecord {
	visible := make([]StationRecord, 0, len(all))
	for _, rec := range all {
		if rec.Geo != nil && vp.Contains(*rec.Geo) {
			visible = append(visible, rec)
		}
	}
	return visible
}

// FindNear returns the first station within DefaultCursorTolerance of the point.
func FindNear(visible []StationRecord, lat, lon float64) (StationRecord, bool) {
	return FindNearWithin(visible, lat, lon, DefaultCursorTolerance)
}

// FindNearWithin returns the first station, in sequence order, whose position
// lies within tol degrees of the point on both axes. Earlier stations win when
// several boxes overlap the point.
func FindNearWithin(visible []StationRecord, lat, lon, tol float64) (StationRecord, bool) {
	for _, rec := range visible {
		if rec.Geo == nil {
			continue
		}
		if withinTolerance(*rec.Geo, lat, lon, tol) {
			return rec, true
		}
	}
	return StationRecord{}, false
}

func withinTolerance(g Geo, lat, lon, tol float64) bool {
	return lat >= g.Lat-tol && lat <= g.Lat+tol &&
		lon >= g.Lon-tol && lon <= g.Lon+tol
}
