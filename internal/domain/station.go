package domain

import "time"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within ±90 latitude and ±180 longitude.
func (g Geo) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// StationRecord is one NDBC station with its most recent observation.
// Nil pointer fields are unknown (the "MM" sentinel or a short line); zero is a
// real reading.
type StationRecord struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	Geo              *Geo       `json:"geo,omitempty"`
	WindSpeedMps     *float64   `json:"wind_speed_mps,omitempty"`
	WindDirectionDeg *int       `json:"wind_direction_deg,omitempty"`
	PressureHpa      *float64   `json:"pressure_hpa,omitempty"`
	AirTempC         *float64   `json:"air_temp_c,omitempty"`
	ObservedAt       *time.Time `json:"observed_at,omitempty"`
}

// Located reports whether the station has a usable position.
func (r StationRecord) Located() bool {
	return r.Geo != nil
}

// Viewport is the geographic rectangle currently visible on the chart.
type Viewport struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains returns true if the point lies inside the viewport, edges included.
func (v Viewport) Contains(g Geo) bool {
	return g.Lat >= v.LatMin && g.Lat <= v.LatMax &&
		g.Lon >= v.LonMin && g.Lon <= v.LonMax
}

// Empty reports whether the viewport cannot contain any point.
func (v Viewport) Empty() bool {
	return v.LatMin > v.LatMax || v.LonMin > v.LonMax
}

// CursorHit identifies the station under the cursor.
type CursorHit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
