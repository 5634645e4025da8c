package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// positionRe matches the decimal-degree prefix of a station table location,
// e.g. "21.000 N 23.000 W (21&#176;0'0" N 23&#176;0'0" W)" -> 21.000 N, 23.000 W.
var positionRe = regexp.MustCompile(`\b(\d{1,3}(?:\.\d+)?)\s+([NS])\s+(\d{1,3}(?:\.\d+)?)\s+([EW])\b`)

// ParsePosition extracts a signed latitude/longitude from a station location.
// S negates latitude and W negates longitude. Text after the second hemisphere
// letter is ignored. The returned error wraps ErrMalformedPosition.
func ParsePosition(text string) (Geo, error) {
	m := positionRe.FindStringSubmatch(text)
	if m == nil {
		return Geo{}, fmt.Errorf("%w: %q", ErrMalformedPosition, text)
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Geo{}, fmt.Errorf("%w: latitude %q: %v", ErrMalformedPosition, m[1], err)
	}
	lon, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Geo{}, fmt.Errorf("%w: longitude %q: %v", ErrMalformedPosition, m[3], err)
	}

	if m[2] == "S" {
		lat = -lat
	}
	if m[4] == "W" {
		lon = -lon
	}

	g := Geo{Lat: lat, Lon: lon}
	if !g.Valid() {
		return Geo{}, fmt.Errorf("%w: out of range lat=%g lon=%g", ErrMalformedPosition, lat, lon)
	}
	return g, nil
}
