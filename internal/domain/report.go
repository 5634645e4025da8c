package domain

import (
	"sort"
	"strings"
	"time"
)

// NDBC feed names, used in logs and metric labels.
const (
	FeedDirectory = "directory"
	FeedLatestObs = "latest_obs"
	FeedRealtime  = "realtime"
)

// headerLines is the number of leading header lines in every NDBC text feed.
const headerLines = 2

// directoryFields is the minimum field count for a station table line
// (field 6 holds the location).
const directoryFields = 7

// SplitLines splits a downloaded feed into lines. CR characters and blank lines
// are dropped.
func SplitLines(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r", ""), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// ParseDirectory parses the pipe-delimited station table. The first two lines
// are headers. Short lines and duplicate ids are skipped; stations whose
// location cannot be parsed are kept without a position.
func ParseDirectory(lines []string) ParseResult {
	var res ParseResult
	if len(lines) <= headerLines {
		res.addIssue(0, ErrEmptyReport, "station table has no data lines")
		return res
	}

	seen := make(map[string]bool, len(lines))
	for n := headerLines; n < len(lines); n++ {
		lineNo := n + 1
		fields := strings.Split(lines[n], "|")
		if len(fields) < directoryFields {
			res.addIssue(lineNo, ErrShortLine, "%d fields, want at least %d", len(fields), directoryFields)
			continue
		}

		id := strings.TrimSpace(fields[0])
		if id == "" {
			res.addIssue(lineNo, ErrShortLine, "empty station id")
			continue
		}
		if seen[id] {
			res.addIssue(lineNo, ErrDuplicateStation, "station %s", id)
			continue
		}
		seen[id] = true

		rec := StationRecord{ID: id, Name: strings.TrimSpace(fields[4])}
		if g, err := ParsePosition(fields[6]); err != nil {
			res.Issues = append(res.Issues, ParseIssue{Line: lineNo, Err: ErrMalformedPosition, Detail: err.Error()})
		} else {
			rec.Geo = &g
		}
		res.Stations = append(res.Stations, rec)
	}
	return res
}

// ParseRealtime parses a single-station realtime feed and returns at most one
// record: the most recent observation (first data line). A feed without data
// lines yields no station and an ErrEmptyReport issue.
func ParseRealtime(lines []string, stationID string) ParseResult {
	return ParseRealtimeHistory(lines, stationID, 1)
}

// ParseRealtimeHistory parses up to limit observations from a realtime feed,
// newest first. A limit of zero or less parses every data line.
func ParseRealtimeHistory(lines []string, stationID string, limit int) ParseResult {
	var res ParseResult
	if len(lines) <= headerLines {
		res.addIssue(0, ErrEmptyReport, "no realtime observations for station %s", stationID)
		return res
	}

	for n := headerLines; n < len(lines); n++ {
		if limit > 0 && len(res.Stations) >= limit {
			break
		}
		lineNo := n + 1
		tokens := Tokenize(lines[n])

		b := recordBuilder{rec: StationRecord{ID: stationID}}
		realtimeFields.apply(&b, tokens)
		if len(tokens) < realtimeFields.width() {
			res.addIssue(lineNo, ErrShortLine, "%d tokens, want %d", len(tokens), realtimeFields.width())
		}
		res.Stations = append(res.Stations, b.build())
	}
	return res
}

// ParseLatestObservations parses the multi-station scheduled report. Exactly one
// record is produced per data line that carries a station id; lines with fewer
// tokens than the table needs yield partially populated records.
func ParseLatestObservations(lines []string) ParseResult {
	var res ParseResult
	if len(lines) <= headerLines {
		res.addIssue(0, ErrEmptyReport, "latest observations report has no data lines")
		return res
	}

	seen := make(map[string]bool, len(lines))
	for n := headerLines; n < len(lines); n++ {
		lineNo := n + 1
		tokens := Tokenize(lines[n])

		var b recordBuilder
		latestObsFields.apply(&b, tokens)
		if b.rec.ID == "" {
			res.addIssue(lineNo, ErrShortLine, "no station id")
			continue
		}
		if seen[b.rec.ID] {
			res.addIssue(lineNo, ErrDuplicateStation, "station %s", b.rec.ID)
			continue
		}
		seen[b.rec.ID] = true

		if len(tokens) < latestObsFields.width() {
			res.addIssue(lineNo, ErrShortLine, "station %s: %d tokens, want %d", b.rec.ID, len(tokens), latestObsFields.width())
		}
		if b.hasInvalidPosition() {
			res.addIssue(lineNo, ErrMalformedPosition, "station %s: lat=%g lon=%g", b.rec.ID, *b.lat, *b.lon)
		}
		res.Stations = append(res.Stations, b.build())
	}
	return res
}

// Observation time parts, in report column order.
const (
	partYear = iota
	partMonth
	partDay
	partHour
	partMinute
	timeParts
)

// recordBuilder accumulates token values for one line before they are
// validated into a StationRecord.
type recordBuilder struct {
	rec      StationRecord
	lat, lon *float64
	when     [timeParts]*int
}

func (b *recordBuilder) hasInvalidPosition() bool {
	return b.lat != nil && b.lon != nil && !(Geo{Lat: *b.lat, Lon: *b.lon}).Valid()
}

func (b *recordBuilder) build() StationRecord {
	rec := b.rec
	if b.lat != nil && b.lon != nil {
		g := Geo{Lat: *b.lat, Lon: *b.lon}
		if g.Valid() {
			rec.Geo = &g
		}
	}
	if t, ok := b.observedAt(); ok {
		rec.ObservedAt = &t
	}
	return rec
}

func (b *recordBuilder) observedAt() (time.Time, bool) {
	var v [timeParts]int
	for i, p := range b.when {
		if p == nil {
			return time.Time{}, false
		}
		v[i] = *p
	}
	year := v[partYear]
	if year < 100 {
		year += 2000
	}
	t := time.Date(year, time.Month(v[partMonth]), v[partDay], v[partHour], v[partMinute], 0, 0, time.UTC)
	// time.Date normalizes out-of-range parts; reject anything it had to adjust.
	if t.Month() != time.Month(v[partMonth]) || t.Day() != v[partDay] ||
		t.Hour() != v[partHour] || t.Minute() != v[partMinute] {
		return time.Time{}, false
	}
	return t, true
}

// fieldSetter stores one token into the builder. Setters are never called for
// Missing tokens.
type fieldSetter func(b *recordBuilder, tok Token)

// fieldTable maps a token index in a report line to the field it populates.
type fieldTable map[int]fieldSetter

func (t fieldTable) apply(b *recordBuilder, tokens []Token) {
	for i, tok := range tokens {
		set, ok := t[i]
		if !ok || tok.Kind == TokenMissing {
			continue
		}
		set(b, tok)
	}
}

// width is the token count needed to populate every field in the table.
func (t fieldTable) width() int {
	idx := make([]int, 0, len(t))
	for i := range t {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	if len(idx) == 0 {
		return 0
	}
	return idx[len(idx)-1] + 1
}

// realtimeFields follows the realtime2 header:
// #YY MM DD hh mm WDIR WSPD GST WVHT DPD APD MWD PRES ATMP ...
var realtimeFields = fieldTable{
	0:  setTimePart(partYear),
	1:  setTimePart(partMonth),
	2:  setTimePart(partDay),
	3:  setTimePart(partHour),
	4:  setTimePart(partMinute),
	5:  setWindDirection,
	6:  setWindSpeed,
	12: setPressure,
	13: setAirTemp,
}

// latestObsFields follows the latest_obs header:
// #STN LAT LON YYYY MM DD hh mm WDIR WSPD GST WVHT DPD APD MWD PRES PTDY ATMP ...
var latestObsFields = fieldTable{
	0:  setID,
	1:  setLatitude,
	2:  setLongitude,
	3:  setTimePart(partYear),
	4:  setTimePart(partMonth),
	5:  setTimePart(partDay),
	6:  setTimePart(partHour),
	7:  setTimePart(partMinute),
	8:  setWindDirection,
	9:  setWindSpeed,
	15: setPressure,
	17: setAirTemp,
}

func setID(b *recordBuilder, tok Token) {
	switch tok.Kind {
	case TokenCode:
		b.rec.ID = tok.Text
	case TokenNumber:
		// Numeric station ids (e.g. 13001) are digit runs; a decimal here means
		// the id column is absent.
		if !strings.ContainsAny(tok.Text, ".-") {
			b.rec.ID = tok.Text
		}
	}
}

func setLatitude(b *recordBuilder, tok Token) {
	if v, ok := tok.Float(); ok {
		b.lat = &v
	}
}

func setLongitude(b *recordBuilder, tok Token) {
	if v, ok := tok.Float(); ok {
		b.lon = &v
	}
}

func setWindDirection(b *recordBuilder, tok Token) {
	if v, ok := tok.Int(); ok {
		b.rec.WindDirectionDeg = &v
	}
}

func setWindSpeed(b *recordBuilder, tok Token) {
	if v, ok := tok.Float(); ok {
		b.rec.WindSpeedMps = &v
	}
}

func setPressure(b *recordBuilder, tok Token) {
	if v, ok := tok.Float(); ok {
		b.rec.PressureHpa = &v
	}
}

func setAirTemp(b *recordBuilder, tok Token) {
	if v, ok := tok.Float(); ok {
		b.rec.AirTempC = &v
	}
}

func setTimePart(part int) fieldSetter {
	return func(b *recordBuilder, tok Token) {
		if v, ok := tok.Int(); ok {
			b.when[part] = &v
		}
	}
}
