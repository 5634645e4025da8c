// Command validate checks saved NDBC feed files (for example the mirror
// directory written by the overlay service) for parse integrity, position
// consistency between feeds, and spatial index agreement.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -directory data/mirror/station_table.txt \
//	  -latest-obs data/mirror/latest_obs.txt \
//	  -realtime data/realtime/41001.txt
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/store"
)

// maxPositionDrift is how far, in degrees, a station may sit from its
// directory position in the latest observations report. Drifting buoys move.
const maxPositionDrift = 0.5

// viewportSamples is the number of random viewports compared in the spatial phase.
const viewportSamples = 500

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type realtimeFiles []string

func (r *realtimeFiles) String() string     { return strings.Join(*r, ",") }
func (r *realtimeFiles) Set(v string) error { *r = append(*r, v); return nil }

func main() {
	directory := flag.String("directory", "", "path to a station_table.txt file")
	latestObs := flag.String("latest-obs", "", "path to a latest_obs.txt file")
	var realtime realtimeFiles
	flag.Var(&realtime, "realtime", "path to a realtime2 {id}.txt file (repeatable)")
	flag.Parse()

	if *directory == "" && *latestObs == "" && len(realtime) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*directory, *latestObs, realtime); code != 0 {
		os.Exit(code)
	}
}

func run(directoryPath, latestObsPath string, realtimePaths []string) int {
	fmt.Println("=== NDBC Feed Validation ===")
	fmt.Println()

	var (
		phases    []*phase
		directory []domain.StationRecord
		latest    []domain.StationRecord
	)

	if directoryPath != "" {
		lines, err := loadLines(directoryPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load station table: %v\n", err)
			return 1
		}
		res := domain.ParseDirectory(lines)
		directory = res.Stations
		phases = append(phases, validateDirectory(res))
	}

	if latestObsPath != "" {
		lines, err := loadLines(latestObsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load latest observations: %v\n", err)
			return 1
		}
		res := domain.ParseLatestObservations(lines)
		latest = res.Stations
		phases = append(phases, validateLatestObs(res))
	}

	if directory != nil && latest != nil {
		phases = append(phases, validatePositionConsistency(directory, latest))
	}

	for _, stations := range [][]domain.StationRecord{directory, latest} {
		if len(stations) > 0 {
			phases = append(phases, validateSpatialIndex(stations))
		}
	}

	for _, path := range realtimePaths {
		lines, err := loadLines(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load realtime feed: %v\n", err)
			return 1
		}
		id := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		phases = append(phases, validateRealtime(id, domain.ParseRealtimeHistory(lines, id, 0)))
	}

	return report(phases, len(directory), len(latest))
}

func report(phases []*phase, directoryCount, latestCount int) int {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Stations: %d directory, %d latest observations\n", directoryCount, latestCount)

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Printf("  note: %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return domain.SplitLines(string(data)), nil
}

// validateDirectory fails on structural issues. Unparsable locations are
// expected for some stations and only noted.
func validateDirectory(res domain.ParseResult) *phase {
	p := &phase{name: "Station table parse"}
	unlocated := 0
	for _, issue := range res.Issues {
		if errors.Is(issue.Err, domain.ErrMalformedPosition) {
			unlocated++
			continue
		}
		p.errorf("%v", issue)
	}
	if unlocated > 0 {
		p.notef("%d of %d stations have no parsable position", unlocated, len(res.Stations))
	}
	for _, rec := range res.Stations {
		if rec.Name == "" {
			p.notef("station %s has no name", rec.ID)
		}
	}
	return p
}

func validateLatestObs(res domain.ParseResult) *phase {
	p := &phase{name: "Latest observations parse"}
	for _, issue := range res.Issues {
		p.errorf("%v", issue)
	}
	for _, rec := range res.Stations {
		if rec.Geo == nil {
			p.errorf("station %s: no position", rec.ID)
		}
		if rec.ObservedAt == nil {
			p.errorf("station %s: no observation time", rec.ID)
		}
		if rec.WindDirectionDeg != nil && (*rec.WindDirectionDeg < 0 || *rec.WindDirectionDeg > 360) {
			p.errorf("station %s: wind direction %d out of range", rec.ID, *rec.WindDirectionDeg)
		}
	}
	return p
}

func validatePositionConsistency(directory, latest []domain.StationRecord) *phase {
	p := &phase{name: "Position consistency"}
	byID := make(map[string]domain.StationRecord, len(directory))
	for _, rec := range directory {
		byID[rec.ID] = rec
	}

	missing := 0
	for _, obs := range latest {
		known, ok := byID[obs.ID]
		if !ok {
			missing++
			continue
		}
		if known.Geo == nil || obs.Geo == nil {
			continue
		}
		dLat := math.Abs(known.Geo.Lat - obs.Geo.Lat)
		dLon := math.Abs(known.Geo.Lon - obs.Geo.Lon)
		if dLat > maxPositionDrift || dLon > maxPositionDrift {
			p.errorf("station %s: directory %.3f,%.3f vs report %.3f,%.3f",
				obs.ID, known.Geo.Lat, known.Geo.Lon, obs.Geo.Lat, obs.Geo.Lon)
		}
	}
	if missing > 0 {
		p.notef("%d reporting stations are not in the station table", missing)
	}
	return p
}

// validateSpatialIndex checks that the store's indexed viewport query agrees
// with a linear scan over random viewports.
func validateSpatialIndex(stations []domain.StationRecord) *phase {
	p := &phase{name: fmt.Sprintf("Spatial index agreement (%d stations)", len(stations))}
	st := store.New(clockwork.NewRealClock(), observability.NewMetricsForTesting(), 0)
	st.Replace(stations)

	rng := rand.New(rand.NewPCG(1, uint64(time.Now().UnixNano())))
	for i := 0; i < viewportSamples; i++ {
		lat := rng.Float64()*170 - 85
		lon := rng.Float64()*350 - 175
		vp := domain.Viewport{
			LatMin: lat, LatMax: math.Min(90, lat+rng.Float64()*30),
			LonMin: lon, LonMax: math.Min(180, lon+rng.Float64()*60),
		}
		want := domain.FilterVisible(stations, vp)
		got := st.SetViewport(vp)
		if len(got) != len(want) {
			p.errorf("viewport %+v: index returned %d stations, scan %d", vp, len(got), len(want))
			continue
		}
		for j := range got {
			if got[j].ID != want[j].ID {
				p.errorf("viewport %+v: position %d is %s, scan has %s", vp, j, got[j].ID, want[j].ID)
				break
			}
		}
	}
	return p
}

func validateRealtime(id string, res domain.ParseResult) *phase {
	p := &phase{name: "Realtime feed " + id}
	for _, issue := range res.Issues {
		if errors.Is(issue.Err, domain.ErrEmptyReport) {
			p.notef("station has no realtime observations")
			continue
		}
		p.errorf("%v", issue)
	}

	var prev *time.Time
	for i, rec := range res.Stations {
		if rec.ObservedAt == nil {
			p.errorf("observation %d: no time", i+1)
			continue
		}
		if prev != nil && rec.ObservedAt.After(*prev) {
			p.errorf("observation %d at %s is newer than the one before it", i+1, rec.ObservedAt.Format(time.RFC3339))
		}
		prev = rec.ObservedAt
	}
	if len(res.Stations) > 0 {
		p.notef("%d observations", len(res.Stations))
	}
	return p
}
