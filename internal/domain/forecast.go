package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// NoAlertsMessage is shown when the alerts feed has no active features.
const NoAlertsMessage = "No alerts issued by NWS, but the prudent mariner will check other information sources"

// ForecastPointURL builds the NWS points lookup URL for a position,
// e.g. https://api.weather.gov/points/47.606210,-122.332070.
func ForecastPointURL(base string, lat, lon float64) string {
	return fmt.Sprintf("%s/points/%f,%f", strings.TrimRight(base, "/"), lat, lon)
}

// AlertsURL builds the NWS active alerts URL for a position,
// e.g. https://api.weather.gov/alerts/active?point=47.6062,-122.3321.
func AlertsURL(base string, lat, lon float64) string {
	return fmt.Sprintf("%s/alerts/active?point=%07.4f,%08.4f", strings.TrimRight(base, "/"), lat, lon)
}

type pointsResponse struct {
	Properties struct {
		ForecastGridData *string `json:"forecastGridData"`
	} `json:"properties"`
}

// ExtractForecastGridData returns properties.forecastGridData from a points
// document. A missing or empty field reports false; only invalid JSON is an error.
func ExtractForecastGridData(doc []byte) (string, bool, error) {
	var resp pointsResponse
	if err := json.Unmarshal(doc, &resp); err != nil {
		return "", false, fmt.Errorf("decode points response: %w", err)
	}
	if resp.Properties.ForecastGridData == nil || *resp.Properties.ForecastGridData == "" {
		return "", false, nil
	}
	return *resp.Properties.ForecastGridData, true, nil
}

// Alert is the headline of the first active NWS alert for a position.
type Alert struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
}

type alertsResponse struct {
	Features []struct {
		Properties Alert `json:"properties"`
	} `json:"features"`
}

// ExtractActiveAlert returns the first feature of an alerts document. An empty
// or absent features array reports false.
func ExtractActiveAlert(doc []byte) (Alert, bool, error) {
	var resp alertsResponse
	if err := json.Unmarshal(doc, &resp); err != nil {
		return Alert{}, false, fmt.Errorf("decode alerts response: %w", err)
	}
	if len(resp.Features) == 0 {
		return Alert{}, false, nil
	}
	return resp.Features[0].Properties, true, nil
}

// SeriesValue is one point of an NWS gridpoint time series. ValidTime is an
// ISO-8601 interval such as "2021-12-05T17:00:00+00:00/PT1H". Value is nil
// when the service reports null.
type SeriesValue struct {
	ValidTime string   `json:"validTime"`
	Value     *float64 `json:"value"`
}

// ForecastSeries holds the three gridpoint series shown in the forecast table.
// Each series is indexed independently.
type ForecastSeries struct {
	Temperature   []SeriesValue
	WindDirection []SeriesValue
	WindSpeed     []SeriesValue
}

type gridpointResponse struct {
	Properties struct {
		Temperature   *seriesDoc `json:"temperature"`
		WindDirection *seriesDoc `json:"windDirection"`
		WindSpeed     *seriesDoc `json:"windSpeed"`
	} `json:"properties"`
}

type seriesDoc struct {
	Values []SeriesValue `json:"values"`
}

// ExtractForecastSeries reads the temperature, wind direction and wind speed
// series from a gridpoint document. A document without a temperature series
// has nothing to align against and returns an error wrapping ErrMissingField.
func ExtractForecastSeries(doc []byte) (ForecastSeries, error) {
	var resp gridpointResponse
	if err := json.Unmarshal(doc, &resp); err != nil {
		return ForecastSeries{}, fmt.Errorf("decode gridpoint response: %w", err)
	}
	p := resp.Properties
	if p.Temperature == nil {
		return ForecastSeries{}, fmt.Errorf("%w: properties.temperature", ErrMissingField)
	}

	series := ForecastSeries{Temperature: p.Temperature.Values}
	if p.WindDirection != nil {
		series.WindDirection = p.WindDirection.Values
	}
	if p.WindSpeed != nil {
		series.WindSpeed = p.WindSpeed.Values
	}
	return series, nil
}

// ForecastRow is one aligned row of the forecast table.
type ForecastRow struct {
	ValidTime     string     `json:"valid_time"`
	Start         *time.Time `json:"start,omitempty"`
	Temperature   *float64   `json:"temperature,omitempty"`
	WindDirection *int       `json:"wind_direction,omitempty"`
	WindSpeed     *float64   `json:"wind_speed,omitempty"`
}

// Label formats the row's valid time as "YYYY-MM-DD hh:mm".
func (r ForecastRow) Label() string {
	if len(r.ValidTime) < 16 {
		return r.ValidTime
	}
	return r.ValidTime[:10] + " " + r.ValidTime[11:16]
}

// AlignForecast builds one row per temperature value and fills wind direction
// and speed from the entries whose validTime string matches exactly. Wind values
// with no matching temperature row are dropped.
func AlignForecast(series ForecastSeries) []ForecastRow {
	rows := make([]ForecastRow, len(series.Temperature))
	for i, v := range series.Temperature {
		rows[i] = ForecastRow{
			ValidTime:   v.ValidTime,
			Start:       intervalStart(v.ValidTime),
			Temperature: v.Value,
		}
	}

	for _, v := range series.WindDirection {
		for i := range rows {
			if rows[i].ValidTime == v.ValidTime && v.Value != nil {
				deg := int(math.Round(*v.Value))
				rows[i].WindDirection = &deg
			}
		}
	}
	for _, v := range series.WindSpeed {
		for i := range rows {
			if rows[i].ValidTime == v.ValidTime {
				rows[i].WindSpeed = v.Value
			}
		}
	}
	return rows
}

func intervalStart(validTime string) *time.Time {
	start, _, _ := strings.Cut(validTime, "/")
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
