package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNWSBase = "https://api.weather.gov"

func readJSON(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestForecastPointURL(t *testing.T) {
	assert.Equal(t, "https://api.weather.gov/points/47.606210,-122.332070", ForecastPointURL(testNWSBase, 47.60621, -122.33207))
	assert.Equal(t, "https://api.weather.gov/points/5.500000,10.250000", ForecastPointURL(testNWSBase+"/", 5.5, 10.25))
}

func TestAlertsURL(t *testing.T) {
	assert.Equal(t, "https://api.weather.gov/alerts/active?point=47.6062,-122.3321", AlertsURL(testNWSBase, 47.60621, -122.33207))
	assert.Equal(t, "https://api.weather.gov/alerts/active?point=05.5000,-07.2500", AlertsURL(testNWSBase, 5.5, -7.25))
}

func TestExtractForecastGridData(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		url, ok, err := ExtractForecastGridData(readJSON(t, "points.json"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://api.weather.gov/gridpoints/SEW/125,68", url)
	})

	t.Run("absent is not an error", func(t *testing.T) {
		_, ok, err := ExtractForecastGridData([]byte(`{"properties":{"cwa":"SEW"}}`))
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = ExtractForecastGridData([]byte(`{"title":"Invalid Parameter","status":400}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, _, err := ExtractForecastGridData([]byte(`{not json`))
		assert.Error(t, err)
	})
}

func TestExtractActiveAlert(t *testing.T) {
	t.Run("first feature", func(t *testing.T) {
		alert, ok, err := ExtractActiveAlert(readJSON(t, "alerts.json"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Small Craft Advisory", alert.Event)
		assert.Contains(t, alert.Headline, "NWS Seattle WA")
		assert.Equal(t, "* WHAT...South winds 15 to 25 kt with gusts up to 30 kt.", alert.Description)
	})

	t.Run("no active alerts", func(t *testing.T) {
		_, ok, err := ExtractActiveAlert([]byte(`{"type":"FeatureCollection","features":[]}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, _, err := ExtractActiveAlert([]byte(`[`))
		assert.Error(t, err)
	})
}

func TestExtractForecastSeries(t *testing.T) {
	series, err := ExtractForecastSeries(readJSON(t, "gridpoint.json"))
	require.NoError(t, err)
	assert.Len(t, series.Temperature, 3)
	assert.Len(t, series.WindDirection, 3)
	assert.Len(t, series.WindSpeed, 3)
	assert.Nil(t, series.Temperature[2].Value)

	_, err = ExtractForecastSeries([]byte(`{"properties":{"windSpeed":{"values":[]}}}`))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestAlignForecast(t *testing.T) {
	series, err := ExtractForecastSeries(readJSON(t, "gridpoint.json"))
	require.NoError(t, err)

	rows := AlignForecast(series)
	require.Len(t, rows, 3, "one row per temperature value")

	first := rows[0]
	assert.Equal(t, "2021-12-05 17:00", first.Label())
	assert.Equal(t, time.Date(2021, 12, 5, 17, 0, 0, 0, time.UTC), *first.Start)
	assert.InDelta(t, 7.2222, *first.Temperature, 1e-3)
	assert.Nil(t, first.WindDirection, "PT3H interval does not match PT1H")
	assert.InDelta(t, 14.816, *first.WindSpeed, 1e-9)

	second := rows[1]
	assert.Equal(t, 180, *second.WindDirection)
	assert.InDelta(t, 16.668, *second.WindSpeed, 1e-9)

	third := rows[2]
	assert.Nil(t, third.Temperature)
	assert.Equal(t, 190, *third.WindDirection)
	assert.Nil(t, third.WindSpeed)
}

func TestAlignForecast_Empty(t *testing.T) {
	rows := AlignForecast(ForecastSeries{WindSpeed: []SeriesValue{{ValidTime: "x", Value: ptr(1.0)}}})
	assert.Empty(t, rows)
}

func TestForecastRow_Label(t *testing.T) {
	assert.Equal(t, "2021-12-05 17:00", ForecastRow{ValidTime: "2021-12-05T17:00:00+00:00/PT1H"}.Label())
	assert.Equal(t, "short", ForecastRow{ValidTime: "short"}.Label())
}
