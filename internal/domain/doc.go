// Package domain models National Data Buoy Center (NDBC) station and observation
// data and the National Weather Service (NWS) forecast/alert documents consumed
// by the chart overlay.
//
// # Data Sources
//
// Station directory: https://www.ndbc.noaa.gov/data/stations/station_table.txt
// Scheduled report:  https://www.ndbc.noaa.gov/data/latest_obs/latest_obs.txt
// Realtime feed:     https://www.ndbc.noaa.gov/data/realtime2/<STATION>.txt
// Forecast/alerts:   https://api.weather.gov/points/<lat>,<lon> and /alerts/active
//
// Field layout follows the NDBC web data guide
// (https://www.ndbc.noaa.gov/docs/ndbc_web_data_guide.pdf). None of the text
// feeds carry a schema; the column positions below are contracts of the upstream
// files and live in the field tables in report.go.
//
// # Station Directory
//
// Pipe-delimited, two header lines:
//
//	# STATION_ID | OWNER | TTYPE | HULL | NAME | PAYLOAD | LOCATION | TIMEZONE | FORECAST | NOTE
//	13002|PR|Atlas Buoy||NE Extension||21.000 N 23.000 W (21&#176;0'0" N 23&#176;0'0" W)|| |
//
// Field 0 is the station id, field 4 the name, field 6 the location text. The
// location starts with decimal degrees and hemisphere letters; the parenthesised
// DMS rendering that follows is ignored. See [ParsePosition].
//
// # Observation Reports
//
// Both reports pad columns with spaces so they line up on a text page. Fields
// are recovered with [Tokenize], not by splitting on fixed offsets.
//
// Realtime (one station, newest line first after two headers):
//
//	#YY  MM DD hh mm WDIR WSPD GST  WVHT   DPD   APD MWD   PRES  ATMP  WTMP  DEWP  VIS PTDY  TIDE
//	#yr  mo dy hr mn degT m/s   m/s   m     sec   sec degT  hPa  degC  degC  degC   nmi  hPa    ft
//	2025 04 04 05 00  27  3.7   MM    MM    MM    MM  MM     MM  30.2    MM    MM   MM   MM    MM
//
// Latest observations (one line per station):
//
//	#STN       LAT      LON  YYYY MM DD hh mm WDIR WSPD   GST WVHT  DPD APD MWD   PRES  PTDY  ATMP  WTMP  DEWP  VIS   TIDE
//	#text      deg      deg   yr mo day hr mn degT  m/s   m/s   m   sec sec degT   hPa   hPa  degC  degC  degC  nmi     ft
//	13001    12.000  -23.000 2025 04 07 15 00 356   6.8   8.0   MM  MM   MM  MM 1011.1    MM  23.3  24.0    MM   MM     MM
//
// Unknown values:
//
//	"MM" is the NDBC sentinel for a value that was not measured or not reported.
//	It maps to a nil field on [StationRecord], never to zero.
//
// # Failure Model
//
// Parsers never return errors. Per-line problems are collected as [ParseIssue]
// values on the [ParseResult] so callers can log them; one bad line never
// aborts the rest of a file.
package domain
