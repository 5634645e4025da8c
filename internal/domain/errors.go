package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPosition marks a station location that could not be parsed.
	ErrMalformedPosition = errors.New("malformed position")

	// ErrShortLine marks a directory or report line with too few fields.
	ErrShortLine = errors.New("short line")

	// ErrEmptyReport marks a report with no data lines after the headers.
	// Stations without realtime capability produce it; it is not a failure.
	ErrEmptyReport = errors.New("empty report")

	// ErrMissingField marks a JSON path absent from an NWS document.
	ErrMissingField = errors.New("missing field")

	// ErrTransportFailure marks a download that did not complete.
	ErrTransportFailure = errors.New("transport failure")

	// ErrDuplicateStation marks a second line for a station id already seen in the same file.
	ErrDuplicateStation = errors.New("duplicate station")
)

// ParseIssue is a non-fatal problem found on one input line.
type ParseIssue struct {
	Line   int // 1-based line number in the input, headers included; 0 for the whole file
	Err    error
	Detail string
}

func (i ParseIssue) Error() string {
	if i.Line == 0 {
		return fmt.Sprintf("%v: %s", i.Err, i.Detail)
	}
	if i.Detail == "" {
		return fmt.Sprintf("line %d: %v", i.Line, i.Err)
	}
	return fmt.Sprintf("line %d: %v: %s", i.Line, i.Err, i.Detail)
}

func (i ParseIssue) Unwrap() error { return i.Err }

// ParseResult holds the records parsed from one feed and the issues met on the way.
type ParseResult struct {
	Stations []StationRecord
	Issues   []ParseIssue
}

// First returns the first parsed station, if any.
func (r ParseResult) First() (StationRecord, bool) {
	if len(r.Stations) == 0 {
		return StationRecord{}, false
	}
	return r.Stations[0], true
}

// IssueCounts tallies issues by sentinel error, for logs and metrics.
func (r ParseResult) IssueCounts() map[error]int {
	counts := make(map[error]int)
	for _, issue := range r.Issues {
		counts[issue.Err]++
	}
	return counts
}

func (r *ParseResult) addIssue(line int, err error, format string, args ...any) {
	r.Issues = append(r.Issues, ParseIssue{Line: line, Err: err, Detail: fmt.Sprintf(format, args...)})
}

// IssueKind returns a short label for a parse error, used as a metric label.
func IssueKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPosition):
		return "malformed_position"
	case errors.Is(err, ErrShortLine):
		return "short_line"
	case errors.Is(err, ErrEmptyReport):
		return "empty_report"
	case errors.Is(err, ErrDuplicateStation):
		return "duplicate_station"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrTransportFailure):
		return "transport_failure"
	default:
		return "other"
	}
}
