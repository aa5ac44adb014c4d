package waterml

import "fmt"

// MalformedSeriesError reports a timeSeries element missing a required
// sub-structure. There is no per-series recovery path in the merge order, so
// it is fatal for the whole document.
type MalformedSeriesError struct {
	SeriesName string // timeSeries name attribute, may be empty
	Missing    string // "sourceInfo" or "variable"
}

func (e *MalformedSeriesError) Error() string {
	if e.SeriesName == "" {
		return fmt.Sprintf("malformed series: missing %s", e.Missing)
	}
	return fmt.Sprintf("malformed series %q: missing %s", e.SeriesName, e.Missing)
}

// UnsupportedTimestampFormatError reports an observation timestamp that
// matched none of the accepted layouts while datetime parsing was requested.
type UnsupportedTimestampFormatError struct {
	Raw string
}

func (e *UnsupportedTimestampFormatError) Error() string {
	return fmt.Sprintf("unsupported timestamp format: %q", e.Raw)
}

// InvalidTimezoneError reports a timezone override outside the supported set.
type InvalidTimezoneError struct {
	Zone string
}

func (e *InvalidTimezoneError) Error() string {
	return fmt.Sprintf("invalid timezone override: %q", e.Zone)
}

// MergeInvariantError reports a table join that could not align its expected
// columns. It indicates an extraction or accumulation bug, not bad input.
type MergeInvariantError struct {
	Op  string
	Err error
}

func (e *MergeInvariantError) Error() string {
	return fmt.Sprintf("merge invariant violated during %s: %v", e.Op, e.Err)
}

func (e *MergeInvariantError) Unwrap() error { return e.Err }
