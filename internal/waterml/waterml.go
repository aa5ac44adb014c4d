// Package waterml normalizes USGS WaterML 1.x time-series documents.
//
// A document holds one timeSeries element per site/parameter/statistic
// combination. Each series is extracted independently ([ExtractSeries]) and
// folded sequentially into one wide observation table plus three descriptive
// metadata tables (site, variable, statistic). Series may share sites, share
// parameters, or be entirely disjoint; the fold aligns same-site readings on
// their timestamps so one row carries every parameter observed at that site
// and instant.
package waterml

import (
	"fmt"
	"time"

	"github.com/wanluwen/dataRetrieval/internal/frame"
)

// Result is the finalized output for one document. Document-level metadata
// travels alongside the table, never inside it.
type Result struct {
	// Table is the wide observation table: agency_cd, site_no, datetime,
	// tz_cd, plus one value column (and optionally one qualifier column) per
	// distinct parameter/statistic pair.
	Table frame.Table

	// Source is the location the document was retrieved from.
	Source string

	// Metadata tables, one row per distinct series descriptor. Nil when the
	// document contained no series at all.
	Sites      *frame.Table
	Variables  *frame.Table
	Statistics *frame.Table

	// Disclaimer is the provider's disclaimer note, when present.
	Disclaimer string

	// RetrievedAt is when normalization ran.
	RetrievedAt time.Time

	// SeriesCount is the number of timeSeries elements the document carried.
	SeriesCount int

	// QueryNotes carries the raw queryInfo notes. Populated only for
	// documents with zero series, where no other metadata exists to keep.
	QueryNotes []string
}

// ReadDocument extracts every series in the document and folds them into a
// single Result. The timezone override is validated before any parsing
// begins. Extraction errors are fatal for the whole call: series merge in
// order and there is no per-series recovery path.
func ReadDocument(doc *Document, source string, opts Options) (*Result, error) {
	if err := validateTimezone(opts.TzOverride); err != nil {
		return nil, err
	}

	series := doc.TimeSeries()
	if len(series) == 0 {
		return &Result{
			Table:       frame.New(),
			Source:      source,
			QueryNotes:  doc.QueryNotes(),
			RetrievedAt: clock.Now(),
		}, nil
	}

	var acc accumulator
	for i, s := range series {
		rec, err := ExtractSeries(s, opts)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
		if err := acc.fold(rec); err != nil {
			return nil, fmt.Errorf("series %d: %w", i, err)
		}
	}

	return &Result{
		Table:       acc.wide,
		SeriesCount: len(series),
		Source:      source,
		Sites:       &acc.sites,
		Variables:   &acc.variables,
		Statistics:  &acc.statistics,
		Disclaimer:  doc.Note("disclaimer"),
		RetrievedAt: clock.Now(),
	}, nil
}

// Read parses a raw WaterML payload and normalizes it in one step.
func Read(data []byte, source string, opts Options) (*Result, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return ReadDocument(doc, source, opts)
}
