package waterml

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wanluwen/dataRetrieval/internal/frame"
)

// Options control how observation timestamps are rendered.
type Options struct {
	// AsDatetime parses timestamps into time.Time values. When false the
	// literal strings are kept and tz_cd carries the site's declared default
	// zone abbreviation instead of a zone name.
	AsDatetime bool

	// TzOverride renders parsed timestamps in the given IANA zone instead of
	// UTC. Display only: the absolute instant encoded by the source's own
	// offset is never moved. Ignored when AsDatetime is false.
	TzOverride string
}

// Observation is one reading from a series, immutable once extracted.
// Timestamp is a time.Time in datetime mode and the verbatim string otherwise.
type Observation struct {
	Value         float64
	Timestamp     any
	Qualifier     string
	TimezoneLabel string
}

// SeriesRecord is the extraction result for one timeSeries element.
type SeriesRecord struct {
	AgencyCd    string
	SiteNo      string
	ParameterCd string
	StatisticCd string

	Observations  []Observation
	HasQualifiers bool

	// Single-row descriptor tables, merged across series by the accumulator.
	Site      frame.Table
	Variable  frame.Table
	Statistic frame.Table
}

// ValueColumn returns the wide-table column name for this series' values:
// "X_<parameterCd>_<statisticCd>", with absent segments omitted.
func (r SeriesRecord) ValueColumn() string {
	parts := []string{"X"}
	if r.ParameterCd != "" {
		parts = append(parts, r.ParameterCd)
	}
	if r.StatisticCd != "" {
		parts = append(parts, r.StatisticCd)
	}
	return strings.Join(parts, "_")
}

// QualifierColumn returns the column name for this series' qualifier codes.
func (r SeriesRecord) QualifierColumn() string {
	return r.ValueColumn() + "_cd"
}

// columnNames is the full set of wide-table columns this series can
// contribute, used to recognize stale placeholder columns before a join.
func (r SeriesRecord) columnNames() []string {
	return []string{r.ValueColumn(), r.QualifierColumn()}
}

// timestampLayouts are the accepted timestamp formats, tried in order. NWIS
// truncates trailing components it has no data for, down to a bare year.
var timestampLayouts = []string{
	"2006",
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05.000-07:00",
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &UnsupportedTimestampFormatError{Raw: raw}
}

// ExtractSeries pulls one SeriesRecord out of a timeSeries element.
func ExtractSeries(series *Node, opts Options) (SeriesRecord, error) {
	if err := validateTimezone(opts.TzOverride); err != nil {
		return SeriesRecord{}, err
	}

	src := series.Child("sourceInfo")
	if src == nil {
		return SeriesRecord{}, &MalformedSeriesError{SeriesName: series.Attr("name"), Missing: "sourceInfo"}
	}
	variable := series.Child("variable")
	if variable == nil {
		return SeriesRecord{}, &MalformedSeriesError{SeriesName: series.Attr("name"), Missing: "variable"}
	}

	rec := SeriesRecord{}
	defaultTz := extractSite(src, &rec)
	noData := extractVariable(variable, &rec)

	zoneLabel, loc, err := resolveZone(opts)
	if err != nil {
		return SeriesRecord{}, err
	}
	if !opts.AsDatetime {
		zoneLabel = defaultTz
	}

	values := series.Child("values")
	if values != nil {
		for _, v := range values.ChildrenNamed("value") {
			obs := Observation{
				Value:         parseReading(v.Text(), noData),
				Qualifier:     v.Attr("qualifiers"),
				TimezoneLabel: zoneLabel,
			}
			if obs.Qualifier != "" {
				rec.HasQualifiers = true
			}
			raw := v.Attr("dateTime")
			if opts.AsDatetime {
				t, err := parseTimestamp(raw)
				if err != nil {
					return SeriesRecord{}, err
				}
				// Display zone only; the instant encoded by the source's
				// offset stays fixed.
				obs.Timestamp = t.In(loc)
			} else {
				obs.Timestamp = raw
			}
			rec.Observations = append(rec.Observations, obs)
		}
	}

	return rec, nil
}

// resolveZone maps the override to its location and label, defaulting to UTC.
func resolveZone(opts Options) (string, *time.Location, error) {
	if !opts.AsDatetime || opts.TzOverride == "" {
		return "UTC", time.UTC, nil
	}
	loc, err := time.LoadLocation(opts.TzOverride)
	if err != nil {
		return "", nil, &InvalidTimezoneError{Zone: opts.TzOverride}
	}
	return opts.TzOverride, loc, nil
}

// parseReading parses a decimal observation value. Unparseable readings and
// values equal to the variable's declared noDataValue degenerate to NaN so a
// single bad reading never aborts a multi-site retrieval.
func parseReading(text string, noData float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return math.NaN()
	}
	if !math.IsNaN(noData) && v == noData {
		return math.NaN()
	}
	return v
}

// extractSite fills the record's identity fields and site descriptor and
// returns the site's declared default zone abbreviation.
func extractSite(src *Node, rec *SeriesRecord) string {
	row := frame.Row{}
	cols := []string{"agency_cd", "site_no", "station_nm", "dec_lat_va", "dec_lon_va", "srs", "tz_cd"}

	if code := src.Child("siteCode"); code != nil {
		rec.SiteNo = code.Text()
		rec.AgencyCd = code.Attr("agencyCode")
		row["site_no"] = rec.SiteNo
		if rec.AgencyCd != "" {
			row["agency_cd"] = rec.AgencyCd
		}
	}
	if name := src.Child("siteName"); name != nil {
		row["station_nm"] = name.Text()
	}

	for _, geog := range src.FindAll("geoLocation", "geogLocation") {
		if srs := geog.Attr("srs"); srs != "" {
			row["srs"] = srs
		}
		if lat := geog.Child("latitude"); lat != nil {
			row["dec_lat_va"] = parseReading(lat.Text(), math.NaN())
		}
		if lon := geog.Child("longitude"); lon != nil {
			row["dec_lon_va"] = parseReading(lon.Text(), math.NaN())
		}
	}

	defaultTz := ""
	for _, tz := range src.FindAll("timeZoneInfo", "defaultTimeZone") {
		defaultTz = tz.Attr("zoneAbbreviation")
	}
	if defaultTz != "" {
		row["tz_cd"] = defaultTz
	}

	// Free-form site properties, keyed by their declared names. The property
	// set varies per site.
	for _, prop := range src.ChildrenNamed("siteProperty") {
		name := prop.Attr("name")
		if name == "" {
			continue
		}
		if _, seen := row[name]; !seen {
			cols = append(cols, name)
		}
		row[name] = prop.Text()
	}

	rec.Site = frame.FromRow(cols, row)
	return defaultTz
}

// extractVariable fills the record's variable and statistic descriptors and
// returns the declared noDataValue sentinel (NaN when absent).
func extractVariable(variable *Node, rec *SeriesRecord) float64 {
	row := frame.Row{}
	var cols []string
	noData := math.NaN()

	put := func(key string, val any) {
		if _, seen := row[key]; !seen {
			cols = append(cols, key)
		}
		row[key] = val
	}

	for i := range variable.Children {
		child := &variable.Children[i]
		switch child.Name() {
		case "variableCode":
			rec.ParameterCd = child.Text()
			put("variableCode", rec.ParameterCd)
		case "unit":
			// Renamed to avoid colliding with unit fields elsewhere.
			put("param_unit", child.FlatText())
		case "noDataValue":
			if v, err := strconv.ParseFloat(child.Text(), 64); err == nil {
				noData = v
				put("noDataValue", v)
			} else {
				put("noDataValue", child.Text())
			}
		case "options":
			put("options", child.FlatText())
			for _, opt := range child.ChildrenNamed("option") {
				if opt.Attr("name") != "Statistic" {
					continue
				}
				rec.StatisticCd = opt.Attr("optionCode")
				rec.Statistic = frame.FromRow(
					[]string{"statisticCd", "statisticName"},
					frame.Row{"statisticCd": rec.StatisticCd, "statisticName": opt.Text()},
				)
			}
		default:
			put(child.Name(), child.FlatText())
		}
	}

	rec.Variable = frame.FromRow(cols, row)
	if rec.Statistic.Len() == 0 {
		// Instantaneous, non-statistical data: keep a structurally valid
		// single-row descriptor with the code missing.
		rec.Statistic = frame.FromRow([]string{"statisticCd", "statisticName"}, frame.Row{})
	}
	return noData
}
