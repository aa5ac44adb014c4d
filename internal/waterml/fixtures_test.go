package waterml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// tsFixture renders one ns1:timeSeries element. Zero values fall back to a
// plausible Choptank-River-style series so tests only spell out what they
// assert on.
type tsFixture struct {
	agency   string
	site     string
	siteName string
	tzAbbr   string
	lat, lon string
	props    [][2]string // siteProperty name/value pairs, in order

	param    string
	unit     string
	noData   string
	statCd   string
	statName string
	noStat   bool

	values []string // pre-rendered <ns1:value> elements
}

func value(dateTime, qualifiers, v string) string {
	if qualifiers == "" {
		return fmt.Sprintf(`<ns1:value dateTime=%q>%s</ns1:value>`, dateTime, v)
	}
	return fmt.Sprintf(`<ns1:value qualifiers=%q dateTime=%q>%s</ns1:value>`, qualifiers, dateTime, v)
}

func (f tsFixture) render() string {
	if f.agency == "" {
		f.agency = "USGS"
	}
	if f.site == "" {
		f.site = "01491000"
	}
	if f.siteName == "" {
		f.siteName = "CHOPTANK RIVER NEAR GREENSBORO, MD"
	}
	if f.tzAbbr == "" {
		f.tzAbbr = "EST"
	}
	if f.lat == "" {
		f.lat = "38.99719444"
	}
	if f.lon == "" {
		f.lon = "-75.785835"
	}
	if f.param == "" {
		f.param = "00060"
	}
	if f.unit == "" {
		f.unit = "ft3/s"
	}
	if f.statCd == "" {
		f.statCd = "00003"
	}
	if f.statName == "" {
		f.statName = "Mean"
	}

	var b strings.Builder
	b.WriteString(`<ns1:timeSeries name="USGS:` + f.site + `:` + f.param + `">`)
	b.WriteString(`<ns1:sourceInfo xsi:type="ns1:SiteInfoType">`)
	b.WriteString(`<ns1:siteName>` + f.siteName + `</ns1:siteName>`)
	b.WriteString(`<ns1:siteCode network="NWIS" agencyCode="` + f.agency + `">` + f.site + `</ns1:siteCode>`)
	b.WriteString(`<ns1:timeZoneInfo siteUsesDaylightSavingsTime="true">`)
	b.WriteString(`<ns1:defaultTimeZone zoneOffset="-05:00" zoneAbbreviation="` + f.tzAbbr + `"/>`)
	b.WriteString(`</ns1:timeZoneInfo>`)
	b.WriteString(`<ns1:geoLocation><ns1:geogLocation srs="EPSG:4326">`)
	b.WriteString(`<ns1:latitude>` + f.lat + `</ns1:latitude>`)
	b.WriteString(`<ns1:longitude>` + f.lon + `</ns1:longitude>`)
	b.WriteString(`</ns1:geogLocation></ns1:geoLocation>`)
	for _, p := range f.props {
		b.WriteString(`<ns1:siteProperty name="` + p[0] + `">` + p[1] + `</ns1:siteProperty>`)
	}
	b.WriteString(`</ns1:sourceInfo>`)

	b.WriteString(`<ns1:variable>`)
	b.WriteString(`<ns1:variableCode network="NWIS" vocabulary="NWIS:UnitValues">` + f.param + `</ns1:variableCode>`)
	b.WriteString(`<ns1:variableName>Streamflow, ft&#179;/s</ns1:variableName>`)
	b.WriteString(`<ns1:variableDescription>Discharge, cubic feet per second</ns1:variableDescription>`)
	b.WriteString(`<ns1:valueType>Derived Value</ns1:valueType>`)
	b.WriteString(`<ns1:unit><ns1:unitCode>` + f.unit + `</ns1:unitCode></ns1:unit>`)
	if !f.noStat {
		b.WriteString(`<ns1:options><ns1:option name="Statistic" optionCode="` + f.statCd + `">` + f.statName + `</ns1:option></ns1:options>`)
	}
	if f.noData != "" {
		b.WriteString(`<ns1:noDataValue>` + f.noData + `</ns1:noDataValue>`)
	}
	b.WriteString(`</ns1:variable>`)

	b.WriteString(`<ns1:values>`)
	for _, v := range f.values {
		b.WriteString(v)
	}
	b.WriteString(`</ns1:values>`)
	b.WriteString(`</ns1:timeSeries>`)
	return b.String()
}

func docXML(series ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ns1:timeSeriesResponse xmlns:ns1="http://www.cuahsi.org/waterML/1.1/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	b.WriteString(`<ns1:queryInfo>`)
	b.WriteString(`<ns1:note title="filter:sites">[ALL:01491000]</ns1:note>`)
	b.WriteString(`<ns1:note title="filter:timeRange">[mode=RANGE, modifiedSince=null]</ns1:note>`)
	b.WriteString(`<ns1:note title="disclaimer">Provisional data are subject to revision.</ns1:note>`)
	b.WriteString(`</ns1:queryInfo>`)
	for _, s := range series {
		b.WriteString(s)
	}
	b.WriteString(`</ns1:timeSeriesResponse>`)
	return b.String()
}

func parseFixture(t *testing.T, xml string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(xml))
	require.NoError(t, err)
	return doc
}

func extractFixture(t *testing.T, fx tsFixture, opts Options) SeriesRecord {
	t.Helper()
	doc := parseFixture(t, docXML(fx.render()))
	series := doc.TimeSeries()
	require.Len(t, series, 1)
	rec, err := ExtractSeries(series[0], opts)
	require.NoError(t, err)
	return rec
}
