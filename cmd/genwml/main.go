// Command genwml generates synthetic WaterML 1.1 documents for local
// development and sink testing. The output parses through the same
// normalization path as real NWIS responses, so generated fixtures can be fed
// to any sink without network access.
//
// Usage:
//
//	go run ./cmd/genwml \
//	  -sites 01491000,01645000 \
//	  -parameters 00060,00010 \
//	  -days 7 \
//	  -out testdata/synthetic_waterml.xml
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

var baseDate = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

// parameterDef describes one synthetic variable.
type parameterDef struct {
	code     string
	name     string
	unit     string
	baseline float64
	spread   float64
}

var knownParameters = map[string]parameterDef{
	"00060": {code: "00060", name: "Streamflow, ft&#179;/s", unit: "ft3/s", baseline: 120, spread: 40},
	"00010": {code: "00010", name: "Temperature, water, &#176;C", unit: "deg C", baseline: 14, spread: 5},
	"00065": {code: "00065", name: "Gage height, ft", unit: "ft", baseline: 4.2, spread: 1.5},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sites := flag.String("sites", "01491000", "comma-separated site numbers")
	parameters := flag.String("parameters", "00060", "comma-separated parameter codes")
	days := flag.Int("days", 7, "number of daily observations per series")
	seed := flag.Int64("seed", 1, "random seed for reproducible values")
	out := flag.String("out", "", "output path (default stdout)")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be at least 1, got %d", *days)
	}

	rng := rand.New(rand.NewSource(*seed))

	var buf bytes.Buffer
	writeHeader(&buf, *sites, *parameters)
	for _, site := range strings.Split(*sites, ",") {
		for _, pcode := range strings.Split(*parameters, ",") {
			def, ok := knownParameters[strings.TrimSpace(pcode)]
			if !ok {
				return fmt.Errorf("unknown parameter code %q (known: 00060, 00010, 00065)", pcode)
			}
			writeSeries(&buf, rng, strings.TrimSpace(site), def, *days)
		}
	}
	buf.WriteString("</ns1:timeSeriesResponse>\n")

	// Round-trip through the normalizer so a broken generator fails here,
	// not in whatever consumes the fixture later.
	if _, err := waterml.Read(buf.Bytes(), "genwml", waterml.Options{}); err != nil {
		return fmt.Errorf("generated document does not normalize: %w", err)
	}

	if *out == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	return os.WriteFile(*out, buf.Bytes(), 0o644)
}

func writeHeader(buf *bytes.Buffer, sites, parameters string) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<ns1:timeSeriesResponse xmlns:ns1="http://www.cuahsi.org/waterML/1.1/">` + "\n")
	buf.WriteString("  <ns1:queryInfo>\n")
	fmt.Fprintf(buf, "    <ns1:note title=\"requestDT\">%s</ns1:note>\n", baseDate.Format(time.RFC3339))
	fmt.Fprintf(buf, "    <ns1:note title=\"filter:sites\">%s</ns1:note>\n", sites)
	fmt.Fprintf(buf, "    <ns1:note title=\"filter:parameterCds\">%s</ns1:note>\n", parameters)
	buf.WriteString("    <ns1:note title=\"disclaimer\">Synthetic data generated for testing.</ns1:note>\n")
	buf.WriteString("  </ns1:queryInfo>\n")
}

func writeSeries(buf *bytes.Buffer, rng *rand.Rand, site string, def parameterDef, days int) {
	fmt.Fprintf(buf, "  <ns1:timeSeries name=\"USGS:%s:%s:00003\">\n", site, def.code)
	buf.WriteString("    <ns1:sourceInfo>\n")
	fmt.Fprintf(buf, "      <ns1:siteName>Synthetic gage %s</ns1:siteName>\n", site)
	fmt.Fprintf(buf, "      <ns1:siteCode agencyCode=\"USGS\">%s</ns1:siteCode>\n", site)
	buf.WriteString("      <ns1:timeZoneInfo>\n")
	buf.WriteString("        <ns1:defaultTimeZone zoneAbbreviation=\"EST\"/>\n")
	buf.WriteString("      </ns1:timeZoneInfo>\n")
	buf.WriteString("      <ns1:geoLocation>\n")
	buf.WriteString("        <ns1:geogLocation srs=\"EPSG:4326\">\n")
	fmt.Fprintf(buf, "          <ns1:latitude>%.6f</ns1:latitude>\n", 38.0+rng.Float64()*4)
	fmt.Fprintf(buf, "          <ns1:longitude>%.6f</ns1:longitude>\n", -77.0+rng.Float64()*3)
	buf.WriteString("        </ns1:geogLocation>\n")
	buf.WriteString("      </ns1:geoLocation>\n")
	buf.WriteString("    </ns1:sourceInfo>\n")
	buf.WriteString("    <ns1:variable>\n")
	fmt.Fprintf(buf, "      <ns1:variableCode>%s</ns1:variableCode>\n", def.code)
	fmt.Fprintf(buf, "      <ns1:variableName>%s</ns1:variableName>\n", def.name)
	fmt.Fprintf(buf, "      <ns1:unit><ns1:unitCode>%s</ns1:unitCode></ns1:unit>\n", def.unit)
	buf.WriteString("      <ns1:options>\n")
	buf.WriteString("        <ns1:option name=\"Statistic\" optionCode=\"00003\">Mean</ns1:option>\n")
	buf.WriteString("      </ns1:options>\n")
	buf.WriteString("      <ns1:noDataValue>-999999</ns1:noDataValue>\n")
	buf.WriteString("    </ns1:variable>\n")
	buf.WriteString("    <ns1:values>\n")
	for d := 0; d < days; d++ {
		ts := baseDate.AddDate(0, 0, d).Format("2006-01-02T15:04:05")
		value := def.baseline + (rng.Float64()*2-1)*def.spread
		qualifier := "A"
		if rng.Float64() < 0.1 {
			qualifier = "P"
		}
		fmt.Fprintf(buf, "      <ns1:value dateTime=\"%s\" qualifiers=\"%s\">%s</ns1:value>\n",
			ts, qualifier, formatValue(value))
	}
	buf.WriteString("    </ns1:values>\n")
	buf.WriteString("  </ns1:timeSeries>\n")
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", math.Round(v*100)/100)
}
