package waterml

// supportedTimezones is the fixed set of IANA zone names accepted as a
// timezone override. It mirrors the zones NWIS itself reports for US sites.
var supportedTimezones = map[string]struct{}{
	"UTC":                 {},
	"America/New_York":    {},
	"America/Chicago":     {},
	"America/Denver":      {},
	"America/Los_Angeles": {},
	"America/Anchorage":   {},
	"America/Honolulu":    {},
	"America/Jamaica":     {},
	"America/Managua":     {},
	"America/Phoenix":     {},
	"America/Metlakatla":  {},
	"America/Puerto_Rico": {},
}

// validateTimezone rejects override values outside the supported set. The
// empty string means "no override" and is always valid.
func validateTimezone(zone string) error {
	if zone == "" {
		return nil
	}
	if _, ok := supportedTimezones[zone]; !ok {
		return &InvalidTimezoneError{Zone: zone}
	}
	return nil
}
