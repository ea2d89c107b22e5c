package domain

import (
	"strings"
	"time"
)

// stateZones maps two-letter US state codes to the IANA zone used for call
// scheduling. States spanning multiple zones use the zone covering the bulk
// of their population.
var stateZones = map[string]string{
	"AL": "America/Chicago",
	"AK": "America/Anchorage",
	"AZ": "America/Phoenix",
	"AR": "America/Chicago",
	"CA": "America/Los_Angeles",
	"CO": "America/Denver",
	"CT": "America/New_York",
	"DE": "America/New_York",
	"DC": "America/New_York",
	"FL": "America/New_York",
	"GA": "America/New_York",
	"HI": "Pacific/Honolulu",
	"ID": "America/Boise",
	"IL": "America/Chicago",
	"IN": "America/Indiana/Indianapolis",
	"IA": "America/Chicago",
	"KS": "America/Chicago",
	"KY": "America/New_York",
	"LA": "America/Chicago",
	"ME": "America/New_York",
	"MD": "America/New_York",
	"MA": "America/New_York",
	"MI": "America/Detroit",
	"MN": "America/Chicago",
	"MS": "America/Chicago",
	"MO": "America/Chicago",
	"MT": "America/Denver",
	"NE": "America/Chicago",
	"NV": "America/Los_Angeles",
	"NH": "America/New_York",
	"NJ": "America/New_York",
	"NM": "America/Denver",
	"NY": "America/New_York",
	"NC": "America/New_York",
	"ND": "America/Chicago",
	"OH": "America/New_York",
	"OK": "America/Chicago",
	"OR": "America/Los_Angeles",
	"PA": "America/New_York",
	"RI": "America/New_York",
	"SC": "America/New_York",
	"SD": "America/Chicago",
	"TN": "America/Chicago",
	"TX": "America/Chicago",
	"UT": "America/Denver",
	"VT": "America/New_York",
	"VA": "America/New_York",
	"WA": "America/Los_Angeles",
	"WV": "America/New_York",
	"WI": "America/Chicago",
	"WY": "America/Denver",
}

// stateNames maps lowercase full state names to two-letter codes. Inbound
// lead sources are inconsistent about which form they send.
var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "district of columbia": "DC", "florida": "FL",
	"georgia": "GA", "hawaii": "HI", "idaho": "ID", "illinois": "IL",
	"indiana": "IN", "iowa": "IA", "kansas": "KS", "kentucky": "KY",
	"louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT",
	"nebraska": "NE", "nevada": "NV", "new hampshire": "NH",
	"new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

// stateFullNames is the reverse of stateNames, used for vendor dynamic
// variables that want the spoken form.
var stateFullNames = func() map[string]string {
	m := make(map[string]string, len(stateNames))
	for name, code := range stateNames {
		m[code] = titleCase(name)
	}
	return m
}()

func titleCase(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if w == "of" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// NormalizeState reduces a state value (full name or code, any casing) to a
// two-letter code. Unknown input returns the empty string.
func NormalizeState(state string) string {
	trimmed := strings.TrimSpace(state)
	if trimmed == "" {
		return ""
	}

	upper := strings.ToUpper(trimmed)
	if _, ok := stateZones[upper]; ok && len(upper) == 2 {
		return upper
	}

	if code, ok := stateNames[strings.ToLower(trimmed)]; ok {
		return code
	}
	return ""
}

// StateFullName returns the spoken form of a state value, or the input
// unchanged when it cannot be resolved.
func StateFullName(state string) string {
	code := NormalizeState(state)
	if code == "" {
		return strings.TrimSpace(state)
	}
	if name, ok := stateFullNames[code]; ok {
		return name
	}
	return code
}

// ZoneResolver maps lead states to IANA locations.
type ZoneResolver struct {
	fallback *time.Location
}

// NewZoneResolver builds a resolver with the given fallback zone name.
// An unloadable fallback degrades to US Eastern, then UTC.
func NewZoneResolver(fallbackZone string) *ZoneResolver {
	loc, err := time.LoadLocation(fallbackZone)
	if err != nil {
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
	}
	return &ZoneResolver{fallback: loc}
}

// Resolve returns the location for a lead's state. Unknown states and
// unloadable zones resolve to the fallback.
func (r *ZoneResolver) Resolve(state string) *time.Location {
	code := NormalizeState(state)
	if code == "" {
		return r.fallback
	}

	zone, ok := stateZones[code]
	if !ok {
		return r.fallback
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return r.fallback
	}
	return loc
}
