package datefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded IANA database so zone lookups do not depend on the host.
	_ "time/tzdata"
)

// ZoneError reports a timezone identifier that resolves to no zone.
type ZoneError struct {
	Timezone string
	Err      error
}

func (e *ZoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("datefmt: unknown timezone %q: %v", e.Timezone, e.Err)
	}
	return fmt.Sprintf("datefmt: unknown timezone %q", e.Timezone)
}

func (e *ZoneError) Unwrap() error { return e.Err }

// shortIDs is the legacy three-letter zone table producers still send.
// EST, MST and HST are fixed offsets; the rest alias a region.
var shortIDs = map[string]string{
	"ACT": "Australia/Darwin",
	"AET": "Australia/Sydney",
	"AGT": "America/Argentina/Buenos_Aires",
	"ART": "Africa/Cairo",
	"AST": "America/Anchorage",
	"BET": "America/Sao_Paulo",
	"BST": "Asia/Dhaka",
	"CAT": "Africa/Harare",
	"CNT": "America/St_Johns",
	"CST": "America/Chicago",
	"CTT": "Asia/Shanghai",
	"EAT": "Africa/Addis_Ababa",
	"ECT": "Europe/Paris",
	"IET": "America/Indiana/Indianapolis",
	"IST": "Asia/Kolkata",
	"JST": "Asia/Tokyo",
	"MIT": "Pacific/Apia",
	"NET": "Asia/Yerevan",
	"NST": "Pacific/Auckland",
	"PLT": "Asia/Karachi",
	"PNT": "America/Phoenix",
	"PRT": "America/Puerto_Rico",
	"PST": "America/Los_Angeles",
	"SST": "Pacific/Guadalcanal",
	"VST": "Asia/Ho_Chi_Minh",
	"EST": "-05:00",
	"MST": "-07:00",
	"HST": "-10:00",
}

// ResolveZone resolves a timezone identifier. Short IDs are tried first,
// then region IDs ("America/Chicago"), "Z", and offsets with an optional
// UTC/GMT/UT prefix ("+02:00", "UTC-6").
func ResolveZone(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ZoneError{Timezone: id, Err: fmt.Errorf("empty identifier")}
	}
	if alias, ok := shortIDs[id]; ok {
		return resolveZoneID(alias, id)
	}
	return resolveZoneID(id, id)
}

func resolveZoneID(id, orig string) (*time.Location, error) {
	if id == "Z" {
		return time.UTC, nil
	}
	if loc, ok := parseOffsetZone(id); ok {
		return loc, nil
	}
	// LoadLocation treats "" and "Local" specially; neither is a zone ID here.
	if id == "Local" {
		return nil, &ZoneError{Timezone: orig}
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, &ZoneError{Timezone: orig, Err: err}
	}
	return loc, nil
}

// parseOffsetZone handles "+hh", "+hh:mm", "+hhmm" and the same forms behind
// a UTC, GMT or UT prefix.
func parseOffsetZone(id string) (*time.Location, bool) {
	rest := id
	prefix := ""
	for _, p := range []string{"UTC", "GMT", "UT"} {
		if strings.HasPrefix(rest, p) {
			prefix = p
			rest = rest[len(p):]
			break
		}
	}
	if rest == "" || (rest[0] != '+' && rest[0] != '-') {
		return nil, false
	}

	sign := 1
	if rest[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(rest[1:], ":", "")

	var hh, mm int
	var err error
	switch len(body) {
	case 1, 2:
		hh, err = strconv.Atoi(body)
	case 4:
		hh, err = strconv.Atoi(body[:2])
		if err == nil {
			mm, err = strconv.Atoi(body[2:])
		}
	default:
		return nil, false
	}
	if err != nil || hh > 18 || mm > 59 {
		return nil, false
	}

	secs := sign * (hh*3600 + mm*60)
	name := id
	if prefix == "" && secs == 0 {
		name = "UTC"
	}
	return time.FixedZone(name, secs), true
}
