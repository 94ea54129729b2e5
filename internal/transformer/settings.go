package transformer

import (
	"strings"

	"datestd/internal/config"
)

// FlowFormat names the container format of a run's input and output.
type FlowFormat string

const (
	FormatJSON FlowFormat = "JSON"
	FormatAvro FlowFormat = "AVRO"
)

// Settings configure one run.
type Settings struct {
	// FlowFormat is JSON (line-delimited) or AVRO (object container file).
	FlowFormat FlowFormat
	// AvroSchema is the record schema to extend. When empty in AVRO mode the
	// schema embedded in the container is used.
	AvroSchema string
	// InvalidDates is a JSON object of field name to source pattern. Empty
	// means the run is bypassed.
	InvalidDates string
	// Timezone the raw dates are expressed in: a short ID ("CST"), a region
	// ID ("America/Chicago") or an offset ("+02:00").
	Timezone string
}

// Option keys read by SettingsFromOptions.
const (
	OptFlowFormat   = "flowFormat"
	OptAvroSchema   = "avroSchema"
	OptInvalidDates = "invalidDates"
	OptTimezone     = "timezone"
)

// SettingsFromOptions builds Settings from a generic options bag. The flow
// format defaults to JSON and is matched case-insensitively.
func SettingsFromOptions(o config.Options) Settings {
	return Settings{
		FlowFormat:   FlowFormat(strings.ToUpper(strings.TrimSpace(o.String(OptFlowFormat, string(FormatJSON))))),
		AvroSchema:   o.String(OptAvroSchema, ""),
		InvalidDates: o.String(OptInvalidDates, ""),
		Timezone:     strings.TrimSpace(o.String(OptTimezone, "")),
	}
}

// Bypass reports whether the run leaves its input untouched.
func (s Settings) Bypass() bool {
	return strings.TrimSpace(s.InvalidDates) == ""
}
