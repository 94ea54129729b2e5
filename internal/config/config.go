// Package config defines the JSON-serializable configuration model for the
// date standardizer. A pipeline file names the inputs to process, the
// standardization settings, where each outcome is routed and, optionally, a
// database journal that records every run.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the JSON structure of pipeline files.
//  3. Twelve-factor: a handful of runtime knobs can be overridden from the
//     environment without editing the file (see ApplyEnv).
//
// Example (trimmed):
//
//	{
//	  "job":         "orders_dates",
//	  "source":      { "kind": "dir", "path": "in/", "glob": "*.json" },
//	  "standardize": {
//	    "flow_format":   "JSON",
//	    "invalid_dates": { "bad_date": "MM/dd/yy" },
//	    "timezone":      "America/Chicago"
//	  },
//	  "output":  { "success_dir": "out/ok", "failure_dir": "out/failed", "bypass_dir": "out/bypass" },
//	  "journal": { "kind": "sqlite", "db": { "dsn": "file:runs.db", "table": "datestd_runs", "auto_create_table": true } }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the pipeline in logs, metrics and journal rows.
	Job string `json:"job" validate:"required"`

	// Source describes which inputs are processed.
	Source Source `json:"source"`

	// Standardize carries the per-run settings applied to every input.
	Standardize Standardize `json:"standardize"`

	// Output maps each run outcome to a directory.
	Output Output `json:"output"`

	// Journal optionally records one row per run in a database.
	Journal Journal `json:"journal"`

	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies the inputs.
type Source struct {
	// Kind selects how Path is interpreted: "file" (one input), "dir" (every
	// regular file matching Glob) or "list" (a text file of paths, one per
	// line).
	Kind string `json:"kind" validate:"required,oneof=file dir list"`

	// Path is a local filesystem path. Entries of a list may also be http(s)
	// URLs.
	Path string `json:"path" validate:"required"`

	// Glob filters directory entries by base name (dir kind only).
	Glob string `json:"glob,omitempty"`

	// Remote tunes how URL entries are fetched.
	Remote RemoteConfig `json:"remote,omitempty"`
}

// RemoteConfig configures the HTTP client used for URL inputs.
type RemoteConfig struct {
	TimeoutSeconds     int  `json:"timeout_seconds" validate:"gte=0"`
	MaxRetries         int  `json:"max_retries" validate:"gte=0,lte=10"`
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// Standardize holds the standardization settings.
type Standardize struct {
	// FlowFormat is "JSON" or "AVRO" (case-insensitive). Empty means JSON.
	FlowFormat string `json:"flow_format"`

	// AvroSchema is an inline record schema. AvroSchemaPath names a file
	// holding one. At most one may be set; with neither, the schema embedded
	// in each container is used.
	AvroSchema     string `json:"avro_schema,omitempty" validate:"excluded_with=AvroSchemaPath"`
	AvroSchemaPath string `json:"avro_schema_path,omitempty"`

	// InvalidDates maps field names to source date patterns. It may be a
	// JSON object or a string holding one. Empty means every input is
	// bypassed.
	InvalidDates DateSpec `json:"invalid_dates"`

	// Timezone the raw dates are expressed in.
	Timezone string `json:"timezone"`
}

// Options renders the settings as the options bag consumed by the
// transformer. The schema file, if any, must already be resolved.
func (s Standardize) Options() Options {
	return Options{
		"flowFormat":   s.FlowFormat,
		"avroSchema":   s.AvroSchema,
		"invalidDates": string(s.InvalidDates),
		"timezone":     s.Timezone,
	}
}

// ResolveSchema loads AvroSchemaPath into AvroSchema.
func (s *Standardize) ResolveSchema() error {
	if s.AvroSchemaPath == "" {
		return nil
	}
	b, err := os.ReadFile(s.AvroSchemaPath)
	if err != nil {
		return fmt.Errorf("config: read avro schema: %w", err)
	}
	s.AvroSchema = string(b)
	s.AvroSchemaPath = ""
	return nil
}

// DateSpec is the date field mapping as a JSON object string.
type DateSpec string

// UnmarshalJSON accepts either a JSON object or a string containing one.
func (d *DateSpec) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*d = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DateSpec(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*d = DateSpec(buf.String())
	}
	return nil
}

// MarshalJSON writes the mapping back as an object when it is one.
func (d DateSpec) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return []byte(`""`), nil
	}
	if json.Valid([]byte(s)) && s[0] == '{' {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// Output lists the routing directory of each outcome.
type Output struct {
	SuccessDir string `json:"success_dir" validate:"required"`
	FailureDir string `json:"failure_dir" validate:"required"`
	// BypassDir defaults to SuccessDir when empty.
	BypassDir string `json:"bypass_dir,omitempty"`
}

// Journal selects the optional run journal.
type Journal struct {
	// Kind is "", "postgres", "sqlite" or "mssql". Empty disables the journal.
	Kind string `json:"kind" validate:"omitempty,oneof=postgres sqlite mssql"`

	DB DBConfig `json:"db"`
}

// Enabled reports whether runs are journaled.
func (j Journal) Enabled() bool { return strings.TrimSpace(j.Kind) != "" }

// DBConfig configures the journal database.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn" validate:"required_with=Table"`

	// Table is the journal table name, optionally schema-qualified.
	Table string `json:"table"`

	// AutoCreateTable creates the journal table on startup when missing.
	AutoCreateTable bool `json:"auto_create_table"`
}

// RuntimeConfig controls concurrency and batching.
type RuntimeConfig struct {
	// Workers is the number of inputs processed in parallel.
	Workers int `json:"workers" validate:"gte=0,lte=1024"`
	// ChannelBuffer sizes the queue between the lister and the workers.
	ChannelBuffer int `json:"channel_buffer" validate:"gte=0"`
	// BatchSize is the number of journal rows written per batch.
	BatchSize int `json:"batch_size" validate:"gte=0"`
}

// Defaults applied by Normalize.
const (
	DefaultWorkers       = 4
	DefaultChannelBuffer = 64
	DefaultBatchSize     = 100
	DefaultJournalTable  = "datestd_runs"
)

// Normalize fills zero values with defaults.
func (p *Pipeline) Normalize() {
	if p.Runtime.Workers <= 0 {
		p.Runtime.Workers = DefaultWorkers
	}
	if p.Runtime.ChannelBuffer <= 0 {
		p.Runtime.ChannelBuffer = DefaultChannelBuffer
	}
	if p.Runtime.BatchSize <= 0 {
		p.Runtime.BatchSize = DefaultBatchSize
	}
	if p.Output.BypassDir == "" {
		p.Output.BypassDir = p.Output.SuccessDir
	}
	if p.Journal.Enabled() && p.Journal.DB.Table == "" {
		p.Journal.DB.Table = DefaultJournalTable
	}
	if p.Standardize.FlowFormat == "" {
		p.Standardize.FlowFormat = "JSON"
	}
	p.Standardize.FlowFormat = strings.ToUpper(p.Standardize.FlowFormat)
}

// Load decodes a pipeline file. Unknown fields are rejected.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvWorkers = "DATESTD_WORKERS"
	EnvTZ      = "DATESTD_TIMEZONE"
)

// ApplyEnv overrides runtime knobs from the environment. getenv is usually
// os.Getenv; tests pass a map lookup.
func (p *Pipeline) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: %s=%q: want a positive integer", EnvWorkers, v)
		}
		p.Runtime.Workers = n
	}
	if v := strings.TrimSpace(getenv(EnvTZ)); v != "" {
		p.Standardize.Timezone = v
	}
	return nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null options
// object decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
