// Package config provides configuration models and helpers for date
// standardization pipelines.
//
// This file adds a validator for Pipeline values. Structural rules live in
// struct tags checked by go-playground/validator; semantic rules (patterns,
// zones, schemas) are checked by hand. Both are reported as a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"datestd/internal/datefmt"
	"datestd/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "journal.kind",
// "standardize.invalid_dates.bad_date"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	vOnce  sync.Once
	vInst  *validator.Validate
	vTrans ut.Translator
)

func structValidator() (*validator.Validate, ut.Translator) {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		// report json names so paths match the pipeline file
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		vInst, vTrans = v, trans
	})
	return vInst, vTrans
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline. Callers may decide whether to treat warnings as fatal.
//
// Example:
//
//	p, err := config.Load(path)
//	if err != nil { ... }
//	p.Normalize()
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	issues = append(issues, validateStruct(p)...)
	issues = append(issues, validateStandardize(p.Standardize)...)
	issues = append(issues, validateJournal(p.Journal)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

// validateStruct runs the struct-tag rules.
func validateStruct(p Pipeline) []Issue {
	v, trans := structValidator()
	err := v.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Severity: SeverityError, Path: "pipeline", Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     strings.TrimPrefix(fe.Namespace(), "Pipeline."),
			Message:  fe.Translate(trans),
		})
	}
	return issues
}

// validateStandardize checks flow format, date patterns, timezone and schema.
func validateStandardize(s Standardize) []Issue {
	var issues []Issue

	format := strings.ToUpper(strings.TrimSpace(s.FlowFormat))
	switch format {
	case "", "JSON", "AVRO":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "standardize.flow_format",
			Message:  fmt.Sprintf("unknown flow format %q; want JSON or AVRO", s.FlowFormat),
		})
	}

	spec := strings.TrimSpace(string(s.InvalidDates))
	if spec == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "standardize.invalid_dates",
			Message:  "no date fields configured; every input will be bypassed",
		})
	} else {
		issues = append(issues, validateDateSpec(spec)...)

		if strings.TrimSpace(s.Timezone) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "standardize.timezone",
				Message:  "timezone is required when date fields are configured",
			})
		}
	}
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		if _, err := datefmt.ResolveZone(tz); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "standardize.timezone",
				Message:  err.Error(),
			})
		}
	}

	if s.AvroSchema != "" {
		if format != "AVRO" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "standardize.avro_schema",
				Message:  "avro_schema is ignored unless flow_format is AVRO",
			})
		}
		if _, err := schema.Parse(s.AvroSchema); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "standardize.avro_schema",
				Message:  err.Error(),
			})
		}
	}
	return issues
}

func validateDateSpec(spec string) []Issue {
	var fields map[string]any
	if err := json.Unmarshal([]byte(spec), &fields); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "standardize.invalid_dates",
			Message:  fmt.Sprintf("must be a JSON object of field name to date pattern: %v", err),
		}}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var issues []Issue
	for _, name := range names {
		path := "standardize.invalid_dates." + name
		pattern, ok := fields[name].(string)
		if !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "pattern must be a string",
			})
			continue
		}
		if _, err := datefmt.Compile(pattern); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  err.Error(),
			})
		}
		if strings.HasSuffix(name, schema.SiblingSuffix) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("field name ends with %q; its sibling will be %q", schema.SiblingSuffix, schema.SiblingName(name)),
			})
		}
	}
	return issues
}

// validateJournal checks journal settings that tags cannot express.
func validateJournal(j Journal) []Issue {
	if !j.Enabled() {
		return nil
	}
	var issues []Issue
	if strings.TrimSpace(j.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "journal.db.dsn",
			Message:  fmt.Sprintf("journal kind %q requires a dsn", j.Kind),
		})
	}
	if strings.Count(j.DB.Table, ".") > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "journal.db.table",
			Message:  "table must be name or schema.name",
		})
	}
	if !j.DB.AutoCreateTable {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "journal.db.auto_create_table",
			Message:  "auto_create_table is false; the journal table must already exist",
		})
	}
	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.Workers > 0 && r.ChannelBuffer > 0 && r.ChannelBuffer < r.Workers {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer is smaller than workers; workers may idle",
		})
	}
	return issues
}
