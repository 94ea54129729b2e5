package datefmt

import (
	"fmt"
	"time"
)

// OutputLayout is the canonical representation: UTC, millisecond precision,
// no zone suffix.
const OutputLayout = "2006-01-02 15:04:05.000"

// DateError reports a value that could not be standardized. It always names
// the raw value, the pattern and the timezone.
type DateError struct {
	Raw      string
	Pattern  string
	Timezone string
	Err      error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("couldn't convert %q with format %q with timezone %q: %v",
		e.Raw, e.Pattern, e.Timezone, e.Err)
}

func (e *DateError) Unwrap() error { return e.Err }

// Standardize parses raw with pattern as a wall-clock time in timezone and
// returns it as a UTC timestamp formatted with OutputLayout.
func Standardize(raw, pattern, timezone string) (string, error) {
	loc, err := ResolveZone(timezone)
	if err != nil {
		return "", &DateError{Raw: raw, Pattern: pattern, Timezone: timezone, Err: err}
	}
	p, err := Compile(pattern)
	if err != nil {
		return "", &DateError{Raw: raw, Pattern: pattern, Timezone: timezone, Err: err}
	}
	return standardize(raw, p, loc, timezone)
}

func standardize(raw string, p *Pattern, loc *time.Location, timezone string) (string, error) {
	local, err := p.ParseLocal(raw)
	if err != nil {
		return "", &DateError{Raw: raw, Pattern: p.Source(), Timezone: timezone, Err: err}
	}
	return inZone(local, loc).UTC().Format(OutputLayout), nil
}

// inZone attaches loc to the wall clock of local. A wall clock inside a
// spring-forward gap keeps the offset in effect before the transition, which
// moves it later by the length of the gap (02:30 becomes 03:30). In an
// overlap the earlier offset wins.
func inZone(local time.Time, loc *time.Location) time.Time {
	y, m, d := local.Date()
	hh, mm, ss := local.Clock()
	zoned := time.Date(y, m, d, hh, mm, ss, local.Nanosecond(), loc)

	wall := time.Date(y, m, d, hh, mm, ss, local.Nanosecond(), time.UTC)
	_, off := zoned.Zone()
	got := zoned.UTC().Add(time.Duration(off) * time.Second)
	if got.Equal(wall) {
		return zoned
	}

	before := off
	if got.After(wall) {
		start, _ := zoned.ZoneBounds()
		_, before = start.Add(-time.Nanosecond).In(loc).Zone()
	}
	return wall.Add(-time.Duration(before) * time.Second).In(loc)
}

// Normalizer standardizes values for a single run. The zone is resolved once
// and compiled patterns are cached per pattern string. A Normalizer is not
// safe for concurrent use; each run owns its own.
type Normalizer struct {
	timezone string
	loc      *time.Location
	patterns map[string]*Pattern
}

// NewNormalizer resolves timezone and returns a Normalizer bound to it.
func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := ResolveZone(timezone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		timezone: timezone,
		loc:      loc,
		patterns: make(map[string]*Pattern),
	}, nil
}

// Timezone returns the identifier the Normalizer was built with.
func (n *Normalizer) Timezone() string { return n.timezone }

// Prepare compiles pattern ahead of the first value, so bad patterns surface
// as configuration errors before any record is read.
func (n *Normalizer) Prepare(pattern string) error {
	_, err := n.compile(pattern)
	return err
}

// Standardize is the run-scoped equivalent of the package-level Standardize.
func (n *Normalizer) Standardize(raw, pattern string) (string, error) {
	p, err := n.compile(pattern)
	if err != nil {
		return "", &DateError{Raw: raw, Pattern: pattern, Timezone: n.timezone, Err: err}
	}
	return standardize(raw, p, n.loc, n.timezone)
}

func (n *Normalizer) compile(pattern string) (*Pattern, error) {
	if p, ok := n.patterns[pattern]; ok {
		return p, nil
	}
	p, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	n.patterns[pattern] = p
	return p, nil
}
