// Package datefmt standardizes free-form date strings into a canonical UTC
// timestamp.
//
// Source dates are described with DateTimeFormatter-style patterns such as
// "MM/dd/yy" or "yyyy-MM-dd'T'HH:mm:ss", the notation upstream producers put
// into pipeline configs. Patterns are compiled once into a list of elements
// and reused for every value in a run.
package datefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PatternError reports a pattern that cannot be compiled.
type PatternError struct {
	Pattern string
	Pos     int
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("datefmt: pattern %q at %d: %s", e.Pattern, e.Pos, e.Reason)
}

type field int

const (
	fieldYear field = iota
	fieldMonth
	fieldDay
	fieldDayOfYear
	fieldDayOfWeek
	fieldHourOfDay      // H 0-23
	fieldClockHourOfDay // k 1-24
	fieldHourOfAmPm     // K 0-11
	fieldClockHourOfAmPm
	fieldAmPm
	fieldMinute
	fieldSecond
	fieldNano
	numFields
)

var fieldNames = [numFields]string{
	"year", "month", "day of month", "day of year", "day of week",
	"hour of day", "clock hour of day", "hour of am-pm", "clock hour of am-pm",
	"am-pm", "minute", "second", "nano of second",
}

type elementKind int

const (
	elemLiteral elementKind = iota
	elemNumber
	elemFraction // S: fixed digits scaled to nanoseconds
	elemText
)

type element struct {
	kind     elementKind
	field    field
	lit      string
	min, max int
	reduced  bool     // yy: two digits added to 2000
	names    []string // text values, names[i] has value base+i
	base     int
}

// maxDigits keeps every numeric value inside int64.
const maxDigits = 18

// Pattern is a compiled date pattern.
type Pattern struct {
	source   string
	elems    []element
	reserved []int // digits held back for fixed-width numbers that follow
	hasTime  bool
}

// Source returns the pattern text as written in the config.
func (p *Pattern) Source() string { return p.source }

// HasTime reports whether the pattern carries time-of-day fields.
func (p *Pattern) HasTime() bool { return p.hasTime }

// Compile parses a DateTimeFormatter-style pattern.
//
// Supported letters:
//
//	y u    year (yy = two digits in 2000-2099, otherwise at least n digits)
//	M L    month (M, MM, MMM, MMMM)
//	d      day of month
//	D      day of year (D, DD, DDD)
//	E      day of week (E-EEE short, EEEE full)
//	H      hour 0-23
//	k      hour 1-24
//	h      hour 1-12, needs a
//	K      hour 0-11, needs a
//	m s    minute, second
//	S      fraction of second, exactly n digits
//	n      nano of second
//	a      AM/PM marker
//
// Text in single quotes is literal; '' is a quote. Zone letters are rejected
// because the zone always comes from the run's timezone setting.
func Compile(pattern string) (*Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, &PatternError{Pattern: pattern, Reason: "empty pattern"}
	}

	p := &Pattern{source: pattern}
	fail := func(pos int, format string, a ...any) (*Pattern, error) {
		return nil, &PatternError{Pattern: pattern, Pos: pos, Reason: fmt.Sprintf(format, a...)}
	}
	literal := func(s string) {
		if n := len(p.elems); n > 0 && p.elems[n-1].kind == elemLiteral {
			p.elems[n-1].lit += s
			return
		}
		p.elems = append(p.elems, element{kind: elemLiteral, lit: s})
	}
	number := func(f field, min, max int) {
		p.elems = append(p.elems, element{kind: elemNumber, field: f, min: min, max: max})
	}
	text := func(f field, base int, names []string) {
		p.elems = append(p.elems, element{kind: elemText, field: f, base: base, names: names})
	}

	rs := []rune(pattern)
	for i := 0; i < len(rs); {
		c := rs[i]

		if c == '\'' {
			// '' outside a quoted section is a literal quote.
			if i+1 < len(rs) && rs[i+1] == '\'' {
				literal("'")
				i += 2
				continue
			}
			j := i + 1
			var lit strings.Builder
			closed := false
			for j < len(rs) {
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						lit.WriteRune('\'')
						j += 2
						continue
					}
					closed = true
					break
				}
				lit.WriteRune(rs[j])
				j++
			}
			if !closed {
				return fail(i, "unterminated quote")
			}
			literal(lit.String())
			i = j + 1
			continue
		}

		switch c {
		case '[', ']':
			return fail(i, "optional sections are not supported")
		case '#', '{', '}':
			return fail(i, "reserved character %q", c)
		}

		if !isPatternLetter(c) {
			literal(string(c))
			i++
			continue
		}

		n := 1
		for i+n < len(rs) && rs[i+n] == c {
			n++
		}

		switch c {
		case 'y', 'u':
			switch n {
			case 1:
				number(fieldYear, 1, maxDigits)
			case 2:
				p.elems = append(p.elems, element{kind: elemNumber, field: fieldYear, min: 2, max: 2, reduced: true})
			default:
				if n > maxDigits {
					return fail(i, "too many %q letters", c)
				}
				number(fieldYear, n, maxDigits)
			}
		case 'M', 'L':
			switch n {
			case 1:
				number(fieldMonth, 1, maxDigits)
			case 2:
				number(fieldMonth, 2, 2)
			case 3:
				text(fieldMonth, 1, monthNames(true))
			case 4:
				text(fieldMonth, 1, monthNames(false))
			default:
				return fail(i, "too many %q letters", c)
			}
		case 'd', 'H', 'k', 'h', 'K', 'm', 's':
			f := clockFields[c]
			switch n {
			case 1:
				number(f, 1, maxDigits)
			case 2:
				number(f, 2, 2)
			default:
				return fail(i, "too many %q letters", c)
			}
			if c != 'd' {
				p.hasTime = true
			}
		case 'D':
			switch n {
			case 1:
				number(fieldDayOfYear, 1, maxDigits)
			case 2:
				number(fieldDayOfYear, 2, 3)
			case 3:
				number(fieldDayOfYear, 3, 3)
			default:
				return fail(i, "too many %q letters", c)
			}
		case 'E':
			switch {
			case n <= 3:
				text(fieldDayOfWeek, 0, weekdayNames(true))
			case n == 4:
				text(fieldDayOfWeek, 0, weekdayNames(false))
			default:
				return fail(i, "too many %q letters", c)
			}
		case 'S':
			if n > 9 {
				return fail(i, "fraction wider than nanoseconds")
			}
			p.elems = append(p.elems, element{kind: elemFraction, field: fieldNano, min: n, max: n})
			p.hasTime = true
		case 'n':
			if n > maxDigits {
				return fail(i, "too many %q letters", c)
			}
			number(fieldNano, n, maxDigits)
			p.hasTime = true
		case 'a':
			if n != 1 {
				return fail(i, "too many %q letters", c)
			}
			text(fieldAmPm, 0, []string{"AM", "PM"})
			p.hasTime = true
		case 'z', 'Z', 'V', 'v', 'O', 'X', 'x':
			return fail(i, "zone letter %q; the zone comes from the timezone setting", c)
		default:
			return fail(i, "unsupported pattern letter %q", c)
		}
		i += n
	}

	// A variable-width number leaves room for the fixed-width numbers right
	// after it, so "yyyyMMdd" splits 8 digits as 4+2+2.
	p.reserved = make([]int, len(p.elems))
	for i := range p.elems {
		for j := i + 1; j < len(p.elems); j++ {
			e := p.elems[j]
			if (e.kind != elemNumber && e.kind != elemFraction) || e.min != e.max {
				break
			}
			p.reserved[i] += e.min
		}
	}
	return p, nil
}

var clockFields = map[rune]field{
	'd': fieldDay,
	'H': fieldHourOfDay,
	'k': fieldClockHourOfDay,
	'h': fieldClockHourOfAmPm,
	'K': fieldHourOfAmPm,
	'm': fieldMinute,
	's': fieldSecond,
}

func monthNames(short bool) []string {
	out := make([]string, 12)
	for i := range out {
		name := time.Month(i + 1).String()
		if short {
			name = name[:3]
		}
		out[i] = name
	}
	return out
}

func weekdayNames(short bool) []string {
	out := make([]string, 7)
	for i := range out {
		name := time.Weekday(i).String()
		if short {
			name = name[:3]
		}
		out[i] = name
	}
	return out
}

// errNoTime marks a value whose time of day cannot be resolved from the
// parsed fields, for example "hh" without "a".
var errNoTime = errors.New("time of day is not resolvable")

// ParseLocal parses raw as a wall-clock time with no zone attached.
//
// The text is scanned once. The date-time variant is resolved first; when
// the fields do not determine a time of day, the date-only variant is used
// and the value is pinned to the start of that day. A value whose date cannot
// be resolved fails.
func (p *Pattern) ParseLocal(raw string) (time.Time, error) {
	fs, err := p.scan(raw)
	if err != nil {
		return time.Time{}, err
	}
	date, err := fs.resolveDate()
	if err != nil {
		return time.Time{}, err
	}
	clock, err := fs.resolveTime()
	switch {
	case err == nil:
		return date.Add(clock), nil
	case errors.Is(err, errNoTime):
		return date, nil
	default:
		return time.Time{}, err
	}
}

type fieldSet struct {
	val [numFields]int64
	set [numFields]bool
}

func (fs *fieldSet) put(f field, v int64) error {
	if fs.set[f] && fs.val[f] != v {
		return fmt.Errorf("conflicting %s values %d and %d", fieldNames[f], fs.val[f], v)
	}
	fs.val[f], fs.set[f] = v, true
	return nil
}

func (fs *fieldSet) get(f field) (int64, bool) { return fs.val[f], fs.set[f] }

func (p *Pattern) scan(raw string) (fieldSet, error) {
	var fs fieldSet
	pos := 0
	for i, e := range p.elems {
		rest := raw[pos:]
		switch e.kind {
		case elemLiteral:
			if !strings.HasPrefix(rest, e.lit) {
				return fs, fmt.Errorf("text %q could not be parsed at index %d", raw, pos)
			}
			pos += len(e.lit)

		case elemText:
			matched := false
			for j, name := range e.names {
				if strings.HasPrefix(rest, name) {
					if err := fs.put(e.field, int64(e.base+j)); err != nil {
						return fs, err
					}
					pos += len(name)
					matched = true
					break
				}
			}
			if !matched {
				return fs, fmt.Errorf("text %q could not be parsed at index %d: want %s", raw, pos, fieldNames[e.field])
			}

		case elemNumber, elemFraction:
			digits := 0
			for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
				digits++
			}
			width := e.min
			if e.max > e.min {
				width = min(digits-p.reserved[i], e.max)
			}
			if width < e.min || width > digits {
				return fs, fmt.Errorf("text %q could not be parsed at index %d: want %s", raw, pos, fieldNames[e.field])
			}
			v, err := strconv.ParseInt(rest[:width], 10, 64)
			if err != nil {
				return fs, fmt.Errorf("text %q could not be parsed at index %d: %w", raw, pos, err)
			}
			switch {
			case e.reduced:
				v += 2000
			case e.kind == elemFraction:
				for k := width; k < 9; k++ {
					v *= 10
				}
			}
			if err := fs.put(e.field, v); err != nil {
				return fs, err
			}
			pos += width
		}
	}
	if pos != len(raw) {
		return fs, fmt.Errorf("text %q has unparsed text at index %d", raw, pos)
	}
	return fs, nil
}

func checkRange(f field, v, lo, hi int64) error {
	if v < lo || v > hi {
		return fmt.Errorf("invalid %s %d (valid %d-%d)", fieldNames[f], v, lo, hi)
	}
	return nil
}

// resolveDate builds the date at midnight. A day of month past the end of
// the month moves back to its last day ("02/30" is the 28th or 29th).
func (fs *fieldSet) resolveDate() (time.Time, error) {
	year, ok := fs.get(fieldYear)
	if !ok {
		return time.Time{}, errors.New("unable to obtain a date: no year")
	}
	if err := checkRange(fieldYear, year, 1, 999999999); err != nil {
		return time.Time{}, err
	}
	y := int(year)

	var date time.Time
	month, hasMonth := fs.get(fieldMonth)
	day, hasDay := fs.get(fieldDay)
	doy, hasDOY := fs.get(fieldDayOfYear)
	switch {
	case hasMonth && hasDay:
		if err := checkRange(fieldMonth, month, 1, 12); err != nil {
			return time.Time{}, err
		}
		if err := checkRange(fieldDay, day, 1, 31); err != nil {
			return time.Time{}, err
		}
		last := daysIn(time.Month(month), y)
		date = time.Date(y, time.Month(month), min(int(day), last), 0, 0, 0, 0, time.UTC)
		if hasDOY && int64(date.YearDay()) != doy {
			return time.Time{}, fmt.Errorf("day of year %d conflicts with %s", doy, date.Format("2006-01-02"))
		}
	case hasDOY:
		days := int64(365)
		if daysIn(time.February, y) == 29 {
			days = 366
		}
		if err := checkRange(fieldDayOfYear, doy, 1, days); err != nil {
			return time.Time{}, err
		}
		date = time.Date(y, time.January, int(doy), 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}, errors.New("unable to obtain a date: need month and day, or day of year")
	}

	if wd, ok := fs.get(fieldDayOfWeek); ok && time.Weekday(wd) != date.Weekday() {
		return time.Time{}, fmt.Errorf("%s is a %s, not a %s", date.Format("2006-01-02"), date.Weekday(), time.Weekday(wd))
	}
	return date, nil
}

// resolveTime returns the time of day as an offset from midnight, or
// errNoTime when the fields carry no usable hour.
func (fs *fieldSet) resolveTime() (time.Duration, error) {
	limits := []struct {
		f      field
		lo, hi int64
	}{
		{fieldHourOfDay, 0, 24},
		{fieldClockHourOfDay, 1, 24},
		{fieldHourOfAmPm, 0, 11},
		{fieldClockHourOfAmPm, 1, 12},
		{fieldMinute, 0, 59},
		{fieldSecond, 0, 59},
		{fieldNano, 0, 999999999},
	}
	for _, l := range limits {
		if v, ok := fs.get(l.f); ok {
			if err := checkRange(l.f, v, l.lo, l.hi); err != nil {
				return 0, err
			}
		}
	}

	var hours fieldSet
	if v, ok := fs.get(fieldHourOfDay); ok {
		_ = hours.put(fieldHourOfDay, v)
	}
	if v, ok := fs.get(fieldClockHourOfDay); ok {
		if err := hours.put(fieldHourOfDay, v%24); err != nil {
			return 0, err
		}
	}
	if ampm, ok := fs.get(fieldAmPm); ok {
		if v, ok := fs.get(fieldClockHourOfAmPm); ok {
			if err := hours.put(fieldHourOfDay, v%12+12*ampm); err != nil {
				return 0, err
			}
		}
		if v, ok := fs.get(fieldHourOfAmPm); ok {
			if err := hours.put(fieldHourOfDay, v+12*ampm); err != nil {
				return 0, err
			}
		}
	}
	hod, ok := hours.get(fieldHourOfDay)
	if !ok {
		return 0, errNoTime
	}

	moh, hasMin := fs.get(fieldMinute)
	som, hasSec := fs.get(fieldSecond)
	nos, hasNano := fs.get(fieldNano)
	if (!hasMin && (hasSec || hasNano)) || (hasMin && !hasSec && hasNano) {
		return 0, errNoTime
	}
	if hod == 24 {
		// 24:00 is the midnight that ends the day.
		if moh != 0 || som != 0 || nos != 0 {
			return 0, checkRange(fieldHourOfDay, hod, 0, 23)
		}
	}
	return time.Duration(hod)*time.Hour +
		time.Duration(moh)*time.Minute +
		time.Duration(som)*time.Second +
		time.Duration(nos), nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isPatternLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
