package datefmt

import "testing"

const wallLayout = "2006-01-02 15:04:05.000000000"

func TestCompile_Layouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		raw     string
		want    string
		hasTime bool
	}{
		{"MM/dd/yy", "01/15/24", "2024-01-15 00:00:00.000000000", false},
		{"M/d/yyyy", "3/5/2024", "2024-03-05 00:00:00.000000000", false},
		{"yyyy-MM-dd HH:mm:ss.SSS", "2024-03-05 10:11:12.345", "2024-03-05 10:11:12.345000000", true},
		{"dd.MM.yyyy", "05.03.2024", "2024-03-05 00:00:00.000000000", false},
		{"dd MMMM yyyy", "05 March 2024", "2024-03-05 00:00:00.000000000", false},
		{"EEEE, MMM d yyyy", "Tuesday, Mar 5 2024", "2024-03-05 00:00:00.000000000", false},
		{"yyyy-MM-dd hh:mm a", "2024-03-05 12:15 AM", "2024-03-05 00:15:00.000000000", true},
		{"yyyy-MM-dd'T'HH:mm", "2024-03-05T07:08", "2024-03-05 07:08:00.000000000", true},
		{"yyyy-DDD", "2024-065", "2024-03-05 00:00:00.000000000", false},
		{"''yy''", "'24'", "", false},
		{"MM/dd/yyyy kk", "03/05/2024 24", "2024-03-05 00:00:00.000000000", true},
		{"MM/dd/yyyy kk:mm", "03/05/2024 13:30", "2024-03-05 13:30:00.000000000", true},
		{"MM/dd/yyyy K a", "03/05/2024 11 PM", "2024-03-05 23:00:00.000000000", true},
		{"MM/dd/yyyy K a", "03/05/2024 0 AM", "2024-03-05 00:00:00.000000000", true},
		{"yyyyMMddHHmmssSSS", "20240305101112345", "2024-03-05 10:11:12.345000000", true},
		{"yyyyMMddHHmmss", "20240305101112", "2024-03-05 10:11:12.000000000", true},
		{"yyyy-MM-dd HH:mm:ss.n", "2024-03-05 10:11:12.5000", "2024-03-05 10:11:12.000005000", true},
		{"yyyy-MM-dd HH:mm:ss.S", "2024-03-05 10:11:12.5", "2024-03-05 10:11:12.500000000", true},
		{"yyyy-MM-dd HH", "2024-03-05 07", "2024-03-05 07:00:00.000000000", true},
		{"yyyy-MM-dd HH:mm", "2024-03-05 24:00", "2024-03-06 00:00:00.000000000", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.pattern+"/"+tc.raw, func(t *testing.T) {
			t.Parallel()
			p, err := Compile(tc.pattern)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tc.pattern, err)
			}
			if p.HasTime() != tc.hasTime {
				t.Fatalf("Compile(%q).HasTime() = %v; want %v", tc.pattern, p.HasTime(), tc.hasTime)
			}
			got, err := p.ParseLocal(tc.raw)
			if tc.want == "" {
				// no month or day to resolve
				if err == nil {
					t.Fatalf("ParseLocal(%q) = %v; want error", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLocal(%q) error: %v", tc.raw, err)
			}
			if s := got.Format(wallLayout); s != tc.want {
				t.Fatalf("ParseLocal(%q) = %s; want %s", tc.raw, s, tc.want)
			}
		})
	}
}

func TestCompile_Rejects(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{
		"",
		"yyyy-MM-dd VV",
		"yyyy-MM-dd Z",
		"'unterminated",
		"MMMMM",
		"yyyy G",
		"yyyy-MM-dd[ HH]",
		"SSSSSSSSSS",
		"ddd",
		"aa",
		"yyyy-MM-dd #",
	} {
		pattern := pattern
		t.Run(pattern, func(t *testing.T) {
			t.Parallel()
			if _, err := Compile(pattern); err == nil {
				t.Fatalf("Compile(%q) returned nil error", pattern)
			}
		})
	}
}

/*
TestParseLocal_Resolution covers how parsed fields become a wall clock:
the time of day is used when the fields determine an hour, otherwise the
value is pinned to the start of its day.
*/
func TestParseLocal_Resolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		raw     string
		want    string
	}{
		{"date_only_pattern", "MM/dd/yyyy", "01/15/2024", "2024-01-15 00:00:00.000000000"},
		{"twelve_hour_without_marker", "yyyy-MM-dd hh:mm", "2024-03-05 03:15", "2024-03-05 00:00:00.000000000"},
		{"minutes_without_hour", "yyyy-MM-dd mm", "2024-03-05 15", "2024-03-05 00:00:00.000000000"},
		{"seconds_without_minutes", "yyyy-MM-dd HH ss", "2024-03-05 10 15", "2024-03-05 00:00:00.000000000"},
		{"day_past_month_end", "MM/dd/yyyy", "02/30/2023", "2023-02-28 00:00:00.000000000"},
		{"day_past_month_end_leap", "MM/dd/yy", "02/31/24", "2024-02-29 00:00:00.000000000"},
		{"april_31", "yyyy-MM-dd", "2024-04-31", "2024-04-30 00:00:00.000000000"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := Compile(tc.pattern)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tc.pattern, err)
			}
			got, err := p.ParseLocal(tc.raw)
			if err != nil {
				t.Fatalf("ParseLocal(%q): %v", tc.raw, err)
			}
			if s := got.Format(wallLayout); s != tc.want {
				t.Fatalf("ParseLocal(%q) = %s; want %s", tc.raw, s, tc.want)
			}
		})
	}
}

func TestParseLocal_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		raw     string
	}{
		{"wrong_weekday", "EEE, dd MMM yyyy", "Mon, 05 Mar 2024"},
		{"month_out_of_range", "MM/dd/yyyy", "13/01/2024"},
		{"day_out_of_range", "MM/dd/yyyy", "01/32/2024"},
		{"day_of_year_not_leap", "yyyy-DDD", "2023-366"},
		{"fixed_width_hour", "yyyy-MM-dd HH:mm", "2024-03-05 3:15"},
		{"hour_out_of_range", "yyyy-MM-dd HH:mm", "2024-03-05 25:00"},
		{"twenty_four_past_midnight", "yyyy-MM-dd HH:mm", "2024-03-05 24:30"},
		{"clock_hour_zero", "MM/dd/yyyy kk", "03/05/2024 00"},
		{"trailing_text", "yyyy-MM-dd", "2024-03-05x"},
		{"missing_time_text", "MM/dd/yyyy HH:mm", "01/15/2024"},
		{"lowercase_marker", "yyyy-MM-dd hh:mm a", "2024-03-05 03:15 pm"},
		{"conflicting_hours", "yyyy-MM-dd HH hh a", "2024-03-05 10 03 PM"},
		{"no_year", "MM/dd", "03/05"},
		{"short_fraction", "yyyyMMddHHmmssSSS", "2024030510111234"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := Compile(tc.pattern)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tc.pattern, err)
			}
			if got, err := p.ParseLocal(tc.raw); err == nil {
				t.Fatalf("ParseLocal(%q) = %s; want error", tc.raw, got.Format(wallLayout))
			}
		})
	}
}
