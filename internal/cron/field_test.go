package cron

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFieldForms(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		min, max int
		want     []int
	}{
		{name: "star", text: "*", min: 1, max: 5, want: []int{1, 2, 3, 4, 5}},
		{name: "single", text: "7", min: 0, max: 59, want: []int{7}},
		{name: "range", text: "1-5", min: 0, max: 59, want: []int{1, 2, 3, 4, 5}},
		{name: "wraparound hours", text: "22-3", min: 0, max: 23, want: []int{0, 1, 2, 3, 22, 23}},
		{name: "wraparound minutes", text: "58-2", min: 0, max: 59, want: []int{0, 1, 2, 58, 59}},
		{name: "step", text: "*/15", min: 0, max: 59, want: []int{0, 15, 30, 45}},
		{name: "step from one", text: "*/5", min: 1, max: 12, want: []int{1, 6, 11}},
		{name: "list", text: "0,15,30,45", min: 0, max: 59, want: []int{0, 15, 30, 45}},
		{name: "mixed list", text: "1-3,10,*/30", min: 0, max: 59, want: []int{0, 1, 2, 3, 10, 30}},
		{name: "duplicates collapse", text: "1,1,1-2", min: 0, max: 59, want: []int{1, 2}},
		{name: "unsorted list sorts", text: "30,5,10", min: 0, max: 59, want: []int{5, 10, 30}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseField("test", tt.text, tt.min, tt.max)
			if err != nil {
				t.Fatalf("ParseField(%q) error: %v", tt.text, err)
			}
			if diff := cmp.Diff(tt.want, f.Values()); diff != "" {
				t.Fatalf("ParseField(%q) values mismatch (-want +got):\n%s", tt.text, diff)
			}
			for _, v := range f.Values() {
				if v < tt.min || v > tt.max {
					t.Fatalf("value %d outside domain [%d,%d]", v, tt.min, tt.max)
				}
			}
		})
	}
}

func TestParseFieldErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		min, max int
	}{
		{name: "empty", text: "", min: 0, max: 59},
		{name: "not a number", text: "abc", min: 0, max: 59},
		{name: "above domain", text: "60", min: 0, max: 59},
		{name: "below domain", text: "0", min: 1, max: 31},
		{name: "zero step", text: "*/0", min: 0, max: 59},
		{name: "negative step", text: "*/-5", min: 0, max: 59},
		{name: "step not a number", text: "*/x", min: 0, max: 59},
		{name: "open range", text: "5-", min: 0, max: 59},
		{name: "range end out of domain", text: "1-70", min: 0, max: 59},
		{name: "range start out of domain", text: "25-3", min: 0, max: 23},
		{name: "weekday out of domain", text: "7", min: 0, max: 6},
		{name: "garbage in list", text: "1,2,huh", min: 0, max: 59},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseField("test", tt.text, tt.min, tt.max)
			if err == nil {
				t.Fatalf("ParseField(%q) expected error", tt.text)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseField(%q) error type = %T, want *ParseError", tt.text, err)
			}
		})
	}
}

func TestParseExpression(t *testing.T) {
	t.Parallel()

	s, err := Parse("*/15 8-18 * * 1-5")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got := s.Minute.Values(); len(got) != 4 {
		t.Fatalf("minute values = %v, want 4 entries", got)
	}
	if !s.Weekday.Contains(3) || s.Weekday.Contains(0) {
		t.Fatalf("weekday field resolved wrong: %v", s.Weekday.Values())
	}
	if s.Weekday.Full() {
		t.Fatal("restricted weekday field reported as full")
	}
	if !s.Day.Full() {
		t.Fatal("star day field not reported as full")
	}
	if s.String() != "*/15 8-18 * * 1-5" {
		t.Fatalf("String() = %q", s.String())
	}

	if _, err := Parse("* * * *"); err == nil {
		t.Fatal("expected error for 4-field expression")
	}
	if _, err := Parse("61 * * * *"); err == nil {
		t.Fatal("expected error for out-of-domain minute")
	}
}
