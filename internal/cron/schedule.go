package cron

import (
	"strings"
)

// Schedule is a parsed five-field cron expression.
type Schedule struct {
	Minute  Field // [0,59]
	Hour    Field // [0,23]
	Day     Field // [1,31]
	Month   Field // [1,12]
	Weekday Field // [0,6], 0 = Sunday

	expr string
}

// Parse parses a five-field cron expression ("minute hour day month weekday").
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, &ParseError{
			Field:  "expression",
			Token:  expr,
			Reason: "want 5 space-separated fields (minute hour day month weekday)",
		}
	}

	s := &Schedule{expr: expr}
	var err error
	if s.Minute, err = ParseField("minute", parts[0], 0, 59); err != nil {
		return nil, err
	}
	if s.Hour, err = ParseField("hour", parts[1], 0, 23); err != nil {
		return nil, err
	}
	if s.Day, err = ParseField("day", parts[2], 1, 31); err != nil {
		return nil, err
	}
	if s.Month, err = ParseField("month", parts[3], 1, 12); err != nil {
		return nil, err
	}
	if s.Weekday, err = ParseField("weekday", parts[4], 0, 6); err != nil {
		return nil, err
	}
	return s, nil
}

// String returns the original expression text.
func (s *Schedule) String() string { return s.expr }
