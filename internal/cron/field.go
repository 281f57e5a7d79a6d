package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseError describes a cron sub-expression that could not be resolved.
type ParseError struct {
	Field  string // "minute", "hour", "day", "month", "weekday"
	Token  string // the offending token, e.g. "*/0"
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("cron: %s field: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("cron: %s field: token %q: %s", e.Field, e.Token, e.Reason)
}

// Field is the resolved value set of one cron sub-expression within its
// domain. Values are sorted, unique, and all within [min, max].
type Field struct {
	min, max int
	values   []int
}

// ParseField resolves one textual sub-expression against the domain
// [min, max]. Supported token forms, combinable via comma lists:
//
//	"*"      the full domain
//	"a"      a single value
//	"a-b"    inclusive range; wraps around the domain boundary when a > b
//	"*/n"    every n-th value starting at min
//
// Values outside the domain are rejected rather than clamped.
func ParseField(name, text string, min, max int) (Field, error) {
	f := Field{min: min, max: max}
	if strings.TrimSpace(text) == "" {
		return f, &ParseError{Field: name, Reason: "empty field"}
	}

	seen := make(map[int]struct{})
	add := func(v int) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			f.values = append(f.values, v)
		}
	}

	for _, tok := range strings.Split(text, ",") {
		switch {
		case tok == "*":
			for v := min; v <= max; v++ {
				add(v)
			}

		case strings.HasPrefix(tok, "*/"):
			step, err := strconv.Atoi(tok[len("*/"):])
			if err != nil {
				return Field{}, &ParseError{Field: name, Token: tok, Reason: "step is not an integer"}
			}
			if step <= 0 {
				return Field{}, &ParseError{Field: name, Token: tok, Reason: "step must be positive"}
			}
			for v := min; v <= max; v += step {
				add(v)
			}

		case strings.Contains(tok, "-"):
			lo, hi, err := parseRange(tok)
			if err != nil {
				return Field{}, &ParseError{Field: name, Token: tok, Reason: err.Error()}
			}
			if lo < min || lo > max || hi < min || hi > max {
				return Field{}, &ParseError{
					Field: name, Token: tok,
					Reason: fmt.Sprintf("value outside domain [%d,%d]", min, max),
				}
			}
			if lo <= hi {
				for v := lo; v <= hi; v++ {
					add(v)
				}
			} else {
				// Wraparound range, e.g. hours "22-3".
				for v := lo; v <= max; v++ {
					add(v)
				}
				for v := min; v <= hi; v++ {
					add(v)
				}
			}

		default:
			v, err := strconv.Atoi(tok)
			if err != nil {
				return Field{}, &ParseError{Field: name, Token: tok, Reason: "not an integer"}
			}
			if v < min || v > max {
				return Field{}, &ParseError{
					Field: name, Token: tok,
					Reason: fmt.Sprintf("value outside domain [%d,%d]", min, max),
				}
			}
			add(v)
		}
	}

	sort.Ints(f.values)
	return f, nil
}

func parseRange(tok string) (lo, hi int, err error) {
	parts := strings.SplitN(tok, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, 0, fmt.Errorf("malformed range")
	}
	lo, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("range start is not an integer")
	}
	hi, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("range end is not an integer")
	}
	return lo, hi, nil
}

// Values returns a copy of the resolved value set.
func (f Field) Values() []int {
	out := make([]int, len(f.values))
	copy(out, f.values)
	return out
}

// Contains reports whether v is in the resolved set.
func (f Field) Contains(v int) bool {
	i := sort.SearchInts(f.values, v)
	return i < len(f.values) && f.values[i] == v
}

// Full reports whether the field covers its entire domain (unrestricted).
func (f Field) Full() bool {
	return len(f.values) == f.max-f.min+1
}

// First returns the smallest value in the set.
func (f Field) First() int { return f.values[0] }

// NextAfter returns the smallest value strictly greater than v, if any.
func (f Field) NextAfter(v int) (int, bool) {
	i := sort.SearchInts(f.values, v+1)
	if i < len(f.values) {
		return f.values[i], true
	}
	return 0, false
}
