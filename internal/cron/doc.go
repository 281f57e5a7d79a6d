// Package cron parses five-field cron expressions and computes the next
// matching calendar instant.
//
// The field syntax is the classic "minute hour day month weekday" form with
// `*`, bare integers, comma lists, `a-b` ranges, and `*/n` steps. Ranges may
// wrap around the field boundary ("22-3" for hours means 22:00 through 03:59),
// which is why this package exists instead of an off-the-shelf parser: the
// usual implementations reject reversed ranges outright.
//
// Day-of-month and day-of-week follow standard cron OR semantics: when the
// weekday field is restricted, a day matches if either field matches; when it
// is `*`, only day-of-month governs. Weekday 0 is Sunday.
package cron
