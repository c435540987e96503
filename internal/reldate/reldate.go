// Package reldate turns Google-style relative dates ("3 weeks ago") into
// absolute timestamps and two-digit period codes.
//
// A period code's tens digit is the unit class (2 second ... 8 year) and its
// units digit is the quantity clamped to 9. Code 0 means unknown and code 1
// means "just now".
// The clamp is lossy: "9 weeks ago" and "99 weeks ago" share code 69.
// Downstream bucketing depends on that encoding, so it is kept as is.
package reldate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Special codes.
const (
	CodeUnknown = 0
	CodeJustNow = 1
)

// Unit classes.
const (
	ClassSecond = 2
	ClassMinute = 3
	ClassHour   = 4
	ClassDay    = 5
	ClassWeek   = 6
	ClassMonth  = 7
	ClassYear   = 8
)

const day = 24 * time.Hour

// maxQuantity bounds the date arithmetic only; period codes clamp at 9 anyway.
const maxQuantity = 1_000_000

var phraseRe = regexp.MustCompile(`^(\d+|a|an)\s+(second|minute|hour|day|week|month|year)s?\s+ago`)

type unit struct {
	class int
	// exact is used for sub-day units, days for the rest (months=30, years=365).
	exact time.Duration
	days  int
}

var units = map[string]unit{
	"second": {class: ClassSecond, exact: time.Second},
	"minute": {class: ClassMinute, exact: time.Minute},
	"hour":   {class: ClassHour, exact: time.Hour},
	"day":    {class: ClassDay, days: 1},
	"week":   {class: ClassWeek, days: 7},
	"month":  {class: ClassMonth, days: 30},
	"year":   {class: ClassYear, days: 365},
}

// Resolve never fails: anything it cannot read maps to (retrievedAt, 0).
func Resolve(phrase string, retrievedAt time.Time) (time.Time, int) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return retrievedAt, CodeUnknown
	}
	if strings.Contains(p, "just now") || strings.Contains(p, "moments ago") {
		return retrievedAt, CodeJustNow
	}

	m := phraseRe.FindStringSubmatch(p)
	if m == nil {
		return retrievedAt, CodeUnknown
	}

	q := quantity(m[1])
	u := units[m[2]]

	mag := q
	if mag > 9 {
		mag = 9
	}
	return subtract(retrievedAt, q, u), u.class*10 + mag
}

// ResolvePtr is Resolve for optional phrases; nil behaves like "".
func ResolvePtr(phrase *string, retrievedAt time.Time) (time.Time, int) {
	if phrase == nil {
		return retrievedAt, 0
	}
	return Resolve(*phrase, retrievedAt)
}

func quantity(s string) int {
	if s == "a" || s == "an" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > maxQuantity {
		// only digits reach here, so a parse error means overflow
		return maxQuantity
	}
	return n
}

func subtract(t time.Time, q int, u unit) time.Time {
	if u.days == 0 {
		return t.Add(-time.Duration(q) * u.exact)
	}
	// days are exact 24h spans: do calendar math in UTC where no DST applies
	return t.UTC().AddDate(0, 0, -q*u.days).In(t.Location())
}

// Class extracts the unit class from a period code.
func Class(code int) int { return code / 10 }

// JitterWindow is the half-width of the uncertainty window for a period code.
func JitterWindow(code int) time.Duration {
	switch Class(code) {
	case ClassHour:
		return 1 * day
	case ClassDay:
		return 3 * day
	case ClassWeek:
		return 7 * day
	case ClassMonth:
		return 15 * day
	case ClassYear:
		return 90 * day
	default:
		return 0
	}
}
