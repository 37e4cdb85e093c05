// Package cftime converts CF-convention time coordinates ("days since
// 1850-01-01" on a given calendar) into decimal years.
package cftime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Calendar identifies a CF calendar.
type Calendar string

// Supported calendars.
const (
	Standard  Calendar = "standard"
	NoLeap    Calendar = "noleap"
	AllLeap   Calendar = "all_leap"
	Days360   Calendar = "360_day"
	Proleptic Calendar = "proleptic_gregorian"
)

var (
	monthDays365 = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	monthDays366 = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	monthDays360 = [12]int{30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30}
)

// ParseCalendar normalizes a calendar attribute. An empty value is the CF
// default (standard).
func ParseCalendar(name string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard", "gregorian", "julian":
		return Standard, nil
	case "proleptic_gregorian":
		return Proleptic, nil
	case "noleap", "365_day":
		return NoLeap, nil
	case "all_leap", "366_day":
		return AllLeap, nil
	case "360_day":
		return Days360, nil
	default:
		return "", fmt.Errorf("unsupported calendar %q", name)
	}
}

// Units is a parsed "<unit> since <reference>" time units attribute.
type Units struct {
	unitDays float64
	ref      civil
	calendar Calendar
}

type civil struct {
	year, month, day int
	dayFraction      float64
}

// ParseUnits parses a CF time units string for the given calendar.
func ParseUnits(units, calendar string) (Units, error) {
	cal, err := ParseCalendar(calendar)
	if err != nil {
		return Units{}, err
	}

	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return Units{}, fmt.Errorf("invalid time units %q: expected \"<unit> since <date>\"", units)
	}

	var unitDays float64
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		unitDays = 1
	case "hours", "hour", "hr", "h":
		unitDays = 1.0 / 24
	case "minutes", "minute", "min":
		unitDays = 1.0 / 1440
	case "seconds", "second", "sec", "s":
		unitDays = 1.0 / 86400
	default:
		return Units{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	ref, err := parseReference(parts[1])
	if err != nil {
		return Units{}, fmt.Errorf("invalid reference date in %q: %w", units, err)
	}

	return Units{unitDays: unitDays, ref: ref, calendar: cal}, nil
}

// parseReference accepts "YYYY-M-D", optionally followed by "hh:mm[:ss]"
// (space or T separated) and a trailing zone which is ignored.
func parseReference(s string) (civil, error) {
	s = strings.TrimSpace(strings.Replace(s, "T", " ", 1))
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return civil{}, fmt.Errorf("empty date")
	}

	ymd := strings.Split(fields[0], "-")
	if len(ymd) != 3 {
		return civil{}, fmt.Errorf("malformed date %q", fields[0])
	}
	var nums [3]int
	for i, f := range ymd {
		n, err := strconv.Atoi(f)
		if err != nil {
			return civil{}, fmt.Errorf("malformed date %q: %w", fields[0], err)
		}
		nums[i] = n
	}

	c := civil{year: nums[0], month: nums[1], day: nums[2]}
	if c.month < 1 || c.month > 12 || c.day < 1 || c.day > 31 {
		return civil{}, fmt.Errorf("date out of range %q", fields[0])
	}

	if len(fields) > 1 && strings.Contains(fields[1], ":") {
		hms := strings.Split(fields[1], ":")
		var secs float64
		scale := []float64{3600, 60, 1}
		for i := 0; i < len(hms) && i < 3; i++ {
			v, err := strconv.ParseFloat(hms[i], 64)
			if err != nil {
				return civil{}, fmt.Errorf("malformed time %q: %w", fields[1], err)
			}
			secs += v * scale[i]
		}
		c.dayFraction = secs / 86400
	}
	return c, nil
}

// DecimalYear converts an offset expressed in these units to a decimal
// year. Each calendar month spans exactly one twelfth of the year, so the
// value is year + (month-1 + f)/12 with f the elapsed fraction of that
// month. Year boundaries are exact in every calendar and Month recovers the
// calendar month of any sample.
func (u Units) DecimalYear(offset float64) float64 {
	year, month, f := u.civilAt(offset)
	return float64(year) + (float64(month-1)+f)/12
}

// civilAt returns the calendar year, month (1..12) and elapsed fraction of
// that month at offset.
func (u Units) civilAt(offset float64) (int, int, float64) {
	days := offset * u.unitDays
	switch u.calendar {
	case NoLeap:
		return fixedCivil(u.ref, days, monthDays365)
	case AllLeap:
		return fixedCivil(u.ref, days, monthDays366)
	case Days360:
		return fixedCivil(u.ref, days, monthDays360)
	default:
		return gregorianCivil(u.ref, days)
	}
}

func gregorianCivil(ref civil, days float64) (int, int, float64) {
	start := time.Date(ref.year, time.Month(ref.month), ref.day, 0, 0, 0, 0, time.UTC)
	whole := math.Floor(days + ref.dayFraction)
	frac := days + ref.dayFraction - whole
	t := start.AddDate(0, 0, int(whole)).Add(time.Duration(frac * float64(24*time.Hour)))

	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	f := t.Sub(monthStart).Seconds() / monthEnd.Sub(monthStart).Seconds()
	return t.Year(), int(t.Month()), f
}

func fixedCivil(ref civil, days float64, monthDays [12]int) (int, int, float64) {
	var perYear int
	for _, d := range monthDays {
		perYear += d
	}
	doy := ref.day - 1
	for m := 0; m < ref.month-1; m++ {
		doy += monthDays[m]
	}
	abs := float64(ref.year)*float64(perYear) + float64(doy) + ref.dayFraction + days

	year := math.Floor(abs / float64(perYear))
	rem := math.Max(abs-year*float64(perYear), 0)
	for m, n := range monthDays {
		if rem < float64(n) || m == len(monthDays)-1 {
			return int(year), m + 1, math.Min(rem/float64(n), 1)
		}
		rem -= float64(n)
	}
	return int(year), 12, 1
}

// Month returns the calendar month (1..12) of a decimal year produced by
// DecimalYear.
func Month(decimalYear float64) int {
	frac := decimalYear - math.Floor(decimalYear)
	// Month starts are exact twelfths; absorb rounding just below them.
	m := int(frac*12+1e-9) + 1
	if m > 12 {
		m = 12
	}
	return m
}

// Year returns the calendar year of a decimal year.
func Year(decimalYear float64) int {
	return int(math.Floor(decimalYear))
}
