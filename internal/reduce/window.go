package reduce

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.ngs.io/climate-diag/internal/cftime"
	"go.ngs.io/climate-diag/internal/domain"
)

// Nominal year length used to express day windows in decimal years.
const daysPerYear = 365.25

// WindowKind selects how a series is smoothed.
type WindowKind int

// Window kinds.
const (
	WindowNone WindowKind = iota
	WindowSliding
	WindowAnnual
)

// Window is a parsed moving-average setting such as "5 years" or "annual".
type Window struct {
	Kind  WindowKind
	Count float64
	Unit  string
	raw   string
}

// String returns the setting the window was parsed from.
func (w Window) String() string {
	return w.raw
}

// Label is a file-name friendly rendering ("5years", "annual", "").
func (w Window) Label() string {
	return strings.ReplaceAll(w.raw, " ", "")
}

var unitYears = map[string]float64{
	"days": 1 / daysPerYear, "day": 1 / daysPerYear, "dy": 1 / daysPerYear,
	"months": 1.0 / 12, "month": 1.0 / 12, "mn": 1.0 / 12,
	"years": 1, "yrs": 1, "year": 1, "yr": 1,
}

// ParseWindow parses a moving-average window: "" for none, "annual" for
// calendar-year resampling, or "<count> <unit>" with unit one of days, day,
// dy, months, month, mn, years, yrs, year, yr.
func ParseWindow(s string) (Window, error) {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "":
		return Window{Kind: WindowNone}, nil
	case "annual":
		return Window{Kind: WindowAnnual, Count: 1, Unit: "year", raw: raw}, nil
	}

	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Window{}, &domain.ConfigError{Setting: "moving_average", Value: s, Reason: "expected \"<count> <unit>\""}
	}
	count, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || count <= 0 || math.IsInf(count, 0) {
		return Window{}, &domain.ConfigError{Setting: "moving_average", Value: s, Reason: "window count must be a positive number"}
	}
	unit := strings.ToLower(fields[1])
	if _, ok := unitYears[unit]; !ok {
		return Window{}, &domain.ConfigError{
			Setting: "moving_average",
			Value:   s,
			Reason:  fmt.Sprintf("moving average window units not recognised: %s", fields[1]),
		}
	}
	return Window{Kind: WindowSliding, Count: count, Unit: unit, raw: raw}, nil
}

// HalfWidth is half the total window width in decimal years.
func (w Window) HalfWidth() float64 {
	return w.Count * unitYears[w.Unit] / 2
}

// Apply smooths ts according to the window.
func (w Window) Apply(ts domain.TimeSeries) domain.TimeSeries {
	switch w.Kind {
	case WindowSliding:
		return Smooth(ts, w.HalfWidth())
	case WindowAnnual:
		return AnnualMeans(ts)
	default:
		return ts.Clone()
	}
}

// Smooth replaces every value by the mean of the values within halfWidth of
// its coordinate (inclusive). Near the ends the mean only covers the samples
// that exist; there is no padding and no wraparound.
func Smooth(ts domain.TimeSeries, halfWidth float64) domain.TimeSeries {
	const eps = 1e-9
	coords := ts.Coords()
	values := ts.Values()
	out := make(domain.TimeSeries, len(coords))

	lo, hi := 0, 0
	sum := 0.0
	for i, c := range coords {
		for hi < len(coords) && coords[hi] <= c+halfWidth+eps {
			sum += values[hi]
			hi++
		}
		for lo < hi && coords[lo] < c-halfWidth-eps {
			sum -= values[lo]
			lo++
		}
		out[coords[i]] = sum / float64(hi-lo)
	}
	return out
}

// AnnualMeans resamples ts to calendar years: one point per year holding the
// mean of that year's values, placed at mid-year.
func AnnualMeans(ts domain.TimeSeries) domain.TimeSeries {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for c, v := range ts {
		y := cftime.Year(c)
		sums[y] += v
		counts[y]++
	}
	out := make(domain.TimeSeries, len(sums))
	for y, s := range sums {
		out[float64(y)+0.5] = s / float64(counts[y])
	}
	return out
}
