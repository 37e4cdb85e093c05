package domain

import (
	"fmt"
	"sort"
)

// SeriesKey uniquely identifies one reduced series.
type SeriesKey struct {
	VariableGroup string `yaml:"variable_group" json:"variable_group"`
	ShortName     string `yaml:"short_name" json:"short_name"`
	Dataset       string `yaml:"dataset" json:"dataset"`
	Scenario      string `yaml:"scenario" json:"scenario"`
	Ensemble      string `yaml:"ensemble" json:"ensemble"`
}

// String renders the key in a stable, human readable form. It is also the
// clear-text key hashed into store file names.
func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.VariableGroup, k.ShortName, k.Dataset, k.Scenario, k.Ensemble)
}

// KeyOf builds the series key a source file contributes to.
func KeyOf(md Metadata) SeriesKey {
	return SeriesKey{
		VariableGroup: md.VariableGroup,
		ShortName:     md.ShortName,
		Dataset:       md.Dataset,
		Scenario:      md.Exp,
		Ensemble:      md.Ensemble,
	}
}

// Point is a single (coordinate, value) pair. The coordinate is a decimal
// year for time series, a depth in meters for profiles and a month number for
// climatologies.
type Point struct {
	Coord float64 `json:"coord"`
	Value float64 `json:"value"`
}

// TimeSeries maps a numeric coordinate to a scalar value. Coordinates are
// unique; insertion order is irrelevant.
type TimeSeries map[float64]float64

// NewTimeSeries builds a series from parallel coordinate and value slices.
// Later duplicates overwrite earlier ones.
func NewTimeSeries(coords, values []float64) TimeSeries {
	ts := make(TimeSeries, len(coords))
	for i := range coords {
		if i >= len(values) {
			break
		}
		ts[coords[i]] = values[i]
	}
	return ts
}

// Merge folds other into ts. On coordinate collision the value from other
// wins.
func (ts TimeSeries) Merge(other TimeSeries) {
	for c, v := range other {
		ts[c] = v
	}
}

// Clone returns an independent copy.
func (ts TimeSeries) Clone() TimeSeries {
	out := make(TimeSeries, len(ts))
	for c, v := range ts {
		out[c] = v
	}
	return out
}

// Coords returns the coordinates in ascending order.
func (ts TimeSeries) Coords() []float64 {
	coords := make([]float64, 0, len(ts))
	for c := range ts {
		coords = append(coords, c)
	}
	sort.Float64s(coords)
	return coords
}

// Values returns the values ordered by ascending coordinate.
func (ts TimeSeries) Values() []float64 {
	coords := ts.Coords()
	values := make([]float64, len(coords))
	for i, c := range coords {
		values[i] = ts[c]
	}
	return values
}

// Points returns the series as coordinate-ordered pairs.
func (ts TimeSeries) Points() []Point {
	coords := ts.Coords()
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Coord: c, Value: ts[c]}
	}
	return points
}

// Entry pairs a key with its series.
type Entry struct {
	Key    SeriesKey
	Series TimeSeries
}
