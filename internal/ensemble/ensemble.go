// Package ensemble computes cross-member statistics of reduced series.
package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go.ngs.io/climate-diag/internal/domain"
)

// Compute evaluates each statistic at every coordinate present in at least
// one input series, over the values available at that coordinate. A series
// that lacks a coordinate is left out of that coordinate's statistic.
func Compute(series []domain.TimeSeries, stats []domain.Statistic) map[domain.Statistic]domain.TimeSeries {
	columns := make(map[float64][]float64)
	for _, ts := range series {
		for c, v := range ts {
			if math.IsNaN(v) {
				continue
			}
			columns[c] = append(columns[c], v)
		}
	}

	out := make(map[domain.Statistic]domain.TimeSeries, len(stats))
	for _, s := range stats {
		out[s] = make(domain.TimeSeries, len(columns))
	}
	for c, values := range columns {
		sort.Float64s(values)
		for _, s := range stats {
			out[s][c] = Evaluate(s, values)
		}
	}
	return out
}

// Evaluate computes one statistic over values. Empty input yields NaN.
func Evaluate(s domain.Statistic, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	switch s {
	case domain.StatMean:
		return stat.Mean(values, nil)
	case domain.StatMedian:
		return Percentile(values, 50)
	case domain.StatMin:
		return floats.Min(values)
	case domain.StatMax:
		return floats.Max(values)
	}
	if p, ok := s.Percentile(); ok {
		return Percentile(values, p)
	}
	return math.NaN()
}

// MeanField averages fields cell by cell, ignoring missing cells. All
// fields must share the axes of the first one; others are skipped. Returns
// nil for no input.
func MeanField(fields []*domain.Field) *domain.Field {
	if len(fields) == 0 {
		return nil
	}
	ref := fields[0]
	out := domain.NewField(ref.Lon, ref.Lat)
	for i := range out.Values {
		for j := range out.Values[i] {
			sum, n := 0.0, 0
			for _, f := range fields {
				if len(f.Values) != len(ref.Lat) || len(f.Values[i]) != len(ref.Lon) {
					continue
				}
				if v := f.Values[i][j]; !math.IsNaN(v) {
					sum += v
					n++
				}
			}
			if n > 0 {
				out.Values[i][j] = sum / float64(n)
			}
		}
	}
	return out
}
