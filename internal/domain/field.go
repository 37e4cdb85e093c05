package domain

import "math"

// Field is a 2-D map on a regular lon/lat grid. Values[i][j] is the value at
// (Lon[j], Lat[i]); NaN marks missing cells (land, outside the source grid).
type Field struct {
	Lon    []float64
	Lat    []float64
	Values [][]float64
}

// NewField allocates a NaN-filled field on the given axes.
func NewField(lon, lat []float64) *Field {
	f := &Field{Lon: lon, Lat: lat, Values: make([][]float64, len(lat))}
	for i := range f.Values {
		row := make([]float64, len(lon))
		for j := range row {
			row[j] = math.NaN()
		}
		f.Values[i] = row
	}
	return f
}

// Range returns the smallest and largest non-NaN values. ok is false when
// every cell is missing.
func (f *Field) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range f.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}

// RegularAxis returns n points from start with the given step.
func RegularAxis(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
