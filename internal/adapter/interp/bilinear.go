// Package interp provides the linear and bilinear interpolation used to put
// model fields on common depth levels and horizontal grids.
package interp

import (
	"fmt"
	"math"
	"sort"
)

// GridCell represents a cell in a regular grid with four corner values.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64 // X boundaries (longitude).
	Y0, Y1 float64 // Y boundaries (latitude).

	// V00 is the value at (X0, Y0), V10 at (X1, Y0), V01 at (X0, Y1) and
	// V11 at (X1, Y1).
	V00, V10, V01, V11 float64
}

// BilinearInterpolate performs bilinear interpolation within a grid cell
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// with t = (x - x0) / (x1 - x0) and u = (y - y0) / (y1 - y0). A masked (NaN)
// corner makes the result NaN.
func BilinearInterpolate(cell GridCell, x, y float64) (float64, error) {
	if cell.X1 <= cell.X0 {
		return 0, fmt.Errorf("invalid grid cell: X1 must be > X0")
	}
	if cell.Y1 <= cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell: Y1 must be > Y0")
	}

	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	t := (x - cell.X0) / (cell.X1 - cell.X0)
	u := (y - cell.Y0) / (cell.Y1 - cell.Y0)
	t = math.Max(0, math.Min(1, t))
	u = math.Max(0, math.Min(1, u))

	return (1-t)*(1-u)*cell.V00 +
		t*(1-u)*cell.V10 +
		(1-t)*u*cell.V01 +
		t*u*cell.V11, nil
}

// Grid2D represents a regular 2D grid for interpolation.
type Grid2D struct {
	X      []float64   // X coordinates (longitudes), strictly increasing.
	Y      []float64   // Y coordinates (latitudes), strictly increasing.
	Values [][]float64 // Values[i][j] corresponds to (X[j], Y[i]).
}

// NewGrid2D builds a grid from axes in any monotonic order, flipping
// decreasing axes so the result validates.
func NewGrid2D(x, y []float64, values [][]float64) (*Grid2D, error) {
	g := &Grid2D{
		X:      append([]float64(nil), x...),
		Y:      append([]float64(nil), y...),
		Values: make([][]float64, len(values)),
	}
	for i, row := range values {
		g.Values[i] = append([]float64(nil), row...)
	}

	if len(g.X) > 1 && g.X[0] > g.X[len(g.X)-1] {
		reverse(g.X)
		for _, row := range g.Values {
			reverse(row)
		}
	}
	if len(g.Y) > 1 && g.Y[0] > g.Y[len(g.Y)-1] {
		reverse(g.Y)
		for i, j := 0, len(g.Values)-1; i < j; i, j = i+1, j-1 {
			g.Values[i], g.Values[j] = g.Values[j], g.Values[i]
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 {
		return fmt.Errorf("grid must have at least 2 X coordinates")
	}
	if len(g.Y) < 2 {
		return fmt.Errorf("grid must have at least 2 Y coordinates")
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}

	for i, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(g.X))
		}
	}

	for i := 1; i < len(g.X); i++ {
		if g.X[i] <= g.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	for i := 1; i < len(g.Y); i++ {
		if g.Y[i] <= g.Y[i-1] {
			return fmt.Errorf("Y coordinates must be strictly increasing")
		}
	}

	return nil
}

// InterpolateAt performs bilinear interpolation at a given point.
func (g *Grid2D) InterpolateAt(x, y float64) (float64, error) {
	xIdx, ok := bracket(g.X, x)
	if !ok {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid range [%.6f, %.6f]", x, g.X[0], g.X[len(g.X)-1])
	}
	yIdx, ok := bracket(g.Y, y)
	if !ok {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid range [%.6f, %.6f]", y, g.Y[0], g.Y[len(g.Y)-1])
	}

	cell := GridCell{
		X0:  g.X[xIdx],
		X1:  g.X[xIdx+1],
		Y0:  g.Y[yIdx],
		Y1:  g.Y[yIdx+1],
		V00: g.Values[yIdx][xIdx],
		V10: g.Values[yIdx][xIdx+1],
		V01: g.Values[yIdx+1][xIdx],
		V11: g.Values[yIdx+1][xIdx+1],
	}

	return BilinearInterpolate(cell, x, y)
}

// Regrid samples g at every (xs[j], ys[i]) target point. Targets outside the
// source grid are NaN.
func (g *Grid2D) Regrid(xs, ys []float64) ([][]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	out := make([][]float64, len(ys))
	for i, y := range ys {
		out[i] = make([]float64, len(xs))
		for j, x := range xs {
			v, err := g.InterpolateAt(x, y)
			if err != nil {
				v = math.NaN()
			}
			out[i][j] = v
		}
	}
	return out, nil
}

// bracket returns i such that axis[i] <= v <= axis[i+1].
func bracket(axis []float64, v float64) (int, bool) {
	n := len(axis)
	if n < 2 || v < axis[0] || v > axis[n-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(axis, v)
	if i >= n-1 {
		return n - 2, true
	}
	if axis[i] == v {
		return i, true
	}
	return i - 1, true
}
