// Package cube loads preprocessed gridded fields ("cubes") from NetCDF files
// and offers the collapse primitive the reducers build on.
package cube

import (
	"fmt"
	"math"
	"strings"
)

// Role identifies what a dimension of a cube represents.
type Role int

// Dimension roles.
const (
	RoleOther Role = iota
	RoleTime
	RoleDepth
	RoleLat
	RoleLon
)

func (r Role) String() string {
	switch r {
	case RoleTime:
		return "time"
	case RoleDepth:
		return "depth"
	case RoleLat:
		return "lat"
	case RoleLon:
		return "lon"
	default:
		return "other"
	}
}

var roleNames = map[Role][]string{
	RoleTime:  {"time", "t"},
	RoleDepth: {"depth", "lev", "olevel", "deptht", "z", "plev"},
	RoleLat:   {"lat", "latitude", "y", "nav_lat", "rlat"},
	RoleLon:   {"lon", "longitude", "x", "nav_lon", "rlon"},
}

// RoleOf guesses the role of a dimension from its name.
func RoleOf(dimName string) Role {
	lower := strings.ToLower(dimName)
	for _, role := range []Role{RoleTime, RoleDepth, RoleLat, RoleLon} {
		for _, name := range roleNames[role] {
			if lower == name {
				return role
			}
		}
	}
	return RoleOther
}

// Cube is a labelled N-dimensional field. Data is stored flat in row-major
// order; masked cells hold NaN.
type Cube struct {
	Name  string
	Units string

	Dims  []string
	Shape []int
	Data  []float64

	// Coordinate axes, nil when the cube has no such dimension.
	Time  []float64 // Decimal years.
	Depth []float64 // Meters, positive down.
	Lat   []float64
	Lon   []float64

	// Raw time encoding, kept so cubes can be written back out.
	RawTime   []float64
	TimeUnits string
	Calendar  string
}

// Validate checks that data, shape and coordinate axes agree.
func (c *Cube) Validate() error {
	if len(c.Dims) != len(c.Shape) {
		return fmt.Errorf("cube %s: %d dims but %d shape entries", c.Name, len(c.Dims), len(c.Shape))
	}
	size := 1
	for _, n := range c.Shape {
		size *= n
	}
	if size != len(c.Data) {
		return fmt.Errorf("cube %s: shape %v needs %d values, have %d", c.Name, c.Shape, size, len(c.Data))
	}
	for i, dim := range c.Dims {
		axis := c.axisValues(RoleOf(dim))
		if axis != nil && len(axis) != c.Shape[i] {
			return fmt.Errorf("cube %s: %s axis has %d points, dimension has %d", c.Name, dim, len(axis), c.Shape[i])
		}
	}
	return nil
}

// Axis returns the index of the dimension with the given role, or -1.
func (c *Cube) Axis(role Role) int {
	for i, dim := range c.Dims {
		if RoleOf(dim) == role {
			return i
		}
	}
	return -1
}

func (c *Cube) axisValues(role Role) []float64 {
	switch role {
	case RoleTime:
		return c.Time
	case RoleDepth:
		return c.Depth
	case RoleLat:
		return c.Lat
	case RoleLon:
		return c.Lon
	default:
		return nil
	}
}

// Groups holds the values (and area weights) that fall into each cell of a
// collapsed cube.
type Groups struct {
	Shape   []int
	Values  [][]float64
	Weights [][]float64
}

// Collapse gathers every unmasked value into the cell of the output grid
// spanned by the kept roles, in the order given. Values with a latitude
// coordinate carry a cos(lat) area weight when the latitude axis is
// collapsed; otherwise the weight is 1. include, when non-nil, filters cells
// by their full index.
func (c *Cube) Collapse(keep []Role, include func(idx []int) bool) (*Groups, error) {
	keepAxes := make([]int, len(keep))
	outShape := make([]int, len(keep))
	outSize := 1
	for i, role := range keep {
		axis := c.Axis(role)
		if axis < 0 {
			return nil, fmt.Errorf("cube %s has no %s dimension", c.Name, role)
		}
		keepAxes[i] = axis
		outShape[i] = c.Shape[axis]
		outSize *= c.Shape[axis]
	}

	latAxis := c.Axis(RoleLat)
	latKept := false
	for _, a := range keepAxes {
		if a == latAxis {
			latKept = true
		}
	}
	weighted := latAxis >= 0 && !latKept && len(c.Lat) == c.Shape[latAxis]

	g := &Groups{
		Shape:   outShape,
		Values:  make([][]float64, outSize),
		Weights: make([][]float64, outSize),
	}

	idx := make([]int, len(c.Shape))
	for flat, v := range c.Data {
		unravel(flat, c.Shape, idx)
		if math.IsNaN(v) {
			continue
		}
		if include != nil && !include(idx) {
			continue
		}
		out := 0
		for i, a := range keepAxes {
			out = out*outShape[i] + idx[a]
		}
		w := 1.0
		if weighted {
			w = math.Cos(c.Lat[idx[latAxis]] * math.Pi / 180)
		}
		g.Values[out] = append(g.Values[out], v)
		g.Weights[out] = append(g.Weights[out], w)
	}
	return g, nil
}

// unravel converts a flat row-major offset into a multi-index.
func unravel(flat int, shape []int, idx []int) {
	for i := len(shape) - 1; i >= 0; i-- {
		idx[i] = flat % shape[i]
		flat /= shape[i]
	}
}
