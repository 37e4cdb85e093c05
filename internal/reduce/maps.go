package reduce

import (
	"fmt"
	"math"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/adapter/interp"
	"go.ngs.io/climate-diag/internal/domain"
)

// MapResolution is the spacing (degrees) of the common map grid.
const MapResolution = 1.0

// Map loads f, averages it over the scenario time range and regrids the mean
// onto a regular global grid at MapResolution. Depth, when present, is
// restricted to the shallowest level.
func (r *Reducer) Map(f domain.SourceFile) (*domain.Field, error) {
	c, err := r.load(f)
	if err != nil {
		return nil, err
	}
	field, err := r.timeMeanField(c, r.RangeFor(f.Metadata))
	if err != nil {
		return nil, fmt.Errorf("map of %s: %w", f.Path, err)
	}
	return field, nil
}

func (r *Reducer) timeMeanField(c *cube.Cube, tr TimeRange) (*domain.Field, error) {
	if c.Lat == nil || c.Lon == nil {
		return nil, fmt.Errorf("cube %s is not on a regular lat/lon grid", c.Name)
	}

	timeAxis := c.Axis(cube.RoleTime)
	depthAxis := c.Axis(cube.RoleDepth)
	include := func(idx []int) bool {
		if timeAxis >= 0 && c.Time != nil && !tr.Contains(c.Time[idx[timeAxis]]) {
			return false
		}
		return depthAxis < 0 || idx[depthAxis] == 0
	}

	g, err := c.Collapse([]cube.Role{cube.RoleLat, cube.RoleLon}, include)
	if err != nil {
		return nil, err
	}

	nLat, nLon := g.Shape[0], g.Shape[1]
	values := make([][]float64, nLat)
	for i := range values {
		values[i] = make([]float64, nLon)
		for j := range values[i] {
			k := i*nLon + j
			values[i][j] = r.operator.Apply(g.Values[k], g.Weights[k])
		}
	}

	grid, err := interp.NewGrid2D(c.Lon, c.Lat, values)
	if err != nil {
		return nil, err
	}

	n := int(360 / MapResolution)
	lon := domain.RegularAxis(-180+MapResolution/2, MapResolution, n)
	lat := domain.RegularAxis(-90+MapResolution/2, MapResolution, n/2)

	targets := lon
	if grid.X[len(grid.X)-1] > 180 {
		targets = make([]float64, len(lon))
		for i, x := range lon {
			targets[i] = normalizeLon360(x)
		}
	}

	out, err := grid.Regrid(targets, lat)
	if err != nil {
		return nil, err
	}
	return &domain.Field{Lon: lon, Lat: lat, Values: out}, nil
}

// normalizeLon360 maps a longitude into [0, 360).
func normalizeLon360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}
