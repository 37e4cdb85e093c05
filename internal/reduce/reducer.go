// Package reduce turns loaded cubes into scalar series: per-time-step spatial
// statistics, time-mean depth profiles, monthly climatologies and smoothed
// variants.
package reduce

import (
	"fmt"
	"math"
	"sort"

	"github.com/apex/log"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/adapter/interp"
	"go.ngs.io/climate-diag/internal/domain"
)

// StandardLevels are the depths (m) every profile is interpolated onto so
// that models with different vertical grids can be compared.
var StandardLevels = []float64{
	0.5, 1.0, 5.0, 10.0, 50.0, 100.0, 200.0, 300.0, 400.0, 500.0,
	600.0, 700.0, 800.0, 900.0, 999.0, 1001.0, 1500.0, 2000.0, 2500.0, 3000.0, 3500.0,
	4000.0, 4500.0, 5000.0,
}

// TimeRange is an inclusive range of calendar years.
type TimeRange struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
}

// Contains reports whether a decimal year falls in [From, To+1).
func (r TimeRange) Contains(decimalYear float64) bool {
	return decimalYear >= r.From && decimalYear < r.To+1
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%g-%g", r.From, r.To)
}

// Options configure a Reducer.
type Options struct {
	Operator    string
	HistRange   TimeRange
	FutureRange TimeRange
	Levels      []float64
}

// Reducer loads source files and reduces them to series.
type Reducer struct {
	loader      cube.Loader
	operator    Operator
	histRange   TimeRange
	futureRange TimeRange
	levels      []float64
	loads       int
}

// NewReducer validates opts and returns a reducer.
func NewReducer(loader cube.Loader, opts Options) (*Reducer, error) {
	op, err := ParseOperator(opts.Operator)
	if err != nil {
		return nil, err
	}
	levels := opts.Levels
	if len(levels) == 0 {
		levels = StandardLevels
	}
	return &Reducer{
		loader:      loader,
		operator:    op,
		histRange:   opts.HistRange,
		futureRange: opts.FutureRange,
		levels:      levels,
	}, nil
}

// Loads returns how many files this reducer has loaded.
func (r *Reducer) Loads() int {
	return r.loads
}

// RangeFor returns the time range profiles and maps of a scenario are
// averaged over. Observations use the historical range.
func (r *Reducer) RangeFor(md domain.Metadata) TimeRange {
	if domain.IsModelScenario(md.Exp) && !md.IsHistorical() {
		return r.futureRange
	}
	return r.histRange
}

// Reduce loads f and reduces it to a series: decimal year to value for time
// series groups, depth (m) to value for profile groups. Fixed fields (mip
// Ofx/fx) are skipped and report ok=false without being loaded.
func (r *Reducer) Reduce(f domain.SourceFile) (domain.TimeSeries, bool, error) {
	if f.Metadata.IsFixedField() {
		return nil, false, nil
	}

	c, err := r.load(f)
	if err != nil {
		return nil, false, err
	}

	if f.IsProfile() {
		ts, err := r.profile(c, r.RangeFor(f.Metadata))
		if err != nil {
			return nil, false, fmt.Errorf("profile of %s: %w", f.Path, err)
		}
		return ts, true, nil
	}

	ts, err := r.timeSeries(c)
	if err != nil {
		return nil, false, fmt.Errorf("time series of %s: %w", f.Path, err)
	}
	return ts, true, nil
}

func (r *Reducer) load(f domain.SourceFile) (*cube.Cube, error) {
	log.WithFields(log.Fields{
		"dataset":  f.Metadata.Dataset,
		"scenario": f.Metadata.Exp,
		"ensemble": f.Metadata.Ensemble,
	}).Debugf("loading %s", f.Path)

	c, err := r.loader.Load(f.Path, f.Metadata.ShortName)
	if err != nil {
		return nil, err
	}
	r.loads++
	return c, nil
}

func (r *Reducer) timeSeries(c *cube.Cube) (domain.TimeSeries, error) {
	if c.Axis(cube.RoleTime) < 0 || c.Time == nil {
		return nil, fmt.Errorf("cube %s has no time coordinate", c.Name)
	}
	g, err := c.Collapse([]cube.Role{cube.RoleTime}, nil)
	if err != nil {
		return nil, err
	}
	ts := make(domain.TimeSeries, len(c.Time))
	for i, t := range c.Time {
		v := r.operator.Apply(g.Values[i], g.Weights[i])
		if math.IsNaN(v) {
			continue
		}
		ts[t] = v
	}
	return ts, nil
}

func (r *Reducer) profile(c *cube.Cube, tr TimeRange) (domain.TimeSeries, error) {
	if c.Axis(cube.RoleDepth) < 0 || c.Depth == nil {
		return nil, fmt.Errorf("cube %s has no depth coordinate", c.Name)
	}

	var include func([]int) bool
	if timeAxis := c.Axis(cube.RoleTime); timeAxis >= 0 && c.Time != nil {
		include = func(idx []int) bool { return tr.Contains(c.Time[idx[timeAxis]]) }
	}

	g, err := c.Collapse([]cube.Role{cube.RoleDepth}, include)
	if err != nil {
		return nil, err
	}

	type level struct{ z, v float64 }
	var levels []level
	for i, z := range c.Depth {
		v := r.operator.Apply(g.Values[i], g.Weights[i])
		if math.IsNaN(v) {
			continue
		}
		levels = append(levels, level{z: z, v: v})
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no valid data in time range %s", tr)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].z < levels[j].z })

	depths := make([]float64, len(levels))
	values := make([]float64, len(levels))
	for i, l := range levels {
		depths[i], values[i] = l.z, l.v
	}
	outZ, outV, err := interp.ExtractLevels(depths, values, r.levels)
	if err != nil {
		return nil, err
	}
	return domain.NewTimeSeries(outZ, outV), nil
}
