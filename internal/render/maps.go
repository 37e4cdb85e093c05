package render

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"

	"go.ngs.io/climate-diag/internal/domain"
)

// fieldGrid adapts a Field to plotter.GridXYZ.
type fieldGrid struct {
	f *domain.Field
}

func (g fieldGrid) Dims() (c, r int)   { return len(g.f.Lon), len(g.f.Lat) }
func (g fieldGrid) Z(c, r int) float64 { return g.f.Values[r][c] }
func (g fieldGrid) X(c int) float64    { return g.f.Lon[c] }
func (g fieldGrid) Y(r int) float64    { return g.f.Lat[r] }

// MapRange is a shared colour scale for several maps.
type MapRange struct {
	Min, Max float64
}

// FieldsRange returns the range spanning every field. ok is false when all
// cells of all fields are missing.
func FieldsRange(fields ...*domain.Field) (MapRange, bool) {
	var r MapRange
	found := false
	for _, f := range fields {
		if f == nil {
			continue
		}
		lo, hi, ok := f.Range()
		if !ok {
			continue
		}
		if !found || lo < r.Min {
			r.Min = lo
		}
		if !found || hi > r.Max {
			r.Max = hi
		}
		found = true
	}
	return r, found
}

// NewMapPlot draws f as a heat map on the colour scale r. A nil or empty
// field yields a titled, empty panel.
func NewMapPlot(title string, f *domain.Field, r MapRange) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.X.Min, p.X.Max = -180, 180
	p.Y.Min, p.Y.Max = -90, 90

	if f == nil || len(f.Lon) < 2 || len(f.Lat) < 2 {
		return p
	}
	if _, _, ok := f.Range(); !ok {
		return p
	}

	hm := plotter.NewHeatMap(fieldGrid{f: f}, palette.Heat(16, 1))
	hm.Min, hm.Max = r.Min, r.Max
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)
	return p
}
