package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.ngs.io/climate-diag/internal/domain"
)

// Band is an ensemble drawn as a central line with a shaded range.
type Band struct {
	Label string
	Color color.RGBA
	Mean  domain.TimeSeries
	Low   domain.TimeSeries
	High  domain.TimeSeries
}

// Line is a single series.
type Line struct {
	Label  string
	Color  color.RGBA
	Series domain.TimeSeries
	Dashed bool
}

// Panel describes one line-style subplot.
type Panel struct {
	Title  string
	XLabel string
	YLabel string
	Bands  []Band
	Lines  []Line

	// Profile swaps the axes and plots coordinates as negative depth, so the
	// surface is at the top.
	Profile bool
	// MonthTicks labels the x axis with month initials.
	MonthTicks bool
}

// Empty reports whether the panel has nothing to draw.
func (p Panel) Empty() bool {
	return len(p.Bands) == 0 && len(p.Lines) == 0
}

// NewPanelPlot builds the plot for p.
func NewPanelPlot(p Panel) (*plot.Plot, error) {
	pl := plot.New()
	pl.Title.Text = p.Title
	pl.X.Label.Text = p.XLabel
	pl.Y.Label.Text = p.YLabel
	pl.Legend.Top = true
	pl.Legend.TextStyle.Font.Size = vg.Points(7)
	pl.Add(plotter.NewGrid())

	if p.MonthTicks {
		pl.X.Tick.Marker = monthTicks{}
		pl.X.Min, pl.X.Max = 0.5, 12.5
	}
	if p.Profile {
		pl.Y.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick {
			ticks := plot.DefaultTicks{}.Ticks(min, max)
			for i := range ticks {
				if ticks[i].Label != "" {
					ticks[i].Label = fmt.Sprintf("%g", -ticks[i].Value)
				}
			}
			return ticks
		})
	}

	for _, b := range p.Bands {
		if poly := bandPolygon(b, p.Profile); poly != nil {
			pl.Add(poly)
		}
		if len(b.Mean) == 0 {
			continue
		}
		l, err := plotter.NewLine(xys(b.Mean, p.Profile))
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", b.Label, err)
		}
		l.Color = b.Color
		l.Width = vg.Points(1.5)
		pl.Add(l)
		pl.Legend.Add(b.Label, l)
	}

	for _, ln := range p.Lines {
		if len(ln.Series) == 0 {
			continue
		}
		l, err := plotter.NewLine(xys(ln.Series, p.Profile))
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", ln.Label, err)
		}
		l.Color = ln.Color
		l.Width = vg.Points(1)
		if ln.Dashed {
			l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		pl.Add(l)
		if ln.Label != "" {
			pl.Legend.Add(ln.Label, l)
		}
	}
	return pl, nil
}

// SplitDepth separates the surface and deep axes of a profile, in metres.
const SplitDepth = 1000.0

// NewProfilePlots builds a profile panel as two stacked axes: the surface
// axis above SplitDepth and the deep axis from it down. Both share the value
// axis and meet at SplitDepth. A half without data is nil.
func NewProfilePlots(p Panel) (surface, deep *plot.Plot, err error) {
	p.Profile = true
	upper := p.clipCoords(math.Inf(-1), SplitDepth)
	upper.XLabel = ""
	lower := p.clipCoords(SplitDepth, math.Inf(1))
	lower.Title = ""

	if !upper.Empty() {
		if surface, err = NewPanelPlot(upper); err != nil {
			return nil, nil, err
		}
		surface.Y.Min = -SplitDepth
	}
	if !lower.Empty() {
		if deep, err = NewPanelPlot(lower); err != nil {
			return nil, nil, err
		}
		deep.Y.Max = -SplitDepth
	}
	if surface != nil && deep != nil {
		deep.Legend = plot.NewLegend()
		lo, hi := math.Min(surface.X.Min, deep.X.Min), math.Max(surface.X.Max, deep.X.Max)
		surface.X.Min, deep.X.Min = lo, lo
		surface.X.Max, deep.X.Max = hi, hi
	}
	return surface, deep, nil
}

// clipCoords keeps the coordinates in [lo, hi) of every series of p. Series
// left empty are dropped.
func (p Panel) clipCoords(lo, hi float64) Panel {
	clip := func(ts domain.TimeSeries) domain.TimeSeries {
		out := make(domain.TimeSeries)
		for c, v := range ts {
			if c >= lo && c < hi {
				out[c] = v
			}
		}
		return out
	}
	out := p
	out.Bands, out.Lines = nil, nil
	for _, b := range p.Bands {
		b.Mean, b.Low, b.High = clip(b.Mean), clip(b.Low), clip(b.High)
		if len(b.Mean) > 0 || len(b.High) > 0 {
			out.Bands = append(out.Bands, b)
		}
	}
	for _, l := range p.Lines {
		l.Series = clip(l.Series)
		if len(l.Series) > 0 {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

// xys converts a series to plot points in coordinate order, dropping NaN
// values. Profiles plot (value, -depth).
func xys(ts domain.TimeSeries, profile bool) plotter.XYs {
	pts := make(plotter.XYs, 0, len(ts))
	for _, pt := range ts.Points() {
		if math.IsNaN(pt.Value) {
			continue
		}
		if profile {
			pts = append(pts, plotter.XY{X: pt.Value, Y: -pt.Coord})
		} else {
			pts = append(pts, plotter.XY{X: pt.Coord, Y: pt.Value})
		}
	}
	return pts
}

// bandPolygon outlines High forward and Low backward over the coordinates
// both share. It returns nil when fewer than two such coordinates exist.
func bandPolygon(b Band, profile bool) *plotter.Polygon {
	var upper, lower plotter.XYs
	for _, c := range b.High.Coords() {
		lo, ok := b.Low[c]
		hi := b.High[c]
		if !ok || math.IsNaN(lo) || math.IsNaN(hi) {
			continue
		}
		if profile {
			upper = append(upper, plotter.XY{X: hi, Y: -c})
			lower = append(lower, plotter.XY{X: lo, Y: -c})
		} else {
			upper = append(upper, plotter.XY{X: c, Y: hi})
			lower = append(lower, plotter.XY{X: c, Y: lo})
		}
	}
	if len(upper) < 2 {
		return nil
	}
	ring := make(plotter.XYs, 0, 2*len(upper))
	ring = append(ring, upper...)
	for i := len(lower) - 1; i >= 0; i-- {
		ring = append(ring, lower[i])
	}
	poly, err := plotter.NewPolygon(ring)
	if err != nil {
		return nil
	}
	poly.Color = Translucent(b.Color, 64)
	poly.LineStyle.Width = 0
	return poly
}

type monthTicks struct{}

var monthInitials = []string{"J", "F", "M", "A", "M", "J", "J", "A", "S", "O", "N", "D"}

// Ticks implements plot.Ticker.
func (monthTicks) Ticks(_, _ float64) []plot.Tick {
	ticks := make([]plot.Tick, len(monthInitials))
	for i, l := range monthInitials {
		ticks[i] = plot.Tick{Value: float64(i + 1), Label: l}
	}
	return ticks
}

// Save writes a single plot. The format follows the file extension.
func Save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
