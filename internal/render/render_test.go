package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"go.ngs.io/climate-diag/internal/domain"
)

func band() Band {
	return Band{
		Label: "historical",
		Color: ScenarioColor("historical", 0),
		Mean:  domain.TimeSeries{2000.5: 1, 2001.5: 2, 2002.5: 3},
		Low:   domain.TimeSeries{2000.5: 0.5, 2001.5: 1.5, 2002.5: 2.5},
		High:  domain.TimeSeries{2000.5: 1.5, 2001.5: 2.5, 2002.5: 3.5},
	}
}

func TestScenarioColor(t *testing.T) {
	assert.Equal(t, uint8(255), ScenarioColor("historical", 0).B)
	assert.Equal(t, uint8(255), ScenarioColor("SSP585", 0).R)
	assert.Equal(t, ScenarioColor("piControl", 1), ScenarioColor("abrupt-4xCO2", 7))
}

func TestBandPolygon(t *testing.T) {
	b := band()
	b.Low = domain.TimeSeries{2000.5: 0.5, 2001.5: 1.5}

	poly := bandPolygon(b, false)

	require.NotNil(t, poly)
	require.Len(t, poly.XYs, 1)
	assert.Len(t, poly.XYs[0], 4, "only coordinates with both bounds are outlined")

	b.Low = domain.TimeSeries{2000.5: 0.5}
	assert.Nil(t, bandPolygon(b, false))
}

func TestXYs_Profile(t *testing.T) {
	pts := xys(domain.TimeSeries{0.5: 20, 100: 10}, true)

	require.Len(t, pts, 2)
	assert.Equal(t, 20.0, pts[0].X)
	assert.Equal(t, -0.5, pts[0].Y)
	assert.Equal(t, -100.0, pts[1].Y)
}

func TestNewPanelPlot_Save(t *testing.T) {
	p, err := NewPanelPlot(Panel{
		Title:  "tos",
		XLabel: "Year",
		Bands:  []Band{band()},
		Lines:  []Line{{Label: "WOA", Color: ObservationColor, Series: domain.TimeSeries{2000.5: 1.2, 2001.5: 2.1}}},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ts.png")
	require.NoError(t, Save(p, FigureWidth/2, FigureHeight/2, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestNewProfilePlots(t *testing.T) {
	levels := domain.TimeSeries{5: 20, 500: 10, 999: 6, 1000: 5, 3000: 2}
	p := Panel{
		Title:  "Profile",
		XLabel: "degC",
		Bands:  []Band{{Label: "historical", Mean: levels, Low: levels, High: levels}},
		Lines:  []Line{{Label: "WOA", Series: domain.TimeSeries{5: 21, 50: 19}}},
	}

	surface, deep, err := NewProfilePlots(p)
	require.NoError(t, err)
	require.NotNil(t, surface)
	require.NotNil(t, deep)

	assert.Equal(t, "Profile", surface.Title.Text)
	assert.Empty(t, surface.X.Label.Text)
	assert.Equal(t, -SplitDepth, surface.Y.Min)
	assert.Equal(t, -5.0, surface.Y.Max)

	assert.Empty(t, deep.Title.Text)
	assert.Equal(t, "degC", deep.X.Label.Text)
	assert.Equal(t, -SplitDepth, deep.Y.Max)
	assert.Equal(t, -3000.0, deep.Y.Min)

	// The value axis is shared.
	assert.Equal(t, surface.X.Min, deep.X.Min)
	assert.Equal(t, surface.X.Max, deep.X.Max)
	assert.Equal(t, 2.0, deep.X.Min)
	assert.Equal(t, 21.0, surface.X.Max)
}

func TestNewProfilePlots_SurfaceOnly(t *testing.T) {
	surface, deep, err := NewProfilePlots(Panel{Lines: []Line{{Series: domain.TimeSeries{5: 1, 100: 2}}}})

	require.NoError(t, err)
	assert.NotNil(t, surface)
	assert.Nil(t, deep)

	surface, deep, err = NewProfilePlots(Panel{})
	require.NoError(t, err)
	assert.Nil(t, surface)
	assert.Nil(t, deep)
}

func TestFigure_Save(t *testing.T) {
	ts, err := NewPanelPlot(Panel{Title: "time series", Bands: []Band{band()}})
	require.NoError(t, err)
	clim, err := NewPanelPlot(Panel{Title: "climatology", MonthTicks: true, Lines: []Line{{Series: domain.TimeSeries{1: 1, 2: 2}}}})
	require.NoError(t, err)

	f := domain.NewField([]float64{-1, 1}, []float64{-1, 1})
	f.Values[0][0], f.Values[1][1] = 1, 2
	r, ok := FieldsRange(f, nil)
	require.True(t, ok)
	assert.Equal(t, MapRange{Min: 1, Max: 2}, r)

	levels := domain.TimeSeries{5: 20, 500: 10, 2000: 3}
	surface, deep, err := NewProfilePlots(Panel{Title: "profile", Lines: []Line{{Series: levels}}})
	require.NoError(t, err)

	fig := &Figure{
		TimeSeries:  ts,
		Climatology: clim,
		Profile:     surface,
		ProfileDeep: deep,
		Maps:        []*plot.Plot{NewMapPlot("historical", f, r), NewMapPlot("obs", nil, r)},
	}

	for _, ext := range []string{"png", "svg"} {
		path := filepath.Join(t.TempDir(), "whole_plot."+ext)
		require.NoError(t, fig.Save(path, FigureWidth, FigureHeight), ext)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	err = fig.Save(filepath.Join(t.TempDir(), "whole_plot.gif"), FigureWidth, FigureHeight)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".PNG")
	require.NoError(t, err)
	assert.Equal(t, "png", f)

	_, err = ParseFormat("bmp")
	assert.Error(t, err)
}
