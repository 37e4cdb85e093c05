package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/adapter/store/series"
	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/reduce"
)

// writeFixture writes a 24-month, 2x2 surface field starting in startYear
// and returns its metadata record.
func writeFixture(t *testing.T, dir, dataset, exp, ensemble, group string, startYear int, base float64) (string, domain.Metadata) {
	t.Helper()
	const months = 24
	raw := make([]float64, months)
	data := make([]float64, 0, months*4)
	for m := 0; m < months; m++ {
		raw[m] = float64(m)*365.0/12 + 15
		for i := 0; i < 4; i++ {
			data = append(data, base+float64(m%12))
		}
	}
	c := &cube.Cube{
		Name:      "tos",
		Units:     "degC",
		Dims:      []string{"time", "lat", "lon"},
		Shape:     []int{months, 2, 2},
		RawTime:   raw,
		TimeUnits: fmt.Sprintf("days since %d-01-01", startYear),
		Calendar:  "noleap",
		Lat:       []float64{-45, 45},
		Lon:       []float64{0, 180},
		Data:      data,
	}
	path := filepath.Join(dir, fmt.Sprintf("tos_%s_%s_%s_%s.nc", dataset, exp, ensemble, group))
	require.NoError(t, cube.WriteCube(path, c))
	return path, domain.Metadata{
		Filename: path, Dataset: dataset, Exp: exp, Ensemble: ensemble, ShortName: "tos",
		LongName: "Sea Surface Temperature", Units: "degC", VariableGroup: group, Mip: "Omon", Project: "CMIP6",
	}
}

type fixture struct {
	records  map[string]domain.Metadata
	plotDir  string
	cacheDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "preproc")
	require.NoError(t, os.MkdirAll(in, 0o755))

	f := &fixture{
		records:  make(map[string]domain.Metadata),
		plotDir:  filepath.Join(root, "plots"),
		cacheDir: filepath.Join(root, "cache"),
	}
	add := func(path string, md domain.Metadata) { f.records[path] = md }
	add(writeFixture(t, in, "CanESM5", "historical", "r1i1p1f1", "tos_ts_hist", 2000, 10))
	add(writeFixture(t, in, "CanESM5", "historical", "r2i1p1f1", "tos_ts_hist", 2000, 11))
	add(writeFixture(t, in, "UKESM1-0-LL", "historical", "r1i1p1f2", "tos_ts_hist", 2000, 12))
	add(writeFixture(t, in, "CanESM5", "ssp585", "r1i1p1f1", "tos_ts_ssp", 2040, 20))
	add(writeFixture(t, in, "UKESM1-0-LL", "ssp585", "r1i1p1f2", "tos_ts_ssp", 2040, 22))
	add(writeFixture(t, in, "ACCESS-CM2", "historical", "r1i1p1f1", "tos_ts_hist", 2000, 1000))
	add(writeFixture(t, in, "CanESM5", "historical", "r1i1p1f1", "tos_map_hist", 2000, 10))
	add(writeFixture(t, in, "CanESM5", "ssp585", "r1i1p1f1", "tos_map_ssp", 2040, 20))

	obsPath, obs := writeFixture(t, in, "WOA", "OBS", "1", "tos_ts_obs", 2000, 9)
	obs.Project = "OBS6"
	add(obsPath, obs)

	fixed, fixedMD := writeFixture(t, in, "CanESM5", "historical", "r1i1p1f1", "tos_ts_fx", 2000, 0)
	fixedMD.Mip = "Ofx"
	add(fixed, fixedMD)
	return f
}

func (f *fixture) diagnostic(t *testing.T, loader cube.Loader, pub Publisher) *Diagnostic {
	t.Helper()
	hist := reduce.TimeRange{From: 2000, To: 2001}
	ssp := reduce.TimeRange{From: 2040, To: 2041}
	r, err := reduce.NewReducer(loader, reduce.Options{HistRange: hist, FutureRange: ssp})
	require.NoError(t, err)
	annual, err := reduce.ParseWindow("annual")
	require.NoError(t, err)

	cfg := DiagnosticConfig{
		PlotDir:      f.plotDir,
		Format:       "png",
		SkipDatasets: []string{"ACCESS-CM2"},
		Windows:      []reduce.Window{{Kind: reduce.WindowNone}, annual},
		HistRange:    hist,
		SSPRange:     ssp,
	}
	open := func(shortName string) series.Store { return series.NewNetCDFStore(f.cacheDir, shortName) }
	return NewDiagnostic(cfg, f.records, r, open, pub).WithCacheDir(f.cacheDir)
}

type countingLoader struct {
	cube.Loader
	loads map[string]int
}

func (l *countingLoader) Load(path, shortName string) (*cube.Cube, error) {
	l.loads[path]++
	return l.Loader.Load(path, shortName)
}

type recordingPublisher struct {
	dirs []string
}

func (p *recordingPublisher) PublishDir(_ context.Context, dir, sub string) (int, error) {
	p.dirs = append(p.dirs, sub+"="+dir)
	return 1, nil
}

func TestDiagnostic_Run(t *testing.T) {
	f := newFixture(t)
	loader := &countingLoader{Loader: cube.NewNetCDFLoader(), loads: make(map[string]int)}
	pub := &recordingPublisher{}

	res, err := f.diagnostic(t, loader, pub).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Figures, 2)
	for _, p := range res.Figures {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, filepath.Join(f.plotDir, "whole_plot", "multi_model_whole_plot_tos_annual_2000-2001_vs_2040-2041.png"), res.Figures[1])
	assert.Equal(t, 6, res.Series, "five model members and one observation")
	assert.Equal(t, 6, res.Loads)
	assert.Equal(t, 9, res.Files, "seven time series files and two maps; the skipped dataset is dropped")
	assert.Equal(t, 8, res.Reads, "every file but the fixed field")
	assert.Equal(t, []string{"plots=" + f.plotDir, "cache=" + f.cacheDir}, pub.dirs)

	for path, md := range f.records {
		if md.Dataset == "ACCESS-CM2" || md.Mip == "Ofx" {
			assert.Zero(t, loader.loads[path], "%s must not be loaded", path)
		}
	}

	records, err := series.NewNetCDFStore(f.cacheDir, "tos").Load()
	require.NoError(t, err)
	withData := 0
	for _, r := range records {
		assert.NotEqual(t, "ACCESS-CM2", r.Key.Dataset)
		if len(r.Series) > 0 {
			withData++
		}
		if r.Key.Scenario == "historical" {
			for c := range r.Series {
				assert.Less(t, c, 2003.0, "historical series hold only historical files")
			}
		}
	}
	assert.Equal(t, 6, withData, "fixed fields never reach the store with data")
}

func TestDiagnostic_SecondRunUsesCache(t *testing.T) {
	f := newFixture(t)
	first := &countingLoader{Loader: cube.NewNetCDFLoader(), loads: make(map[string]int)}
	_, err := f.diagnostic(t, first, nil).Run(context.Background())
	require.NoError(t, err)

	second := &countingLoader{Loader: cube.NewNetCDFLoader(), loads: make(map[string]int)}
	res, err := f.diagnostic(t, second, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Loads)
	assert.Equal(t, 7, res.Hits, "six members and the empty fixed-field entry")
	assert.Equal(t, 2, res.Reads, "maps are reduced on every run")
	for path, n := range second.loads {
		md := f.records[path]
		assert.Contains(t, md.VariableGroup, "_map_", "only maps are reloaded, not %s (%d)", path, n)
	}
}

func TestDiagnostic_MissingMetadata(t *testing.T) {
	f := newFixture(t)
	for p, md := range f.records {
		md.Ensemble = ""
		f.records[p] = md
		break
	}

	_, err := f.diagnostic(t, cube.NewNetCDFLoader(), nil).Run(context.Background())

	assert.ErrorIs(t, err, domain.ErrMissingMetadata)
}

func TestDiagnostic_MissingFile(t *testing.T) {
	f := newFixture(t)
	for p := range f.records {
		require.NoError(t, os.Remove(p))
	}

	_, err := f.diagnostic(t, cube.NewNetCDFLoader(), nil).Run(context.Background())

	assert.Error(t, err)
}

func TestBandStatistics(t *testing.T) {
	c, lo, hi := bandStatistics([]domain.Statistic{domain.StatMedian, "p10", "p90", "p25"})
	assert.Equal(t, domain.StatMedian, c)
	assert.Equal(t, domain.Statistic("p10"), lo)
	assert.Equal(t, domain.Statistic("p90"), hi)

	c, lo, hi = bandStatistics(domain.DefaultStatistics)
	assert.Equal(t, domain.StatMean, c)
	assert.Equal(t, domain.StatP5, lo)
	assert.Equal(t, domain.StatP95, hi)

	_, lo, hi = bandStatistics([]domain.Statistic{domain.StatMean, domain.StatMin, domain.StatMax})
	assert.Equal(t, domain.StatMin, lo)
	assert.Equal(t, domain.StatMax, hi)
}
