package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/config"
)

func smallOptions(t *testing.T) options {
	t.Helper()
	return options{
		outDir:     t.TempDir(),
		datasets:   []string{"CanESM5"},
		scenarios:  []string{"historical", "ssp585"},
		members:    1,
		resolution: 45,
		histYears:  [2]int{2000, 2001},
		sspYears:   [2]int{2015, 2016},
		seed:       7,
	}
}

func TestGenerate(t *testing.T) {
	opts := smallOptions(t)

	records, err := generate(opts)
	require.NoError(t, err)
	require.NoError(t, writeMetadata(opts.outDir, records))

	read, err := config.ReadMetadata(filepath.Join(opts.outDir, config.MetadataFile))
	require.NoError(t, err)
	assert.Len(t, read, 6)
	for path, md := range read {
		require.NoError(t, md.Validate(), path)
		assert.FileExists(t, path)
	}

	loader := cube.NewNetCDFLoader()
	for path, md := range read {
		c, err := loader.Load(path, md.ShortName)
		require.NoError(t, err, path)
		assert.Len(t, c.Time, 24)
		assert.InDelta(t, float64(md.StartYear), c.Time[0], 0.1)
		if md.ShortName == "thetao" {
			assert.Equal(t, profileDepths, c.Depth)
		}
	}
}

func TestWriteSettings(t *testing.T) {
	opts := smallOptions(t)
	records, err := generate(opts)
	require.NoError(t, err)
	require.NoError(t, writeMetadata(opts.outDir, records))
	require.NoError(t, writeSettings(opts))

	s, err := config.Load(filepath.Join(opts.outDir, "settings.yml"))
	require.NoError(t, err)

	windows, err := s.Windows()
	require.NoError(t, err)
	assert.Len(t, windows, 2)
	hist, err := s.HistRange()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, hist.From)

	all, err := s.LoadMetadata()
	require.NoError(t, err)
	assert.Len(t, all, len(records))
}

func TestNewGrid(t *testing.T) {
	g := newGrid(10)

	assert.Len(t, g.lat, 18)
	assert.Len(t, g.lon, 36)
	assert.Equal(t, -85.0, g.lat[0])
	assert.Equal(t, 355.0, g.lon[35])
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}
