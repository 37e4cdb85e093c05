package series

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/climate-diag/internal/domain"
)

var testKey = domain.SeriesKey{
	VariableGroup: "tos_ts_hist",
	ShortName:     "tos",
	Dataset:       "CanESM5",
	Scenario:      "historical",
	Ensemble:      "r1i1p1f1",
}

func TestNetCDFStore_LoadEmpty(t *testing.T) {
	s := NewNetCDFStore(t.TempDir(), "tos")

	records, err := s.Load()

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNetCDFStore_SaveAndLoad(t *testing.T) {
	base := t.TempDir()
	s := NewNetCDFStore(base, "tos")
	assert.Equal(t, filepath.Join(base, "tos"), s.Path())

	empty := testKey
	empty.Ensemble = "r2i1p1f1"
	require.NoError(t, s.Save([]Record{
		{Key: testKey, Series: domain.TimeSeries{2000.5: 1.5, 2001.5: 2.5}, Sources: []string{"/in/b.nc", "/in/a.nc"}},
		{Key: empty, Series: domain.TimeSeries{}, Sources: []string{"/in/c.nc"}},
	}))

	records, err := NewNetCDFStore(base, "tos").Load()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, testKey, records[0].Key)
	assert.Equal(t, domain.TimeSeries{2000.5: 1.5, 2001.5: 2.5}, records[0].Series)
	assert.Equal(t, []string{"/in/a.nc", "/in/b.nc"}, records[0].Sources)
	assert.Empty(t, records[1].Series)
	assert.Equal(t, []string{"/in/c.nc"}, records[1].Sources)

	_, err = os.Stat(filepath.Join(base, "tos", indexFile+".tmp"))
	assert.True(t, os.IsNotExist(err), "temporary files are renamed into place")
}

func TestWriteSeries_ClosedBeforeRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.nc")
	want := domain.TimeSeries{2000.5: 1, 2001.5: 2, 2002.5: 3}

	size, err := writeSeries(path, Record{Key: testKey, Series: want})

	require.NoError(t, err)
	assert.Positive(t, size)
	got, err := readSeries(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSeries_Failure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.nc")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))

	// An unwritable temporary sibling keeps the previous file in place.
	require.NoError(t, os.Mkdir(path+".tmp", 0o700))
	_, err := writeSeries(path, Record{Key: testKey, Series: domain.TimeSeries{1: 1}})

	require.Error(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestNetCDFStore_SaveReplacesRecord(t *testing.T) {
	s := NewNetCDFStore(t.TempDir(), "tos")
	require.NoError(t, s.Save([]Record{{Key: testKey, Series: domain.TimeSeries{1: 1}, Sources: []string{"a"}}}))
	require.NoError(t, s.Save([]Record{{Key: testKey, Series: domain.TimeSeries{1: 1, 2: 2}, Sources: []string{"a", "b"}}}))

	records, err := s.Load()

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Series, 2)
	assert.Equal(t, []string{"a", "b"}, records[0].Sources)
}

func TestNetCDFStore_KeyAttributes(t *testing.T) {
	base := t.TempDir()
	s := NewNetCDFStore(base, "tos")
	require.NoError(t, s.Save([]Record{{Key: testKey, Series: domain.TimeSeries{1: 1}}}))

	nc, err := netcdf.OpenFile(filepath.Join(s.Path(), encodeKey(testKey)+".nc"), netcdf.NOWRITE)
	require.NoError(t, err)
	defer func() { _ = nc.Close() }()

	a := nc.Attr("dataset")
	n, err := a.Len()
	require.NoError(t, err)
	buf := make([]byte, n)
	require.NoError(t, a.ReadBytes(buf))
	assert.Equal(t, "CanESM5", string(buf))
}

func TestNetCDFStore_CorruptIndex(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tos", indexFile), []byte("records: [unterminated"), 0o600))

	_, err := NewNetCDFStore(base, "tos").Load()

	assert.Error(t, err)
}

func TestPurge(t *testing.T) {
	base := t.TempDir()
	s := NewNetCDFStore(base, "tos")
	require.NoError(t, s.Save([]Record{{Key: testKey, Series: domain.TimeSeries{1: 1}}}))
	other := NewNetCDFStore(base, "thetao")
	require.NoError(t, other.Save([]Record{{Key: testKey, Series: domain.TimeSeries{1: 1}}}))

	require.NoError(t, Purge(base, "tos"))
	require.NoError(t, Purge(base, "tos"), "purging a missing cache is a no-op")

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	records, err = other.Load()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Error(t, Purge(base, "../thetao"))
	assert.Error(t, Purge(base, ""))
	assert.DirExists(t, other.Path())
}

func TestDir(t *testing.T) {
	t.Setenv("DIAG_CACHE_DIR", "/tmp/diag-cache")
	dir, err := Dir("/work")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/diag-cache", dir)

	t.Setenv("DIAG_CACHE_DIR", "")
	dir, err = Dir("/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", "cache"), dir)
}

func TestEncodeKey_Deterministic(t *testing.T) {
	other := testKey
	other.Scenario = "ssp585"

	assert.Equal(t, encodeKey(testKey), encodeKey(testKey))
	assert.NotEqual(t, encodeKey(testKey), encodeKey(other))
	assert.Len(t, encodeKey(testKey), 32)
}
