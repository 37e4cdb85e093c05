package series

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/fhs/go-netcdf/netcdf"
	"gopkg.in/yaml.v3"

	"go.ngs.io/climate-diag/internal/domain"
)

const indexFile = "index.yaml"

// index is the on-disk table of contents of a NetCDFStore.
type index struct {
	Records []indexRecord `yaml:"records"`
}

type indexRecord struct {
	Key     domain.SeriesKey `yaml:"key"`
	File    string           `yaml:"file,omitempty"`
	Points  int              `yaml:"points"`
	Sources []string         `yaml:"sources"`
}

// NetCDFStore keeps one NetCDF file per series under a directory, plus an
// index.yaml listing keys and source files.
type NetCDFStore struct {
	dir string
}

// NewNetCDFStore returns the store for shortName below base.
func NewNetCDFStore(base, shortName string) *NetCDFStore {
	return &NetCDFStore{dir: StorePath(base, shortName)}
}

// Path returns the store directory.
func (s *NetCDFStore) Path() string {
	return s.dir
}

// Load reads every record listed in the index.
func (s *NetCDFStore) Load() ([]Record, error) {
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(idx.Records))
	for _, ir := range idx.Records {
		ts := make(domain.TimeSeries)
		if ir.File != "" {
			ts, err = readSeries(filepath.Join(s.dir, ir.File))
			if err != nil {
				return nil, err
			}
		}
		records = append(records, Record{Key: ir.Key, Series: ts, Sources: ir.Sources})
	}
	log.WithField("records", len(records)).Debugf("loaded cache %s", s.dir)
	return records, nil
}

// Save writes the given records and merges them into the index. Records
// with a key already present replace the stored one.
func (s *NetCDFStore) Save(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	pos := make(map[domain.SeriesKey]int, len(idx.Records))
	for i, ir := range idx.Records {
		pos[ir.Key] = i
	}

	var written int64
	for _, r := range records {
		ir := indexRecord{Key: r.Key, Points: len(r.Series), Sources: append([]string(nil), r.Sources...)}
		sort.Strings(ir.Sources)
		// A zero-length dimension would be unlimited; empty series live in
		// the index only.
		if len(r.Series) > 0 {
			ir.File = encodeKey(r.Key) + ".nc"
			n, err := writeSeries(filepath.Join(s.dir, ir.File), r)
			if err != nil {
				return err
			}
			written += n
		}
		if i, ok := pos[r.Key]; ok {
			idx.Records[i] = ir
		} else {
			pos[r.Key] = len(idx.Records)
			idx.Records = append(idx.Records, ir)
		}
	}

	if err := s.writeIndex(idx); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"records": len(records),
		"size":    humanize.Bytes(uint64(written)), //nolint:gosec
	}).Infof("saved cache %s", s.dir)
	return nil
}

func (s *NetCDFStore) readIndex() (*index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return &index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}
	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse cache index %s: %w", filepath.Join(s.dir, indexFile), err)
	}
	return &idx, nil
}

func (s *NetCDFStore) writeIndex(idx *index) error {
	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to encode cache index: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, indexFile), func(tmp string) error {
		return os.WriteFile(tmp, data, 0o600) //nolint:mnd
	})
}

// writeAtomic lets write fill a temporary sibling of path, then renames it
// into place.
func writeAtomic(path string, write func(tmp string) error) error {
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// writeSeries writes one record as a NetCDF file and returns its size.
func writeSeries(path string, r Record) (int64, error) {
	err := writeAtomic(path, func(tmp string) error {
		return createSeriesFile(tmp, r)
	})
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

func createSeriesFile(path string, r Record) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fillSeriesFile(ds, r); err != nil {
		_ = ds.Close()
		return err
	}
	// Data is flushed on close; a failure here leaves a truncated file.
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func fillSeriesFile(ds netcdf.Dataset, r Record) error {
	dim, err := ds.AddDim("coord", uint64(len(r.Series)))
	if err != nil {
		return fmt.Errorf("failed to add dimension: %w", err)
	}
	coordVar, err := ds.AddVar("coord", netcdf.DOUBLE, []netcdf.Dim{dim})
	if err != nil {
		return fmt.Errorf("failed to add coord variable: %w", err)
	}
	valueVar, err := ds.AddVar("value", netcdf.DOUBLE, []netcdf.Dim{dim})
	if err != nil {
		return fmt.Errorf("failed to add value variable: %w", err)
	}

	attrs := []struct{ name, value string }{
		{"variable_group", r.Key.VariableGroup},
		{"short_name", r.Key.ShortName},
		{"dataset", r.Key.Dataset},
		{"scenario", r.Key.Scenario},
		{"ensemble", r.Key.Ensemble},
	}
	for _, a := range attrs {
		if a.value == "" {
			continue
		}
		if err := ds.Attr(a.name).WriteBytes([]byte(a.value)); err != nil {
			return fmt.Errorf("failed to write attribute %s: %w", a.name, err)
		}
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}
	if err := coordVar.WriteFloat64s(r.Series.Coords()); err != nil {
		return fmt.Errorf("failed to write coord: %w", err)
	}
	if err := valueVar.WriteFloat64s(r.Series.Values()); err != nil {
		return fmt.Errorf("failed to write value: %w", err)
	}
	return nil
}

//nolint:gosec // G304: path is built from the store directory and a hash.
func readSeries(path string) (domain.TimeSeries, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	coords, err := readDoubles(nc, "coord")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	values, err := readDoubles(nc, "value")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(coords) != len(values) {
		return nil, fmt.Errorf("%s: %d coordinates but %d values", path, len(coords), len(values))
	}
	return domain.NewTimeSeries(coords, values), nil
}

func readDoubles(nc netcdf.Dataset, name string) ([]float64, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found: %w", name, err)
	}
	n, err := v.Len()
	if err != nil {
		return nil, fmt.Errorf("failed to get length of %s: %w", name, err)
	}
	out := make([]float64, n)
	if err := v.ReadFloat64s(out); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return out, nil
}
