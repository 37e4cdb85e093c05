// Package config loads the diagnostic settings file and the preprocessor
// metadata files it points at.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/reduce"
)

// MetadataFile is the name of the per-recipe metadata file written by the
// preprocessor.
const MetadataFile = "metadata.yml"

// Defaults.
var (
	DefaultHistTimeRange = []float64{1990, 2015}
	DefaultSSPTimeRange  = []float64{2015, 2050}
)

// StringList accepts either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Settings is the diagnostic settings file.
type Settings struct {
	InputFiles     []string   `yaml:"input_files"`
	PlotDir        string     `yaml:"plot_dir"`
	WorkDir        string     `yaml:"work_dir"`
	OutputFileType string     `yaml:"output_file_type"`
	LogLevel       string     `yaml:"log_level"`
	SkipDatasets   []string   `yaml:"skip_datasets"`
	MovingAverage  StringList `yaml:"moving_average"`
	Operator       string     `yaml:"operator"`
	Statistics     StringList `yaml:"statistics"`
	HistTimeRange  []float64  `yaml:"hist_time_range"`
	SSPTimeRange   []float64  `yaml:"ssp_time_range"`
	S3Bucket       string     `yaml:"s3_bucket"`
	S3Prefix       string     `yaml:"s3_prefix"`
	S3Region       string     `yaml:"s3_region"`
}

// Load reads and validates a settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SkipDatasets reads the skip_datasets list of a settings file without
// validating the rest of it. A missing file skips nothing.
func SkipDatasets(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var s struct {
		SkipDatasets []string `yaml:"skip_datasets"`
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return s.SkipDatasets, nil
}

func (s *Settings) applyDefaults() {
	if s.OutputFileType == "" {
		s.OutputFileType = "png"
	}
	if len(s.HistTimeRange) == 0 {
		s.HistTimeRange = DefaultHistTimeRange
	}
	if len(s.SSPTimeRange) == 0 {
		s.SSPTimeRange = DefaultSSPTimeRange
	}
}

// Validate checks settings that would otherwise fail late in a run.
func (s *Settings) Validate() error {
	if len(s.InputFiles) == 0 {
		return &domain.ConfigError{Setting: "input_files", Reason: "at least one metadata file is required"}
	}
	if _, err := s.Windows(); err != nil {
		return err
	}
	if _, err := reduce.ParseOperator(s.Operator); err != nil {
		return err
	}
	if _, err := s.ParsedStatistics(); err != nil {
		return err
	}
	if _, err := s.HistRange(); err != nil {
		return err
	}
	if _, err := s.SSPRange(); err != nil {
		return err
	}
	return nil
}

// Windows parses the moving-average settings. No setting means a single
// unsmoothed pass.
func (s *Settings) Windows() ([]reduce.Window, error) {
	raw := []string(s.MovingAverage)
	if len(raw) == 0 {
		raw = []string{""}
	}
	out := make([]reduce.Window, 0, len(raw))
	for _, r := range raw {
		w, err := reduce.ParseWindow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// ParsedStatistics returns the ensemble statistics to draw.
func (s *Settings) ParsedStatistics() ([]domain.Statistic, error) {
	return domain.ParseStatistics(strings.Join(s.Statistics, ","))
}

// HistRange returns the historical averaging period.
func (s *Settings) HistRange() (reduce.TimeRange, error) {
	return timeRange("hist_time_range", s.HistTimeRange)
}

// SSPRange returns the future-scenario averaging period.
func (s *Settings) SSPRange() (reduce.TimeRange, error) {
	return timeRange("ssp_time_range", s.SSPTimeRange)
}

func timeRange(setting string, v []float64) (reduce.TimeRange, error) {
	if len(v) != 2 || v[0] > v[1] {
		return reduce.TimeRange{}, &domain.ConfigError{
			Setting: setting,
			Value:   fmt.Sprint(v),
			Reason:  "expected [start_year, end_year]",
		}
	}
	return reduce.TimeRange{From: v[0], To: v[1]}, nil
}

// LoadMetadata reads every metadata file listed in input_files and returns
// the union of their records keyed by data file path. An entry may name a
// metadata file or a directory holding one.
func (s *Settings) LoadMetadata() (map[string]domain.Metadata, error) {
	out := make(map[string]domain.Metadata)
	for _, in := range s.InputFiles {
		path := in
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			path = filepath.Join(in, MetadataFile)
		}
		records, err := ReadMetadata(path)
		if err != nil {
			return nil, err
		}
		for p, md := range records {
			out[p] = md
		}
	}
	return out, nil
}

// ReadMetadata reads one metadata file. Records without a filename take the
// mapping key.
func ReadMetadata(path string) (map[string]domain.Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("metadata file %s does not exist: %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var records map[string]domain.Metadata
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	for p, md := range records {
		if md.Filename == "" {
			md.Filename = p
			records[p] = md
		}
	}
	return records, nil
}
