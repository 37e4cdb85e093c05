package domain

import (
	"fmt"
	"strings"
)

// Metadata is the per-file record written by the preprocessor
// (one entry of a metadata.yml file).
type Metadata struct {
	Filename      string `yaml:"filename"`
	Dataset       string `yaml:"dataset"`
	Exp           string `yaml:"exp"`
	Ensemble      string `yaml:"ensemble"`
	ShortName     string `yaml:"short_name"`
	LongName      string `yaml:"long_name"`
	Units         string `yaml:"units"`
	VariableGroup string `yaml:"variable_group"`
	Mip           string `yaml:"mip"`
	Project       string `yaml:"project"`
	Frequency     string `yaml:"frequency"`
	StartYear     int    `yaml:"start_year"`
	EndYear       int    `yaml:"end_year"`
}

// Validate reports the first required field that is absent.
func (m Metadata) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"dataset", m.Dataset},
		{"exp", m.Exp},
		{"ensemble", m.Ensemble},
		{"short_name", m.ShortName},
		{"variable_group", m.VariableGroup},
		{"mip", m.Mip},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: field %q", ErrMissingMetadata, f.name)
		}
	}
	return nil
}

// IsFixedField reports whether the record is a time-invariant field
// (cell areas, masks) that is never reduced to a series.
func (m Metadata) IsFixedField() bool {
	return m.Mip == "Ofx" || m.Mip == "fx"
}

// IsHistorical reports whether the record belongs to the historical experiment.
func (m Metadata) IsHistorical() bool {
	return IsHistorical(m.Exp)
}

// IsObservation reports whether the record is an observational reference
// rather than a model run.
func (m Metadata) IsObservation() bool {
	switch strings.ToUpper(m.Project) {
	case "OBS", "OBS6", "OBS4MIPS", "NATIVE6":
		return true
	}
	return !IsModelScenario(m.Exp)
}

// IsHistorical reports whether a scenario name is the historical experiment.
func IsHistorical(scenario string) bool {
	return scenario == "historical"
}

// IsModelScenario reports whether a scenario name is historical or a future
// pathway (ssp*/rcp*).
func IsModelScenario(scenario string) bool {
	return IsHistorical(scenario) ||
		strings.HasPrefix(scenario, "ssp") ||
		strings.HasPrefix(scenario, "rcp")
}

// SourceFile is a discovered input file. It is immutable once built.
type SourceFile struct {
	Path     string
	Metadata Metadata
}

// Key returns the series key the file contributes to.
func (f SourceFile) Key() SeriesKey {
	return KeyOf(f.Metadata)
}

// IsProfile reports whether the file feeds a vertical profile rather than a
// time series.
func (f SourceFile) IsProfile() bool {
	return strings.Contains(f.Metadata.VariableGroup, "_profile_")
}
