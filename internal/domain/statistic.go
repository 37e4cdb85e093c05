package domain

import (
	"strconv"
	"strings"
)

// Statistic names a cross-series reduction.
type Statistic string

// Supported statistics. Any "pNN" percentile is also accepted.
const (
	StatMean   Statistic = "mean"
	StatMedian Statistic = "median"
	StatMin    Statistic = "min"
	StatMax    Statistic = "max"
	StatP5     Statistic = "p5"
	StatP95    Statistic = "p95"
)

// DefaultStatistics are the reductions drawn on every panel.
var DefaultStatistics = []Statistic{StatMean, StatP5, StatP95}

// Percentile returns the percentile encoded in s ("p5" -> 5). ok is false
// for non-percentile statistics.
func (s Statistic) Percentile() (float64, bool) {
	if !strings.HasPrefix(string(s), "p") {
		return 0, false
	}
	p, err := strconv.ParseFloat(string(s)[1:], 64)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

// ParseStatistic validates a statistic name.
func ParseStatistic(name string) (Statistic, error) {
	s := Statistic(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case StatMean, StatMedian, StatMin, StatMax:
		return s, nil
	}
	if _, ok := s.Percentile(); ok {
		return s, nil
	}
	return "", &ConfigError{Setting: "statistic", Value: name, Reason: "expected one of mean, median, min, max or pNN"}
}

// ParseStatistics parses a comma separated list of statistic names.
func ParseStatistics(list string) ([]Statistic, error) {
	if strings.TrimSpace(list) == "" {
		return DefaultStatistics, nil
	}
	var out []Statistic
	for _, name := range strings.Split(list, ",") {
		s, err := ParseStatistic(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
