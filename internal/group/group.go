// Package group partitions preprocessed input files into the buckets the
// diagnostic draws: time series, vertical profiles and maps.
package group

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"

	"go.ngs.io/climate-diag/internal/domain"
)

// Bucket markers matched against the variable group.
const (
	MarkerTimeSeries = "_ts_"
	MarkerProfile    = "_profile_"
	MarkerMap        = "_map_"
)

// Buckets maps variable groups to their file paths, sorted by path, for each
// kind of panel.
type Buckets struct {
	TimeSeries *domain.MultiMap[string, string]
	Profiles   *domain.MultiMap[string, string]
	Maps       *domain.MultiMap[string, string]
}

// Total returns the number of (bucket, path) assignments.
func (b *Buckets) Total() int {
	n := 0
	for _, m := range []*domain.MultiMap[string, string]{b.TimeSeries, b.Profiles, b.Maps} {
		for _, k := range m.Keys() {
			n += len(m.Get(k))
		}
	}
	return n
}

// Group buckets records by a substring match of the variable group against
// each marker. Datasets in skip are excluded. A record may land in more
// than one bucket; records matching none are dropped. Every record must
// carry the required metadata fields.
func Group(records map[string]domain.Metadata, skip []string) (*Buckets, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	paths := make([]string, 0, len(records))
	for p := range records {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	b := &Buckets{
		TimeSeries: domain.NewMultiMap[string, string](),
		Profiles:   domain.NewMultiMap[string, string](),
		Maps:       domain.NewMultiMap[string, string](),
	}
	for _, p := range paths {
		md := records[p]
		if err := md.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if skipped[md.Dataset] {
			log.WithField("dataset", md.Dataset).Debugf("skipping %s", p)
			continue
		}
		vg := md.VariableGroup
		if strings.Contains(vg, MarkerTimeSeries) {
			b.TimeSeries.Append(vg, p)
		}
		if strings.Contains(vg, MarkerProfile) {
			b.Profiles.Append(vg, p)
		}
		if strings.Contains(vg, MarkerMap) {
			b.Maps.Append(vg, p)
		}
	}
	return b, nil
}

// SourceFiles resolves paths back to source files.
func SourceFiles(paths []string, records map[string]domain.Metadata) []domain.SourceFile {
	out := make([]domain.SourceFile, 0, len(paths))
	for _, p := range paths {
		out = append(out, domain.SourceFile{Path: p, Metadata: records[p]})
	}
	return out
}

// ByKey splits files into their series keys, in first-seen order.
func ByKey(files []domain.SourceFile) *domain.MultiMap[domain.SeriesKey, domain.SourceFile] {
	m := domain.NewMultiMap[domain.SeriesKey, domain.SourceFile]()
	for _, f := range files {
		m.Append(f.Key(), f)
	}
	return m
}
