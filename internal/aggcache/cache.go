// Package aggcache memoises per-file reductions. Each series key maps to the
// union of the reductions of its source files, and the set of files already
// folded in is persisted with it so that no file is ever reduced twice.
//
// A Cache is not safe for concurrent use, and two processes must not share
// a store directory.
package aggcache

import (
	"fmt"

	"github.com/apex/log"

	"go.ngs.io/climate-diag/internal/adapter/store/series"
	"go.ngs.io/climate-diag/internal/domain"
)

// Reducer turns one source file into a series. ok is false when the file
// yields no series.
type Reducer interface {
	Reduce(f domain.SourceFile) (ts domain.TimeSeries, ok bool, err error)
}

// Stats counts cache activity.
type Stats struct {
	Loads  int // Files reduced.
	Hits   int // GetOrCompute calls answered without reducing.
	Misses int // GetOrCompute calls that reduced at least one file.
}

type entry struct {
	series  domain.TimeSeries
	sources map[string]bool
}

// Cache is the in-memory view of a series store.
type Cache struct {
	store   series.Store
	reducer Reducer

	entries map[domain.SeriesKey]*entry
	order   []domain.SeriesKey
	dirty   map[domain.SeriesKey]bool
	stats   Stats
}

// New returns an empty cache over store. Call Load to read prior entries.
func New(store series.Store, reducer Reducer) *Cache {
	return &Cache{
		store:   store,
		reducer: reducer,
		entries: make(map[domain.SeriesKey]*entry),
		dirty:   make(map[domain.SeriesKey]bool),
	}
}

// Load populates the cache from the store. A store that does not exist yet
// loads empty.
func (c *Cache) Load() error {
	records, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load cache %s: %w", c.store.Path(), err)
	}
	for _, r := range records {
		e := c.entry(r.Key)
		e.series.Merge(r.Series)
		for _, s := range r.Sources {
			e.sources[s] = true
		}
	}
	log.WithField("series", len(records)).Debugf("cache %s loaded", c.store.Path())
	return nil
}

// GetOrCompute returns the series for key. Files that belong to key and have
// not been folded in yet are reduced and merged, later files overwriting
// earlier ones on coordinate collisions. Files of another key
// and fixed fields are ignored. The returned series is a copy.
func (c *Cache) GetOrCompute(key domain.SeriesKey, files []domain.SourceFile) (domain.TimeSeries, error) {
	e, known := c.entries[key]

	var pending []domain.SourceFile
	for _, f := range files {
		if f.Key() != key || f.Metadata.IsFixedField() {
			continue
		}
		if known && e.sources[f.Path] {
			continue
		}
		pending = append(pending, f)
	}

	if known && len(pending) == 0 {
		c.stats.Hits++
		return e.series.Clone(), nil
	}

	c.stats.Misses++
	e = c.entry(key)
	for _, f := range pending {
		ts, ok, err := c.reducer.Reduce(f)
		if err != nil {
			return nil, err
		}
		c.stats.Loads++
		if ok {
			e.series.Merge(ts)
		}
		e.sources[f.Path] = true
		c.dirty[key] = true
	}
	if !known {
		c.dirty[key] = true
	}

	log.WithFields(log.Fields{
		"key":    key.String(),
		"files":  len(pending),
		"points": len(e.series),
	}).Debug("reduced series")
	return e.series.Clone(), nil
}

// Flush saves the entries added or extended since the last flush. It does
// nothing when the cache is clean.
func (c *Cache) Flush() error {
	if len(c.dirty) == 0 {
		return nil
	}
	records := make([]series.Record, 0, len(c.dirty))
	for _, k := range c.order {
		if !c.dirty[k] {
			continue
		}
		e := c.entries[k]
		sources := make([]string, 0, len(e.sources))
		for s := range e.sources {
			sources = append(sources, s)
		}
		records = append(records, series.Record{Key: k, Series: e.series.Clone(), Sources: sources})
	}
	if err := c.store.Save(records); err != nil {
		return fmt.Errorf("failed to flush cache %s: %w", c.store.Path(), err)
	}
	c.dirty = make(map[domain.SeriesKey]bool)
	return nil
}

// Dirty reports whether there are entries that have not been flushed.
func (c *Cache) Dirty() bool {
	return len(c.dirty) > 0
}

// Keys returns the cached keys in the order they were first seen.
func (c *Cache) Keys() []domain.SeriesKey {
	out := make([]domain.SeriesKey, len(c.order))
	copy(out, c.order)
	return out
}

// Series returns a copy of the cached series for key.
func (c *Cache) Series(key domain.SeriesKey) (domain.TimeSeries, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.series.Clone(), true
}

// Stats returns the activity counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

func (c *Cache) entry(key domain.SeriesKey) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{series: make(domain.TimeSeries), sources: make(map[string]bool)}
		c.entries[key] = e
		c.order = append(c.order, key)
	}
	return e
}
