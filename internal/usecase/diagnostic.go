// Package usecase orchestrates the diagnostic: grouping inputs, reducing
// and caching series, ensemble statistics and rendering.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/plot"

	"go.ngs.io/climate-diag/internal/aggcache"
	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/ensemble"
	"go.ngs.io/climate-diag/internal/group"
	"go.ngs.io/climate-diag/internal/reduce"
	"go.ngs.io/climate-diag/internal/render"
)

// ErrNotFound marks a query that matched nothing.
var ErrNotFound = errors.New("not found")

// Publisher uploads a directory tree.
type Publisher interface {
	PublishDir(ctx context.Context, dir, sub string) (int, error)
}

// DiagnosticConfig holds the parsed settings of a run.
type DiagnosticConfig struct {
	PlotDir      string
	Format       string
	SkipDatasets []string
	Windows      []reduce.Window
	Statistics   []domain.Statistic
	HistRange    reduce.TimeRange
	SSPRange     reduce.TimeRange
}

// DiagnosticResult summarises a run.
type DiagnosticResult struct {
	Figures []string
	Series  int
	Files   int // Input files assigned to a panel.
	Reads   int // Input files read, maps included.
	Loads   int // Series reduced from input files.
	Hits    int // Series served from the cache.
}

// Diagnostic draws one whole-diagnostic figure per variable and smoothing
// window.
type Diagnostic struct {
	cfg       DiagnosticConfig
	records   map[string]domain.Metadata
	reducer   *reduce.Reducer
	open      StoreOpener
	publisher Publisher
	cacheDir  string

	caches map[string]*aggcache.Cache
}

// NewDiagnostic creates a diagnostic over the given input records. publisher
// may be nil.
func NewDiagnostic(cfg DiagnosticConfig, records map[string]domain.Metadata, reducer *reduce.Reducer, open StoreOpener, publisher Publisher) *Diagnostic {
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = []reduce.Window{{Kind: reduce.WindowNone}}
	}
	if len(cfg.Statistics) == 0 {
		cfg.Statistics = domain.DefaultStatistics
	}
	return &Diagnostic{
		cfg:       cfg,
		records:   records,
		reducer:   reducer,
		open:      open,
		publisher: publisher,
		caches:    make(map[string]*aggcache.Cache),
	}
}

// WithCacheDir sets the directory published alongside the plots.
func (d *Diagnostic) WithCacheDir(dir string) *Diagnostic {
	d.cacheDir = dir
	return d
}

// variable collects everything drawn for one short_name.
type variable struct {
	shortName string
	longName  string
	units     string

	timeSeries []domain.Entry
	profiles   []domain.Entry
	maps       map[string][]*domain.Field // Scenario, or "obs", to fields.

	observations map[domain.SeriesKey]bool
}

// Run executes the diagnostic. Cached series are flushed after every
// variable group, so an aborted run keeps the reductions it finished.
func (d *Diagnostic) Run(ctx context.Context) (*DiagnosticResult, error) {
	buckets, err := group.Group(d.records, d.cfg.SkipDatasets)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"files":       buckets.Total(),
		"time_series": buckets.TimeSeries.Len(),
		"profiles":    buckets.Profiles.Len(),
		"maps":        buckets.Maps.Len(),
	}).Info("grouped input files")

	vars := make(map[string]*variable)
	if err := d.collectSeries(ctx, buckets.TimeSeries, vars, false); err != nil {
		return nil, err
	}
	if err := d.collectSeries(ctx, buckets.Profiles, vars, true); err != nil {
		return nil, err
	}
	if err := d.collectMaps(ctx, buckets.Maps, vars); err != nil {
		return nil, err
	}

	res := &DiagnosticResult{Files: buckets.Total()}
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := vars[n]
		res.Series += len(v.timeSeries) + len(v.profiles)
		for _, w := range d.cfg.Windows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path, err := d.drawFigure(v, w)
			if err != nil {
				return nil, err
			}
			res.Figures = append(res.Figures, path)
		}
	}

	if err := d.flush(); err != nil {
		return nil, err
	}
	for _, c := range d.caches {
		s := c.Stats()
		res.Loads += s.Loads
		res.Hits += s.Hits
	}
	res.Reads = d.reducer.Loads()
	log.WithFields(log.Fields{
		"figures": len(res.Figures),
		"series":  res.Series,
		"reads":   humanize.Comma(int64(res.Reads)),
		"loads":   humanize.Comma(int64(res.Loads)),
		"hits":    humanize.Comma(int64(res.Hits)),
	}).Info("diagnostic complete")

	if d.publisher != nil {
		if _, err := d.publisher.PublishDir(ctx, d.cfg.PlotDir, "plots"); err != nil {
			return nil, err
		}
		if d.cacheDir != "" {
			if _, err := d.publisher.PublishDir(ctx, d.cacheDir, "cache"); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (d *Diagnostic) cache(shortName string) (*aggcache.Cache, error) {
	if c, ok := d.caches[shortName]; ok {
		return c, nil
	}
	c := aggcache.New(d.open(shortName), d.reducer)
	if err := c.Load(); err != nil {
		return nil, err
	}
	d.caches[shortName] = c
	return c, nil
}

func (d *Diagnostic) flush() error {
	for name, c := range d.caches {
		if !c.Dirty() {
			continue
		}
		log.WithField("short_name", name).Debug("flushing series cache")
		if err := c.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Diagnostic) variableFor(vars map[string]*variable, md domain.Metadata) *variable {
	v, ok := vars[md.ShortName]
	if !ok {
		v = &variable{
			shortName:    md.ShortName,
			maps:         make(map[string][]*domain.Field),
			observations: make(map[domain.SeriesKey]bool),
		}
		vars[md.ShortName] = v
	}
	if v.longName == "" {
		v.longName = md.LongName
	}
	if v.units == "" {
		v.units = md.Units
	}
	return v
}

func (d *Diagnostic) collectSeries(ctx context.Context, bucket *domain.MultiMap[string, string], vars map[string]*variable, profiles bool) error {
	for _, vg := range bucket.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		files := group.SourceFiles(bucket.Get(vg), d.records)
		byKey := group.ByKey(files)
		for _, key := range byKey.Keys() {
			keyFiles := byKey.Get(key)
			md := keyFiles[0].Metadata
			if profiles != keyFiles[0].IsProfile() {
				// A group matching several markers is drawn by the panel its
				// reduction suits.
				continue
			}
			c, err := d.cache(key.ShortName)
			if err != nil {
				return err
			}
			ts, err := c.GetOrCompute(key, keyFiles)
			if err != nil {
				return err
			}
			if len(ts) == 0 {
				continue
			}
			v := d.variableFor(vars, md)
			if md.IsObservation() {
				v.observations[key] = true
			}
			e := domain.Entry{Key: key, Series: ts}
			if profiles {
				v.profiles = append(v.profiles, e)
			} else {
				v.timeSeries = append(v.timeSeries, e)
			}
		}
		if err := d.flush(); err != nil {
			return err
		}
	}
	return nil
}

// collectMaps reduces every map file on each run. Maps are time means over
// a fixed range, so they are not stored in the series cache.
func (d *Diagnostic) collectMaps(ctx context.Context, bucket *domain.MultiMap[string, string], vars map[string]*variable) error {
	for _, vg := range bucket.Keys() {
		for _, f := range group.SourceFiles(bucket.Get(vg), d.records) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if f.Metadata.IsFixedField() {
				continue
			}
			field, err := d.reducer.Map(f)
			if err != nil {
				return err
			}
			v := d.variableFor(vars, f.Metadata)
			slot := f.Metadata.Exp
			if f.Metadata.IsObservation() {
				slot = obsSlot
			}
			v.maps[slot] = append(v.maps[slot], field)
		}
	}
	return nil
}

const obsSlot = "obs"

// rangeFor returns the averaging period of a scenario.
func (d *Diagnostic) rangeFor(scenario string) reduce.TimeRange {
	if domain.IsModelScenario(scenario) && !domain.IsHistorical(scenario) {
		return d.cfg.SSPRange
	}
	return d.cfg.HistRange
}

// FigurePath returns where the whole-diagnostic figure of a variable and
// window is written.
func (d *Diagnostic) FigurePath(shortName string, w reduce.Window) string {
	parts := []string{"multi_model_whole_plot", shortName}
	if l := w.Label(); l != "" {
		parts = append(parts, l)
	}
	parts = append(parts, d.cfg.HistRange.String(), "vs", d.cfg.SSPRange.String())
	name := strings.Join(parts, "_") + "." + d.cfg.Format
	return filepath.Join(d.cfg.PlotDir, "whole_plot", name)
}

func (d *Diagnostic) drawFigure(v *variable, w reduce.Window) (string, error) {
	yLabel := v.shortName
	if v.units != "" {
		yLabel = fmt.Sprintf("%s (%s)", v.shortName, v.units)
	}
	title := v.longName
	if title == "" {
		title = v.shortName
	}

	tsPanel := d.timeSeriesPanel(v, w)
	tsPanel.Title, tsPanel.XLabel, tsPanel.YLabel = title, "Year", yLabel
	if w.String() != "" {
		tsPanel.Title = fmt.Sprintf("%s (%s moving average)", title, w)
	}

	climPanel := d.climatologyPanel(v)
	climPanel.Title, climPanel.XLabel, climPanel.YLabel = "Climatology", "Month", yLabel

	profPanel := d.profilePanel(v)
	profPanel.Title, profPanel.XLabel, profPanel.YLabel = "Profile", yLabel, "Depth (m)"

	fig := &render.Figure{}
	var err error
	if !tsPanel.Empty() {
		if fig.TimeSeries, err = render.NewPanelPlot(tsPanel); err != nil {
			return "", err
		}
	}
	if !climPanel.Empty() {
		if fig.Climatology, err = render.NewPanelPlot(climPanel); err != nil {
			return "", err
		}
	}
	if fig.Profile, fig.ProfileDeep, err = render.NewProfilePlots(profPanel); err != nil {
		return "", err
	}
	fig.Maps = d.mapPlots(v)

	path := d.FigurePath(v.shortName, w)
	log.Infof("saving plots to %s", path)
	if err := fig.Save(path, render.FigureWidth, render.FigureHeight); err != nil {
		return "", err
	}
	return path, nil
}

// split separates observational entries from model entries.
func split(entries []domain.Entry, obs map[domain.SeriesKey]bool) (models, observations []domain.Entry) {
	for _, e := range entries {
		if obs[e.Key] {
			observations = append(observations, e)
		} else {
			models = append(models, e)
		}
	}
	return models, observations
}

// bands computes one ensemble band per scenario.
func (d *Diagnostic) bands(models []domain.Entry) []render.Band {
	groups := ensemble.GroupByScenario(models)
	keys := groups.Keys()
	sort.Slice(keys, func(i, j int) bool { return scenarioOrder(keys[i].Scenario) < scenarioOrder(keys[j].Scenario) })

	centre, low, high := bandStatistics(d.cfg.Statistics)
	out := make([]render.Band, 0, len(keys))
	for i, k := range keys {
		members := groups.Get(k)
		stats := ensemble.Compute(ensemble.Series(members), []domain.Statistic{centre, low, high})
		out = append(out, render.Band{
			Label: fmt.Sprintf("%s (%d)", k.Scenario, len(members)),
			Color: render.ScenarioColor(k.Scenario, i),
			Mean:  stats[centre],
			Low:   stats[low],
			High:  stats[high],
		})
	}
	return out
}

// bandStatistics picks the centre line and the range of a band from the
// configured statistics.
func bandStatistics(stats []domain.Statistic) (centre, low, high domain.Statistic) {
	centre, low, high = domain.StatMean, domain.StatP5, domain.StatP95
	lowP, highP := 101.0, -1.0
	hasMean := false
	for _, s := range stats {
		switch s {
		case domain.StatMean:
			hasMean = true
		case domain.StatMedian:
			if !hasMean {
				centre = s
			}
		case domain.StatMin:
			low, lowP = s, 0
		case domain.StatMax:
			high, highP = s, 100
		}
		if p, ok := s.Percentile(); ok {
			if p < lowP && p < 50 {
				low, lowP = s, p
			}
			if p > highP && p > 50 {
				high, highP = s, p
			}
		}
	}
	if hasMean {
		centre = domain.StatMean
	}
	return centre, low, high
}

// scenarioOrder sorts historical first, then future pathways by name.
func scenarioOrder(s string) string {
	if domain.IsHistorical(s) {
		return "0"
	}
	return "1" + s
}

func observationLines(observations []domain.Entry) []render.Line {
	lines := make([]render.Line, 0, len(observations))
	for _, e := range observations {
		lines = append(lines, render.Line{
			Label:  e.Key.Dataset,
			Color:  render.ObservationColor,
			Series: e.Series,
		})
	}
	return lines
}

func (d *Diagnostic) timeSeriesPanel(v *variable, w reduce.Window) render.Panel {
	smoothed := make([]domain.Entry, len(v.timeSeries))
	for i, e := range v.timeSeries {
		smoothed[i] = domain.Entry{Key: e.Key, Series: w.Apply(e.Series)}
	}
	models, obs := split(smoothed, v.observations)

	p := render.Panel{Bands: d.bands(models)}

	// Thin dashed lines for each dataset's own ensemble mean.
	perDataset := ensemble.GroupByDatasetScenario(models)
	for _, k := range perDataset.Keys() {
		members := perDataset.Get(k)
		if len(members) < 2 {
			continue
		}
		mean := ensemble.Compute(ensemble.Series(members), []domain.Statistic{domain.StatMean})[domain.StatMean]
		p.Lines = append(p.Lines, render.Line{
			Color:  render.Translucent(render.ScenarioColor(k.Scenario, 0), 160),
			Series: mean,
			Dashed: true,
		})
	}
	p.Lines = append(p.Lines, observationLines(obs)...)
	return p
}

func (d *Diagnostic) climatologyPanel(v *variable) render.Panel {
	clims := make([]domain.Entry, len(v.timeSeries))
	for i, e := range v.timeSeries {
		clims[i] = domain.Entry{Key: e.Key, Series: reduce.Climatology(e.Series, d.rangeFor(e.Key.Scenario))}
	}
	models, obs := split(clims, v.observations)
	return render.Panel{
		Bands:      d.bands(models),
		Lines:      observationLines(obs),
		MonthTicks: true,
	}
}

func (d *Diagnostic) profilePanel(v *variable) render.Panel {
	models, obs := split(v.profiles, v.observations)
	return render.Panel{
		Bands:   d.bands(models),
		Lines:   observationLines(obs),
		Profile: true,
	}
}

// mapPlots draws the historical and observed means in the first column and
// the future pathways after them, on a shared colour scale.
func (d *Diagnostic) mapPlots(v *variable) []*plot.Plot {
	if len(v.maps) == 0 {
		return nil
	}
	means := make(map[string]*domain.Field, len(v.maps))
	var future []string
	for slot, fields := range v.maps {
		means[slot] = ensemble.MeanField(fields)
		if slot != obsSlot && !domain.IsHistorical(slot) {
			future = append(future, slot)
		}
	}
	sort.Strings(future)

	all := make([]*domain.Field, 0, len(means))
	for _, f := range means {
		all = append(all, f)
	}
	scale, ok := render.FieldsRange(all...)
	if !ok {
		return nil
	}

	slots := append([]string{"historical", obsSlot}, future...)
	plots := make([]*plot.Plot, 0, len(slots))
	for _, slot := range slots {
		f, ok := means[slot]
		if !ok {
			plots = append(plots, nil)
			continue
		}
		title := slot
		if slot == obsSlot {
			title = "observations"
		}
		plots = append(plots, render.NewMapPlot(title, f, scale))
	}
	return plots
}
