package usecase

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.ngs.io/climate-diag/internal/adapter/store/series"
	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/ensemble"
	"go.ngs.io/climate-diag/internal/reduce"
)

// ErrInvalidRequest marks a query rejected before any store is read.
var ErrInvalidRequest = errors.New("invalid request")

// StoreOpener opens the series store of a variable.
type StoreOpener func(shortName string) series.Store

// SeriesRequest selects stored series. Empty filters match everything.
type SeriesRequest struct {
	ShortName     string
	VariableGroup string
	Dataset       string
	Scenario      string
	Ensemble      string

	// Optional smoothing, e.g. "5 years" or "annual".
	MovingAverage string
}

// SeriesResponse contains the matching series
type SeriesResponse struct {
	ShortName     string            `json:"short_name"`
	MovingAverage string            `json:"moving_average,omitempty"`
	Count         int               `json:"count"`
	Series        []SeriesEntry     `json:"series"`
	Meta          map[string]string `json:"meta"`
}

// SeriesEntry is one stored series
type SeriesEntry struct {
	Key     domain.SeriesKey `json:"key"`
	Sources int              `json:"sources"`
	Points  []domain.Point   `json:"points"`
}

// EnsembleRequest selects the members of one ensemble.
type EnsembleRequest struct {
	ShortName     string
	VariableGroup string
	Scenario      string
	Dataset       string // Empty pools every dataset.
	Statistics    string // Comma separated; empty selects mean,p5,p95.
	MovingAverage string
}

// EnsembleResponse contains the statistics of one ensemble
type EnsembleResponse struct {
	ShortName     string                    `json:"short_name"`
	VariableGroup string                    `json:"variable_group"`
	Group         string                    `json:"group"`
	Members       []domain.SeriesKey        `json:"members"`
	Statistics    map[string][]domain.Point `json:"statistics"`
}

// QueryUseCase answers read-only questions about the series stores. It
// never writes, so it can run alongside a diagnostic run.
type QueryUseCase struct {
	open    StoreOpener
	skipped map[string]bool
}

// NewQueryUseCase creates a new query use case. Records of the datasets in
// skipDatasets are never returned, as in a diagnostic run.
func NewQueryUseCase(open StoreOpener, skipDatasets []string) *QueryUseCase {
	skipped := make(map[string]bool, len(skipDatasets))
	for _, d := range skipDatasets {
		skipped[d] = true
	}
	return &QueryUseCase{open: open, skipped: skipped}
}

// Validate checks if the request is valid
func (r *SeriesRequest) Validate() error {
	_, err := r.parse()
	return err
}

func (r *SeriesRequest) parse() (reduce.Window, error) {
	if err := validateShortName(r.ShortName); err != nil {
		return reduce.Window{}, err
	}
	return reduce.ParseWindow(r.MovingAverage)
}

// Validate checks if the request is valid
func (r *EnsembleRequest) Validate() error {
	_, _, err := r.parse()
	return err
}

func (r *EnsembleRequest) parse() ([]domain.Statistic, reduce.Window, error) {
	if err := validateShortName(r.ShortName); err != nil {
		return nil, reduce.Window{}, err
	}
	if r.VariableGroup == "" {
		return nil, reduce.Window{}, fmt.Errorf("variable_group is required")
	}
	if r.Scenario == "" {
		return nil, reduce.Window{}, fmt.Errorf("scenario is required")
	}
	stats, err := domain.ParseStatistics(r.Statistics)
	if err != nil {
		return nil, reduce.Window{}, err
	}
	window, err := reduce.ParseWindow(r.MovingAverage)
	if err != nil {
		return nil, reduce.Window{}, err
	}
	return stats, window, nil
}

func validateShortName(name string) error {
	if name == "" {
		return fmt.Errorf("short_name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid short_name %q", name)
	}
	return nil
}

// Series returns the stored series matching req.
func (uc *QueryUseCase) Series(req SeriesRequest) (*SeriesResponse, error) {
	window, err := req.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	store := uc.open(req.ShortName)
	records, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", req.ShortName, err)
	}

	entries := make([]SeriesEntry, 0, len(records))
	for _, r := range records {
		if uc.skipped[r.Key.Dataset] || !req.matches(r.Key) {
			continue
		}
		entries = append(entries, SeriesEntry{
			Key:     r.Key,
			Sources: len(r.Sources),
			Points:  finitePoints(window.Apply(r.Series)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.String() < entries[j].Key.String() })

	return &SeriesResponse{
		ShortName:     req.ShortName,
		MovingAverage: window.String(),
		Count:         len(entries),
		Series:        entries,
		Meta:          map[string]string{"store": store.Path()},
	}, nil
}

func (r *SeriesRequest) matches(k domain.SeriesKey) bool {
	return (r.VariableGroup == "" || r.VariableGroup == k.VariableGroup) &&
		(r.Dataset == "" || r.Dataset == k.Dataset) &&
		(r.Scenario == "" || r.Scenario == k.Scenario) &&
		(r.Ensemble == "" || r.Ensemble == k.Ensemble)
}

// Ensemble computes statistics across the stored members of one ensemble.
func (uc *QueryUseCase) Ensemble(req EnsembleRequest) (*EnsembleResponse, error) {
	stats, window, err := req.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	records, err := uc.open(req.ShortName).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", req.ShortName, err)
	}

	var entries []domain.Entry
	for _, r := range records {
		if r.Key.VariableGroup != req.VariableGroup || uc.skipped[r.Key.Dataset] {
			continue
		}
		entries = append(entries, domain.Entry{Key: r.Key, Series: window.Apply(r.Series)})
	}

	groups := ensemble.GroupByScenario(entries)
	want := ensemble.GroupKey{Scenario: req.Scenario}
	if req.Dataset != "" {
		groups = ensemble.GroupByDatasetScenario(entries)
		want.Dataset = req.Dataset
	}
	members := groups.Get(want)
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no series for %s in %s", ErrNotFound, want, req.VariableGroup)
	}

	resp := &EnsembleResponse{
		ShortName:     req.ShortName,
		VariableGroup: req.VariableGroup,
		Group:         want.String(),
		Statistics:    make(map[string][]domain.Point, len(stats)),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, m.Key)
	}
	for s, ts := range ensemble.Compute(ensemble.Series(members), stats) {
		resp.Statistics[string(s)] = finitePoints(ts)
	}
	return resp, nil
}

// finitePoints drops NaN values, which JSON cannot carry.
func finitePoints(ts domain.TimeSeries) []domain.Point {
	points := ts.Points()
	out := points[:0]
	for _, p := range points {
		if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
			out = append(out, p)
		}
	}
	return out
}
