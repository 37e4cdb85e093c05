package ensemble

import "go.ngs.io/climate-diag/internal/domain"

// GroupKey identifies an ensemble. Dataset is empty for multi-model
// (scenario-only) ensembles.
type GroupKey struct {
	Dataset  string
	Scenario string
}

func (k GroupKey) String() string {
	if k.Dataset == "" {
		return k.Scenario
	}
	return k.Dataset + " " + k.Scenario
}

// GroupByScenario pools every member of every dataset that ran the same
// scenario. Scenarios are matched exactly, so historical members never share
// a group with a future pathway.
func GroupByScenario(entries []domain.Entry) *domain.MultiMap[GroupKey, domain.Entry] {
	groups := domain.NewMultiMap[GroupKey, domain.Entry]()
	for _, e := range entries {
		groups.Append(GroupKey{Scenario: e.Key.Scenario}, e)
	}
	return groups
}

// GroupByDatasetScenario groups the members of one dataset and scenario.
func GroupByDatasetScenario(entries []domain.Entry) *domain.MultiMap[GroupKey, domain.Entry] {
	groups := domain.NewMultiMap[GroupKey, domain.Entry]()
	for _, e := range entries {
		groups.Append(GroupKey{Dataset: e.Key.Dataset, Scenario: e.Key.Scenario}, e)
	}
	return groups
}

// Series extracts the series of a group's members.
func Series(entries []domain.Entry) []domain.TimeSeries {
	out := make([]domain.TimeSeries, len(entries))
	for i, e := range entries {
		out[i] = e.Series
	}
	return out
}
