package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/climate-diag/internal/domain"
)

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}

	assert.Equal(t, 3.0, Percentile(values, 50))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 5.0, Percentile(values, 100))
	assert.InDelta(t, 1.2, Percentile(values, 5), 1e-12)
	assert.InDelta(t, 4.8, Percentile(values, 95), 1e-12)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values, "input must not be reordered")

	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, 2.0, Percentile([]float64{2}, 95))
	assert.Equal(t, 2.5, Percentile([]float64{1, math.NaN(), 4}, 50))
}

func TestCompute_UnionOfCoordinates(t *testing.T) {
	series := []domain.TimeSeries{
		{2000.5: 1, 2001.5: 2},
		{2000.5: 3},
		{2000.5: 5, 2002.5: 7},
	}

	got := Compute(series, []domain.Statistic{domain.StatMean, domain.StatMedian, domain.StatMin, domain.StatMax, domain.StatP5, domain.StatP95})

	require.Len(t, got, 6)
	mean := got[domain.StatMean]
	assert.Equal(t, []float64{2000.5, 2001.5, 2002.5}, mean.Coords())
	assert.Equal(t, 3.0, mean[2000.5])
	assert.Equal(t, 2.0, mean[2001.5], "a coordinate seen in one series uses that value alone")
	assert.Equal(t, 7.0, mean[2002.5])

	assert.Equal(t, 3.0, got[domain.StatMedian][2000.5])
	assert.Equal(t, 1.0, got[domain.StatMin][2000.5])
	assert.Equal(t, 5.0, got[domain.StatMax][2000.5])
	assert.InDelta(t, 1.2, got[domain.StatP5][2000.5], 1e-12)
	assert.InDelta(t, 4.8, got[domain.StatP95][2000.5], 1e-12)
}

func TestCompute_FivePointMedian(t *testing.T) {
	var series []domain.TimeSeries
	for v := 1.0; v <= 5; v++ {
		series = append(series, domain.TimeSeries{1990.5: v})
	}
	p50, err := domain.ParseStatistic("p50")
	require.NoError(t, err)

	got := Compute(series, []domain.Statistic{p50})

	assert.Equal(t, 3.0, got[p50][1990.5])
}

func TestGroupByScenario_KeepsHistoricalApart(t *testing.T) {
	entry := func(dataset, scenario, member string) domain.Entry {
		return domain.Entry{
			Key:    domain.SeriesKey{VariableGroup: "tos_ts_hist", ShortName: "tos", Dataset: dataset, Scenario: scenario, Ensemble: member},
			Series: domain.TimeSeries{2000.5: 1},
		}
	}
	entries := []domain.Entry{
		entry("UKESM1-0-LL", "historical", "r1i1p1f2"),
		entry("UKESM1-0-LL", "ssp585", "r1i1p1f2"),
		entry("CanESM5", "historical", "r1i1p1f1"),
		entry("CanESM5", "ssp585", "r1i1p1f1"),
		entry("CanESM5", "ssp126", "r2i1p1f1"),
	}

	byScenario := GroupByScenario(entries)
	assert.Equal(t, []GroupKey{{Scenario: "historical"}, {Scenario: "ssp585"}, {Scenario: "ssp126"}}, byScenario.Keys())
	for _, k := range byScenario.Keys() {
		for _, e := range byScenario.Get(k) {
			assert.Equal(t, k.Scenario, e.Key.Scenario)
		}
	}
	assert.Len(t, byScenario.Get(GroupKey{Scenario: "historical"}), 2)

	byDataset := GroupByDatasetScenario(entries)
	assert.Equal(t, 5, byDataset.Len())
	assert.Len(t, byDataset.Get(GroupKey{Dataset: "CanESM5", Scenario: "historical"}), 1)
	assert.Equal(t, "CanESM5 ssp126", GroupKey{Dataset: "CanESM5", Scenario: "ssp126"}.String())
}

func TestMeanField(t *testing.T) {
	a := domain.NewField([]float64{0, 1}, []float64{0})
	b := domain.NewField([]float64{0, 1}, []float64{0})
	a.Values[0][0], b.Values[0][0] = 1, 3
	a.Values[0][1] = 4

	m := MeanField([]*domain.Field{a, b})

	require.NotNil(t, m)
	assert.Equal(t, 2.0, m.Values[0][0])
	assert.Equal(t, 4.0, m.Values[0][1])
	assert.Nil(t, MeanField(nil))
}
