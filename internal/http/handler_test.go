package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"go.ngs.io/climate-diag/internal/adapter/store/series"
	"go.ngs.io/climate-diag/internal/domain"
	"go.ngs.io/climate-diag/internal/usecase"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	open := func(shortName string) series.Store { return series.NewNetCDFStore(dir, shortName) }
	k := domain.SeriesKey{VariableGroup: "tos_ts_hist", ShortName: "tos", Dataset: "CanESM5", Scenario: "historical"}
	r1, r2 := k, k
	r1.Ensemble, r2.Ensemble = "r1i1p1f1", "r2i1p1f1"
	require.NoError(t, open("tos").Save([]series.Record{
		{Key: r1, Series: domain.TimeSeries{2000.5: 10, 2001.5: 12}, Sources: []string{"a.nc"}},
		{Key: r2, Series: domain.TimeSeries{2000.5: 14, 2001.5: 16}, Sources: []string{"b.nc"}},
	}))
	return SetupRouter(usecase.NewQueryUseCase(open, nil))
}

func get(t *testing.T, router *gin.Engine, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := get(t, newRouter(t), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestGetSeries(t *testing.T) {
	w := get(t, newRouter(t), "/v1/series?short_name=tos&ensemble=r2i1p1f1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())
	assert.Equal(t, "CanESM5", gjson.Get(body, "series.0.key.dataset").String())
	assert.Equal(t, 2000.5, gjson.Get(body, "series.0.points.0.coord").Float())
	assert.Equal(t, 14.0, gjson.Get(body, "series.0.points.0.value").Float())
}

func TestGetEnsemble(t *testing.T) {
	w := get(t, newRouter(t), "/v1/ensemble?short_name=tos&variable_group=tos_ts_hist&scenario=historical&statistics=mean,max")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, int64(2), gjson.Get(body, "members.#").Int())
	assert.Equal(t, []float64{12, 14}, floats(gjson.Get(body, "statistics.mean.#.value")))
	assert.Equal(t, []float64{14, 16}, floats(gjson.Get(body, "statistics.max.#.value")))
}

func TestGetEnsemble_SkipDatasets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	open := func(shortName string) series.Store { return series.NewNetCDFStore(dir, shortName) }
	good := domain.SeriesKey{VariableGroup: "tos_ts_hist", ShortName: "tos", Dataset: "GOOD", Scenario: "historical", Ensemble: "r1i1p1f1"}
	skipped := good
	skipped.Dataset = "SKIPPED"
	require.NoError(t, open("tos").Save([]series.Record{
		{Key: good, Series: domain.TimeSeries{2000.5: 1}},
		{Key: skipped, Series: domain.TimeSeries{2000.5: 100}},
	}))
	router := SetupRouter(usecase.NewQueryUseCase(open, []string{"SKIPPED"}))

	w := get(t, router, "/v1/ensemble?short_name=tos&variable_group=tos_ts_hist&scenario=historical&statistics=mean")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "members.#").Int())
	assert.Equal(t, []float64{1}, floats(gjson.Get(body, "statistics.mean.#.value")))

	w = get(t, router, "/v1/series?short_name=tos")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "count").Int())
}

func TestErrorStatus(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		url  string
		code int
	}{
		{"/v1/series", http.StatusBadRequest},
		{"/v1/series?short_name=tos&moving_average=3%20weeks", http.StatusBadRequest},
		{"/v1/ensemble?short_name=tos&variable_group=tos_ts_hist", http.StatusBadRequest},
		{"/v1/ensemble?short_name=tos&variable_group=tos_ts_hist&scenario=ssp585", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			w := get(t, router, tt.url)
			assert.Equal(t, tt.code, w.Code)
			assert.NotEmpty(t, gjson.Get(w.Body.String(), "error").String())
		})
	}
}

func floats(r gjson.Result) []float64 {
	var out []float64
	for _, v := range r.Array() {
		out = append(out, v.Float())
	}
	return out
}
