package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/climate-diag/internal/usecase"
)

// Handler handles HTTP requests for cached series and ensemble statistics.
type Handler struct {
	queryUC *usecase.QueryUseCase
}

// NewHandler creates a new HTTP handler.
func NewHandler(queryUC *usecase.QueryUseCase) *Handler {
	return &Handler{
		queryUC: queryUC,
	}
}

// GetSeries handles GET /v1/series.
func (h *Handler) GetSeries(c *gin.Context) {
	req := usecase.SeriesRequest{
		ShortName:     c.Query("short_name"),
		VariableGroup: c.Query("variable_group"),
		Dataset:       c.Query("dataset"),
		Scenario:      c.Query("scenario"),
		Ensemble:      c.Query("ensemble"),
		MovingAverage: c.Query("moving_average"),
	}

	response, err := h.queryUC.Series(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetEnsemble handles GET /v1/ensemble.
func (h *Handler) GetEnsemble(c *gin.Context) {
	req := usecase.EnsembleRequest{
		ShortName:     c.Query("short_name"),
		VariableGroup: c.Query("variable_group"),
		Scenario:      c.Query("scenario"),
		Dataset:       c.Query("dataset"),
		Statistics:    c.Query("statistics"),
		MovingAverage: c.Query("moving_average"),
	}

	response, err := h.queryUC.Ensemble(req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
