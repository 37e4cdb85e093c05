package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"go.ngs.io/climate-diag/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(queryUC *usecase.QueryUseCase) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}

	router.Use(cors.New(corsConfig))

	handler := NewHandler(queryUC)

	// API v1 routes. The API only reads the series stores.
	v1 := router.Group("/v1")
	v1.GET("/series", handler.GetSeries)
	v1.GET("/ensemble", handler.GetEnsemble)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}
