// Package main provides the read-only climate-diag HTTP server over the
// series cache.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"go.ngs.io/climate-diag/internal/adapter/store/series"
	httpHandler "go.ngs.io/climate-diag/internal/http"
	mylog "go.ngs.io/climate-diag/internal/log"
	"go.ngs.io/climate-diag/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("climate-diag-server version %s\n", version)
		return
	}

	mylog.InitLogger("")

	// Load configuration from environment.
	port := getEnv("PORT", "8080")
	workDir := getEnv("WORK_DIR", "")
	skip := splitList(getEnv("DIAG_SKIP_DATASETS", ""))

	cacheDir, err := series.Dir(workDir)
	if err != nil {
		log.WithError(err).Fatal("failed to resolve cache directory")
	}

	log.WithFields(log.Fields{
		"port":  port,
		"cache": cacheDir,
		"skip":  skip,
	}).Info("starting climate-diag server")

	queryUC := usecase.NewQueryUseCase(func(shortName string) series.Store {
		return series.NewNetCDFStore(cacheDir, shortName)
	}, skip)

	router := httpHandler.SetupRouter(queryUC)

	addr := fmt.Sprintf(":%s", port)
	log.Infof("server listening on %s", addr)
	log.Infof("health check: http://localhost:%s/health", port)

	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("climate-diag server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  climate-diag-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  WORK_DIR                Diagnostic work directory; the cache is WORK_DIR/cache")
	fmt.Println("  DIAG_CACHE_DIR          Series cache directory (overrides WORK_DIR)")
	fmt.Println("  DIAG_SKIP_DATASETS      Comma-separated datasets left out of every query")
	fmt.Println("  DIAG_LOG                Log level (default: info)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health           Health check")
	fmt.Println("  GET /v1/series        Cached series, filtered by key fields")
	fmt.Println("  GET /v1/ensemble      Ensemble statistics of cached series")
	fmt.Println()
}
