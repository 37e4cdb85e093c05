// Package main provides the climate-diag command line: it runs the
// multi-model diagnostic and inspects or purges the series cache.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	mylog "go.ngs.io/climate-diag/internal/log"
)

const version = "0.1.0"

const defaultSettings = "settings.yml"

func main() {
	os.Exit(realMain(context.Background(), os.Args, os.Stdout))
}

func realMain(ctx context.Context, args []string, stdout io.Writer) int {
	mylog.InitLogger("")

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	}

	app := &cli.Command{
		Name:    "climate-diag",
		Usage:   "multi-model climate diagnostic",
		Version: version,
		Writer:  stdout,
		Commands: []*cli.Command{
			runCommand(settingsPath(args)),
			seriesCommand(settingsPath(args)),
			ensembleCommand(settingsPath(args)),
			purgeCommand(settingsPath(args)),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// settingsPath finds the settings file before the command is parsed, so the
// file can back flag defaults: --settings/-s, then DIAG_SETTINGS, then
// settings.yml.
func settingsPath(args []string) string {
	for i, a := range args {
		switch {
		case (a == "--settings" || a == "-s") && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(a, "--settings="):
			return strings.TrimPrefix(a, "--settings=")
		}
	}
	if p := os.Getenv("DIAG_SETTINGS"); p != "" {
		return p
	}
	return defaultSettings
}
