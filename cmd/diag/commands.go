package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/adapter/publish"
	"go.ngs.io/climate-diag/internal/adapter/store/series"
	"go.ngs.io/climate-diag/internal/config"
	mylog "go.ngs.io/climate-diag/internal/log"
	"go.ngs.io/climate-diag/internal/reduce"
	"go.ngs.io/climate-diag/internal/render"
	"go.ngs.io/climate-diag/internal/usecase"
)

func settingsFlag(path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "settings",
		Aliases: []string{"s"},
		Usage:   "settings file",
		Sources: cli.EnvVars("DIAG_SETTINGS"),
		Value:   path,
	}
}

func workDirFlag(path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "work-dir",
		Usage: "working directory holding the series cache",
		Sources: cli.NewValueSourceChain(
			yaml.YAML("work_dir", altsrc.StringSourcer(path)),
		),
	}
}

func logLevelFlag(path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (debug, info, warn, error)",
		Sources: cli.NewValueSourceChain(
			yaml.YAML("log_level", altsrc.StringSourcer(path)),
		),
	}
}

func skipDatasetsFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:    "skip-dataset",
		Usage:   "leave this dataset out, in addition to skip_datasets",
		Sources: cli.EnvVars("DIAG_SKIP_DATASETS"),
	}
}

func runCommand(path string) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "reduce the input files and draw the whole-diagnostic figures",
		UsageText: "climate-diag run [--settings FILE] [options]",
		Flags: []cli.Flag{
			settingsFlag(path),
			logLevelFlag(path),
			&cli.StringFlag{
				Name:  "format",
				Usage: "figure format (png, svg, pdf, eps, jpg, tif)",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("output_file_type", altsrc.StringSourcer(path)),
				),
				Validator: func(s string) error {
					if s == "" {
						return nil
					}
					_, err := render.ParseFormat(s)
					return err
				},
			},
			&cli.StringFlag{
				Name:  "plot-dir",
				Usage: "directory figures are written to",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("plot_dir", altsrc.StringSourcer(path)),
				),
			},
			&cli.StringFlag{
				Name:  "operator",
				Usage: "spatial collapse operator",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("operator", altsrc.StringSourcer(path)),
				),
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "upload figures and the series cache to s3_bucket",
			},
			&cli.StringFlag{
				Name:    "aws-profile",
				Usage:   "shared config profile used to publish",
				Sources: cli.EnvVars("AWS_PROFILE"),
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Usage:   "S3-compatible endpoint used to publish",
				Sources: cli.EnvVars("DIAG_S3_ENDPOINT"),
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	s, err := config.Load(cmd.String("settings"))
	if err != nil {
		return err
	}
	if v := cmd.String("log-level"); v != "" {
		s.LogLevel = v
	}
	if v := cmd.String("format"); v != "" {
		s.OutputFileType = v
	}
	if v := cmd.String("plot-dir"); v != "" {
		s.PlotDir = v
	}
	if v := cmd.String("operator"); v != "" {
		s.Operator = v
	}
	if err := s.Validate(); err != nil {
		return err
	}
	mylog.InitLogger(s.LogLevel)

	records, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	windows, err := s.Windows()
	if err != nil {
		return err
	}
	stats, err := s.ParsedStatistics()
	if err != nil {
		return err
	}
	hist, err := s.HistRange()
	if err != nil {
		return err
	}
	ssp, err := s.SSPRange()
	if err != nil {
		return err
	}

	reducer, err := reduce.NewReducer(cube.NewNetCDFLoader(), reduce.Options{
		Operator:    s.Operator,
		HistRange:   hist,
		FutureRange: ssp,
	})
	if err != nil {
		return err
	}

	cacheDir, err := series.Dir(s.WorkDir)
	if err != nil {
		return err
	}
	open := func(shortName string) series.Store { return series.NewNetCDFStore(cacheDir, shortName) }

	var publisher usecase.Publisher
	if cmd.Bool("publish") {
		if s.S3Bucket == "" {
			return errors.New("--publish needs s3_bucket in the settings")
		}
		p, err := publish.NewS3(ctx, s.S3Bucket, s.S3Prefix,
			publish.WithRegion(s.S3Region),
			publish.WithProfile(cmd.String("aws-profile")),
			publish.WithEndpoint(cmd.String("s3-endpoint")),
		)
		if err != nil {
			return err
		}
		publisher = p
	}

	cfg := usecase.DiagnosticConfig{
		PlotDir:      s.PlotDir,
		Format:       s.OutputFileType,
		SkipDatasets: s.SkipDatasets,
		Windows:      windows,
		Statistics:   stats,
		HistRange:    hist,
		SSPRange:     ssp,
	}
	log.WithFields(log.Fields{
		"inputs": len(records),
		"cache":  cacheDir,
	}).Info("starting diagnostic")

	res, err := usecase.NewDiagnostic(cfg, records, reducer, open, publisher).
		WithCacheDir(cacheDir).
		Run(ctx)
	if err != nil {
		return err
	}
	for _, f := range res.Figures {
		fmt.Fprintln(cmd.Root().Writer, f)
	}
	return nil
}

// queryUseCase opens the cache a run would write, leaving out the datasets
// the run would skip.
func queryUseCase(cmd *cli.Command) (*usecase.QueryUseCase, error) {
	cacheDir, err := series.Dir(cmd.String("work-dir"))
	if err != nil {
		return nil, err
	}
	skip, err := config.SkipDatasets(cmd.String("settings"))
	if err != nil {
		return nil, err
	}
	skip = append(skip, cmd.StringSlice("skip-dataset")...)
	log.WithField("skip", skip).Debug("querying series cache")

	return usecase.NewQueryUseCase(func(shortName string) series.Store {
		return series.NewNetCDFStore(cacheDir, shortName)
	}, skip), nil
}

func seriesCommand(path string) *cli.Command {
	return &cli.Command{
		Name:      "series",
		Usage:     "print cached series as JSON",
		UsageText: "climate-diag series SHORT_NAME [options]",
		Flags: []cli.Flag{
			settingsFlag(path),
			workDirFlag(path),
			skipDatasetsFlag(),
			&cli.StringFlag{Name: "variable-group", Usage: "only this variable group"},
			&cli.StringFlag{Name: "dataset", Usage: "only this dataset"},
			&cli.StringFlag{Name: "scenario", Usage: "only this scenario"},
			&cli.StringFlag{Name: "ensemble", Usage: "only this ensemble member"},
			&cli.StringFlag{Name: "moving-average", Usage: "smoothing window, e.g. \"5 years\" or annual"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			uc, err := queryUseCase(cmd)
			if err != nil {
				return err
			}
			resp, err := uc.Series(usecase.SeriesRequest{
				ShortName:     cmd.Args().First(),
				VariableGroup: cmd.String("variable-group"),
				Dataset:       cmd.String("dataset"),
				Scenario:      cmd.String("scenario"),
				Ensemble:      cmd.String("ensemble"),
				MovingAverage: cmd.String("moving-average"),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}
}

func ensembleCommand(path string) *cli.Command {
	return &cli.Command{
		Name:      "ensemble",
		Usage:     "print ensemble statistics of cached series as JSON",
		UsageText: "climate-diag ensemble SHORT_NAME --variable-group VG --scenario EXP [options]",
		Flags: []cli.Flag{
			settingsFlag(path),
			workDirFlag(path),
			skipDatasetsFlag(),
			&cli.StringFlag{Name: "variable-group", Usage: "variable group of the members", Required: true},
			&cli.StringFlag{Name: "scenario", Usage: "scenario of the members", Required: true},
			&cli.StringFlag{Name: "dataset", Usage: "restrict to one dataset's members"},
			&cli.StringFlag{
				Name:  "statistics",
				Usage: "comma separated statistics",
				Value: "mean,p5,p95",
			},
			&cli.StringFlag{Name: "moving-average", Usage: "smoothing window applied to each member"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			uc, err := queryUseCase(cmd)
			if err != nil {
				return err
			}
			resp, err := uc.Ensemble(usecase.EnsembleRequest{
				ShortName:     cmd.Args().First(),
				VariableGroup: cmd.String("variable-group"),
				Scenario:      cmd.String("scenario"),
				Dataset:       cmd.String("dataset"),
				Statistics:    cmd.String("statistics"),
				MovingAverage: cmd.String("moving-average"),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}
}

func purgeCommand(path string) *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "delete the cached series of one or more variables",
		UsageText: "climate-diag purge SHORT_NAME...",
		Flags: []cli.Flag{
			settingsFlag(path),
			workDirFlag(path),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one short name is required")
			}
			base, err := series.Dir(cmd.String("work-dir"))
			if err != nil {
				return err
			}
			for _, name := range cmd.Args().Slice() {
				if err := series.Purge(base, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeJSON(cmd *cli.Command, v any) error {
	w := cmd.Root().Writer
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
