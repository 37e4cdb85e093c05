// Package main writes a synthetic CMIP-like input tree: NetCDF files for a
// few datasets, members and scenarios, the metadata.yml describing them and
// a settings.yml that runs the diagnostic over them.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"go.ngs.io/climate-diag/internal/adapter/cube"
	"go.ngs.io/climate-diag/internal/config"
	"go.ngs.io/climate-diag/internal/domain"
	mylog "go.ngs.io/climate-diag/internal/log"
)

// Warming rates (degC per year) relative to the start of each period.
var warming = map[string]float64{
	"historical": 0.012,
	"ssp126":     0.008,
	"ssp245":     0.02,
	"ssp370":     0.032,
	"ssp585":     0.045,
}

// Depths (m) of the synthetic profiles.
var profileDepths = []float64{5, 25, 50, 100, 250, 500, 1000, 2000, 4000}

// options control what is generated.
type options struct {
	outDir     string
	datasets   []string
	scenarios  []string
	members    int
	resolution float64
	histYears  [2]int
	sspYears   [2]int
	seed       uint64
}

// grid is a regular 0..360 lon / -90..90 lat grid of cell centres.
type grid struct {
	lat []float64
	lon []float64
}

func newGrid(resolution float64) grid {
	nLat := int(math.Round(180 / resolution))
	nLon := int(math.Round(360 / resolution))
	return grid{
		lat: domain.RegularAxis(-90+resolution/2, resolution, nLat),
		lon: domain.RegularAxis(resolution/2, resolution, nLon),
	}
}

// coarse is the grid profiles are written on.
var coarse = grid{
	lat: []float64{-60, -20, 20, 60},
	lon: []float64{45, 135, 225, 315},
}

func main() {
	outDir := flag.String("out", "./data/synthetic", "Output directory")
	datasets := flag.String("datasets", "CanESM5,UKESM1-0-LL,ACCESS-CM2", "Comma separated model datasets")
	scenarios := flag.String("scenarios", "historical,ssp126,ssp245,ssp585", "Comma separated scenarios")
	members := flag.Int("members", 2, "Ensemble members per dataset and scenario")
	resolution := flag.Float64("resolution", 10, "Map grid resolution in degrees")
	histStart := flag.Int("hist-start", 1990, "First historical year")
	histEnd := flag.Int("hist-end", 2014, "Last historical year")
	sspStart := flag.Int("ssp-start", 2015, "First scenario year")
	sspEnd := flag.Int("ssp-end", 2050, "Last scenario year")
	seed := flag.Uint64("seed", 1, "Noise seed")
	flag.Parse()

	mylog.InitLogger("")

	opts := options{
		outDir:     *outDir,
		datasets:   splitList(*datasets),
		scenarios:  splitList(*scenarios),
		members:    *members,
		resolution: *resolution,
		histYears:  [2]int{*histStart, *histEnd},
		sspYears:   [2]int{*sspStart, *sspEnd},
		seed:       *seed,
	}
	if opts.resolution <= 0 || opts.members < 1 || len(opts.datasets) == 0 {
		log.Fatal("resolution and members must be positive and at least one dataset is required")
	}

	records, err := generate(opts)
	if err != nil {
		log.WithError(err).Fatal("failed to generate inputs")
	}
	if err := writeMetadata(opts.outDir, records); err != nil {
		log.WithError(err).Fatal("failed to write metadata")
	}
	if err := writeSettings(opts); err != nil {
		log.WithError(err).Fatal("failed to write settings")
	}

	log.WithFields(log.Fields{
		"files": len(records),
		"out":   opts.outDir,
	}).Info("synthetic inputs written")
	fmt.Printf("\nRun the diagnostic with:\n  climate-diag run --settings %s\n", filepath.Join(opts.outDir, "settings.yml"))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// generate writes every input file and returns their metadata records.
func generate(opts options) (map[string]domain.Metadata, error) {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	fine := newGrid(opts.resolution)
	records := make(map[string]domain.Metadata)

	add := func(c *cube.Cube, md domain.Metadata) error {
		path := filepath.Join(opts.outDir, fmt.Sprintf("%s_%s_%s_%s_%s.nc", md.Project, md.Dataset, md.Exp, md.Ensemble, md.VariableGroup))
		if err := cube.WriteCube(path, c); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		md.Filename = path
		records[path] = md
		log.WithField("dataset", md.Dataset).Debugf("wrote %s", path)
		return nil
	}

	for di, ds := range opts.datasets {
		offset := float64(di)*0.6 - 0.6
		for _, exp := range opts.scenarios {
			years, period := opts.sspYears, "ssp"
			if domain.IsHistorical(exp) {
				years, period = opts.histYears, "hist"
			}
			for m := 1; m <= opts.members; m++ {
				md := domain.Metadata{
					Dataset:   ds,
					Exp:       exp,
					Ensemble:  fmt.Sprintf("r%di1p1f1", m),
					Mip:       "Omon",
					Project:   "CMIP6",
					Frequency: "mon",
					StartYear: years[0],
					EndYear:   years[1],
				}
				member := offset + rng.NormFloat64()*0.1

				tos := surfaceCube(fine, years, exp, member, rng)
				md.ShortName, md.LongName, md.Units = "tos", "Sea Surface Temperature", "degC"
				md.VariableGroup = "tos_ts_map_" + period
				if err := add(tos, md); err != nil {
					return nil, err
				}

				thetao := profileCube(coarse, years, exp, member, rng)
				md.ShortName, md.LongName = "thetao", "Sea Water Potential Temperature"
				md.VariableGroup = "thetao_profile_" + period
				if err := add(thetao, md); err != nil {
					return nil, err
				}
			}
		}
	}

	obs := domain.Metadata{
		Dataset:   "WOA",
		Exp:       "OBS",
		Ensemble:  "1",
		Mip:       "Omon",
		Project:   "OBS6",
		Frequency: "mon",
		StartYear: opts.histYears[0],
		EndYear:   opts.histYears[1],
	}
	obs.ShortName, obs.LongName, obs.Units, obs.VariableGroup = "tos", "Sea Surface Temperature", "degC", "tos_ts_map_obs"
	if err := add(surfaceCube(fine, opts.histYears, "historical", 0, rng), obs); err != nil {
		return nil, err
	}
	obs.ShortName, obs.LongName, obs.VariableGroup = "thetao", "Sea Water Potential Temperature", "thetao_profile_obs"
	if err := add(profileCube(coarse, opts.histYears, "historical", 0, rng), obs); err != nil {
		return nil, err
	}
	return records, nil
}

// monthlyTime returns mid-month times as days since 1850-01-01 on a 365-day
// calendar, and the same instants as years elapsed since the first year.
func monthlyTime(years [2]int) (raw, frac []float64) {
	for y := years[0]; y <= years[1]; y++ {
		for m := 0; m < 12; m++ {
			raw = append(raw, float64((y-1850)*365)+float64(m)*365/12+15)
			frac = append(frac, float64(y-years[0])+(float64(m)+0.5)/12)
		}
	}
	return raw, frac
}

// sst is a zonal sea surface temperature with a hemispheric seasonal cycle.
func sst(lat float64, yearFrac float64) float64 {
	base := 28*math.Cos(lat*math.Pi/180) - 1
	season := 2 * math.Sin(2*math.Pi*yearFrac) * math.Sin(lat*math.Pi/180)
	return base + season
}

func surfaceCube(g grid, years [2]int, exp string, offset float64, rng *rand.Rand) *cube.Cube {
	raw, frac := monthlyTime(years)
	rate := warming[exp]
	data := make([]float64, 0, len(raw)*len(g.lat)*len(g.lon))
	for _, t := range frac {
		for _, lat := range g.lat {
			for range g.lon {
				if math.Abs(lat) > 80 {
					data = append(data, math.NaN()) // Sea ice.
					continue
				}
				data = append(data, sst(lat, t)+rate*t+offset+rng.NormFloat64()*0.2)
			}
		}
	}
	return &cube.Cube{
		Name:      "tos",
		Units:     "degC",
		Dims:      []string{"time", "lat", "lon"},
		Shape:     []int{len(raw), len(g.lat), len(g.lon)},
		RawTime:   raw,
		TimeUnits: "days since 1850-01-01",
		Calendar:  "noleap",
		Lat:       g.lat,
		Lon:       g.lon,
		Data:      data,
	}
}

func profileCube(g grid, years [2]int, exp string, offset float64, rng *rand.Rand) *cube.Cube {
	raw, frac := monthlyTime(years)
	rate := warming[exp]
	data := make([]float64, 0, len(raw)*len(profileDepths)*len(g.lat)*len(g.lon))
	for _, t := range frac {
		for _, z := range profileDepths {
			// Warming and the seasonal cycle decay with depth.
			decay := math.Exp(-z / 500)
			for _, lat := range g.lat {
				for range g.lon {
					surface := sst(lat, t) + rate*t
					deep := 2.0
					v := deep + (surface-deep)*math.Exp(-z/800) + offset*decay + rng.NormFloat64()*0.05
					data = append(data, v)
				}
			}
		}
	}
	return &cube.Cube{
		Name:      "thetao",
		Units:     "degC",
		Dims:      []string{"time", "lev", "lat", "lon"},
		Shape:     []int{len(raw), len(profileDepths), len(g.lat), len(g.lon)},
		RawTime:   raw,
		TimeUnits: "days since 1850-01-01",
		Calendar:  "noleap",
		Depth:     profileDepths,
		Lat:       g.lat,
		Lon:       g.lon,
		Data:      data,
	}
}

func writeMetadata(dir string, records map[string]domain.Metadata) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, config.MetadataFile), data, 0o644) //nolint:gosec
}

func writeSettings(opts options) error {
	s := config.Settings{
		InputFiles:     []string{opts.outDir},
		PlotDir:        filepath.Join(opts.outDir, "plots"),
		WorkDir:        filepath.Join(opts.outDir, "work"),
		OutputFileType: "png",
		LogLevel:       "info",
		MovingAverage:  config.StringList{"", "5 years"},
		Operator:       "mean",
		HistTimeRange:  []float64{float64(opts.histYears[0]), float64(opts.histYears[1])},
		SSPTimeRange:   []float64{float64(opts.sspYears[0]), float64(opts.sspYears[1])},
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.outDir, "settings.yml"), data, 0o644) //nolint:gosec
}
