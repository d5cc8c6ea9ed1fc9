package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/arkottke/sigmaspectra"
	"github.com/arkottke/sigmaspectra/library"
	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/search"
	"github.com/arkottke/sigmaspectra/suite"
	"github.com/arkottke/sigmaspectra/target"
)

// buildGridSpec returns a target.GridSpec from the select command's grid
// flags, or nil if the caller left the grid unrequested (periodMin,
// periodMax, and periods all zero, §4.4's input-table-passthrough path).
func buildGridSpec(periodMin, periodMax float64, periods int, spacing string) (*target.GridSpec, error) {
	if periodMin == 0 && periodMax == 0 && periods == 0 {
		return nil, nil
	}

	var sp target.Spacing
	switch strings.ToLower(spacing) {
	case "", "log":
		sp = target.Log
	case "linear":
		sp = target.Linear
	default:
		return nil, fmt.Errorf("%w: unknown spacing %q", sigmaspectra.ErrInvalidInput, spacing)
	}

	return &target.GridSpec{Spacing: sp, PeriodMin: periodMin, PeriodMax: periodMax, NumPeriods: periods}, nil
}

// selectSuites runs a full load-search-export pass over a directory of
// AT2 files against a target spectrum file (§4.7).
func selectSuites(libraryDir, targetFile, outDir string, damping float64, paired bool, seedSize, suiteSize, keepCount, minRequested, workers int, onePerStation bool, exportKind string, grid *target.GridSpec) error {
	log.Println("Loading target spectrum:", targetFile)
	tgt, err := loadTargetCSV(targetFile, grid)
	if err != nil {
		return err
	}

	log.Println("Searching library-dir:", libraryDir)
	lib, err := library.Load(libraryDir, library.Options{
		Paired: paired,
		Config: motion.SpectrumConfig{Period: tgt.Period(), Damping: damping},
	})
	if err != nil {
		return err
	}
	log.Println("Number of motions loaded:", len(lib.Motions()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := search.Params{
		SeedSize:      seedSize,
		SuiteSize:     suiteSize,
		KeepCount:     keepCount,
		OnePerStation: onePerStation,
		MinRequested:  minRequested,
	}

	suites, err := lib.Search(ctx, params, tgt, workers, func(p search.Progress) {
		log.Printf("progress %d%% eta %s: %s", p.Percent, p.ETA.Round(time.Second), p.Log)
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for i, s := range suites {
		s.ScaleMotions()
		err := exportSuite(outDir, i, s, tgt, exportKind)
		s.UnscaleMotions()
		if err != nil {
			return err
		}
	}

	log.Println("Finished, suites written:", len(suites))
	return nil
}

// exportSuite writes a single ranked suite in the requested export
// format, following the extension convention of §6. The output
// directory is always the caller's destination (§9 DESIGN NOTES:
// resolved Open Question 1).
func exportSuite(outdirURI string, rank int, s *suite.Suite, tgt *target.Spectrum, kind string) error {
	var name string
	switch kind {
	case "strata":
		name = fmt.Sprintf("suite-%02d.strata.csv", rank)
	case "shake2000":
		name = fmt.Sprintf("suite-%02d.shake2000.txt", rank)
	case "summary":
		name = fmt.Sprintf("suite-%02d.summary.csv", rank)
	case "json":
		name = fmt.Sprintf("suite-%02d.json", rank)
	default:
		name = fmt.Sprintf("suite-%02d.csv", rank)
	}

	f, err := os.Create(filepath.Join(outdirURI, name))
	if err != nil {
		return err
	}
	defer f.Close()

	switch kind {
	case "strata":
		return library.WriteStrata(f, s)
	case "shake2000":
		return library.WriteSHAKE2000(f, s)
	case "summary":
		return library.WriteSummary(f, s)
	case "json":
		return library.WriteJSON(f, s, tgt)
	default:
		return library.WriteCSV(f, s, tgt)
	}
}

// loadTargetCSV reads a target spectrum table of T,Sa,ln_sigma rows,
// tolerating an optional header row (§6: "no on-disk format is mandated
// by the core" — this is the driver's own convention). grid, if non-nil,
// requests interpolation onto a working period grid (§4.4).
func loadTargetCSV(path string, grid *target.GridSpec) (*target.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening target %s: %v", sigmaspectra.ErrIoError, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading target %s: %v", sigmaspectra.ErrIoError, path, err)
	}

	var tIn, saIn, lnSigIn []float64
	for _, row := range records {
		t, errT := strconv.ParseFloat(row[0], 64)
		sa, errSa := strconv.ParseFloat(row[1], 64)
		lnSig, errSig := strconv.ParseFloat(row[2], 64)
		if errT != nil || errSa != nil || errSig != nil {
			continue // header row
		}
		tIn = append(tIn, t)
		saIn = append(saIn, sa)
		lnSigIn = append(lnSigIn, lnSig)
	}

	return target.New(tIn, saIn, lnSigIn, grid)
}

// spectrumJSON is the wire shape printSpectrum emits (§4.8: "prints its
// response spectrum and summary scalars as JSON").
type spectrumJSON struct {
	Event     string    `json:"event"`
	Station   string    `json:"station"`
	Component string    `json:"component"`
	PGA       float64   `json:"pga"`
	PGV       float64   `json:"pgv"`
	PGD       float64   `json:"pgd"`
	Dur575    float64   `json:"dur_5_75"`
	Dur595    float64   `json:"dur_5_95"`
	Period    []float64 `json:"period"`
	Sa        []float64 `json:"sa"`
}

// printSpectrum loads a single AT2 file and prints its response spectrum
// and summary scalars as indented JSON over the requested period grid, a
// standalone diagnostic entry point onto C2 separate from the full suite
// search (§4.8).
func printSpectrum(path string, damping, periodMin, periodMax float64, periods int) error {
	period := make([]float64, periods)
	logMin, logMax := math.Log10(periodMin), math.Log10(periodMax)
	for i := range period {
		period[i] = math.Pow(10, logMin+float64(i)*(logMax-logMin)/float64(len(period)-1))
	}

	r, err := motion.LoadRecord(path, motion.SpectrumConfig{Period: period, Damping: damping})
	if err != nil {
		return err
	}

	doc := spectrumJSON{
		Event:     r.Event(),
		Station:   r.Station(),
		Component: r.Component(),
		PGA:       r.PGA(),
		PGV:       r.PGV(),
		PGD:       r.PGD(),
		Dur575:    r.Dur575(),
		Dur595:    r.Dur595(),
		Period:    period,
		Sa:        r.Sa(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}

func main() {
	app := &cli.App{
		Name:  "sigmaspectra",
		Usage: "ground-motion suite selection and scaling",
		Commands: []*cli.Command{
			{
				Name:  "select",
				Usage: "search a directory of AT2 records for suites matching a target spectrum",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "library-dir", Usage: "directory containing AT2 files"},
					&cli.StringFlag{Name: "target", Usage: "target spectrum CSV (T,Sa,ln_sigma)"},
					&cli.Float64Flag{Name: "period-min", Usage: "interpolated grid minimum period (s); omit with period-max/periods for no interpolation"},
					&cli.Float64Flag{Name: "period-max", Usage: "interpolated grid maximum period (s)"},
					&cli.IntFlag{Name: "periods", Usage: "interpolated grid point count (>=50)"},
					&cli.StringFlag{Name: "spacing", Value: "log", Usage: "linear or log"},
					&cli.Float64Flag{Name: "damping", Value: 0.05, Usage: "oscillator damping ratio"},
					&cli.BoolFlag{Name: "paired", Usage: "pair same-event/same-station components before search"},
					&cli.IntFlag{Name: "k", Value: 2, Usage: "seed tuple size"},
					&cli.IntFlag{Name: "m", Value: 7, Usage: "suite size"},
					&cli.IntFlag{Name: "K", Value: 10, Usage: "number of suites to retain"},
					&cli.IntFlag{Name: "min-requested", Value: 0, Usage: "minimum Requested-flagged members per suite"},
					&cli.BoolFlag{Name: "one-per-station", Usage: "forbid more than one member per station"},
					&cli.IntFlag{Name: "workers", Value: 1, Usage: "1 runs the sequential engine; >1 partitions the seed space across a pond worker pool"},
					&cli.StringFlag{Name: "out", Usage: "output directory for selected suites"},
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv, strata, shake2000, summary, or json"},
				},
				Action: func(cCtx *cli.Context) error {
					grid, err := buildGridSpec(cCtx.Float64("period-min"), cCtx.Float64("period-max"), cCtx.Int("periods"), cCtx.String("spacing"))
					if err != nil {
						return err
					}
					return selectSuites(
						cCtx.String("library-dir"),
						cCtx.String("target"),
						cCtx.String("out"),
						cCtx.Float64("damping"),
						cCtx.Bool("paired"),
						cCtx.Int("k"),
						cCtx.Int("m"),
						cCtx.Int("K"),
						cCtx.Int("min-requested"),
						cCtx.Int("workers"),
						cCtx.Bool("one-per-station"),
						cCtx.String("format"),
						grid,
					)
				},
			},
			{
				Name:  "spectrum",
				Usage: "compute and print the response spectrum of a single AT2 file as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "path to an AT2 file"},
					&cli.Float64Flag{Name: "period-min", Value: 0.01, Usage: "grid minimum period (s)"},
					&cli.Float64Flag{Name: "period-max", Value: 10.0, Usage: "grid maximum period (s)"},
					&cli.IntFlag{Name: "periods", Value: 100, Usage: "grid point count"},
					&cli.Float64Flag{Name: "damping", Value: 0.05, Usage: "oscillator damping ratio"},
				},
				Action: func(cCtx *cli.Context) error {
					return printSpectrum(cCtx.String("file"), cCtx.Float64("damping"), cCtx.Float64("period-min"), cCtx.Float64("period-max"), cCtx.Int("periods"))
				},
			},
			{
				Name:  "version",
				Usage: "print the sigmaspectra version",
				Action: func(cCtx *cli.Context) error {
					fmt.Println("sigmaspectra 0.1.0")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
