package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/breenafernanda/bess-shaving-dimensioner/internal/analysis"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/config"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/data"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/dispatch"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/finance"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/model"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/scenario"
	"github.com/breenafernanda/bess-shaving-dimensioner/internal/sizing"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "size":
		code = cmdSize(os.Args[2:])
	case "simulate":
		code = cmdSimulate(os.Args[2:])
	case "analyze":
		code = cmdAnalyze(os.Args[2:])
	case "sweep":
		code = cmdSweep(os.Args[2:])
	default:
		usage()
		code = exitUsage
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  cli size     --data meter.csv [--config scenario.yaml] [--reduction 20] [--investment 250000]")
	fmt.Fprintln(os.Stderr, "  cli simulate --data meter.csv [--power 40 --capacity 144] [--strategy grid-offpeak] [--out results/days.csv]")
	fmt.Fprintln(os.Stderr, "  cli analyze  --data meter.csv")
	fmt.Fprintln(os.Stderr, "  cli sweep    --data meter.csv --reductions 10,15,20,25,30 --investment 250000")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notes:")
	fmt.Fprintln(os.Stderr, "  - --data accepts a vendor CSV export or the JSON {timestamps, power_kw} form")
	fmt.Fprintln(os.Stderr, "  - simulate dimensions the battery first unless --power and --capacity are given")
	fmt.Fprintln(os.Stderr, "  - output is JSON on stdout; --format pretty prints a readable report")
}

// scenarioFlags are shared by every subcommand.
type scenarioFlags struct {
	fs         *flag.FlagSet
	dataPath   *string
	cfgPath    *string
	format     *string
	logLevel   *string
	reduction  *float64
	investment *float64
	power      *float64
	capacity   *float64
	strategy   *string
	initialSOC *float64
}

func newScenarioFlags(name string) *scenarioFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &scenarioFlags{
		fs:         fs,
		dataPath:   fs.String("data", "", "Path to the demand series (vendor CSV or JSON)"),
		cfgPath:    fs.String("config", "", "Optional scenario YAML; flags override it"),
		format:     fs.String("format", "json", "Output format: json or pretty"),
		logLevel:   fs.String("log-level", "", "Override the log level (debug, info, warn, error)"),
		reduction:  fs.Float64("reduction", 0, "Target peak reduction percent (default 20)"),
		investment: fs.Float64("investment", 0, "Investment cost; enables payback and ROI"),
		power:      fs.Float64("power", 0, "Battery power in kW"),
		capacity:   fs.Float64("capacity", 0, "Battery capacity in kWh"),
		strategy:   fs.String("strategy", "", "Charging strategy: solar or grid-offpeak"),
		initialSOC: fs.Float64("initial-soc", 0, "Initial state of charge percent (default 50)"),
	}
}

// load parses args and assembles the scenario. Any error here is a usage
// error.
func (f *scenarioFlags) load(args []string) (*config.Config, model.TimeSeries, *zap.Logger, error) {
	_ = f.fs.Parse(args)
	if *f.dataPath == "" {
		return nil, nil, nil, fmt.Errorf("--data is required")
	}
	if *f.format != "json" && *f.format != "pretty" {
		return nil, nil, nil, fmt.Errorf("unsupported --format %q", *f.format)
	}

	cfg := &config.Config{}
	if *f.cfgPath != "" {
		loaded, err := config.LoadUnchecked(*f.cfgPath)
		if err != nil {
			return nil, nil, nil, err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if set["reduction"] {
		// zero would be read back as "unset" and replaced by the default
		if *f.reduction <= 0 || *f.reduction > 100 {
			return nil, nil, nil, fmt.Errorf("--reduction must be within (0, 100], got %v", *f.reduction)
		}
		cfg.Sizing.ReductionPercent = *f.reduction
	}
	if set["investment"] {
		cfg.Sizing.InvestmentCost = *f.investment
	}
	if set["power"] {
		cfg.Battery.PowerKW = *f.power
	}
	if set["capacity"] {
		cfg.Battery.CapacityKWh = *f.capacity
	}
	if set["strategy"] {
		cfg.Dispatch.Strategy = *f.strategy
	}
	if set["initial-soc"] {
		cfg.Dispatch.InitialSOCPercent = f.initialSOC
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logging, *f.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	parsed, err := data.LoadSeriesFile(*f.dataPath)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, fmt.Errorf("load %s: %w", *f.dataPath, err)
	}
	for _, w := range parsed.Warnings {
		logger.Warn("skipped row", zap.String("op", "cli.load"), zap.Int("line", w.Line), zap.String("error", w.Error))
	}
	logger.Info("loaded series",
		zap.String("op", "cli.load"),
		zap.String("path", *f.dataPath),
		zap.Int("points", parsed.Info.Points),
		zap.Int("warnings", len(parsed.Warnings)),
	)
	return cfg, parsed.Series, logger, nil
}

func usageError(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return exitUsage
}

func cmdSize(args []string) int {
	f := newScenarioFlags("size")
	cfg, series, logger, err := f.load(args)
	if err != nil {
		return usageError(err)
	}
	defer logger.Sync()

	sched, err := cfg.Tariff.ToSchedule()
	if err != nil {
		return usageError(err)
	}
	res := sizing.New(sched, logger).Dimension(series, cfg.ToSizingParams())
	return emit(os.Stdout, *f.format, res, prettyReport)
}

// simulation is the CLI view of a scenario outcome; the daily trace goes to
// --out instead of stdout.
type simulation struct {
	Dimensioning *sizing.Report      `json:"dimensioning,omitempty"`
	Battery      model.BatteryParams `json:"battery"`
	Summary      finance.Summary     `json:"summary"`
}

func cmdSimulate(args []string) int {
	f := newScenarioFlags("simulate")
	outPath := f.fs.String("out", "", "Optional CSV path for the hourly ledger")
	cfg, series, logger, err := f.load(args)
	if err != nil {
		return usageError(err)
	}
	defer logger.Sync()

	res := scenario.NewRunner(logger).Run(cfg, series)
	if !res.OK() {
		return emit(os.Stdout, *f.format, model.Fail[simulation](res.Reason()), prettySimulation)
	}
	out := res.Value()

	if *outPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
			return emit(os.Stdout, *f.format, model.Failf[simulation]("create output dir: %v", err), prettySimulation)
		}
		if err := dispatch.WriteDailyCSV(*outPath, out.Period.Days); err != nil {
			return emit(os.Stdout, *f.format, model.Failf[simulation]("write %s: %v", *outPath, err), prettySimulation)
		}
		logger.Info("wrote hourly ledger", zap.String("op", "cli.simulate"), zap.String("path", *outPath), zap.Int("days", len(out.Period.Days)))
	}

	return emit(os.Stdout, *f.format, model.Succeed(simulation{
		Dimensioning: out.Dimensioning,
		Battery:      out.Battery,
		Summary:      out.Period.Summary,
	}), prettySimulation)
}

type analysisOutput struct {
	Info   data.SeriesInfo `json:"info"`
	Report analysis.Report `json:"report"`
}

func cmdAnalyze(args []string) int {
	f := newScenarioFlags("analyze")
	workers := f.fs.Int("workers", runtime.NumCPU(), "Goroutines used for the peak statistics")
	cfg, series, logger, err := f.load(args)
	if err != nil {
		return usageError(err)
	}
	defer logger.Sync()

	sched, err := cfg.Tariff.ToSchedule()
	if err != nil {
		return usageError(err)
	}
	report, err := analysis.Analyze(context.Background(), series, sched, *workers)
	if err != nil {
		return emit(os.Stdout, *f.format, model.Fail[analysisOutput](err.Error()), prettyAnalysis)
	}
	return emit(os.Stdout, *f.format, model.Succeed(analysisOutput{
		Info:   data.Describe(series),
		Report: report,
	}), prettyAnalysis)
}

type sweepOutput struct {
	Variations []sizing.Variation `json:"variations"`
}

func cmdSweep(args []string) int {
	f := newScenarioFlags("sweep")
	reductions := f.fs.String("reductions", "10,15,20,25,30", "Comma-separated reduction percents")
	cfg, series, logger, err := f.load(args)
	if err != nil {
		return usageError(err)
	}
	defer logger.Sync()

	targets, err := parseFloats(*reductions)
	if err != nil {
		return usageError(err)
	}
	sched, err := cfg.Tariff.ToSchedule()
	if err != nil {
		return usageError(err)
	}
	variations := sizing.New(sched, logger).Compare(series, cfg.ToSizingParams(), targets)
	if len(variations) == 0 {
		return emit(os.Stdout, *f.format, model.Fail[sweepOutput]("no reduction target produced a sizing"), prettySweep)
	}
	return emit(os.Stdout, *f.format, model.Succeed(sweepOutput{Variations: variations}), prettySweep)
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad reduction %q", p)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--reductions is empty")
	}
	return out, nil
}

// emit writes res in the chosen format and returns the exit code.
func emit[T any](w io.Writer, format string, res model.Result[T], pretty func(io.Writer, *message.Printer, T)) int {
	code := exitOK
	if !res.OK() {
		code = exitFailure
	}
	if format == "pretty" {
		p := message.NewPrinter(language.English)
		if !res.OK() {
			p.Fprintf(w, "failed: %s\n", res.Reason())
			return code
		}
		pretty(w, p, res.Value())
		return code
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return exitFailure
	}
	return code
}

func prettyReport(w io.Writer, p *message.Printer, r sizing.Report) {
	s := r.Sizing
	p.Fprintf(w, "Recommended battery: %.1f kW / %.1f kWh (%.0f%% reduction)\n", s.PowerKW, s.CapacityKWh, s.ReductionPercent)
	p.Fprintf(w, "Peak window: max %.1f kW, mean %.1f kW over %d samples\n", s.PeakMaxKW, s.PeakMeanKW, s.PeakSampleCount)
	e := r.Economics
	p.Fprintf(w, "Annual savings: %.2f (demand %.2f, energy %.2f)\n", e.TotalSavingsAnnual, e.DemandSavingsAnnual, e.EnergySavingsAnnual)
	if r.Payback != nil {
		printPayback(w, p, r.InvestmentCost, *r.Payback)
	}
}

func printPayback(w io.Writer, p *message.Printer, investment float64, pb sizing.Payback) {
	p.Fprintf(w, "Investment: %.2f\n", investment)
	p.Fprintf(w, "Payback: %s, 10-year ROI %.1f%%, profit %.2f\n", paybackLabel(p, pb), pb.ROIPercent10y, pb.Profit10y)
}

// paybackLabel shows the years even when they exceed the horizon.
func paybackLabel(p *message.Printer, pb sizing.Payback) string {
	switch {
	case math.IsInf(pb.PaybackYears, 1):
		return "never"
	case !pb.Feasible:
		return p.Sprintf("%.1f years (infeasible)", pb.PaybackYears)
	default:
		return p.Sprintf("%.1f years", pb.PaybackYears)
	}
}

func prettySimulation(w io.Writer, p *message.Printer, s simulation) {
	if s.Dimensioning != nil {
		prettyReport(w, p, *s.Dimensioning)
		p.Fprintln(w)
	}
	sum := s.Summary
	p.Fprintf(w, "Simulated %d days (%s to %s), strategy %s, battery %.1f kW / %.1f kWh\n",
		sum.DaysSimulated, sum.StartDate, sum.EndDate, sum.Strategy, s.Battery.PowerKW, s.Battery.CapacityKWh)
	p.Fprintf(w, "Energy: charged %.1f kWh, discharged %.1f kWh, charge cost %.2f\n",
		sum.EnergyChargedKWh, sum.EnergyDischargedKWh, sum.TotalChargeCost)
	p.Fprintf(w, "Savings: %.2f over the period, %.2f annualized energy, %.2f annual demand\n",
		sum.TotalSavingsPeriod, sum.AnnualizedSavings, sum.DemandChargeSavingsAnnual)
	p.Fprintf(w, "Total annual savings: %.2f (contracted demand %.1f kW, mean reduction %.1f kW)\n",
		sum.TotalAnnualSavings, sum.ContractedDemandKW, sum.MeanDemandReductionKW)
	p.Fprintf(w, "Final SOC: %.1f%%\n", sum.FinalSOCPercent)
}

func prettyAnalysis(w io.Writer, p *message.Printer, a analysisOutput) {
	p.Fprintf(w, "Series: %d points over %d days, %s to %s\n", a.Info.Points, a.Info.TotalDays, a.Info.Start.Format("2006-01-02"), a.Info.End.Format("2006-01-02"))
	lc := a.Report.LoadCurve
	p.Fprintf(w, "Load: max %.1f kW, mean %.1f kW, min %.1f kW, p95 %.1f kW\n", lc.MaxKW, lc.MeanKW, lc.MinKW, lc.P95KW)
	p.Fprintf(w, "Variation factor %.2f, shaving potential %.1f kW\n", lc.VariationFactor, lc.ShavingPotentialKW)
	p.Fprintf(w, "Peak hours %v, valley hours %v\n", lc.PeakHours, lc.ValleyHours)
	pk := a.Report.Peak
	p.Fprintf(w, "Peak window: %d samples, max %.1f kW, mean %.1f kW\n", pk.Count, pk.MaxKW, pk.MeanKW)
	b := a.Report.Bands
	p.Fprintf(w, "Bands (mean kW): peak %.1f, intermediate %.1f, off-peak %.1f\n", b.Peak.MeanKW, b.Intermediate.MeanKW, b.OffPeak.MeanKW)
	for _, warning := range lc.Warnings {
		p.Fprintf(w, "warning: %s\n", warning)
	}
}

func prettySweep(w io.Writer, p *message.Printer, s sweepOutput) {
	p.Fprintf(w, "%-6s %-10s %-12s %-14s %-24s %-8s\n", "target", "power kW", "capacity kWh", "annual savings", "payback", "ROI %")
	for _, v := range s.Variations {
		payback, roi := "-", "-"
		if pb := v.Report.Payback; pb != nil {
			roi = p.Sprintf("%.1f", pb.ROIPercent10y)
			payback = paybackLabel(p, *pb)
		}
		p.Fprintf(w, "%-6s %-10.1f %-12.1f %-14.2f %-24s %-8s\n",
			v.Name, v.Report.Sizing.PowerKW, v.Report.Sizing.CapacityKWh, v.Report.Economics.TotalSavingsAnnual, payback, roi)
	}
}
