package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"bendgen/internal/storage"
	"bendgen/pkg/bendgen"
)

const (
	defaultStore        = storage.DefaultStoreKind
	defaultDBPath       = "bendgen.db"
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "render":
		return runRender(ctx, args[1:])
	case "evaluators":
		return runEvaluators(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that opens a client.
type clientFlags struct {
	store        *string
	dbPath       *string
	artifactsDir *string
	logLevel     *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		store:        fs.String("store", defaultStore, "store backend: memory|badger|sqlite"),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database file or badger directory"),
		artifactsDir: fs.String("artifacts-dir", defaultArtifactsDir, "run artifacts directory"),
		logLevel:     fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) open() (*bendgen.Client, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel)
	if err != nil {
		return nil, err
	}
	return bendgen.New(bendgen.Options{
		StoreKind:    *f.store,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   defaultExportsDir,
		Logger:       logger,
	})
}

// newLogger writes human-readable text to a terminal and JSON lines
// everywhere else.
func newLogger(w *os.File, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *cf.store)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	def := bendgen.DefaultRunRequest()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config file (.json, .yaml, .yml or .toml)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	evaluator := fs.String("evaluator", def.Evaluator, "evaluator name")
	evaluatorCommand := fs.String("evaluator-command", "", "external simulator command line; enables the process evaluator")
	evaluatorWorkDir := fs.String("evaluator-workdir", "", "working directory for the external simulator")
	population := fs.Int("pop", def.Population, "population size")
	generations := fs.Int("gens", def.Generations, "generation count")
	seed := fs.Int64("seed", def.Seed, "base seed")
	axiom := fs.String("axiom", def.Axiom, "grammar axiom")
	width := fs.Int("width", def.Width, "canvas width in cells")
	height := fs.Int("height", def.Height, "canvas height in cells")
	targetAngle := fs.Float64("target-angle", def.TargetAngle, "target bend angle in degrees")
	elitism := fs.Float64("elitism", def.Elitism, "fraction of each generation carried over unchanged")
	replacement := fs.Float64("replacement", def.Replacement, "fraction of each generation replaced with fresh organisms")
	iterations := fs.Int("iterations", def.Iterations, "grammar rewrite iterations")
	repeatFactor := fs.Int("repeat-factor", def.RepeatFactor, "bracket repeat factor")
	renderScale := fs.Int("render-scale", def.RenderScale, "pixels per cell in cross-section images")
	skipFiles := fs.Bool("skip-organism-files", false, "do not write per-organism coordinates and images")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadOrDefaultRunConfig(*configPath)
	if err != nil {
		return err
	}
	overrideFromFlags(&cfg, setFlags, map[string]any{
		"run-id":              *runID,
		"evaluator":           *evaluator,
		"evaluator-command":   *evaluatorCommand,
		"evaluator-workdir":   *evaluatorWorkDir,
		"pop":                 *population,
		"gens":                *generations,
		"seed":                *seed,
		"axiom":               *axiom,
		"width":               *width,
		"height":              *height,
		"target-angle":        *targetAngle,
		"elitism":             *elitism,
		"replacement":         *replacement,
		"iterations":          *iterations,
		"repeat-factor":       *repeatFactor,
		"render-scale":        *renderScale,
		"skip-organism-files": *skipFiles,
		"store":               *cf.store,
		"db-path":             *cf.dbPath,
		"artifacts-dir":       *cf.artifactsDir,
	})
	// A command given without an explicit evaluator name selects the process
	// evaluator.
	if len(cfg.Request.EvaluatorCommand) > 0 && !setFlags["evaluator"] && cfg.Request.Evaluator == def.Evaluator {
		cfg.Request.Evaluator = ""
	}

	*cf.store, *cf.dbPath, *cf.artifactsDir = cfg.Store, cfg.DBPath, cfg.ArtifactsDir
	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, cfg.Request)
	if err != nil {
		return err
	}

	for i := range summary.BestByGeneration {
		fmt.Printf("generation=%d best_angle=%.4f mean_angle=%.4f\n", i, summary.BestByGeneration[i], summary.MeanByGeneration[i])
	}
	fmt.Printf("run_id=%s best=%s best_angle=%.4f best_distance=%.4f generations=%d elapsed=%s artifacts=%s\n",
		summary.RunID,
		summary.BestID,
		summary.BestAngle,
		summary.BestDistance,
		summary.GenerationsStored,
		time.Since(started).Round(time.Millisecond),
		summary.ArtifactsDir,
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, bendgen.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s evaluator=%s seed=%d pop=%d gens=%d target=%.2f best_angle=%.4f best_distance=%.4f\n",
			r.RunID,
			createdDisplay(r.CreatedAtUTC),
			r.Evaluator,
			r.Seed,
			r.Population,
			r.Generations,
			r.TargetAngle,
			r.BestAngle,
			r.BestDistance,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 5, "max organisms to list (0 lists all)")
	jsonOut := fs.Bool("json", false, "emit organisms as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.Top(ctx, bendgen.TopRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, top)
	}
	for _, o := range top {
		fmt.Printf("%s id=%s generation=%d operation=%s angle=%.4f distance=%.4f seed=%d sentence=%s\n",
			humanize.Ordinal(o.Rank),
			o.ID,
			o.Generation,
			o.Operation,
			o.Angle,
			o.Distance,
			o.Seed,
			o.Sentence,
		)
	}
	return nil
}

func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max generations to list (0 lists all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Generations(ctx, bendgen.GenerationsRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d best_angle=%.4f best_distance=%.4f mean_angle=%.4f unique=%d uniqueness=%.3f evaluations=%s\n",
			d.Generation,
			d.BestAngle,
			d.BestDistance,
			d.MeanAngle,
			d.UniqueSentences,
			d.Uniqueness,
			humanize.Comma(int64(d.Evaluations)),
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 50, "max lineage records to list (0 lists all)")
	jsonOut := fs.Bool("json", false, "emit lineage as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, bendgen.LineageRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, lineage)
	}
	for _, rec := range lineage {
		parents := strings.Join(rec.ParentIDs, ",")
		if parents == "" {
			parents = "-"
		}
		fmt.Printf("organism=%s generation=%d operation=%s parents=%s\n", rec.OrganismID, rec.Generation, rec.Operation, parents)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, bendgen.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runRender(ctx context.Context, args []string) error {
	def := bendgen.DefaultRunRequest()
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	sentence := fs.String("sentence", "", "sentence to draw; derived from axiom and seed when empty")
	axiom := fs.String("axiom", def.Axiom, "grammar axiom")
	seed := fs.Int64("seed", def.Seed, "genotype seed")
	width := fs.Int("width", def.Width, "canvas width in cells")
	height := fs.Int("height", def.Height, "canvas height in cells")
	iterations := fs.Int("iterations", def.Iterations, "grammar rewrite iterations")
	repeatFactor := fs.Int("repeat-factor", def.RepeatFactor, "bracket repeat factor")
	scale := fs.Int("scale", def.RenderScale, "pixels per cell")
	out := fs.String("out", "cross_section.png", "output PNG path")
	coords := fs.String("coords", "", "optional path for the exported outline JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Render(ctx, bendgen.RenderRequest{
		Sentence:        *sentence,
		Axiom:           *axiom,
		Seed:            *seed,
		Width:           *width,
		Height:          *height,
		Iterations:      *iterations,
		RepeatFactor:    *repeatFactor,
		Scale:           *scale,
		OutPath:         *out,
		CoordinatesPath: *coords,
	})
	if err != nil {
		return err
	}
	fmt.Printf("rendered cells=%s to=%s sentence=%s\n", humanize.Comma(int64(summary.Cells)), summary.Path, summary.Sentence)
	return nil
}

func runEvaluators(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluators", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	names, err := client.Evaluators(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func createdDisplay(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return fmt.Sprintf("%q", humanize.Time(t))
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: bendgenctl <init|run|runs|top|generations|lineage|export|render|evaluators> [flags]", msg)
}
