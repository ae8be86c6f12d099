package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/config"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/expense-insights/internal/infra/bigquery"
	"github.com/dvloznov/expense-insights/internal/logger"
	"github.com/dvloznov/expense-insights/internal/narrative"
	"github.com/dvloznov/expense-insights/internal/pipeline"
	"github.com/dvloznov/expense-insights/internal/report"
	"github.com/dvloznov/expense-insights/internal/source"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(log)
	case "report":
		runReport(log)
	case "sample":
		runSample(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Expense Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Print spending metrics for the selected months and categories")
	fmt.Println("  report    Generate the markdown report, with a narrative when GEMINI_API_KEY is set")
	fmt.Println("  sample    Write a sample expense CSV")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nInputs may be local paths or gs:// URIs; history may also be a bq://project.dataset.table.")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// analysisFlags are shared by analyze and report.
type analysisFlags struct {
	current    stringList
	history    stringList
	months     string
	categories string
	budget     int64
	topN       int
}

func (f *analysisFlags) register(fs *flag.FlagSet, defaultBudget int64) {
	fs.Var(&f.current, "current", "current-period file (repeatable)")
	fs.Var(&f.history, "history", "historical file or table (repeatable)")
	fs.StringVar(&f.months, "months", "", "comma-separated YYYY-MM months (default: all)")
	fs.StringVar(&f.categories, "categories", "", "comma-separated categories (default: all)")
	fs.Int64Var(&f.budget, "budget", defaultBudget, "monthly budget")
	fs.IntVar(&f.topN, "top", analysis.DefaultTopN, "number of top transactions")
}

// session bundles what one CLI run needs after ingestion.
type session struct {
	cfg     *config.Config
	loader  *source.Loader
	summary *analysis.Summary
	dataset *pipeline.Dataset
	close   func()
}

func loadConfig(log zerolog.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// prepare loads, ingests and aggregates the inputs named by the flags.
func prepare(ctx context.Context, cfg *config.Config, f *analysisFlags) (*session, error) {
	if len(f.current) == 0 {
		return nil, fmt.Errorf("at least one --current file is required")
	}

	rules := config.DefaultParseRules()
	if cfg.ParseRulesFile != "" {
		var err error
		if rules, err = config.LoadParseRules(cfg.ParseRulesFile); err != nil {
			return nil, err
		}
	}

	s := &session{cfg: cfg, loader: &source.Loader{}, close: func() {}}
	var closers []func() error

	all := append(append([]string{}, f.current...), f.history...)
	if anyMatch(all, gcsuploader.IsURI) || cfg.ReportBucket != "" {
		objects, err := gcsuploader.NewStore(ctx)
		if err != nil {
			return nil, err
		}
		closers = append(closers, objects.Close)
		s.loader.Objects = objects
	}
	if anyMatch(f.history, infraBQ.IsURI) {
		if cfg.BigQueryProject == "" {
			return nil, fmt.Errorf("BIGQUERY_PROJECT must be set to read bq:// history")
		}
		warehouse, err := infraBQ.NewReader(ctx, cfg.BigQueryProject)
		if err != nil {
			return nil, err
		}
		closers = append(closers, warehouse.Close)
		s.loader.Warehouse = warehouse
	}
	s.close = func() {
		for _, c := range closers {
			c()
		}
	}

	current, err := source.LoadAll(ctx, f.current, s.loader.LoadCurrent)
	if err != nil {
		s.close()
		return nil, err
	}
	history, err := source.LoadAll(ctx, f.history, s.loader.LoadHistory)
	if err != nil {
		s.close()
		return nil, err
	}

	s.dataset, err = pipeline.Ingest(ctx, pipeline.NewParser(rules), current, history)
	if err != nil {
		s.close()
		return nil, err
	}

	sel := domain.DefaultSelection(s.dataset.Current)
	if f.months != "" {
		sel.Months = splitList(f.months)
	}
	if f.categories != "" {
		sel.Categories = splitList(f.categories)
	}

	s.summary, err = analysis.Aggregate(analysis.Input{
		Current:   s.dataset.Current,
		History:   s.dataset.History,
		Selection: sel,
		Budget:    domain.Budget(f.budget),
		TopN:      f.topN,
	})
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func runAnalyze(log zerolog.Logger) {
	cfg := loadConfig(log)

	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	var f analysisFlags
	f.register(fs, cfg.DefaultBudget)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s, err := prepare(ctx, cfg, &f)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	defer s.close()

	printRejected(s.dataset.Rejected)
	printSummary(s.summary)
}

func runReport(log zerolog.Logger) {
	cfg := loadConfig(log)

	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var f analysisFlags
	f.register(fs, cfg.DefaultBudget)
	out := fs.String("out", "", "output path (default: monthly-report-YYYYMMDD.md)")
	export := fs.Bool("export", false, "also upload the report to GCS_REPORT_BUCKET")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s, err := prepare(ctx, cfg, &f)
	if err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
	defer s.close()

	printRejected(s.dataset.Rejected)
	printSummary(s.summary)

	text := generateNarrative(ctx, log, cfg, s.summary)

	now := time.Now()
	doc, err := report.Assemble(report.Input{Summary: s.summary, Narrative: text, GeneratedAt: now})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble report")
	}

	path := *out
	if path == "" {
		path = report.Filename(now)
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write report")
	}
	success("Report written to " + path)

	if *export {
		if cfg.ReportBucket == "" {
			log.Fatal().Msg("Error: --export requires GCS_REPORT_BUCKET")
		}
		uri, err := s.loader.Export(ctx, cfg.ReportBucket, "reports/"+report.Filename(now), []byte(doc))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export report")
		}
		success("Report exported to " + uri)
	}
}

// generateNarrative returns "" when the narrative is disabled or fails; the
// report then carries the placeholder section.
func generateNarrative(ctx context.Context, log zerolog.Logger, cfg *config.Config, s *analysis.Summary) string {
	if !cfg.NarrativeEnabled() {
		warning("Narrative skipped: GEMINI_API_KEY is not set")
		return ""
	}
	gen, err := narrative.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		warning("Narrative skipped: " + err.Error())
		return ""
	}
	prompt, err := narrative.BuildPrompt(s)
	if err != nil {
		warning("Narrative skipped: " + err.Error())
		return ""
	}

	info("Generating narrative...")
	text, err := narrative.Run(ctx, gen, prompt, cfg.NarrativeTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("Narrative generation failed")
		warning("Narrative failed: " + err.Error())
		return ""
	}
	return text
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func anyMatch(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if pred(v) {
			return true
		}
	}
	return false
}
