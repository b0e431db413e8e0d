package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/casetrace/casetrace/internal/app"
	"github.com/casetrace/casetrace/internal/extract"
	"github.com/casetrace/casetrace/internal/pipeline"
	"github.com/casetrace/casetrace/internal/report"
	"github.com/casetrace/casetrace/internal/store"
)

const usageText = `casetrace - judicial decisions crawler and field extractor

Usage:
  casetrace <command> [flags]

Commands:
  crawl     crawl the listing and extract newly discovered judgments
  extract   fetch one judgment URL and print extracted fields
  search    print the latest stored values for one field
  stats     print documents-by-status counts and top notes
  report    render a crawl summary to Markdown (optionally PDF)
  initdb    create database tables and data directories
  version   print build information

Run "casetrace <command> -h" for command flags.
`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := app.LoadEnvFiles(".env"); err != nil {
		log.Warn().Err(err).Msg("dotenv load failed")
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "crawl":
		err = cmdCrawl(args)
	case "extract":
		err = cmdExtract(args)
	case "search":
		err = cmdSearch(args)
	case "stats":
		err = cmdStats(args)
	case "report":
		err = cmdReport(args)
	case "initdb":
		err = cmdInitDB(args)
	case "version":
		fmt.Printf("casetrace %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
	case "-h", "--help", "help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand shares and returns the
// config-file path target.
func commonFlags(fs *flag.FlagSet, cfg *app.Config) *string {
	fs.StringVar(&cfg.DB, "db", "", "Storage DSN: SQLite file path or postgres:// URL")
	fs.StringVar(&cfg.RawDir, "raw.dir", "", "Directory for archived judgment HTML")
	fs.StringVar(&cfg.SourceBaseURL, "source.base", "", "Base URL of the judgment source")
	fs.StringVar(&cfg.SourceListingURL, "source.listing", "", "Listing page URL to crawl")
	fs.StringVar(&cfg.UserAgent, "ua", "", "Custom User-Agent for outbound requests")
	fs.IntVar(&cfg.MaxConcurrency, "max.concurrency", 0, "Maximum concurrent judgment fetches")
	fs.DurationVar(&cfg.MinDelay, "min.delay", 0, "Minimum delay between requests (e.g. 350ms)")
	fs.IntVar(&cfg.MaxRetries, "max.retries", 0, "Retry attempts for transient fetch failures")
	fs.DurationVar(&cfg.FetchTimeout, "fetch.timeout", 0, "Per-request timeout")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	return fs.String("config", "", "Optional YAML or JSON config file")
}

// resolveConfig finishes the flags > env > file > defaults layering after
// flag parsing.
func resolveConfig(cfg *app.Config, configPath string) error {
	app.ApplyEnvToConfig(cfg)
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		app.ApplyFileConfig(cfg, fc)
	}
	app.ApplyDefaults(cfg)
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return nil
}

func cmdCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	maxPages := fs.Int("max.pages", 0, "Stop after this many listing pages (0 = no cap)")
	maxCases := fs.Int("max.cases", 0, "Stop after this many new judgments (0 = no cap)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}

	ctx := context.Background()
	p, st, err := app.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	log.Info().Str("listing", cfg.SourceListingURL).Msg("starting crawl")
	stats, err := p.Crawl(ctx, pipeline.CrawlOptions{MaxPages: *maxPages, MaxCases: *maxCases})
	log.Info().
		Int("pages", stats.PagesCrawled).
		Int("seen", stats.CasesSeen).
		Int("processed", stats.CasesProcessed).
		Int("failed", stats.CasesFailed).
		Int("skipped", stats.CasesSkipped).
		Msg("crawl finished")
	return err
}

// stringList collects repeatable string flags.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	var fields stringList
	fs.Var(&fields, "field", "Field to extract (repeatable; default all)")
	showEvidence := fs.Bool("evidence", false, "Print up to 2 evidence snippets per field")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: casetrace extract [flags] <judgment-url>")
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}
	url := fs.Arg(0)

	ctx := context.Background()
	client := app.NewFetchClient(cfg)
	p := &pipeline.Pipeline{Fetch: client}
	doc, err := p.FetchDocument(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}

	var results map[string]extract.Result
	order := extract.Fields()
	if len(fields) > 0 {
		results, err = extract.ExtractNamed(doc, fields)
		if err != nil {
			return err
		}
		order = fields
	} else {
		results = extract.ExtractAll(doc)
	}

	for _, name := range order {
		res := results[name]
		fmt.Printf("%-25s %s\n", name+":", extract.FormatValue(name, res.Value))
		if *showEvidence {
			for i, sp := range res.Evidence {
				if i >= 2 {
					break
				}
				fmt.Printf("%-25s   [%s %s] %s\n", "", sp.Kind, sp.Location, sp.Snippet)
			}
		}
	}
	return nil
}

func cmdSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	limit := fs.Int("limit", 20, "Maximum rows to print")
	showEvidence := fs.Bool("evidence", false, "Print up to 2 evidence snippets per row")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: casetrace search [flags] <field>\nfields: %v", extract.Fields())
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}
	field := fs.Arg(0)
	if err := validField(field); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.LatestExtractions(ctx, *limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no extractions stored")
		return nil
	}
	for _, row := range rows {
		value, ev := row.FieldValue(field)
		fmt.Printf("%s\n  %s\n", row.URL, extract.FormatValue(field, value))
		if *showEvidence {
			for i, sp := range ev {
				if i >= 2 {
					break
				}
				fmt.Printf("  [%s %s] %s\n", sp.Kind, sp.Location, sp.Snippet)
			}
		}
	}
	return nil
}

func validField(name string) error {
	for _, f := range extract.Fields() {
		if f == name {
			return nil
		}
	}
	return &extract.UnknownFieldError{Unknown: []string{name}, Supported: extract.Fields()}
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.StatusCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Println("documents by status:")
	for _, status := range []store.Status{store.StatusReceived, store.StatusFetched, store.StatusExtracted, store.StatusFailed} {
		if n, ok := counts[status]; ok {
			fmt.Printf("  %-10s %d\n", status, n)
		}
	}

	notes, err := st.TopNotes(ctx, 10)
	if err != nil {
		return err
	}
	if len(notes) > 0 {
		fmt.Println("top notes:")
		for _, n := range notes {
			fmt.Printf("  %4d  [%s] %s\n", n.Count, n.Kind, n.Note)
		}
	}
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	out := fs.String("out", "report.md", "Path for the Markdown report")
	pdfPath := fs.String("pdf", "", "Also render the report to this PDF path")
	latestN := fs.Int("latest", 20, "How many recent extractions to include")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := report.Collect(ctx, st, *latestN)
	if err != nil {
		return err
	}
	md := report.BuildMarkdown(summary)
	if err := os.WriteFile(*out, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", *out).Msg("markdown report written")
	if *pdfPath != "" {
		if err := report.WritePDF(md, *pdfPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("path", *pdfPath).Msg("pdf report written")
	}
	return nil
}

func cmdInitDB(args []string) error {
	fs := flag.NewFlagSet("initdb", flag.ExitOnError)
	var cfg app.Config
	configPath := commonFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := resolveConfig(&cfg, *configPath); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.RawDir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().Str("db", cfg.DB).Str("raw", cfg.RawDir).Msg("storage initialized")
	return nil
}
