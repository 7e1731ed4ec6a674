package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/vsinha/prodplan/pkg/infrastructure/config"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
	"github.com/vsinha/prodplan/pkg/interfaces/cli/output"
)

// Config holds the flags shared by every subcommand
type Config struct {
	ScenarioDir string
	Format      string
	OutputDir   string
	Verbose     bool
}

// App dispatches prodplan subcommands
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	stdout io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, args []string) error
}

func NewApp(cfg *config.Config, logger *logging.Logger, stdout io.Writer) *App {
	return &App{
		cfg:    cfg,
		logger: logging.OrNop(logger),
		stdout: stdout,
	}
}

func (a *App) commands() map[string]command {
	return map[string]command{
		"load":      {"import a CSV scenario directory into the database", a.runLoad},
		"validate":  {"check the catalog for BOM cycles, duplicates and missing parts", a.runValidate},
		"explode":   {"net the BOM requirements for a quantity of a product", a.runExplode},
		"check":     {"check whether an operation has its material", a.runCheck},
		"show":      {"show a run and its operations", a.runShow},
		"release":   {"release a draft run and generate its operations", a.runRelease},
		"generate":  {"regenerate a run's operations from its routing", a.runGenerate},
		"schedule":  {"assign an operation to a resource time window", a.runSchedule},
		"start":     {"start an operation after gate and resource checks", a.runStart},
		"complete":  {"complete a running operation", a.runComplete},
		"skip":      {"skip a pending or queued operation", a.runSkip},
		"timeline":  {"list scheduled operations per resource", a.runTimeline},
		"next-slot": {"find the next free window on a resource", a.runNextSlot},
	}
}

// Run executes the subcommand named by args[0]
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.showHelp()
		return nil
	}

	cmd, ok := a.commands()[args[0]]
	if !ok {
		a.showHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return cmd.run(ctx, args[1:])
}

func (a *App) showHelp() {
	fmt.Fprintf(a.stdout, "prodplan - production requirements and scheduling\n\n")
	fmt.Fprintf(a.stdout, "Usage: prodplan <command> [flags]\n\n")
	fmt.Fprintf(a.stdout, "Commands:\n")

	cmds := a.commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(a.stdout, "  %-10s %s\n", name, cmds[name].summary)
	}

	fmt.Fprintf(a.stdout, "\nCommon flags:\n")
	fmt.Fprintf(a.stdout, "  -scenario DIR   run against a CSV scenario in memory instead of the database\n")
	fmt.Fprintf(a.stdout, "  -format F       text, json, csv or xlsx (default text)\n")
	fmt.Fprintf(a.stdout, "  -output DIR     write reports into DIR\n")
	fmt.Fprintf(a.stdout, "  -verbose        log domain events\n\n")
	fmt.Fprintf(a.stdout, "The database is chosen by DB_DRIVER (sqlite, postgres) and DB_DSN.\n")
	fmt.Fprintf(a.stdout, "Scenario runs are not persisted.\n")
}

// newFlagSet registers the shared flags on a subcommand's flag set
func (a *App) newFlagSet(name string) (*flag.FlagSet, *Config) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stdout)
	opts := &Config{}
	fs.StringVar(&opts.ScenarioDir, "scenario", "", "Path to scenario directory containing CSV files")
	fs.StringVar(&opts.Format, "format", "text", "Output format: text, json, csv, xlsx")
	fs.StringVar(&opts.OutputDir, "output", "", "Output directory for reports (optional)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose output")
	return fs, opts
}

// withEngine opens an engine for opts, runs fn and closes it
func (a *App) withEngine(ctx context.Context, opts *Config, fn func(*engine) error) error {
	e, err := openEngine(ctx, a.cfg, *opts, a.logger)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func (a *App) render(opts *Config, name string, tables ...output.Table) error {
	return output.Generate(a.stdout, tables, output.Config{
		Format:    opts.Format,
		OutputDir: opts.OutputDir,
		Name:      name,
		Verbose:   opts.Verbose,
	})
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 or a UTC date with optional minutes
func parseTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q: expected RFC3339 or YYYY-MM-DD[THH:MM]", field, value)
}
