// cmd/c2rscrub/main.go - removes Office Click-to-Run remnants from a machine.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/guid"
	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/scope"
	"github.com/windowsadmins/c2rscrub/pkg/scrub"
	"github.com/windowsadmins/c2rscrub/pkg/version"
)

// ReportFileName is written into the run's log directory unless --report is given.
const ReportFileName = "report.yaml"

type options struct {
	configPath    string
	reportPath    string
	dryRun        bool
	skipProcesses bool
	showVersion   bool
	showConfig    bool
	verbosity     int
	decode        string
	regions       []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("c2rscrub", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&opts.configPath, "config", "c", config.ConfigPath, "Path to the YAML configuration.")
	fs.StringVar(&opts.reportPath, "report", "", "Write the scrub report here instead of the log directory.")
	fs.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Log what would be removed without changing anything.")
	fs.BoolVar(&opts.skipProcesses, "skip-processes", false, "Do not terminate running Office processes.")
	fs.BoolVar(&opts.showVersion, "version", false, "Print the version and exit.")
	fs.BoolVar(&opts.showConfig, "show-config", false, "Print the effective configuration and exit.")
	fs.CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv).")
	fs.StringVar(&opts.decode, "decode", "", "Print the forms of an installer identifier and whether it is in scope, then exit.")
	fs.StringSliceVar(&opts.regions, "regions", nil,
		"Limit registry scrubbing to these regions (upgrade-codes, products, components, published-components, typelibs).")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// applyOverrides folds command-line switches into the loaded configuration.
func applyOverrides(cfg *config.Configuration, opts *options) error {
	if opts.dryRun {
		cfg.DryRun = true
	}
	if opts.verbosity > 0 {
		cfg.LogLevel = "DEBUG"
	}
	if len(opts.regions) > 0 {
		return selectRegions(&cfg.Regions, opts.regions)
	}
	return nil
}

func selectRegions(r *config.Regions, names []string) error {
	toggles := map[scrub.Region]*bool{
		scrub.RegionUpgradeCodes:        &r.UpgradeCodes,
		scrub.RegionProducts:            &r.Products,
		scrub.RegionComponents:          &r.Components,
		scrub.RegionPublishedComponents: &r.PublishedComponents,
		scrub.RegionTypeLibs:            &r.TypeLibs,
	}
	selected := make(map[*bool]bool, len(names))
	for _, name := range names {
		t, ok := toggles[scrub.Region(strings.ToLower(strings.TrimSpace(name)))]
		if !ok {
			return fmt.Errorf("unknown region %q", name)
		}
		selected[t] = true
	}
	for _, t := range toggles {
		*t = *t && selected[t]
	}
	return nil
}

// decodeIdentifier prints every form of an installer identifier.
func decodeIdentifier(w io.Writer, id string, classifier *scope.Classifier) error {
	expanded, err := guid.Normalize(id)
	if err != nil {
		return err
	}
	compressed, _ := guid.Compress(expanded)
	fmt.Fprintf(w, "expanded:   %s\n", expanded)
	fmt.Fprintf(w, "compressed: %s\n", compressed)
	fmt.Fprintf(w, "in scope:   %t\n", classifier.IsInScope(expanded))
	return nil
}

func printConfig(w io.Writer, cfg *config.Configuration) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serializing configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func reportPath(opts *options) string {
	if opts.reportPath != "" {
		return opts.reportPath
	}
	if dir := logging.GetCurrentLogDir(); dir != "" {
		return filepath.Join(dir, ReportFileName)
	}
	return ""
}

func main() {
	patchArgs()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return scrub.ExitOK
		}
		fmt.Fprintln(stderr, err)
		return scrub.ExitConfigError
	}
	if opts.showVersion {
		if opts.verbosity > 0 {
			version.PrintFull(stdout)
		} else {
			version.Print(stdout)
		}
		return scrub.ExitOK
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return scrub.ExitConfigError
	}
	if err := applyOverrides(cfg, opts); err != nil {
		fmt.Fprintln(stderr, err)
		return scrub.ExitConfigError
	}
	classifier, err := scope.New(cfg.Scope)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid scope tables: %v\n", err)
		return scrub.ExitConfigError
	}

	if opts.decode != "" {
		if err := decodeIdentifier(stdout, opts.decode, classifier); err != nil {
			fmt.Fprintln(stderr, err)
			return scrub.ExitConfigError
		}
		return scrub.ExitOK
	}
	if opts.showConfig {
		if err := printConfig(stdout, cfg); err != nil {
			fmt.Fprintln(stderr, err)
			return scrub.ExitConfigError
		}
		return scrub.ExitOK
	}

	if err := logging.Init(cfg); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logging: %v\n", err)
		return scrub.ExitConfigError
	}
	defer logging.CloseLogger()

	logging.Info("c2rscrub starting",
		"version", version.Version().Version,
		"dry_run", cfg.DryRun,
		"config", opts.configPath)

	orch, err := newOrchestrator(cfg, classifier, !opts.skipProcesses)
	if err != nil {
		logging.Error("Cannot prepare scrub", "error", err)
		return scrub.ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := orch.Run(ctx)

	if path := reportPath(opts); path != "" {
		if err := report.Write(path); err != nil {
			logging.Warn("Failed to write report", "path", path, "error", err)
		} else {
			logging.Info("Report written", "path", path)
		}
	}
	if report.RebootRequired() {
		logging.Warn("A restart is required to finish removing locked files", "scheduled", report.Counts.Scheduled)
	}
	return report.ExitCode()
}
