// pkg/scrub/scrub.go - the scrub pass: stop Office, then remove its registry,
// license and file-system remnants.
//
// No step aborts the pass. Every candidate is classified and handled on its
// own, and the result is collected in a Report.

package scrub

import (
	"context"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/deletion"
	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/regview"
	"github.com/windowsadmins/c2rscrub/pkg/scope"
)

// ProcessTerminator stops processes that hold Office files open.
type ProcessTerminator interface {
	Terminate(ctx context.Context, names []string, timeout time.Duration) []int32
	TerminateByPath(ctx context.Context, match func(exe string) bool, timeout time.Duration) []int32
}

// ShellRestarter is implemented by terminators that can restart explorer.
type ShellRestarter interface {
	RestartExplorer(ctx context.Context) error
}

// LockHolderFinder is implemented by terminators that can name the processes
// still running from under a path.
type LockHolderFinder interface {
	ProcessesUsingPath(ctx context.Context, path string) []string
}

// ServiceRemover stops and deletes a Windows service.
type ServiceRemover interface {
	DeleteService(ctx context.Context, name string) error
}

// LicenseCleaner uninstalls Office product keys.
type LicenseCleaner interface {
	RemoveProductKeys(ctx context.Context) (int, error)
}

// ShortcutUnpinner removes taskbar and Start pins for a shortcut file.
type ShortcutUnpinner interface {
	UnpinAll(path string) (bool, error)
}

// ClickToRunConfigPath holds the installed C2R build.
const ClickToRunConfigPath = `SOFTWARE\Microsoft\Office\ClickToRun\Configuration`

// Orchestrator runs a scrub pass.
type Orchestrator struct {
	cfg        *config.Configuration
	view       *regview.View
	classifier *scope.Classifier
	files      *deletion.Scheduler

	processes    ProcessTerminator
	services     ServiceRemover
	licenses     LicenseCleaner
	shortcuts    ShortcutUnpinner
	localAppData string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProcesses enables process termination.
func WithProcesses(p ProcessTerminator) Option { return func(o *Orchestrator) { o.processes = p } }

// WithServices enables service deletion.
func WithServices(s ServiceRemover) Option { return func(o *Orchestrator) { o.services = s } }

// WithLicenses enables product key removal.
func WithLicenses(l LicenseCleaner) Option { return func(o *Orchestrator) { o.licenses = l } }

// WithShortcuts enables unpinning of the configured shortcuts.
func WithShortcuts(s ShortcutUnpinner) Option { return func(o *Orchestrator) { o.shortcuts = s } }

// WithLocalAppData enables clearing the per-user license cache under dir.
func WithLocalAppData(dir string) Option { return func(o *Orchestrator) { o.localAppData = dir } }

// New returns an Orchestrator. Collaborators not supplied through options are
// skipped during Run.
func New(cfg *config.Configuration, view *regview.View, classifier *scope.Classifier, files *deletion.Scheduler, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, view: view, classifier: classifier, files: files}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pass: processes, services, shortcuts, installer
// registry regions, type libraries, licenses, files.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	r := &Report{
		SessionID: logging.GetSessionID(),
		Started:   time.Now(),
		DryRun:    o.view.DryRun(),
		Is64Bit:   o.view.Is64Bit(),
	}
	if v, ok := o.InstalledVersion(); ok {
		r.InstalledVersion = v.String()
		logging.Info("Click-to-Run installation detected", "version", r.InstalledVersion)
	}

	steps := []struct {
		name string
		run  func(context.Context, *Report)
	}{
		{"processes", o.stopProcesses},
		{"services", o.deleteServices},
		{"shortcuts", o.unpinShortcuts},
		{"upgrade codes", o.gated(o.cfg.Regions.UpgradeCodes, o.scrubUpgradeCodes)},
		{"products", o.gated(o.cfg.Regions.Products, o.scrubProducts)},
		{"components", o.gated(o.cfg.Regions.Components, o.scrubComponents)},
		{"published components", o.gated(o.cfg.Regions.PublishedComponents, o.scrubPublishedComponents)},
		{"type libraries", o.gated(o.cfg.Regions.TypeLibs, o.scrubTypeLibs)},
		{"licenses", o.clearLicenses},
		{"files", o.cleanupPaths},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			logging.Warn("Scrub cancelled", "step", step.name, "error", ctx.Err())
			break
		}
		logging.Info("Scrub step", "step", step.name)
		step.run(ctx, r)
	}

	o.restartShell(ctx)

	r.RebootJournal = o.files.Journal().Entries()
	r.Finished = time.Now()
	logging.Info("Scrub finished",
		"deleted", r.Counts.Deleted,
		"scheduled", r.Counts.Scheduled,
		"failed", r.Counts.Failed,
		"skipped", r.Counts.Skipped)
	return r
}

func (o *Orchestrator) gated(enabled bool, fn func(context.Context, *Report)) func(context.Context, *Report) {
	if enabled {
		return fn
	}
	return func(context.Context, *Report) {}
}

// InstalledVersion reads the build of the Click-to-Run installation, if any.
func (o *Orchestrator) InstalledVersion() (*version.Version, bool) {
	loc := regview.Location{Hive: regview.LocalMachine, Path: ClickToRunConfigPath}
	for _, name := range []string{"VersionToReport", "ClientVersionToReport"} {
		s, ok := o.view.GetString(loc, name)
		if !ok || s == "" {
			continue
		}
		v, err := version.NewVersion(s)
		if err != nil {
			logging.Debug("Unparseable Click-to-Run version", "value", name, "version", s, "error", err)
			continue
		}
		return v, true
	}
	return nil, false
}

func (o *Orchestrator) processTimeout() time.Duration {
	return time.Duration(o.cfg.ProcessTimeoutSecs) * time.Second
}

func (o *Orchestrator) stopProcesses(ctx context.Context, r *Report) {
	if o.processes == nil {
		return
	}
	if o.view.DryRun() {
		logging.Info("Dry run: would terminate processes", "processes", o.cfg.Processes)
		return
	}
	r.TerminatedPIDs = append(r.TerminatedPIDs, o.processes.Terminate(ctx, o.cfg.Processes, o.processTimeout())...)
	r.TerminatedPIDs = append(r.TerminatedPIDs, o.processes.TerminateByPath(ctx, o.classifier.IsKnownPathPattern, o.processTimeout())...)
}

func (o *Orchestrator) restartShell(ctx context.Context) {
	if !o.cfg.RestartExplorer || o.view.DryRun() || ctx.Err() != nil {
		return
	}
	if rs, ok := o.processes.(ShellRestarter); ok {
		if err := rs.RestartExplorer(ctx); err != nil {
			logging.Warn("Explorer restart failed", "error", err)
		}
	}
}

func (o *Orchestrator) deleteServices(ctx context.Context, r *Report) {
	if o.services == nil {
		return
	}
	for _, name := range o.cfg.Services {
		out := Outcome{Region: RegionServices, Location: name, Action: ActionDeleteSvc}
		if o.view.DryRun() {
			logging.Info("Dry run: would delete service", "service", name)
			out.Status, out.Detail = StatusSkipped, "dry run"
			r.Add(out)
			continue
		}
		if err := o.services.DeleteService(ctx, name); err != nil {
			out.Status, out.Detail = StatusFailed, err.Error()
		} else {
			out.Status = StatusDeleted
		}
		r.Add(out)
	}
}

func (o *Orchestrator) unpinShortcuts(_ context.Context, r *Report) {
	if o.shortcuts == nil {
		return
	}
	for _, raw := range o.cfg.Shortcuts {
		path := config.ExpandPath(raw)
		out := Outcome{Region: RegionShortcuts, Location: path, Action: ActionUnpin}
		if o.view.DryRun() {
			logging.Info("Dry run: would unpin shortcut", "path", path)
			out.Status, out.Detail = StatusSkipped, "dry run"
			r.Add(out)
			continue
		}
		ok, err := o.shortcuts.UnpinAll(path)
		switch {
		case err != nil:
			logging.Debug("Unpin failed", "path", path, "error", err)
			out.Status, out.Detail = StatusSkipped, err.Error()
		case ok:
			out.Status = StatusDeleted
		default:
			out.Status = StatusSkipped
		}
		r.Add(out)
	}
}
