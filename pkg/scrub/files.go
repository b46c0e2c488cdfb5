package scrub

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/deletion"
	"github.com/windowsadmins/c2rscrub/pkg/license"
	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// clearLicenses removes installed product keys and the per-user license cache.
func (o *Orchestrator) clearLicenses(ctx context.Context, r *Report) {
	if o.licenses != nil {
		out := Outcome{Region: RegionLicense, Location: "SoftwareLicensing", Action: ActionUninstallKey}
		if o.view.DryRun() {
			logging.Info("Dry run: would uninstall Office product keys")
		} else {
			n, err := o.licenses.RemoveProductKeys(ctx)
			switch {
			case err != nil:
				out.Status, out.Detail = StatusFailed, err.Error()
				r.Add(out)
			case n > 0:
				out.Status = StatusDeleted
				out.Detail = fmt.Sprintf("%d product key(s)", n)
				r.Add(out)
			}
		}
	}

	for _, dir := range license.CachePaths(o.localAppData) {
		o.removePath(ctx, RegionLicense, dir, r)
	}
}

// cleanupPaths removes the configured Click-to-Run directories. A path that
// does not look like part of a Click-to-Run layout is never touched.
func (o *Orchestrator) cleanupPaths(ctx context.Context, r *Report) {
	for _, raw := range o.cfg.CleanupPaths {
		path := config.ExpandPath(raw)
		if !o.classifier.IsKnownPathPattern(path + `\`) {
			logging.Warn("Refusing to delete path outside the Click-to-Run layout", "path", path)
			r.Add(Outcome{Region: RegionFiles, Location: path, Action: ActionDeletePath, Status: StatusSkipped, Detail: "not a Click-to-Run path"})
			continue
		}
		o.removePath(ctx, RegionFiles, path, r)
	}
}

// removePath deletes a file or directory, falling back to reboot removal.
// Absent paths produce no outcome.
func (o *Orchestrator) removePath(ctx context.Context, region Region, path string, r *Report) {
	isDir, err := afero.IsDir(o.files.Fs(), path)
	if err != nil {
		logging.Debug("Path not present", "path", path)
		return
	}

	var (
		task deletion.Task
		size int64
	)
	if isDir {
		size = o.files.DirectorySize(path)
		task = o.files.DeleteDirectory(ctx, path, true)
	} else {
		task = o.files.DeleteFile(ctx, path, true)
	}
	if task.Absent {
		return
	}

	out := Outcome{Region: region, Location: path, Action: ActionDeletePath, Status: statusOf(task)}
	if task.Err != nil {
		out.Detail = task.Err.Error()
	}
	if task.Status == deletion.Deleted {
		logging.Info("Removed path", "path", path, "bytes", size)
	} else if holders := o.lockHolders(ctx, path); len(holders) > 0 {
		out.Detail = strings.TrimPrefix(out.Detail+"; in use by: "+strings.Join(holders, ", "), "; ")
	}
	r.Add(out)
}

func (o *Orchestrator) lockHolders(ctx context.Context, path string) []string {
	finder, ok := o.processes.(LockHolderFinder)
	if !ok {
		return nil
	}
	return finder.ProcessesUsingPath(ctx, path)
}
