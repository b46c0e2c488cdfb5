//go:build windows

package main

import (
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/spf13/afero"
	"golang.org/x/sys/windows"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/deletion"
	"github.com/windowsadmins/c2rscrub/pkg/license"
	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/process"
	"github.com/windowsadmins/c2rscrub/pkg/regview"
	"github.com/windowsadmins/c2rscrub/pkg/retry"
	"github.com/windowsadmins/c2rscrub/pkg/scope"
	"github.com/windowsadmins/c2rscrub/pkg/scrub"
	"github.com/windowsadmins/c2rscrub/pkg/service"
	"github.com/windowsadmins/c2rscrub/pkg/shell"
)

// patchArgs rebuilds os.Args from the raw command line so quoted paths with
// spaces and trailing backslashes survive intact.
func patchArgs() {
	cmdLine := windows.GetCommandLine()
	if cmdLine == nil {
		return
	}
	var argc int32
	argv, err := windows.CommandLineToArgv(cmdLine, &argc)
	if err != nil || argv == nil || argc < 1 {
		return
	}
	defer windows.LocalFree(windows.Handle(uintptr(unsafe.Pointer(argv))))

	args := make([]string, 0, argc)
	for _, p := range unsafe.Slice((**uint16)(unsafe.Pointer(argv)), argc) {
		if p != nil {
			args = append(args, windows.UTF16PtrToString(p))
		}
	}
	os.Args = args
}

// is64BitHost reports whether the machine has a WOW64 registry view.
func is64BitHost(force bool) bool {
	if force || runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		return true
	}
	var wow64 bool
	if err := windows.IsWow64Process(windows.CurrentProcess(), &wow64); err != nil {
		logging.Warn("IsWow64Process failed, assuming 32-bit host", "error", err)
		return false
	}
	return wow64
}

func newOrchestrator(cfg *config.Configuration, classifier *scope.Classifier, stopProcesses bool) (*scrub.Orchestrator, error) {
	var viewOpts []regview.Option
	if cfg.DryRun {
		viewOpts = append(viewOpts, regview.WithDryRun())
	}
	view := regview.New(regview.NewSystemBackend(), is64BitHost(cfg.Force64Bit), viewOpts...)

	var queue deletion.RebootQueue = deletion.MoveFileQueue{}
	if cfg.DeferredDelete == config.DeferredPendingRename {
		queue = deletion.NewPendingRenameQueue(view)
	}
	schedOpts := []deletion.Option{deletion.WithRetry(retry.RetryConfig{
		MaxRetries:      cfg.RetryAttempts,
		InitialInterval: time.Duration(cfg.RetryIntervalMillis) * time.Millisecond,
		Multiplier:      2,
	})}
	if cfg.DryRun {
		schedOpts = append(schedOpts, deletion.WithDryRun())
	}
	fs := afero.NewOsFs()
	files := deletion.NewScheduler(fs, queue, schedOpts...)

	opts := []scrub.Option{
		scrub.WithServices(service.NewManager()),
		scrub.WithLicenses(license.KeyRemover{}),
		scrub.WithShortcuts(shell.NewUnpinner(fs, shell.ShellApplication{})),
		scrub.WithLocalAppData(os.Getenv("LOCALAPPDATA")),
	}
	if stopProcesses {
		opts = append(opts, scrub.WithProcesses(process.NewTerminator()))
	}

	logging.Debug("Scrub prepared",
		"is_64_bit", view.Is64Bit(),
		"deferred_delete", cfg.DeferredDelete,
		"os_version", license.OSVersion())
	return scrub.New(cfg, view, classifier, files, opts...), nil
}
