// pkg/process/process.go - finding and terminating processes that hold Office files open.

package process

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// Proc is the view of a running process the terminator needs.
type Proc interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Exe(ctx context.Context) (string, error)
	Kill(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
}

// Lister enumerates running processes.
type Lister func(ctx context.Context) ([]Proc, error)

// Terminator kills processes concurrently and waits for them to exit.
type Terminator struct {
	list Lister
	poll time.Duration
}

// NewTerminator returns a Terminator over the live process table.
func NewTerminator() *Terminator {
	return NewTerminatorWithLister(SystemProcesses)
}

// NewTerminatorWithLister returns a Terminator over list.
func NewTerminatorWithLister(list Lister) *Terminator {
	return &Terminator{list: list, poll: 100 * time.Millisecond}
}

// MatchName reports whether a process image name matches pattern. Patterns
// match with or without the .exe extension, case-insensitively.
func MatchName(processName, pattern string) bool {
	name := strings.ToLower(processName)
	want := strings.ToLower(strings.TrimSpace(pattern))
	if want == "" {
		return false
	}
	if strings.HasSuffix(want, ".exe") {
		return name == want || name == strings.TrimSuffix(want, ".exe")
	}
	return name == want || name == want+".exe"
}

// IsRunning reports whether any process matches name.
func (t *Terminator) IsRunning(ctx context.Context, name string) bool {
	procs, err := t.list(ctx)
	if err != nil {
		logging.Debug("Failed to get process list", "error", err)
		return false
	}
	for _, p := range procs {
		if n, err := p.Name(ctx); err == nil && MatchName(n, name) {
			return true
		}
	}
	return false
}

// ProcessesUsingPath returns the names of processes whose executable lives under path.
func (t *Terminator) ProcessesUsingPath(ctx context.Context, path string) []string {
	prefix := strings.TrimRight(strings.ToLower(filepath.Clean(path)), `\/`) + `\`
	var names []string
	t.each(ctx, func(p Proc, name, exe string) {
		if exe != "" && strings.HasPrefix(strings.ToLower(exe), prefix) {
			names = append(names, name)
		}
	})
	return names
}

// Terminate kills every process matching one of names and returns the PIDs
// confirmed to have exited within timeout.
func (t *Terminator) Terminate(ctx context.Context, names []string, timeout time.Duration) []int32 {
	return t.terminate(ctx, timeout, func(name, _ string) bool {
		for _, n := range names {
			if MatchName(name, n) {
				return true
			}
		}
		return false
	})
}

// TerminateByPath kills every process whose executable path satisfies match.
func (t *Terminator) TerminateByPath(ctx context.Context, match func(exe string) bool, timeout time.Duration) []int32 {
	return t.terminate(ctx, timeout, func(_, exe string) bool {
		return exe != "" && match(exe)
	})
}

func (t *Terminator) each(ctx context.Context, fn func(p Proc, name, exe string)) {
	procs, err := t.list(ctx)
	if err != nil {
		logging.Warn("Failed to get process list", "error", err)
		return
	}
	for _, p := range procs {
		name, err := p.Name(ctx)
		if err != nil {
			continue
		}
		exe, _ := p.Exe(ctx)
		fn(p, name, exe)
	}
}

func (t *Terminator) terminate(ctx context.Context, timeout time.Duration, match func(name, exe string) bool) []int32 {
	var targets []Proc
	t.each(ctx, func(p Proc, name, exe string) {
		if match(name, exe) {
			targets = append(targets, p)
		}
	})
	if len(targets) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		killed []int32
	)
	for _, p := range targets {
		g.Go(func() error {
			if t.killAndWait(ctx, p) {
				mu.Lock()
				killed = append(killed, p.PID())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(killed, func(i, j int) bool { return killed[i] < killed[j] })
	logging.Info("Terminated processes", "requested", len(targets), "terminated", len(killed))
	return killed
}

func (t *Terminator) killAndWait(ctx context.Context, p Proc) bool {
	if err := p.Kill(ctx); err != nil {
		if running, rerr := p.IsRunning(ctx); rerr == nil && !running {
			return false
		}
		logging.Debug("Failed to kill process", "pid", p.PID(), "error", err)
		return false
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		running, err := p.IsRunning(ctx)
		if err == nil && !running {
			return true
		}
		select {
		case <-ctx.Done():
			logging.Debug("Process did not exit before timeout", "pid", p.PID())
			return false
		case <-ticker.C:
		}
	}
}

type systemProc struct {
	p *process.Process
}

func (s systemProc) PID() int32 { return s.p.Pid }

func (s systemProc) Name(ctx context.Context) (string, error) { return s.p.NameWithContext(ctx) }

func (s systemProc) Exe(ctx context.Context) (string, error) { return s.p.ExeWithContext(ctx) }

func (s systemProc) Kill(ctx context.Context) error { return s.p.KillWithContext(ctx) }

func (s systemProc) IsRunning(ctx context.Context) (bool, error) {
	return s.p.IsRunningWithContext(ctx)
}

// SystemProcesses lists live processes through gopsutil.
func SystemProcesses(ctx context.Context) ([]Proc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		out = append(out, systemProc{p: p})
	}
	return out, nil
}
