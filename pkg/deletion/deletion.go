// pkg/deletion/deletion.go - immediate and deferred removal of files and directories.
//
// Immediate removal clears read-only bits and retries transient failures.
// What still cannot be removed is registered with a RebootQueue, children
// before parents, so the OS removes it at the next restart.

package deletion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/retry"
)

// Kind is the type of a deletion target.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Status is the lifecycle state of a Task.
type Status int

const (
	Pending Status = iota
	Deleted
	ScheduledOnReboot
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Deleted:
		return "deleted"
	case ScheduledOnReboot:
		return "scheduled-on-reboot"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Task records one deletion attempt. Status leaves Pending exactly once.
type Task struct {
	Target string
	Kind   Kind
	Status Status
	// Absent is set when the target did not exist; the task still counts as Deleted.
	Absent bool
	Err    error
}

func (t *Task) resolve(status Status, err error) {
	if t.Status != Pending {
		return
	}
	t.Status = status
	t.Err = err
}

// RebootQueue registers a path for removal by the OS at next restart.
type RebootQueue interface {
	ScheduleOnReboot(path string) error
}

// Journal is the append-only list of paths handed to the RebootQueue during
// this process.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) add(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, path)
}

// Entries returns a copy of the journal in registration order.
func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// Len returns the number of registrations.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// DefaultRetry is used when no retry configuration is supplied.
var DefaultRetry = retry.RetryConfig{
	MaxRetries:      3,
	InitialInterval: 250 * time.Millisecond,
	Multiplier:      2,
}

// Scheduler deletes paths on a filesystem, falling back to a RebootQueue.
type Scheduler struct {
	fs      afero.Fs
	queue   RebootQueue
	journal *Journal
	retry   retry.RetryConfig
	dryRun  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRetry sets the retry policy for immediate removal.
func WithRetry(cfg retry.RetryConfig) Option {
	return func(s *Scheduler) { s.retry = cfg }
}

// WithDryRun logs every removal and registration without performing it.
func WithDryRun() Option {
	return func(s *Scheduler) { s.dryRun = true }
}

// NewScheduler returns a Scheduler over fs. A nil queue disables deferred deletion.
func NewScheduler(fs afero.Fs, queue RebootQueue, opts ...Option) *Scheduler {
	s := &Scheduler{fs: fs, queue: queue, journal: &Journal{}, retry: DefaultRetry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Journal returns the registrations issued by this scheduler.
func (s *Scheduler) Journal() *Journal { return s.journal }

// Fs returns the filesystem the scheduler operates on.
func (s *Scheduler) Fs() afero.Fs { return s.fs }

// DeleteNow removes target immediately. Files have their read-only bit
// cleared first; directories are removed with their whole subtree.
func (s *Scheduler) DeleteNow(ctx context.Context, target string) Task {
	task := Task{Target: target}

	info, err := s.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			task.Absent = true
			task.resolve(Deleted, nil)
			return task
		}
		task.resolve(Failed, fmt.Errorf("stat %s: %w", target, err))
		return task
	}
	if info.IsDir() {
		task.Kind = KindDirectory
	}

	if s.dryRun {
		logging.Info("Dry run: would delete", "path", target, "kind", task.Kind)
		task.resolve(Deleted, nil)
		return task
	}

	err = retry.Retry(ctx, s.retry, func() error {
		if task.Kind == KindDirectory {
			s.clearReadOnlyTree(target)
			return permanentIfInvalid(ignoreNotExist(s.fs.RemoveAll(target)))
		}
		s.clearReadOnly(target, info)
		return permanentIfInvalid(ignoreNotExist(s.fs.Remove(target)))
	})
	if err != nil {
		logging.Warn("Failed to delete", "path", target, "error", err)
		task.resolve(Failed, err)
		return task
	}

	logging.Debug("Deleted", "path", target, "kind", task.Kind)
	task.resolve(Deleted, nil)
	return task
}

func ignoreNotExist(err error) error {
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}

// permanentIfInvalid stops retrying for paths the OS rejects outright.
func permanentIfInvalid(err error) error {
	if err != nil && (errors.Is(err, fs.ErrInvalid) || errors.Is(err, errInvalidName)) {
		return retry.Permanent(err)
	}
	return err
}

func (s *Scheduler) clearReadOnly(path string, info os.FileInfo) {
	if info.Mode().Perm()&0o200 != 0 {
		return
	}
	if err := s.fs.Chmod(path, info.Mode().Perm()|0o200); err != nil {
		logging.Debug("Could not clear read-only attribute", "path", path, "error", err)
	}
}

func (s *Scheduler) clearReadOnlyTree(root string) {
	_ = afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		s.clearReadOnly(path, info)
		return nil
	})
}

// ScheduleOnReboot registers path for removal at next restart and records it
// in the journal. Failures are reported on the task, never raised.
func (s *Scheduler) ScheduleOnReboot(path string) Task {
	task := Task{Target: path}
	if info, err := s.fs.Stat(path); err == nil && info.IsDir() {
		task.Kind = KindDirectory
	}

	if s.queue == nil {
		task.resolve(Failed, errors.New("deferred deletion is not available"))
		return task
	}
	if s.dryRun {
		logging.Info("Dry run: would schedule delete on reboot", "path", path)
		task.resolve(ScheduledOnReboot, nil)
		return task
	}
	if err := s.queue.ScheduleOnReboot(path); err != nil {
		logging.Warn("Failed to schedule delete on reboot", "path", path, "error", err)
		task.resolve(Failed, fmt.Errorf("schedule %s: %w", path, err))
		return task
	}

	s.journal.add(path)
	logging.Info("Scheduled delete on reboot", "path", path)
	task.resolve(ScheduledOnReboot, nil)
	return task
}

// ScheduleDirectoryOnReboot registers every file under root, then every
// subdirectory deepest first, then root itself. The OS processes the queue in
// registration order and cannot remove a non-empty directory.
func (s *Scheduler) ScheduleDirectoryOnReboot(root string) []Task {
	if _, err := s.fs.Stat(root); err != nil {
		return nil
	}

	var files, dirs []string
	walkErr := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Debug("Skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if filepath.Clean(path) == filepath.Clean(root) {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		logging.Debug("Directory walk incomplete", "path", root, "error", walkErr)
	}

	sort.SliceStable(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	tasks := make([]Task, 0, len(files)+len(dirs)+1)
	for _, f := range files {
		tasks = append(tasks, s.ScheduleOnReboot(f))
	}
	for _, d := range dirs {
		tasks = append(tasks, s.ScheduleOnReboot(d))
	}
	return append(tasks, s.ScheduleOnReboot(root))
}

// DeleteFile removes a file now, or registers it for reboot removal when that
// fails and scheduleOnFail is set.
func (s *Scheduler) DeleteFile(ctx context.Context, path string, scheduleOnFail bool) Task {
	task := s.DeleteNow(ctx, path)
	if task.Status != Failed || !scheduleOnFail {
		return task
	}
	return s.ScheduleOnReboot(path)
}

// DeleteDirectory removes a directory tree now, or registers the whole tree
// for reboot removal when that fails and scheduleOnFail is set. The returned
// task describes the root; it is ScheduledOnReboot only when every entry of
// the tree was registered, and Absent when the tree vanished meanwhile.
func (s *Scheduler) DeleteDirectory(ctx context.Context, path string, scheduleOnFail bool) Task {
	task := s.DeleteNow(ctx, path)
	if task.Status != Failed || !scheduleOnFail {
		return task
	}

	root := Task{Target: path, Kind: KindDirectory}
	tasks := s.ScheduleDirectoryOnReboot(path)
	if len(tasks) == 0 {
		// nothing was registered: the tree is gone or cannot be read
		if _, err := s.fs.Stat(path); os.IsNotExist(err) {
			root.Absent = true
			root.resolve(Deleted, nil)
			return root
		}
		root.resolve(Failed, task.Err)
		return root
	}

	var errs []error
	for _, t := range tasks {
		if t.Status == Failed {
			errs = append(errs, t.Err)
		}
	}
	if len(errs) > 0 {
		root.resolve(Failed, errors.Join(errs...))
		return root
	}
	root.resolve(ScheduledOnReboot, nil)
	return root
}

// DirectorySize returns the total size of the files under root, or 0 when
// root does not exist.
func (s *Scheduler) DirectorySize(root string) int64 {
	var total int64
	_ = afero.Walk(s.fs, root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
