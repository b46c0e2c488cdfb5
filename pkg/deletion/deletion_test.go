package deletion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/windowsadmins/c2rscrub/pkg/regview"
	"github.com/windowsadmins/c2rscrub/pkg/retry"
)

// recordingQueue remembers registrations in order and can be told to refuse paths.
type recordingQueue struct {
	paths  []string
	refuse map[string]bool
}

func (q *recordingQueue) ScheduleOnReboot(path string) error {
	if q.refuse[path] {
		return errors.New("access denied")
	}
	q.paths = append(q.paths, path)
	return nil
}

// faultyFs injects stat and removal errors into an otherwise working Fs.
type faultyFs struct {
	afero.Fs
	statErr   map[string]error
	removeErr error
	vanish    bool // removals delete the target before failing
	removes   int
}

func (f *faultyFs) Stat(name string) (os.FileInfo, error) {
	if err := f.statErr[name]; err != nil {
		return nil, &os.PathError{Op: "stat", Path: name, Err: err}
	}
	return f.Fs.Stat(name)
}

func (f *faultyFs) Remove(name string) error {
	return f.remove(name, f.Fs.Remove)
}

func (f *faultyFs) RemoveAll(name string) error {
	return f.remove(name, f.Fs.RemoveAll)
}

func (f *faultyFs) remove(name string, next func(string) error) error {
	f.removes++
	if f.vanish {
		_ = f.Fs.RemoveAll(name)
	}
	if f.removeErr != nil {
		return &os.PathError{Op: "remove", Path: name, Err: f.removeErr}
	}
	return next(name)
}

var (
	noWait = retry.RetryConfig{MaxRetries: 2}
	root   = filepath.FromSlash("/data")
)

type SchedulerSuite struct {
	suite.Suite
	fs    afero.Fs
	queue *recordingQueue
	s     *Scheduler
	ctx   context.Context
}

func (s *SchedulerSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
	s.queue = &recordingQueue{refuse: map[string]bool{}}
	s.s = NewScheduler(s.fs, s.queue, WithRetry(noWait))
	s.ctx = context.Background()
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) write(path string, perm os.FileMode) {
	s.Require().NoError(s.fs.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(afero.WriteFile(s.fs, path, []byte("data"), perm))
}

func (s *SchedulerSuite) TestDeleteNowFile() {
	target := filepath.Join(root, "a.dll")
	s.write(target, 0o644)

	task := s.s.DeleteNow(s.ctx, target)
	s.Equal(Deleted, task.Status)
	s.Equal(KindFile, task.Kind)
	s.False(task.Absent)
	exists, _ := afero.Exists(s.fs, target)
	s.False(exists)
}

func (s *SchedulerSuite) TestDeleteNowClearsReadOnly() {
	target := filepath.Join(root, "ro.dat")
	s.write(target, 0o444)

	task := s.s.DeleteNow(s.ctx, target)
	s.Equal(Deleted, task.Status)
	exists, _ := afero.Exists(s.fs, target)
	s.False(exists)
}

func (s *SchedulerSuite) TestDeleteNowDirectory() {
	s.write(filepath.Join(root, "sub", "deep", "x.txt"), 0o444)
	s.write(filepath.Join(root, "y.txt"), 0o644)

	task := s.s.DeleteNow(s.ctx, root)
	s.Equal(Deleted, task.Status)
	s.Equal(KindDirectory, task.Kind)
	exists, _ := afero.Exists(s.fs, root)
	s.False(exists)
}

func (s *SchedulerSuite) TestDeleteNowAbsentIsDeleted() {
	task := s.s.DeleteNow(s.ctx, "missing")
	s.Equal(Deleted, task.Status)
	s.True(task.Absent)
	s.NoError(task.Err)
}

func (s *SchedulerSuite) TestDeleteNowFailure() {
	s.write(filepath.Join(root, "busy.dll"), 0o644)
	ro := NewScheduler(afero.NewReadOnlyFs(s.fs), s.queue, WithRetry(noWait))

	task := ro.DeleteNow(s.ctx, filepath.Join(root, "busy.dll"))
	s.Equal(Failed, task.Status)
	s.Error(task.Err)
}

func (s *SchedulerSuite) TestDeleteFileSchedulesOnFailure() {
	target := filepath.Join(root, "busy.dll")
	s.write(target, 0o644)
	ro := NewScheduler(afero.NewReadOnlyFs(s.fs), s.queue, WithRetry(noWait))

	task := ro.DeleteFile(s.ctx, target, true)
	s.Equal(ScheduledOnReboot, task.Status)
	s.Equal([]string{target}, s.queue.paths)
	s.Equal([]string{target}, ro.Journal().Entries())

	task = ro.DeleteFile(s.ctx, target, false)
	s.Equal(Failed, task.Status)
	s.Equal(1, ro.Journal().Len())
}

func (s *SchedulerSuite) TestScheduleDirectoryOrdering() {
	files := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "deeper", "c.txt"),
		filepath.Join(root, "other", "d.txt"),
	}
	for _, f := range files {
		s.write(f, 0o644)
	}

	tasks := s.s.ScheduleDirectoryOnReboot(root)
	s.Require().Len(tasks, 8)
	for _, t := range tasks {
		s.Equal(ScheduledOnReboot, t.Status, t.Target)
	}

	order := s.queue.paths
	s.ElementsMatch(files, order[:4], "files first")
	dirs := order[4:7]
	for i := 1; i < len(dirs); i++ {
		s.GreaterOrEqual(len(dirs[i-1]), len(dirs[i]), "deepest directories first")
	}
	s.ElementsMatch([]string{
		filepath.Join(root, "sub"),
		filepath.Join(root, "sub", "deeper"),
		filepath.Join(root, "other"),
	}, dirs)
	s.Equal(root, order[7], "root last")
	s.Equal(order, s.s.Journal().Entries())
}

func (s *SchedulerSuite) TestScheduleDirectoryMissing() {
	s.Empty(s.s.ScheduleDirectoryOnReboot("nowhere"))
	s.Empty(s.queue.paths)
}

func (s *SchedulerSuite) TestScheduleRefusedIsFailedNotRecorded() {
	s.queue.refuse["locked"] = true
	task := s.s.ScheduleOnReboot("locked")
	s.Equal(Failed, task.Status)
	s.Equal(0, s.s.Journal().Len())
}

func (s *SchedulerSuite) TestScheduleWithoutQueue() {
	task := NewScheduler(s.fs, nil).ScheduleOnReboot("x")
	s.Equal(Failed, task.Status)
}

func (s *SchedulerSuite) TestDeleteDirectorySchedulesTree() {
	s.write(filepath.Join(root, "sub", "b.txt"), 0o644)
	ro := NewScheduler(afero.NewReadOnlyFs(s.fs), s.queue, WithRetry(noWait))

	task := ro.DeleteDirectory(s.ctx, root, true)
	s.Equal(ScheduledOnReboot, task.Status)
	s.Equal(KindDirectory, task.Kind)
	s.Equal([]string{filepath.Join(root, "sub", "b.txt"), filepath.Join(root, "sub"), root}, s.queue.paths)
}

func (s *SchedulerSuite) TestDeleteDirectoryPartialScheduleFails() {
	s.write(filepath.Join(root, "b.txt"), 0o644)
	s.queue.refuse[filepath.Join(root, "b.txt")] = true
	ro := NewScheduler(afero.NewReadOnlyFs(s.fs), s.queue, WithRetry(noWait))

	task := ro.DeleteDirectory(s.ctx, root, true)
	s.Equal(Failed, task.Status)
	s.Error(task.Err)
}

func (s *SchedulerSuite) TestDeleteDirectoryUnreadableRootFails() {
	s.write(filepath.Join(root, "b.txt"), 0o644)
	locked := &faultyFs{Fs: s.fs, statErr: map[string]error{root: os.ErrPermission}}
	sched := NewScheduler(locked, s.queue, WithRetry(noWait))

	task := sched.DeleteDirectory(s.ctx, root, true)
	s.Equal(Failed, task.Status)
	s.ErrorIs(task.Err, os.ErrPermission)
	s.False(task.Absent)
	s.Empty(s.queue.paths)
	s.Equal(0, sched.Journal().Len())
}

func (s *SchedulerSuite) TestDeleteDirectoryGoneAfterFailureIsAbsent() {
	s.write(filepath.Join(root, "b.txt"), 0o644)
	flaky := &faultyFs{Fs: s.fs, removeErr: errors.New("sharing violation"), vanish: true}
	sched := NewScheduler(flaky, s.queue, WithRetry(noWait))

	task := sched.DeleteDirectory(s.ctx, root, true)
	s.Equal(Deleted, task.Status)
	s.True(task.Absent)
	s.NoError(task.Err)
	s.Empty(s.queue.paths)
}

func (s *SchedulerSuite) TestDeleteNowInvalidPathIsNotRetried() {
	target := filepath.Join(root, "bad.dll")
	s.write(target, 0o644)
	invalid := &faultyFs{Fs: s.fs, removeErr: os.ErrInvalid}
	sched := NewScheduler(invalid, s.queue, WithRetry(retry.RetryConfig{MaxRetries: 3}))

	task := sched.DeleteNow(s.ctx, target)
	s.Equal(Failed, task.Status)
	s.ErrorIs(task.Err, os.ErrInvalid)
	s.Equal(1, invalid.removes)
}

func (s *SchedulerSuite) TestDeleteNowTransientErrorIsRetried() {
	target := filepath.Join(root, "busy.dll")
	s.write(target, 0o644)
	busy := &faultyFs{Fs: s.fs, removeErr: errors.New("sharing violation")}
	sched := NewScheduler(busy, s.queue, WithRetry(retry.RetryConfig{MaxRetries: 3}))

	task := sched.DeleteNow(s.ctx, target)
	s.Equal(Failed, task.Status)
	s.Equal(3, busy.removes)
}

func (s *SchedulerSuite) TestDryRunTouchesNothing() {
	target := filepath.Join(root, "a.dll")
	s.write(target, 0o644)
	dry := NewScheduler(s.fs, s.queue, WithDryRun())

	s.Equal(Deleted, dry.DeleteNow(s.ctx, target).Status)
	s.Equal(ScheduledOnReboot, dry.ScheduleOnReboot(target).Status)
	exists, _ := afero.Exists(s.fs, target)
	s.True(exists)
	s.Empty(s.queue.paths)
	s.Equal(0, dry.Journal().Len())
}

func (s *SchedulerSuite) TestDirectorySize() {
	s.write(filepath.Join(root, "a"), 0o644)
	s.write(filepath.Join(root, "sub", "b"), 0o644)
	s.Equal(int64(8), s.s.DirectorySize(root))
	s.Equal(int64(0), s.s.DirectorySize("missing"))
}

func TestJournalEntriesIsCopy(t *testing.T) {
	j := &Journal{}
	j.add("a")
	entries := j.Entries()
	entries[0] = "changed"
	assert.Equal(t, []string{"a"}, j.Entries())
}

func TestPendingRenameQueueAppends(t *testing.T) {
	backend := regview.NewMemoryBackend()
	require.NoError(t, backend.SetValue(regview.LocalMachine, SessionManagerPath, PendingRenameValue,
		regview.MultiStringValue([]string{`\??\C:\old.tmp`, ""})))
	q := NewPendingRenameQueue(regview.New(backend, true))

	require.NoError(t, q.ScheduleOnReboot(`C:\Program Files\Microsoft Office\root`))

	v, err := backend.GetValue(regview.LocalMachine, SessionManagerPath, PendingRenameValue)
	require.NoError(t, err)
	assert.Equal(t, []string{`\??\C:\old.tmp`, "", `\??\C:\Program Files\Microsoft Office\root`, ""}, v.Strings)

	exists, _ := backend.KeyExists(regview.LocalMachine, regview.RedirectedPath(SessionManagerPath))
	assert.False(t, exists, "only the native view is written")
}

func TestPendingRenameQueueCreatesValue(t *testing.T) {
	backend := regview.NewMemoryBackend()
	q := NewPendingRenameQueue(regview.New(backend, false))

	require.NoError(t, q.ScheduleOnReboot(`C:\x.dll`))
	v, err := backend.GetValue(regview.LocalMachine, SessionManagerPath, PendingRenameValue)
	require.NoError(t, err)
	assert.Equal(t, []string{`\??\C:\x.dll`, ""}, v.Strings)
}
