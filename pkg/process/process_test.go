package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeProc struct {
	mu       sync.Mutex
	pid      int32
	name     string
	exe      string
	running  bool
	stubborn bool
	killErr  error
}

func (f *fakeProc) PID() int32                           { return f.pid }
func (f *fakeProc) Name(context.Context) (string, error) { return f.name, nil }
func (f *fakeProc) Exe(context.Context) (string, error)  { return f.exe, nil }
func (f *fakeProc) IsRunning(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, nil
}

func (f *fakeProc) Kill(context.Context) error {
	if f.killErr != nil {
		return f.killErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stubborn {
		f.running = false
	}
	return nil
}

func lister(procs ...*fakeProc) Lister {
	return func(context.Context) ([]Proc, error) {
		out := make([]Proc, len(procs))
		for i, p := range procs {
			out[i] = p
		}
		return out, nil
	}
}

func TestMatchName(t *testing.T) {
	assert.True(t, MatchName("WINWORD.EXE", "winword.exe"))
	assert.True(t, MatchName("winword.exe", "WinWord"))
	assert.True(t, MatchName("OfficeClickToRun", "officeclicktorun.exe"))
	assert.False(t, MatchName("winword2.exe", "winword.exe"))
	assert.False(t, MatchName("winword.exe", ""))
}

func TestTerminateByName(t *testing.T) {
	word := &fakeProc{pid: 30, name: "WINWORD.EXE", running: true}
	excel := &fakeProc{pid: 10, name: "excel.exe", running: true}
	notepad := &fakeProc{pid: 20, name: "notepad.exe", running: true}
	term := NewTerminatorWithLister(lister(word, excel, notepad))
	term.poll = time.Millisecond

	pids := term.Terminate(context.Background(), []string{"winword.exe", "EXCEL.EXE"}, time.Second)

	assert.Equal(t, []int32{10, 30}, pids)
	assert.True(t, notepad.running)
}

func TestTerminateSkipsProcessesThatSurvive(t *testing.T) {
	stuck := &fakeProc{pid: 1, name: "lync.exe", running: true, stubborn: true}
	denied := &fakeProc{pid: 2, name: "lync.exe", running: true, killErr: errors.New("access denied")}
	gone := &fakeProc{pid: 3, name: "lync.exe", running: true}
	term := NewTerminatorWithLister(lister(stuck, denied, gone))
	term.poll = time.Millisecond

	pids := term.Terminate(context.Background(), []string{"lync"}, 50*time.Millisecond)
	assert.Equal(t, []int32{3}, pids)
}

func TestTerminateByPath(t *testing.T) {
	c2r := &fakeProc{pid: 5, name: "integrator.exe", exe: `C:\Program Files\Microsoft Office\root\Integration\integrator.exe`, running: true}
	other := &fakeProc{pid: 6, name: "app.exe", exe: `C:\Tools\app.exe`, running: true}
	term := NewTerminatorWithLister(lister(c2r, other))
	term.poll = time.Millisecond

	pids := term.TerminateByPath(context.Background(), func(exe string) bool {
		return len(exe) > 20 && exe[:20] == `C:\Program Files\Mic`
	}, time.Second)
	assert.Equal(t, []int32{5}, pids)
}

func TestIsRunningAndProcessesUsingPath(t *testing.T) {
	term := NewTerminatorWithLister(lister(
		&fakeProc{pid: 1, name: "OfficeClickToRun.exe", exe: `C:\Program Files\Common Files\Microsoft Shared\ClickToRun\OfficeClickToRun.exe`},
		&fakeProc{pid: 2, name: "svchost.exe", exe: `C:\Windows\System32\svchost.exe`},
	))
	ctx := context.Background()

	assert.True(t, term.IsRunning(ctx, "officeclicktorun"))
	assert.False(t, term.IsRunning(ctx, "winword"))
	assert.Equal(t, []string{"OfficeClickToRun.exe"},
		term.ProcessesUsingPath(ctx, `c:\program files\common files\microsoft shared\clicktorun`))
}

func TestProcessesUsingPathStopsAtDirectoryBoundary(t *testing.T) {
	term := NewTerminatorWithLister(lister(
		&fakeProc{pid: 1, name: "tool.exe", exe: `C:\OfficeTools\tool.exe`},
		&fakeProc{pid: 2, name: "WINWORD.EXE", exe: `C:\Office\root\WINWORD.EXE`},
	))
	ctx := context.Background()

	assert.Equal(t, []string{"WINWORD.EXE"}, term.ProcessesUsingPath(ctx, `C:\Office`))
	assert.Equal(t, []string{"WINWORD.EXE"}, term.ProcessesUsingPath(ctx, `C:\Office\`))
	assert.Empty(t, term.ProcessesUsingPath(ctx, `C:\Office\root\WINWORD`))
}

func TestTerminateNoMatches(t *testing.T) {
	term := NewTerminatorWithLister(lister())
	assert.Empty(t, term.Terminate(context.Background(), []string{"winword.exe"}, time.Second))
}
