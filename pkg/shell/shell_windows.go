//go:build windows

package shell

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// ShellApplication invokes verbs through the Shell.Application COM object.
type ShellApplication struct{}

func (ShellApplication) InvokeVerbs(path string, pick func(verb string) bool) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != 0x00000001 {
			return 0, fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("Shell.Application")
	if err != nil {
		return 0, fmt.Errorf("creating Shell.Application: %w", err)
	}
	defer unknown.Release()
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return 0, err
	}
	defer app.Release()

	folderRaw, err := oleutil.CallMethod(app, "NameSpace", filepath.Dir(path))
	if err != nil {
		return 0, fmt.Errorf("NameSpace %s: %w", filepath.Dir(path), err)
	}
	defer folderRaw.Clear()
	folder := folderRaw.ToIDispatch()
	if folder == nil {
		return 0, fmt.Errorf("no shell folder for %s", filepath.Dir(path))
	}

	itemRaw, err := oleutil.CallMethod(folder, "ParseName", filepath.Base(path))
	if err != nil {
		return 0, fmt.Errorf("ParseName %s: %w", path, err)
	}
	defer itemRaw.Clear()
	item := itemRaw.ToIDispatch()
	if item == nil {
		return 0, fmt.Errorf("no shell item for %s", path)
	}

	verbsRaw, err := oleutil.CallMethod(item, "Verbs")
	if err != nil {
		return 0, err
	}
	defer verbsRaw.Clear()
	verbs := verbsRaw.ToIDispatch()

	count, err := oleutil.GetProperty(verbs, "Count")
	if err != nil {
		return 0, err
	}
	defer count.Clear()

	invoked := 0
	for i := 0; i < int(count.Val); i++ {
		verbRaw, err := oleutil.CallMethod(verbs, "Item", i)
		if err != nil {
			continue
		}
		verb := verbRaw.ToIDispatch()
		if verb == nil {
			verbRaw.Clear()
			continue
		}
		name, err := oleutil.GetProperty(verb, "Name")
		if err == nil && pick(name.ToString()) {
			if _, err := oleutil.CallMethod(verb, "DoIt"); err == nil {
				invoked++
				time.Sleep(100 * time.Millisecond)
			}
		}
		if name != nil {
			name.Clear()
		}
		verbRaw.Clear()
	}
	return invoked, nil
}
