//go:build windows

package wmiexec

import (
	"errors"
	"fmt"
	"runtime"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// Session is a connection to the local root\cimv2 namespace. It is only
// valid inside the function passed to Do.
type Session struct {
	services *ole.IDispatch
}

// Do connects to root\cimv2 on a locked, COM-initialised thread and runs fn.
func Do(fn func(s *Session) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: COM already initialised on this thread
		if !errors.As(err, &oleErr) || oleErr.Code() != 0x00000001 {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return fmt.Errorf("creating SWbemLocator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("SWbemLocator IDispatch: %w", err)
	}
	defer locator.Release()

	raw, err := oleutil.CallMethod(locator, "ConnectServer", nil, `root\cimv2`)
	if err != nil {
		return fmt.Errorf("connecting to root\\cimv2: %w", err)
	}
	defer raw.Clear()

	return fn(&Session{services: raw.ToIDispatch()})
}

// Call invokes method on the instance at objectPath (for example
// `Win32_Service.Name="ClickToRunSvc"`) and returns its ReturnValue.
func (s *Session) Call(objectPath, method string, args ...interface{}) (int32, error) {
	objRaw, err := oleutil.CallMethod(s.services, "Get", objectPath)
	if err != nil {
		return 0, fmt.Errorf("getting %s: %w", objectPath, err)
	}
	defer objRaw.Clear()

	res, err := oleutil.CallMethod(objRaw.ToIDispatch(), method, args...)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", objectPath, method, err)
	}
	defer res.Clear()

	switch v := res.Value().(type) {
	case int32:
		return v, nil
	case int64:
		return int32(v), nil
	case uint32:
		return int32(v), nil
	default:
		return 0, nil
	}
}
