//go:build windows

package regview

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// SystemBackend is the live registry. Keys are opened with KEY_WOW64_64KEY so
// that literal Wow6432Node paths address the 32-bit view.
type SystemBackend struct{}

var procRegDeleteKeyExW = windows.NewLazySystemDLL("advapi32.dll").NewProc("RegDeleteKeyExW")

// NewSystemBackend returns the live registry backend.
func NewSystemBackend() SystemBackend { return SystemBackend{} }

func rootKey(h Hive) (registry.Key, error) {
	switch h {
	case ClassesRoot:
		return registry.CLASSES_ROOT, nil
	case CurrentUser:
		return registry.CURRENT_USER, nil
	case LocalMachine:
		return registry.LOCAL_MACHINE, nil
	case Users:
		return registry.USERS, nil
	default:
		return 0, fmt.Errorf("unknown hive %d", int(h))
	}
}

// mapErr folds the Win32 errors the scrubber cares about onto package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrNotExist), errors.Is(err, windows.ERROR_PATH_NOT_FOUND):
		return fmt.Errorf("%w: %v", ErrNotExist, err)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", ErrDenied, err)
	default:
		return err
	}
}

func (SystemBackend) open(h Hive, path string, access uint32) (registry.Key, error) {
	root, err := rootKey(h)
	if err != nil {
		return 0, err
	}
	k, err := registry.OpenKey(root, path, access|registry.WOW64_64KEY)
	return k, mapErr(err)
}

func (b SystemBackend) KeyExists(h Hive, path string) (bool, error) {
	k, err := b.open(h, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	k.Close()
	return true, nil
}

func (b SystemBackend) SubKeyNames(h Hive, path string) ([]string, error) {
	k, err := b.open(h, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	names, err := k.ReadSubKeyNames(-1)
	return names, mapErr(err)
}

func (b SystemBackend) ValueNames(h Hive, path string) ([]string, error) {
	k, err := b.open(h, path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	names, err := k.ReadValueNames(-1)
	return names, mapErr(err)
}

func (b SystemBackend) GetValue(h Hive, path, name string) (Value, error) {
	k, err := b.open(h, path, registry.QUERY_VALUE)
	if err != nil {
		return Value{}, err
	}
	defer k.Close()

	_, valtype, err := k.GetValue(name, nil)
	if err != nil {
		return Value{}, mapErr(err)
	}

	switch valtype {
	case registry.SZ, registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		kind := String
		if valtype == registry.EXPAND_SZ {
			kind = ExpandString
		}
		return Value{Kind: kind, String: s}, mapErr(err)
	case registry.MULTI_SZ:
		ss, _, err := k.GetStringsValue(name)
		return Value{Kind: MultiString, Strings: ss}, mapErr(err)
	case registry.DWORD, registry.QWORD:
		n, _, err := k.GetIntegerValue(name)
		kind := DWord
		if valtype == registry.QWORD {
			kind = QWord
		}
		return Value{Kind: kind, Integer: n}, mapErr(err)
	default:
		data, _, err := k.GetBinaryValue(name)
		return Value{Kind: Binary, Binary: data}, mapErr(err)
	}
}

func (SystemBackend) SetValue(h Hive, path, name string, value Value) error {
	root, err := rootKey(h)
	if err != nil {
		return err
	}
	k, _, err := registry.CreateKey(root, path, registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return mapErr(err)
	}
	defer k.Close()

	switch value.Kind {
	case String:
		err = k.SetStringValue(name, value.String)
	case ExpandString:
		err = k.SetExpandStringValue(name, value.String)
	case MultiString:
		err = k.SetStringsValue(name, value.Strings)
	case DWord:
		err = k.SetDWordValue(name, uint32(value.Integer))
	case QWord:
		err = k.SetQWordValue(name, value.Integer)
	case Binary:
		err = k.SetBinaryValue(name, value.Binary)
	default:
		err = fmt.Errorf("unsupported value kind %v", value.Kind)
	}
	return mapErr(err)
}

func (b SystemBackend) DeleteValue(h Hive, path, name string) error {
	k, err := b.open(h, path, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return mapErr(k.DeleteValue(name))
}

// DeleteKeyTree deletes children depth-first; RegDeleteKeyEx refuses keys that still have subkeys.
func (b SystemBackend) DeleteKeyTree(h Hive, path string) error {
	children, err := b.SubKeyNames(h, path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := b.DeleteKeyTree(h, path+`\`+child); err != nil && !errors.Is(err, ErrNotExist) {
			return err
		}
	}

	root, err := rootKey(h)
	if err != nil {
		return err
	}
	return mapErr(deleteKey(root, path))
}

// deleteKey removes a leaf key with KEY_WOW64_64KEY so a 32-bit build
// addresses the same physical key as the open calls above.
func deleteKey(root registry.Key, path string) error {
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	r, _, _ := procRegDeleteKeyExW.Call(uintptr(root), uintptr(unsafe.Pointer(p)), uintptr(registry.WOW64_64KEY), 0)
	if r != 0 {
		return syscall.Errno(r)
	}
	return nil
}
