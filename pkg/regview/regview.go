// pkg/regview/regview.go - one logical registry location backed by the native and WOW64 views.
//
// On a 64-bit host every logical path has two physical homes: the path itself
// and its Wow6432Node counterpart. View applies each operation to both and
// merges the results. A missing or inaccessible branch is an ordinary state
// for a partially uninstalled machine, so View never returns errors; failures
// surface as empty, false or not-found results and are logged at debug level.

package regview

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// Hive identifies a predefined registry root.
type Hive int

const (
	ClassesRoot Hive = iota
	CurrentUser
	LocalMachine
	Users
)

func (h Hive) String() string {
	switch h {
	case ClassesRoot:
		return "HKCR"
	case CurrentUser:
		return "HKCU"
	case LocalMachine:
		return "HKLM"
	case Users:
		return "HKU"
	default:
		return fmt.Sprintf("Hive(%d)", int(h))
	}
}

var (
	// ErrNotExist means the key or value is absent.
	ErrNotExist = errors.New("regview: key or value does not exist")
	// ErrDenied means the backend refused the operation.
	ErrDenied = errors.New("regview: access denied")
)

// Backend is raw access to physical registry paths. Implementations return
// ErrNotExist (possibly wrapped) for absent keys and values.
type Backend interface {
	KeyExists(hive Hive, path string) (bool, error)
	SubKeyNames(hive Hive, path string) ([]string, error)
	ValueNames(hive Hive, path string) ([]string, error)
	GetValue(hive Hive, path, name string) (Value, error)
	// SetValue creates the key when it is missing.
	SetValue(hive Hive, path, name string, value Value) error
	DeleteValue(hive Hive, path, name string) error
	// DeleteKeyTree removes the key and all of its descendants.
	DeleteKeyTree(hive Hive, path string) error
}

// Location is a logical registry key.
type Location struct {
	Hive Hive
	Path string
}

// Join returns the location of a descendant key.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Path}, elem...)
	return Location{Hive: l.Hive, Path: strings.Join(parts, `\`)}
}

func (l Location) String() string {
	return l.Hive.String() + `\` + l.Path
}

const (
	wowSegment    = "Wow6432Node"
	classesPrefix = `Software\Classes\`
	pathSeparator = '\\'
)

// RedirectedPath returns the WOW64 counterpart of a native path.
//
//	Software\Classes\TypeLib  -> Software\Classes\Wow6432Node\TypeLib
//	SOFTWARE\Microsoft\Foo    -> SOFTWARE\Wow6432Node\Microsoft\Foo
//	Installer                 -> Wow6432Node\Installer
func RedirectedPath(path string) string {
	if len(path) >= len(classesPrefix) && strings.EqualFold(path[:len(classesPrefix)], classesPrefix) {
		return path[:len(classesPrefix)] + wowSegment + `\` + path[len(classesPrefix):]
	}
	if i := strings.IndexByte(path, pathSeparator); i > 0 {
		return path[:i] + `\` + wowSegment + `\` + path[i+1:]
	}
	return wowSegment + `\` + path
}

// View is the dual-view registry.
type View struct {
	backend Backend
	is64Bit bool
	dryRun  bool
}

// Option configures a View.
type Option func(*View)

// WithDryRun makes mutating operations log what they would do and report success
// for targets that exist, without touching the backend.
func WithDryRun() Option {
	return func(v *View) { v.dryRun = true }
}

// New wraps backend. On a 32-bit host only the native path is used.
func New(backend Backend, is64Bit bool, opts ...Option) *View {
	v := &View{backend: backend, is64Bit: is64Bit}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Is64Bit reports whether the view spans both registry views.
func (v *View) Is64Bit() bool { return v.is64Bit }

// DryRun reports whether mutations are suppressed.
func (v *View) DryRun() bool { return v.dryRun }

// Physical returns the physical paths behind path, native first.
func (v *View) Physical(path string) []string {
	if !v.is64Bit {
		return []string{path}
	}
	return []string{path, RedirectedPath(path)}
}

// Exists reports whether the key exists in either view.
func (v *View) Exists(loc Location) bool {
	for _, p := range v.Physical(loc.Path) {
		ok, err := v.backend.KeyExists(loc.Hive, p)
		if err != nil {
			v.swallow("exists", loc.Hive, p, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// SubKeyNames returns the union of child key names across both views.
func (v *View) SubKeyNames(loc Location) []string {
	return v.union(loc, "subkeys", v.backend.SubKeyNames)
}

// ValueNames returns the union of value names across both views.
func (v *View) ValueNames(loc Location) []string {
	return v.union(loc, "values", v.backend.ValueNames)
}

func (v *View) union(loc Location, op string, list func(Hive, string) ([]string, error)) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range v.Physical(loc.Path) {
		found, err := list(loc.Hive, p)
		if err != nil {
			v.swallow(op, loc.Hive, p, err)
			continue
		}
		for _, name := range found {
			key := strings.ToUpper(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToUpper(names[i]) < strings.ToUpper(names[j]) })
	return names
}

// GetValue returns the first value found, native view first.
func (v *View) GetValue(loc Location, name string) (Value, bool) {
	for _, p := range v.Physical(loc.Path) {
		val, err := v.backend.GetValue(loc.Hive, p, name)
		if err != nil {
			v.swallow("get", loc.Hive, p, err)
			continue
		}
		return val, true
	}
	return Value{}, false
}

// GetString returns a REG_SZ or REG_EXPAND_SZ value.
func (v *View) GetString(loc Location, name string) (string, bool) {
	val, ok := v.GetValue(loc, name)
	if !ok || (val.Kind != String && val.Kind != ExpandString) {
		return "", false
	}
	return val.String, true
}

// GetStrings returns a REG_MULTI_SZ value.
func (v *View) GetStrings(loc Location, name string) ([]string, bool) {
	val, ok := v.GetValue(loc, name)
	if !ok || val.Kind != MultiString {
		return nil, false
	}
	return val.Strings, true
}

// SetValue writes the value in every view where the key already exists, or
// creates it in the native view when neither has the key. True if any write succeeded.
func (v *View) SetValue(loc Location, name string, value Value) bool {
	var targets []string
	for _, p := range v.Physical(loc.Path) {
		if ok, err := v.backend.KeyExists(loc.Hive, p); err == nil && ok {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		targets = []string{loc.Path}
	}

	success := false
	for _, p := range targets {
		if v.dryRun {
			logging.Info("Dry run: would set registry value", "key", loc.Hive.String()+`\`+p, "value", name)
			success = true
			continue
		}
		if err := v.backend.SetValue(loc.Hive, p, name, value); err != nil {
			v.swallow("set", loc.Hive, p, err)
			continue
		}
		success = true
	}
	return success
}

// outcome of a mutation against one physical path
type outcome int

const (
	absent outcome = iota
	removed
	failed
)

// combine: any removal wins; all-absent is success; otherwise failure.
func combine(results []outcome) bool {
	anyFailed := false
	for _, r := range results {
		switch r {
		case removed:
			return true
		case failed:
			anyFailed = true
		}
	}
	return !anyFailed
}

// DeleteKey removes the key tree from both views.
// Returns true when either view removed it or neither view had it.
func (v *View) DeleteKey(loc Location) bool {
	var results []outcome
	for _, p := range v.Physical(loc.Path) {
		exists, err := v.backend.KeyExists(loc.Hive, p)
		if err != nil {
			v.swallow("exists", loc.Hive, p, err)
			results = append(results, failed)
			continue
		}
		if !exists {
			results = append(results, absent)
			continue
		}
		if v.dryRun {
			logging.Info("Dry run: would delete registry key", "key", loc.Hive.String()+`\`+p)
			results = append(results, removed)
			continue
		}
		if err := v.backend.DeleteKeyTree(loc.Hive, p); err != nil {
			if errors.Is(err, ErrNotExist) {
				results = append(results, absent)
				continue
			}
			v.swallow("delete key", loc.Hive, p, err)
			results = append(results, failed)
			continue
		}
		logging.Debug("Deleted registry key", "key", loc.Hive.String()+`\`+p)
		results = append(results, removed)
	}
	return combine(results)
}

// DeleteValue removes the named value from both views.
// Returns true when either view removed it or neither view had it.
func (v *View) DeleteValue(loc Location, name string) bool {
	var results []outcome
	for _, p := range v.Physical(loc.Path) {
		results = append(results, v.deleteValueAt(loc.Hive, p, name))
	}
	return combine(results)
}

func (v *View) deleteValueAt(hive Hive, path, name string) outcome {
	if _, err := v.backend.GetValue(hive, path, name); err != nil {
		if errors.Is(err, ErrNotExist) {
			return absent
		}
		v.swallow("get", hive, path, err)
		return failed
	}
	if v.dryRun {
		logging.Info("Dry run: would delete registry value", "key", hive.String()+`\`+path, "value", name)
		return removed
	}
	if err := v.backend.DeleteValue(hive, path, name); err != nil {
		if errors.Is(err, ErrNotExist) {
			return absent
		}
		v.swallow("delete value", hive, path, err)
		return failed
	}
	logging.Debug("Deleted registry value", "key", hive.String()+`\`+path, "value", name)
	return removed
}

// FilterStrings rewrites a REG_MULTI_SZ value independently in each view,
// keeping only entries for which keep returns true. A list that becomes empty
// is deleted. It returns the distinct entries dropped across all views and
// whether every view that needed a change was updated. keep may be called
// once per view for the same entry.
func (v *View) FilterStrings(loc Location, name string, keep func(string) bool) ([]string, bool) {
	var dropped []string
	seen := make(map[string]struct{})
	collect := func(gone []string) {
		for _, entry := range gone {
			if _, dup := seen[entry]; !dup {
				seen[entry] = struct{}{}
				dropped = append(dropped, entry)
			}
		}
	}
	ok := true

	for _, p := range v.Physical(loc.Path) {
		val, err := v.backend.GetValue(loc.Hive, p, name)
		if err != nil {
			if !errors.Is(err, ErrNotExist) {
				v.swallow("get", loc.Hive, p, err)
			}
			continue
		}
		if val.Kind != MultiString {
			continue
		}

		kept := make([]string, 0, len(val.Strings))
		var gone []string
		for _, entry := range val.Strings {
			if keep(entry) {
				kept = append(kept, entry)
			} else {
				gone = append(gone, entry)
			}
		}
		if len(gone) == 0 {
			continue
		}

		if v.dryRun {
			logging.Info("Dry run: would rewrite registry list", "key", loc.Hive.String()+`\`+p, "value", name, "dropped", len(gone))
			collect(gone)
			continue
		}

		var werr error
		if len(kept) == 0 {
			werr = v.backend.DeleteValue(loc.Hive, p, name)
		} else {
			werr = v.backend.SetValue(loc.Hive, p, name, MultiStringValue(kept))
		}
		if werr != nil {
			v.swallow("rewrite list", loc.Hive, p, werr)
			ok = false
			continue
		}
		collect(gone)
	}
	return dropped, ok
}

func (v *View) swallow(op string, hive Hive, path string, err error) {
	if errors.Is(err, ErrNotExist) {
		return
	}
	logging.Debug("Registry operation failed", "op", op, "key", hive.String()+`\`+path, "error", err)
}
