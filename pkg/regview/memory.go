package regview

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryBackend is an in-memory registry with Windows' case-insensitive,
// case-preserving naming. Keys can be marked as denying deletion to model
// keys held open by another process.
type MemoryBackend struct {
	mu     sync.Mutex
	hives  map[Hive]*memKey
	denied map[string]struct{}
}

type memKey struct {
	name     string
	children map[string]*memKey // upper-cased name -> child
	values   map[string]memValue
}

type memValue struct {
	name  string
	value Value
}

func newMemKey(name string) *memKey {
	return &memKey{name: name, children: map[string]*memKey{}, values: map[string]memValue{}}
}

// NewMemoryBackend returns an empty registry.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{hives: map[Hive]*memKey{}, denied: map[string]struct{}{}}
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, `\`) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func deniedKey(hive Hive, path string) string {
	return hive.String() + `\` + strings.ToUpper(strings.Join(splitPath(path), `\`))
}

func (m *MemoryBackend) root(hive Hive) *memKey {
	r, ok := m.hives[hive]
	if !ok {
		r = newMemKey(hive.String())
		m.hives[hive] = r
	}
	return r
}

func (m *MemoryBackend) find(hive Hive, path string) *memKey {
	k := m.root(hive)
	for _, part := range splitPath(path) {
		child, ok := k.children[strings.ToUpper(part)]
		if !ok {
			return nil
		}
		k = child
	}
	return k
}

func (m *MemoryBackend) create(hive Hive, path string) *memKey {
	k := m.root(hive)
	for _, part := range splitPath(path) {
		child, ok := k.children[strings.ToUpper(part)]
		if !ok {
			child = newMemKey(part)
			k.children[strings.ToUpper(part)] = child
		}
		k = child
	}
	return k
}

// CreateKey creates the key and any missing parents.
func (m *MemoryBackend) CreateKey(hive Hive, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.create(hive, path)
}

// DenyDelete makes deleting the key, or any value in it, fail with ErrDenied.
func (m *MemoryBackend) DenyDelete(hive Hive, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[deniedKey(hive, path)] = struct{}{}
}

func (m *MemoryBackend) KeyExists(hive Hive, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(hive, path) != nil, nil
}

func (m *MemoryBackend) SubKeyNames(hive Hive, path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.find(hive, path)
	if k == nil {
		return nil, fmt.Errorf("%s\\%s: %w", hive, path, ErrNotExist)
	}
	names := make([]string, 0, len(k.children))
	for _, child := range k.children {
		names = append(names, child.name)
	}
	return names, nil
}

func (m *MemoryBackend) ValueNames(hive Hive, path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.find(hive, path)
	if k == nil {
		return nil, fmt.Errorf("%s\\%s: %w", hive, path, ErrNotExist)
	}
	names := make([]string, 0, len(k.values))
	for _, v := range k.values {
		names = append(names, v.name)
	}
	return names, nil
}

func (m *MemoryBackend) GetValue(hive Hive, path, name string) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.find(hive, path)
	if k == nil {
		return Value{}, fmt.Errorf("%s\\%s: %w", hive, path, ErrNotExist)
	}
	v, ok := k.values[strings.ToUpper(name)]
	if !ok {
		return Value{}, fmt.Errorf("%s\\%s [%s]: %w", hive, path, name, ErrNotExist)
	}
	return v.value.clone(), nil
}

func (m *MemoryBackend) SetValue(hive Hive, path, name string, value Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.create(hive, path)
	k.values[strings.ToUpper(name)] = memValue{name: name, value: value.clone()}
	return nil
}

func (m *MemoryBackend) DeleteValue(hive Hive, path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.find(hive, path)
	if k == nil {
		return fmt.Errorf("%s\\%s: %w", hive, path, ErrNotExist)
	}
	if _, ok := m.denied[deniedKey(hive, path)]; ok {
		return fmt.Errorf("%s\\%s [%s]: %w", hive, path, name, ErrDenied)
	}
	if _, ok := k.values[strings.ToUpper(name)]; !ok {
		return fmt.Errorf("%s\\%s [%s]: %w", hive, path, name, ErrNotExist)
	}
	delete(k.values, strings.ToUpper(name))
	return nil
}

func (m *MemoryBackend) DeleteKeyTree(hive Hive, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("refusing to delete hive root %s: %w", hive, ErrDenied)
	}
	if m.find(hive, path) == nil {
		return fmt.Errorf("%s\\%s: %w", hive, path, ErrNotExist)
	}
	for d := range m.denied {
		// the key itself or any descendant being held blocks the whole tree
		prefix := deniedKey(hive, path)
		if d == prefix || strings.HasPrefix(d, prefix+`\`) {
			return fmt.Errorf("%s\\%s: %w", hive, path, ErrDenied)
		}
	}
	parent := m.find(hive, strings.Join(parts[:len(parts)-1], `\`))
	delete(parent.children, strings.ToUpper(parts[len(parts)-1]))
	return nil
}
