package storage

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemoryDisk keeps files in a map.
type MemoryDisk struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryDisk() *MemoryDisk {
	return &MemoryDisk{files: map[string][]byte{}}
}

func key(p string) string { return strings.TrimLeft(path.Clean("/"+p), "/") }

func (d *MemoryDisk) Put(_ context.Context, p string, content []byte, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[key(p)] = append([]byte(nil), content...)
	return nil
}

func (d *MemoryDisk) Get(_ context.Context, p string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data, ok := d.files[key(p)]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (d *MemoryDisk) Exists(_ context.Context, p string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.files[key(p)]
	return ok
}

func (d *MemoryDisk) Delete(_ context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, key(p))
	return nil
}

func (d *MemoryDisk) Files(_ context.Context, directory string) ([]string, error) {
	dir := key(directory)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for k := range d.files {
		if path.Dir(k) == dir || (dir == "" && !strings.Contains(k, "/")) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *MemoryDisk) URL(p string) string { return "memory://" + key(p) }
