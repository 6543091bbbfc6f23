package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// LocalDisk keeps files under a directory. All access goes through os.Root,
// so neither ".." nor a symlink can reach outside it.
type LocalDisk struct {
	dir     string
	baseURL string
}

var tmpSeq atomic.Uint64

// NewLocalDisk serves dir, resolved against the working directory when
// relative. The directory is created on the first write.
func NewLocalDisk(dir, baseURL string) *LocalDisk {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &LocalDisk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// rel maps a disk path to a clean path relative to the root; "../x" and
// "/x" both become "x".
func rel(p string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
}

func (d *LocalDisk) open(create bool) (*os.Root, error) {
	if create {
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage/local: %w", err)
		}
	}
	return os.OpenRoot(d.dir)
}

// Put writes to a temporary sibling first so readers never see a partial
// file.
func (d *LocalDisk) Put(_ context.Context, p string, content []byte, _ string) error {
	name := rel(p)
	if name == "" {
		return fmt.Errorf("storage/local: empty path")
	}
	root, err := d.open(true)
	if err != nil {
		return err
	}
	defer root.Close()

	if dir := path.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage/local: %w", err)
		}
	}
	tmp := name + ".tmp-" + strconv.FormatUint(tmpSeq.Add(1), 10)
	if err := root.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("storage/local: put %s: %w", p, err)
	}
	if err := root.Rename(tmp, name); err != nil {
		_ = root.Remove(tmp)
		return fmt.Errorf("storage/local: put %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) Get(_ context.Context, p string) ([]byte, error) {
	root, err := d.open(false)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	defer root.Close()

	data, err := root.ReadFile(rel(p))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrNotExist
	case err != nil:
		return nil, fmt.Errorf("storage/local: get %s: %w", p, err)
	}
	return data, nil
}

func (d *LocalDisk) Exists(_ context.Context, p string) bool {
	root, err := d.open(false)
	if err != nil {
		return false
	}
	defer root.Close()
	info, err := root.Stat(rel(p))
	return err == nil && info.Mode().IsRegular()
}

func (d *LocalDisk) Delete(_ context.Context, p string) error {
	root, err := d.open(false)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer root.Close()
	if err := root.Remove(rel(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage/local: delete %s: %w", p, err)
	}
	return nil
}

func (d *LocalDisk) Files(_ context.Context, directory string) ([]string, error) {
	root, err := d.open(false)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer root.Close()

	dir := rel(directory)
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(root.FS(), dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage/local: files %s: %w", directory, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.Contains(e.Name(), ".tmp-") {
			out = append(out, path.Join(rel(directory), e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

func (d *LocalDisk) URL(p string) string {
	return d.baseURL + "/" + rel(p)
}
