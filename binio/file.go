package binio

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileLength reports the total length of s. The current position is
// restored before returning.
func FileLength(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// listDir returns the names of the regular files in dir, sorted.
func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// SwapExt replaces the extension of path with ext (given without the dot).
func SwapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}

// FindSidecar looks for a companion of path with the same base name and one
// of the given extensions. Extensions are matched case-insensitively against
// the directory listing, so "PAL" finds "image.pal" as well as "IMAGE.PAL".
func FindSidecar(path string, exts ...string) (string, bool) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	base := strings.TrimSuffix(file, filepath.Ext(file))
	names, err := listDir(dir)
	if err != nil {
		return "", false
	}
	for _, ext := range exts {
		want := strings.ToLower(base + "." + ext)
		for _, name := range names {
			if strings.ToLower(name) == want {
				return filepath.Join(dir, name), true
			}
		}
	}
	return "", false
}

// SafeFile is an output file that only appears under its final name once
// Commit succeeds. Writes go to a temporary file in the same directory; Abort
// removes it, so a failed save never leaves a truncated file behind.
type SafeFile struct {
	*os.File
	path string
	done bool
}

func Create(path string) (*SafeFile, error) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+file+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &SafeFile{File: f, path: path}, nil
}

// Commit closes the temporary file and moves it over the target path.
func (f *SafeFile) Commit() error {
	if f.done {
		return os.ErrClosed
	}
	f.done = true
	tmp := f.File.Name()
	if err := f.File.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Abort discards everything written so far. It is a no-op after Commit.
func (f *SafeFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.File.Close()
	os.Remove(f.File.Name())
}
