package words

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListFiles returns the curated word lists under dir as slash separated
// paths relative to dir, e.g. "german/cafe.txt". A missing dir yields an
// empty list.
func ListFiles(dir string) ([]string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return []string{}, nil
	}
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".txt") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list words files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// HasFile reports whether name is one of the lists under dir.
func HasFile(dir, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") {
		return false, nil
	}
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir() && strings.EqualFold(filepath.Ext(name), ".txt"), nil
}
