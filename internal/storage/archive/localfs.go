package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/newthinker/tradelab/internal/core"
)

// LocalFS implements Storage for local filesystem
type LocalFS struct {
	basePath string
}

// NewLocalFS creates a new LocalFS storage
func NewLocalFS(basePath string) (*LocalFS, error) {
	if basePath == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("local storage path is empty"))
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating base path: %w", err)
	}
	return &LocalFS{basePath: basePath}, nil
}

func (l *LocalFS) fullPath(path string) (string, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.basePath, filepath.FromSlash(cleaned)), nil
}

func (l *LocalFS) Write(ctx context.Context, path string, data []byte) error {
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}
	// write then rename so readers never see a partial file
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Rename(tmp, full)
}

func (l *LocalFS) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := l.fullPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s not found", path))
	}
	return data, err
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	searchPath := l.basePath
	if prefix != "" {
		full, err := l.fullPath(prefix)
		if err != nil {
			return nil, err
		}
		searchPath = full
	}

	err := filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			relPath, _ := filepath.Rel(l.basePath, path)
			paths = append(paths, filepath.ToSlash(relPath))
		}
		return nil
	})

	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	sort.Strings(paths)
	return paths, err
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	full, err := l.fullPath(path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

func (l *LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	full, err := l.fullPath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
