// Package archive stores exported reports and CSV price histories on a
// local directory or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/tradelab/internal/core"
)

// Storage defines the interface for archive storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path. A missing object yields
	// core.ErrNoData.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // "localfs" or "s3"
	LocalPath string
	S3        S3Config
}

// New builds the configured backend.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "localfs":
		return NewLocalFS(cfg.LocalPath)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage backend %q", cfg.Backend))
	}
}

// ContentType guesses the MIME type of an archived object from its extension.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// cleanPath normalizes p to a relative slash path and rejects escapes.
func cleanPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("empty path %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes the archive root", p)
		}
	}
	return cleaned, nil
}
