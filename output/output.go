// Package output owns the on-disk layout of rendered snapshots.
//
// Every route is written to <dest>/<clean path>/index.html so that a static
// file server resolves the route URL to the snapshot without rewrites.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// IndexHTML is the snapshot file name inside each route directory.
	IndexHTML = "index.html"

	// IndexMarkdown is the optional Markdown sidecar file name.
	IndexMarkdown = "index.md"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Path returns the snapshot path for a cleaned route path. "/" and ""
// collapse to <dest>/index.html. Paths that would resolve outside dest
// are rejected.
func Path(dest, cleanPath string) (string, error) {
	return pathFor(dest, cleanPath, IndexHTML)
}

// MarkdownPath is Path for the Markdown sidecar.
func MarkdownPath(dest, cleanPath string) (string, error) {
	return pathFor(dest, cleanPath, IndexMarkdown)
}

func pathFor(dest, cleanPath, name string) (string, error) {
	trimmed := strings.Trim(cleanPath, "/")
	if trimmed == "" {
		return filepath.Join(dest, name), nil
	}

	p := filepath.Join(dest, filepath.FromSlash(trimmed), name)
	rel, err := filepath.Rel(dest, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output: route path %q escapes destination %q", cleanPath, dest)
	}
	return p, nil
}

// Writer persists rendered content. Implementations must create missing
// parent directories and overwrite existing files.
type Writer interface {
	WriteFile(path string, content []byte) error
}

// DiskWriter writes to the local filesystem.
type DiskWriter struct{}

func (DiskWriter) WriteFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("output: create directory: %w", err)
	}
	if err := os.WriteFile(path, content, filePerm); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// CheckDir reports an error when path exists and is not a directory.
// A path that does not exist yet is accepted.
func CheckDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("output: %s is not a directory", path)
	}
	return nil
}
