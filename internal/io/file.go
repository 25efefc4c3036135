// Package ioutils provides file system utilities for dropfetch.
//
// This package contains functions for:
//   - Directory creation
//   - Locating existing output files by filename stem
//   - Quiet removal of temporary files
//   - Image post-processing of fetched files
//
// All functions that accept a context.Context respect cancellation,
// though file operations themselves may not be interruptible.
package ioutils

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
//
// Example:
//
//	err := EnsureDir("/out/Beverages")
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FindByStem returns the path of the first regular, non-empty file in
// dir whose name without extension equals stem, or "" if none exists.
//
// The true extension of a previously fetched file is unknown until its
// download completed, so the existence check has to match on the stem
// alone rather than on a full path.
//
// A missing directory is not an error; it simply means no file exists.
//
// Example:
//
//	path, err := FindByStem("/out/Beverages", "012345678905")
//	// path == "/out/Beverages/012345678905.jpg" if that file exists
func FindByStem(dir, stem string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != stem {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			// Zero-byte leftovers don't satisfy a task.
			continue
		}
		return filepath.Join(dir, name), nil
	}

	return "", nil
}

// RemoveQuiet removes a file, ignoring any error. Used for temp file
// cleanup where the file may already be gone.
func RemoveQuiet(path string) {
	_ = os.Remove(path)
}
