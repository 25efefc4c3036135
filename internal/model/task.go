package model

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Task represents a single manifest row: one catalog item whose
// representative file should be fetched from a shared folder.
//
// Tasks are created once when the manifest is loaded and are immutable
// afterwards; everything derived (destination directory, filename stem)
// is computed from the task plus a PathConfig.
//
// Example:
//
//	task := model.NewTask(3, "012345678905", "https://www.dropbox.com/sh/abc", "Beverages")
//	dir := cfg.DestinationDir(task)   // "/out/Beverages"
//	path := cfg.FinalPath(task, ".jpg") // "/out/Beverages/012345678905.jpg"
type Task struct {
	// Row is the zero-based position of the task in the manifest.
	// Used to keep the failure ledger in manifest order.
	Row int

	// Identifier is the unique catalog key (e.g. a UPC code) used as
	// the destination filename stem. Never empty.
	Identifier string

	// FolderRef is the shared-folder URL to resolve. Opaque to the
	// orchestrator; only the resolver interprets it.
	FolderRef string

	// Category optionally groups the output into a subdirectory.
	// Empty means the file goes into the output root.
	Category string
}

// NewTask creates a Task from a manifest row. Identifier, folder
// reference and category are trimmed of surrounding whitespace.
func NewTask(row int, identifier, folderRef, category string) *Task {
	return &Task{
		Row:        row,
		Identifier: strings.TrimSpace(identifier),
		FolderRef:  strings.TrimSpace(folderRef),
		Category:   strings.TrimSpace(category),
	}
}

// PathConfig controls how task destination paths are computed.
//
// Path resolution is deterministic and does no I/O: the same task and
// config always produce the same paths. The file extension is not part
// of the config because it is only known after a successful fetch.
type PathConfig struct {
	// OutputRoot is the base directory for all downloaded files.
	OutputRoot string

	// CategoriesEnabled controls whether tasks with a non-empty
	// Category are placed in a per-category subdirectory.
	CategoriesEnabled bool
}

// DestinationDir returns the directory the task's file belongs in:
// OutputRoot/<category> when category grouping applies, OutputRoot
// otherwise. The category is sanitized for filesystem use.
func (c *PathConfig) DestinationDir(t *Task) string {
	if c.CategoriesEnabled && t.Category != "" {
		return filepath.Join(c.OutputRoot, SanitizeFileName(t.Category))
	}
	return c.OutputRoot
}

// Stem returns the sanitized filename stem for the task (the
// identifier without any extension).
func (c *PathConfig) Stem(t *Task) string {
	return SanitizeFileName(t.Identifier)
}

// FinalPath returns the full destination path for the task once the
// file extension is known. The extension should include the leading
// dot; an empty extension yields a bare stem.
func (c *PathConfig) FinalPath(t *Task, ext string) string {
	return filepath.Join(c.DestinationDir(t), c.Stem(t)+ext)
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiSpace       = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in
// file/folder names so identifiers and categories from arbitrary
// manifests are safe to use as path components.
//
// Transformations applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Trailing whitespace → removed
func SanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimRight(name, " ")
}
