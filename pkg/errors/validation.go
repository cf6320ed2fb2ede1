package errors

import (
	"strings"
	"unicode"
)

// ValidatePath validates a file path relative to a server root for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	// Must not be absolute path
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidatePages checks a page selection against a document with pageCount pages.
// Page numbers are 1-based; the selection must be non-empty and free of duplicates.
// A pageCount of 0 or less skips the upper bound check.
func ValidatePages(pages []int, pageCount int) error {
	if len(pages) == 0 {
		return New(ErrCodeInvalidConfig, "no pages selected")
	}

	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p < 1 {
			return New(ErrCodeInvalidPages, "page %d out of range (pages start at 1)", p)
		}
		if pageCount > 0 && p > pageCount {
			return New(ErrCodeInvalidPages, "page %d out of range (document has %d pages)", p, pageCount)
		}
		if seen[p] {
			return New(ErrCodeInvalidPages, "page %d selected more than once", p)
		}
		seen[p] = true
	}
	return nil
}

// ValidateHeight checks that a named pixel dimension is strictly positive.
func ValidateHeight(name string, v int) error {
	if v <= 0 {
		return New(ErrCodeInvalidConfig, "%s must be positive, got %d", name, v)
	}
	return nil
}
