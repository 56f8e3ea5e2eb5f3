package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/errors"
)

// ExportsDirName is the directory under the base dir that receives exports.
const ExportsDirName = "exports"

// ResolveExportPath validates an export destination and returns its absolute path.
// It checks:
// 1. Path traversal (.. sequences)
// 2. Extension (must match the export format)
// 3. Directory (file must be DIRECTLY in exportsDir; a bare file name is placed there)
// 4. Symlink safety (parent dir and file must not be symlinks)
//
// The "no subdirectories" rule eliminates TOCTOU races where an intermediate
// directory is swapped for a symlink between validation and open. Combined
// with O_NOFOLLOW on the final component this closes symlink attacks.
func ResolveExportPath(path, exportsDir string, format ExportFormat) (string, error) {
	if path == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !format.validExt(filepath.Ext(cleaned)) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", strings.Join(format.extensions(), " or ")))
	}
	allowed, err := resolveDir(exportsDir)
	if err != nil {
		return "", err
	}
	if filepath.Base(cleaned) == cleaned {
		cleaned = filepath.Join(allowed, cleaned)
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	parentDir := filepath.Dir(absPath)
	if filepath.Clean(parentDir) != allowed {
		return "", errors.NewInvalidRequest(fmt.Sprintf("file must be directly in %s (no subdirectories)", allowed))
	}
	if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("path must not be a symlink")
	}
	return absPath, nil
}

// resolveDir returns the absolute exports dir, following it if it is itself a symlink.
func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid exports dir: %v", err))
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", errors.NewInvalidRequest(fmt.Sprintf("cannot resolve exports dir: %v", err))
		}
		abs = resolved
	}
	return abs, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")
	s = strings.ReplaceAll(s, " ", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
