// Package security validates file paths and names the CLI tools accept
// from users before writing through them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateExportPath rejects output paths outside the current working
// directory and the temp directory, including escapes routed through
// symlinked parents.
func ValidateExportPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	for _, dir := range []string{cwd, os.TempDir()} {
		if err := validateWithin(path, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("path %q must be inside the working directory or the temp directory", path)
}

// validateWithin checks that path resolves inside dir after symlink
// resolution. The path itself may not exist yet; its nearest existing
// ancestor is resolved instead so a symlinked parent cannot smuggle the
// write elsewhere.
func validateWithin(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	canonical := absPath
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		canonical = resolved
	} else if ancestor, rest, ok := resolveNearestAncestor(absPath); ok {
		canonical = filepath.Join(ancestor, rest)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonical)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}

// resolveNearestAncestor walks up from a nonexistent path to the first
// directory that exists, resolves its symlinks, and returns it with the
// remaining relative part.
func resolveNearestAncestor(absPath string) (resolved, rest string, ok bool) {
	check := absPath
	for {
		parent := filepath.Dir(check)
		if parent == check {
			return "", "", false
		}
		if r, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, absPath)
			if err != nil {
				return "", "", false
			}
			return r, rel, true
		}
		check = parent
	}
}

// SanitizeFilename makes a safe filename component from an arbitrary
// string such as a username: anything outside ASCII letters, digits, dot,
// underscore, and dash becomes a single underscore, and the result is
// capped at 128 characters.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
