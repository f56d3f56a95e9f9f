// Package fsutil contains filesystem path helpers for the staging store.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathTraversal = errors.New("path escapes staging root")

// ResolveWithinRoot maps a device-supplied path to a local filesystem path
// under root. Scanners occasionally send absolute or dot-dotted paths; any
// resolution outside root is rejected, including via existing symlinks.
func ResolveWithinRoot(root, devicePath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	// Force relative paths.
	rel := filepath.FromSlash(strings.TrimLeft(devicePath, "/\\"))
	joined := filepath.Clean(filepath.Join(rootAbs, rel))
	if !within(rootAbs, joined) {
		return "", ErrPathTraversal
	}

	// Deny symlink traversal: if any existing component under root is a
	// symlink, or the nearest existing ancestor resolves outside root, reject.
	if symlinkComponent(rootAbs, joined) {
		return "", ErrPathTraversal
	}
	if existing := nearestExisting(joined); existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		if !within(rootAbs, filepath.Clean(resolved)) {
			return "", ErrPathTraversal
		}
	}

	return joined, nil
}

func symlinkComponent(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, fullPath)
	if err != nil {
		return true
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		st, err := os.Lstat(cur)
		if err != nil {
			// Component doesn't exist yet: nothing to traverse through.
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func within(root, candidate string) bool {
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

func nearestExisting(p string) string {
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			return cur
		} else if !os.IsNotExist(err) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
