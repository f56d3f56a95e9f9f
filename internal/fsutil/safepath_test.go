package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestResolveWithinRoot maps device paths under the staging root.
func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()

	got, err := ResolveWithinRoot(root, "/scan001.pdf")
	if err != nil {
		t.Fatalf("ResolveWithinRoot: %v", err)
	}
	if got != filepath.Join(root, "scan001.pdf") {
		t.Fatalf("got %q", got)
	}

	got, err = ResolveWithinRoot(root, "inbox/scan001.pdf")
	if err != nil {
		t.Fatalf("ResolveWithinRoot: %v", err)
	}
	if got != filepath.Join(root, "inbox", "scan001.pdf") {
		t.Fatalf("got %q", got)
	}
}

// TestResolveWithinRootRejectsTraversal blocks dot-dot escapes.
func TestResolveWithinRootRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"../etc/passwd", "a/../../b", "/../x"} {
		if _, err := ResolveWithinRoot(root, p); err == nil {
			t.Fatalf("expected rejection for %q", p)
		}
	}
}

// TestResolveWithinRootRejectsSymlink blocks traversal through symlinks.
func TestResolveWithinRootRejectsSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "out")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if _, err := ResolveWithinRoot(root, "out/scan.pdf"); err == nil {
		t.Fatalf("expected rejection through symlink")
	}
}
