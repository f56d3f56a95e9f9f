// Package ftpbridge tests cover the per-session staging filesystem.
package ftpbridge

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

type recorder struct {
	traffic  atomic.Int32
	complete []string
	names    []string
}

func newFS(t *testing.T) (*sessionFS, *recorder, string) {
	t.Helper()
	root := t.TempDir()
	rec := &recorder{}
	fs := newSessionFS(root,
		func() { rec.traffic.Add(1) },
		func(local, name string) {
			rec.complete = append(rec.complete, local)
			rec.names = append(rec.names, name)
		},
	)
	return fs, rec, root
}

// TestWriteCloseEmitsTransferComplete completes a written file on close.
func TestWriteCloseEmitsTransferComplete(t *testing.T) {
	fs, rec, root := newFS(t)

	f, err := fs.Create("/scan001.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("pdf-bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(rec.complete) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(rec.complete))
	}
	want := filepath.Join(root, "scan001.pdf")
	if rec.complete[0] != want {
		t.Fatalf("completion path = %q, want %q", rec.complete[0], want)
	}
	if rec.names[0] != "scan001.pdf" {
		t.Fatalf("completion name = %q", rec.names[0])
	}
	if rec.traffic.Load() == 0 {
		t.Fatalf("expected traffic events")
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
}

// TestDoubleCloseCompletesOnce is safe against duplicate closes.
func TestDoubleCloseCompletesOnce(t *testing.T) {
	fs, rec, _ := newFS(t)
	f, err := fs.Create("a.bin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(rec.complete) != 1 {
		t.Fatalf("expected exactly 1 completion, got %d", len(rec.complete))
	}
}

// TestEmptyWriteDoesNotComplete ignores files closed without any bytes.
func TestEmptyWriteDoesNotComplete(t *testing.T) {
	fs, rec, _ := newFS(t)
	f, err := fs.Create("empty.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rec.complete) != 0 {
		t.Fatalf("expected no completion for empty file")
	}
}

// TestReadOpenDoesNotComplete leaves downloads out of the pending set.
func TestReadOpenDoesNotComplete(t *testing.T) {
	fs, rec, root := newFS(t)
	if err := os.WriteFile(filepath.Join(root, "old.pdf"), []byte("x"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f, err := fs.Open("old.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(rec.complete) != 0 {
		t.Fatalf("expected no completion for a read")
	}
}

// TestPathsStayJailed rejects traversal out of the staging subdirectory.
func TestPathsStayJailed(t *testing.T) {
	fs, _, _ := newFS(t)
	if _, err := fs.Create("../../escape.pdf"); err == nil {
		t.Fatalf("expected traversal rejection")
	}
	if _, err := fs.Stat("/../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal rejection on stat")
	}
}

// TestSubdirectoryWrites creates intermediate directories for nested paths.
func TestSubdirectoryWrites(t *testing.T) {
	fs, rec, root := newFS(t)
	f, err := fs.OpenFile("/inbox/scan.pdf", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := filepath.Join(root, "inbox", "scan.pdf")
	if len(rec.complete) != 1 || rec.complete[0] != want {
		t.Fatalf("completion = %v, want %q", rec.complete, want)
	}
}
