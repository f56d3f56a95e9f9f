// Package gateway tests cover authentication and session event handling.
package gateway

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"scangate/internal/creds"
	"scangate/internal/registry"
	"scangate/internal/relay"
)

const table = `{
  "users": [
    {"username": "alice", "secret": "s1", "remote_dir": "/Shared/scans/office1", "contact": "ops@example.com"},
    {"username": "bob", "secret": "s2", "remote_dir": "/Shared/scans/office2"}
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fakeConn struct {
	alive  atomic.Bool
	closed atomic.Int32
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.alive.Store(true)
	return c
}

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	c.alive.Store(false)
	return nil
}

func (c *fakeConn) IsAlive() bool { return c.alive.Load() }

// fakeRelay records enqueued items and flush calls.
type fakeRelay struct {
	mu      sync.Mutex
	items   []relay.Item
	flushes int
}

func (f *fakeRelay) Enqueue(it relay.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, it)
	return nil
}

func (f *fakeRelay) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func newGateway(t *testing.T, maxSessions int) (*Gateway, *registry.Registry, *fakeRelay) {
	t.Helper()
	dir, err := creds.Parse([]byte(table))
	if err != nil {
		t.Fatalf("creds.Parse: %v", err)
	}
	reg := registry.New(maxSessions, 0, testLogger())
	fr := &fakeRelay{}
	g := New(Options{Directory: dir, Registry: reg, Relay: fr, Logger: testLogger()})
	return g, reg, fr
}

// TestAuthenticateUnknownUser rejects and records no session.
func TestAuthenticateUnknownUser(t *testing.T) {
	g, reg, _ := newGateway(t, 4)
	err := g.Authenticate("mallory", "whatever", newFakeConn())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", reg.Len())
	}
}

// TestAuthenticateWrongSecret rejects with the same error as unknown users.
func TestAuthenticateWrongSecret(t *testing.T) {
	g, reg, _ := newGateway(t, 4)
	err := g.Authenticate("alice", "wrong", newFakeConn())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", reg.Len())
	}
}

// TestAuthenticateScenario runs the capacity-1 admission scenario: alice
// logs in, logs in again (first connection closed), then bob is refused.
func TestAuthenticateScenario(t *testing.T) {
	g, reg, _ := newGateway(t, 1)

	first := newFakeConn()
	if err := g.Authenticate("alice", "s1", first); err != nil {
		t.Fatalf("Authenticate(alice): %v", err)
	}
	if err := g.Authenticate("alice", "s1", newFakeConn()); err != nil {
		t.Fatalf("Authenticate(alice) again: %v", err)
	}
	if first.closed.Load() == 0 {
		t.Fatalf("expected first alice connection to be closed")
	}
	if err := g.Authenticate("bob", "s2", newFakeConn()); !errors.Is(err, registry.ErrCapacityExceeded) {
		t.Fatalf("Authenticate(bob) = %v, want ErrCapacityExceeded", err)
	}
	if !reg.Active("alice") || reg.Active("bob") {
		t.Fatalf("expected only alice active")
	}
}

// TestTransferCompleteEnqueuesUnderRemotePrefix builds the pending item.
func TestTransferCompleteEnqueuesUnderRemotePrefix(t *testing.T) {
	g, _, fr := newGateway(t, 4)
	if err := g.Authenticate("alice", "s1", newFakeConn()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	g.TransferComplete("alice", "/staging/alice/scan001.pdf", "scan001.pdf")

	fr.mu.Lock()
	defer fr.mu.Unlock()
	if len(fr.items) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(fr.items))
	}
	it := fr.items[0]
	if it.RemotePath != "/Shared/scans/office1/scan001.pdf" {
		t.Fatalf("remote path = %q", it.RemotePath)
	}
	if it.Owner != "alice" || it.Name != "scan001.pdf" || it.LocalPath != "/staging/alice/scan001.pdf" {
		t.Fatalf("item = %+v", it)
	}
	if it.ID == "" {
		t.Fatalf("expected a transfer id")
	}
}

// TestDisconnectReleasesAndFlushes releases the session and triggers a drain.
func TestDisconnectReleasesAndFlushes(t *testing.T) {
	g, reg, fr := newGateway(t, 4)
	if err := g.Authenticate("alice", "s1", newFakeConn()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	g.Disconnect("alice")
	if reg.Active("alice") {
		t.Fatalf("expected alice released")
	}
	fr.mu.Lock()
	flushes := fr.flushes
	fr.mu.Unlock()
	if flushes != 1 {
		t.Fatalf("expected one flush, got %d", flushes)
	}

	// Idempotent with respect to the registry.
	g.Disconnect("alice")
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}
