// Package relay coordinates uploads of staged files to the remote store.
// Completed inbound transfers accumulate in a FIFO pending set; a drain
// snapshots the set and pushes each item through the remote client with
// inter-item pacing, deleting local files on success and retaining them on
// failure for operator remediation.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"scangate/internal/remote"
)

// Item is one staged file awaiting relay to the remote store.
type Item struct {
	ID         string
	LocalPath  string
	RemotePath string
	Name       string
	Owner      string
}

// Stats are cumulative drain counters.
type Stats struct {
	Drains    int
	Successes int
	Failures  int
}

// Options configures a Coordinator.
type Options struct {
	Client remote.Client
	// Fs is the staging filesystem; defaults to the OS filesystem.
	Fs     afero.Fs
	Logger *slog.Logger
	// PacingDelay is honored between consecutive items of a drain, never
	// after the last one. Zero disables pacing.
	PacingDelay time.Duration
	// DebouncePeriod is the quiet period after the last enqueue before a
	// drain triggers on its own.
	DebouncePeriod time.Duration
	// UploadTimeout bounds each remote upload call.
	UploadTimeout time.Duration
	// OnUploaded, when set, is called after each successful relay with the
	// owning username. The gateway uses it for post-upload auto-disconnect.
	OnUploaded func(owner string)
}

// Coordinator owns the pending set and the drain loop.
type Coordinator struct {
	client        remote.Client
	fs            afero.Fs
	logger        *slog.Logger
	pacing        time.Duration
	debouncePer   time.Duration
	uploadTimeout time.Duration
	onUploaded    func(string)

	mu       sync.Mutex
	pending  []Item
	debounce *time.Timer
	draining bool
	stats    Stats
}

// New creates a Coordinator.
func New(opt Options) *Coordinator {
	fs := opt.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	timeout := opt.UploadTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Coordinator{
		client:        opt.Client,
		fs:            fs,
		logger:        opt.Logger,
		pacing:        opt.PacingDelay,
		debouncePer:   opt.DebouncePeriod,
		uploadTimeout: timeout,
		onUploaded:    opt.OnUploaded,
	}
}

// Enqueue appends a pending transfer and restarts the debounce timer. An
// unstatable staged file is dropped with an error rather than poisoning a
// later drain.
func (c *Coordinator) Enqueue(it Item) error {
	if _, err := c.fs.Stat(it.LocalPath); err != nil {
		c.logger.Warn("staged file unreadable, dropping transfer",
			"id", it.ID, "file", it.Name, "user", it.Owner, "err", err)
		return fmt.Errorf("stage transfer %s: %w", it.Name, err)
	}

	c.mu.Lock()
	c.pending = append(c.pending, it)
	n := len(c.pending)
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.debouncePer, c.Flush)
	c.mu.Unlock()

	c.logger.Info("transfer received",
		"id", it.ID, "file", it.Name, "user", it.Owner, "pending", n)
	return nil
}

// Flush triggers a drain of the current pending set unless one is already
// in flight. A trigger during a drain is coalesced, not queued: the next
// drain naturally picks up anything appended after the snapshot. An empty
// set makes Flush a no-op, so the debounce and explicit triggers coexist.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	if c.draining || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()
	go c.drain()
}

// Stats returns a copy of the cumulative counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// drain snapshots and clears the pending set, then relays the snapshot
// sequentially in arrival order. One item's failure never aborts the batch.
func (c *Coordinator) drain() {
	c.mu.Lock()
	items := c.pending
	c.pending = nil
	c.mu.Unlock()

	// Burst 1 means no wait before the first item and exactly the pacing
	// delay between consecutive dispatches.
	limiter := rate.NewLimiter(pacingRate(c.pacing), 1)

	var uploaded, failed int
	for _, it := range items {
		_ = limiter.Wait(context.Background())
		if c.relayOne(it) {
			uploaded++
		} else {
			failed++
		}
	}

	c.mu.Lock()
	c.draining = false
	c.stats.Drains++
	c.stats.Successes += uploaded
	c.stats.Failures += failed
	rearm := len(c.pending) > 0
	if rearm {
		// Arrivals during the drain whose debounce fired mid-drain were
		// coalesced; make sure they get their own drain.
		if c.debounce != nil {
			c.debounce.Stop()
		}
		c.debounce = time.AfterFunc(c.debouncePer, c.Flush)
	}
	c.mu.Unlock()

	c.logger.Info("drain complete",
		"attempted", len(items), "uploaded", uploaded, "failed", failed)
}

// relayOne uploads a single item. Success deletes the staged file; failure
// retains it so an operator can retry or inspect.
func (c *Coordinator) relayOne(it Item) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.uploadTimeout)
	defer cancel()

	// Best-effort remote directory creation: a failure downgrades to a
	// warning and the upload proceeds anyway.
	if dir := path.Dir(it.RemotePath); dir != "/" && dir != "." {
		if err := c.client.EnsureDir(ctx, dir); err != nil {
			c.logger.Warn("remote directory create failed, uploading anyway",
				"id", it.ID, "dir", dir, "err", err)
		}
	}

	meta, err := c.client.Upload(ctx, it.LocalPath, it.RemotePath)
	if err != nil {
		c.logger.Error("upload failed, staged file retained",
			"id", it.ID, "file", it.Name, "user", it.Owner,
			"local", it.LocalPath, "kind", remote.Classify(err).String(), "err", err)
		return false
	}

	if err := c.fs.Remove(it.LocalPath); err != nil {
		// Remote state is authoritative; the leftover is a cleanup
		// nuisance, not a correctness problem.
		c.logger.Warn("uploaded but local delete failed",
			"id", it.ID, "local", it.LocalPath, "err", err)
	}
	c.logger.Info("upload complete",
		"id", it.ID, "file", it.Name, "user", it.Owner,
		"remote", meta.Path, "bytes", meta.Size)

	if c.onUploaded != nil {
		c.onUploaded(it.Owner)
	}
	return true
}

func pacingRate(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
