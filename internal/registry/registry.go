// Package registry tracks live authenticated device sessions.
// It enforces at most one session per identity (latest login wins), a
// configurable session capacity, per-session idle timeouts, and a periodic
// sweep for connections that died without a disconnect notification.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCapacityExceeded is returned by Admit when the registry is full.
var ErrCapacityExceeded = errors.New("session capacity exceeded")

// Conn is the capability set the registry needs from a connection.
// The protocol library's concrete client object is adapted behind it.
type Conn interface {
	Close() error
	IsAlive() bool
}

// Reason records why a session was released.
type Reason string

const (
	ReasonDisconnect Reason = "disconnect"
	ReasonIdle       Reason = "idle_timeout"
	ReasonReplaced   Reason = "replaced"
	ReasonDead       Reason = "dead_connection"
	ReasonUploaded   Reason = "post_upload"
)

type sessionState int

const (
	stateActive sessionState = iota
	stateDisconnecting
)

// session is one live authenticated binding between a connection and an
// identity. All fields are guarded by the registry mutex.
type session struct {
	username     string
	conn         Conn
	createdAt    time.Time
	lastActivity time.Time
	state        sessionState
	idleTimer    *time.Timer
	closeTimer   *time.Timer
}

// Registry is the mutex-guarded session table.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*session
	max         int
	idleTimeout time.Duration
	logger      *slog.Logger
}

// New creates a registry. idleTimeout of zero disables idle expiry.
func New(max int, idleTimeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]*session),
		max:         max,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Admit records a new session for username. Any existing session for the
// same identity is terminated first (latest login wins). Dead connections
// are pruned before the capacity check; a full registry returns
// ErrCapacityExceeded and leaves no partial state behind.
func (r *Registry) Admit(username string, conn Conn) error {
	var closeOld Conn

	r.mu.Lock()
	for name, s := range r.sessions {
		if !s.conn.IsAlive() {
			r.removeLocked(name, s, ReasonDead)
		}
	}
	if prior, ok := r.sessions[username]; ok {
		r.removeLocked(username, prior, ReasonReplaced)
		closeOld = prior.conn
	}
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		if closeOld != nil {
			_ = closeOld.Close()
		}
		return ErrCapacityExceeded
	}
	now := time.Now()
	s := &session{username: username, conn: conn, createdAt: now, lastActivity: now}
	if r.idleTimeout > 0 {
		s.idleTimer = time.AfterFunc(r.idleTimeout, func() { r.idleExpire(username, s) })
	}
	r.sessions[username] = s
	n := len(r.sessions)
	r.mu.Unlock()

	// Close outside the lock: the close may fan out to protocol callbacks.
	if closeOld != nil {
		_ = closeOld.Close()
	}
	r.logger.Info("session admitted", "user", username, "sessions", n)
	return nil
}

// Touch updates last-activity and restarts the idle timer. It is called on
// every recognized unit of protocol traffic, not just transfers.
func (r *Registry) Touch(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	if !ok {
		return
	}
	s.lastActivity = time.Now()
	s.state = stateActive
	if s.idleTimer != nil {
		// Cancel-then-reschedule; never stack overlapping timers.
		s.idleTimer.Stop()
		s.idleTimer = time.AfterFunc(r.idleTimeout, func() { r.idleExpire(username, s) })
	}
}

// Release removes the session entry. It is idempotent and does not close
// the connection; callers release on disconnect, error, or timeout paths
// where the connection is already being torn down.
func (r *Registry) Release(username string, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	if !ok {
		return
	}
	r.removeLocked(username, s, reason)
}

// ReleaseConn removes the session entry only if it is still bound to conn.
// The bridge uses it on disconnect callbacks so a stale notification for a
// replaced connection cannot release the successor session.
func (r *Registry) ReleaseConn(username string, conn Conn, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	if !ok || s.conn != conn {
		return
	}
	r.removeLocked(username, s, reason)
}

// Active reports whether username currently has a live session.
func (r *Registry) Active(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[username]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAfter schedules the session's closure after the grace delay, unless
// it has been released by then. Used for post-upload auto-disconnect of
// scan-and-leave devices.
func (r *Registry) CloseAfter(username string, grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	if !ok {
		return
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
	}
	s.closeTimer = time.AfterFunc(grace, func() { r.expire(username, s, ReasonUploaded) })
}

// Sweep removes sessions whose connection is detected dead, independent of
// disconnect callbacks. Returns the number of sessions removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for name, s := range r.sessions {
		if !s.conn.IsAlive() {
			r.removeLocked(name, s, ReasonDead)
			n++
		}
	}
	return n
}

// RunSweeper sweeps on a fixed interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("swept dead sessions", "count", n)
			}
		}
	}
}

// idleExpire is the idle-timer callback. A Touch can race the timer
// firing: it moves lastActivity forward and rearms a fresh timer, but the
// already-fired callback still runs. Recheck elapsed time under the lock
// so the raced callback is a no-op instead of closing a live session.
func (r *Registry) idleExpire(username string, s *session) {
	r.mu.Lock()
	cur, ok := r.sessions[username]
	if !ok || cur != s {
		r.mu.Unlock()
		return
	}
	if time.Since(s.lastActivity) < r.idleTimeout {
		// Touched after this timer fired; the rearmed timer owns expiry.
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.expire(username, s, ReasonIdle)
}

// expire runs Active -> Disconnecting -> Released. Closing is always an
// explicit action taken here, never implicit.
func (r *Registry) expire(username string, s *session, reason Reason) {
	r.mu.Lock()
	cur, ok := r.sessions[username]
	if !ok || cur != s {
		// Session already released or replaced; stale timer.
		r.mu.Unlock()
		return
	}
	s.state = stateDisconnecting
	r.mu.Unlock()

	_ = s.conn.Close()

	r.mu.Lock()
	if cur, ok := r.sessions[username]; ok && cur == s {
		r.removeLocked(username, s, reason)
	}
	r.mu.Unlock()
}

// removeLocked deletes the entry and clears its timer handles so a stale
// callback can never act on a released session. Caller holds r.mu.
func (r *Registry) removeLocked(username string, s *session, reason Reason) {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	delete(r.sessions, username)
	r.logger.Info("session released",
		"user", username,
		"reason", string(reason),
		"age", time.Since(s.createdAt).Round(time.Millisecond).String(),
	)
}
