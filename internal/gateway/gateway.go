// Package gateway drives the per-connection session lifecycle:
// Unauthenticated -> Authenticated -> Closed. It consumes protocol events
// from the FTP bridge (credentials offered, transfer complete, traffic,
// disconnect) and never touches the wire protocol itself.
package gateway

import (
	"errors"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"scangate/internal/auth"
	"scangate/internal/creds"
	"scangate/internal/registry"
	"scangate/internal/relay"
)

// ErrAuthRejected covers both unknown identities and secret mismatches.
// The two are never distinguished to the caller, so a probing client
// cannot enumerate usernames.
var ErrAuthRejected = errors.New("authentication rejected")

// Relay is the slice of the upload coordinator the gateway needs.
type Relay interface {
	Enqueue(relay.Item) error
	Flush()
}

// Options configures a Gateway.
type Options struct {
	Directory *creds.Directory
	Registry  *registry.Registry
	Relay     Relay
	Logger    *slog.Logger
}

// Gateway is the authenticated-session event surface.
type Gateway struct {
	dir    *creds.Directory
	reg    *registry.Registry
	relay  Relay
	logger *slog.Logger
}

// New creates a Gateway.
func New(opt Options) *Gateway {
	return &Gateway{
		dir:    opt.Directory,
		reg:    opt.Registry,
		relay:  opt.Relay,
		logger: opt.Logger,
	}
}

// Authenticate handles an offered username/secret pair. On success the
// connection is admitted into the registry and the session becomes
// Authenticated; on any failure the connection stays Unauthenticated and
// no partial session state is recorded.
func (g *Gateway) Authenticate(username, secret string, conn registry.Conn) error {
	id, found := g.dir.Lookup(username)
	if !found {
		// Burn the same work as a real verification so rejection timing
		// does not reveal whether the username exists.
		auth.DummyVerify(secret)
		g.logger.Warn("login failed", "user", username)
		return ErrAuthRejected
	}
	ok, err := auth.VerifySecret(secret, id.Secret)
	if err != nil || !ok {
		g.logger.Warn("login failed", "user", username)
		return ErrAuthRejected
	}
	if err := g.reg.Admit(username, conn); err != nil {
		g.logger.Warn("login refused", "user", username, "err", err)
		return err
	}
	g.logger.Info("login ok", "user", username, "contact", id.Contact)
	return nil
}

// TransferComplete handles a finished inbound transfer: the staged file
// becomes a pending upload under the identity's remote destination prefix.
func (g *Gateway) TransferComplete(username, localPath, fileName string) {
	g.reg.Touch(username)
	id, found := g.dir.Lookup(username)
	if !found {
		// The identity vanished from the table mid-session; the table is
		// immutable in-process, so this only happens in tests.
		return
	}
	item := relay.Item{
		ID:         uuid.NewString(),
		LocalPath:  localPath,
		RemotePath: path.Join(id.RemoteDir, fileName),
		Name:       fileName,
		Owner:      username,
	}
	// Enqueue failures (unstatable staged file) are logged by the relay
	// and the item is dropped; the session itself is unaffected.
	_ = g.relay.Enqueue(item)
}

// Traffic handles any recognized protocol activity on the session.
func (g *Gateway) Traffic(username string) {
	g.reg.Touch(username)
}

// Disconnect releases the session and uses the departure as an explicit
// drain trigger for anything the device left behind.
func (g *Gateway) Disconnect(username string) {
	g.reg.Release(username, registry.ReasonDisconnect)
	g.relay.Flush()
}

// DisconnectConn is the connection-scoped variant the bridge uses: the
// session is released only if it is still bound to conn, so a late
// disconnect callback for a replaced connection leaves the successor
// session alone. The drain trigger fires either way.
func (g *Gateway) DisconnectConn(username string, conn registry.Conn) {
	g.reg.ReleaseConn(username, conn, registry.ReasonDisconnect)
	g.relay.Flush()
}
