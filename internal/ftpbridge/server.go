// Package ftpbridge terminates FTP sessions from scanning devices and
// translates ftpserverlib callbacks into gateway events. No protocol
// parsing happens outside the library.
package ftpbridge

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	ftp "github.com/fclairamb/ftpserverlib"

	"scangate/internal/gateway"
	"scangate/internal/registry"
)

var errInvalidCredentials = errors.New("invalid credentials")

// Options configures the FTP listener.
type Options struct {
	Addr         string
	Gateway      *gateway.Gateway
	StagingDir   string
	PassivePorts *ftp.PortRange
	PublicHostIP string
	Logger       *slog.Logger
}

// ListenAndServe runs the FTP server until the context is done.
func ListenAndServe(ctx context.Context, opt Options) error {
	if opt.Gateway == nil {
		return errors.New("gateway is required")
	}
	if opt.Addr == "" {
		return errors.New("addr is required")
	}
	if opt.StagingDir == "" {
		return errors.New("staging dir is required")
	}
	staging, err := filepath.Abs(opt.StagingDir)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", opt.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	drv := &mainDriver{
		gw:         opt.Gateway,
		staging:    staging,
		passive:    opt.PassivePorts,
		publicHost: opt.PublicHostIP,
		listener:   ln,
		logger:     opt.Logger,
		conns:      make(map[uint32]*clientConn),
	}
	srv := ftp.NewFtpServer(drv)
	if opt.Logger != nil {
		srv.Logger = opt.Logger
	}
	return srv.ListenAndServe()
}

// mainDriver connects ftpserverlib callbacks to the gateway.
type mainDriver struct {
	gw         *gateway.Gateway
	staging    string
	passive    ftp.PasvPortGetter
	publicHost string
	listener   net.Listener
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[uint32]*clientConn
}

// GetSettings returns server settings for ftpserverlib.
func (d *mainDriver) GetSettings() (*ftp.Settings, error) {
	return &ftp.Settings{
		Listener:                 d.listener,
		ListenAddr:               "",
		Banner:                   "scangate",
		PassiveTransferPortRange: d.passive,
		PublicHost:               d.publicHost,
		// The registry owns session idle policy; this library-level value
		// is only a backstop against half-dead control connections.
		IdleTimeout:            900,
		ConnectionTimeout:      15,
		DisableActiveMode:      true,
		TLSRequired:            ftp.ClearOrEncrypted,
		ActiveConnectionsCheck: ftp.IPMatchRequired,
		PasvConnectionsCheck:   ftp.IPMatchRequired,
	}, nil
}

// ClientConnected returns a banner string for new connections. The
// session stays unauthenticated until AuthUser succeeds.
func (d *mainDriver) ClientConnected(cc ftp.ClientContext) (string, error) {
	if d.logger != nil {
		d.logger.Debug("device connected", "conn", cc.ID(), "remote", cc.RemoteAddr().String())
	}
	return "scangate ready", nil
}

// ClientDisconnected releases the session bound to this connection.
func (d *mainDriver) ClientDisconnected(cc ftp.ClientContext) {
	d.mu.Lock()
	conn, ok := d.conns[cc.ID()]
	delete(d.conns, cc.ID())
	d.mu.Unlock()
	if !ok {
		return
	}
	conn.alive.Store(false)
	d.gw.DisconnectConn(conn.username, conn)
}

// AuthUser offers the credentials to the gateway. On success the device
// gets a filesystem jailed to its staging subdirectory.
func (d *mainDriver) AuthUser(cc ftp.ClientContext, user, pass string) (ftp.ClientDriver, error) {
	conn := &clientConn{cc: cc, username: user}
	conn.alive.Store(true)

	if err := d.gw.Authenticate(user, pass, conn); err != nil {
		if errors.Is(err, registry.ErrCapacityExceeded) {
			return nil, err
		}
		// Unknown user and bad secret answer identically.
		return nil, errInvalidCredentials
	}

	userRoot := filepath.Join(d.staging, user)
	if err := os.MkdirAll(userRoot, 0o700); err != nil {
		d.gw.DisconnectConn(user, conn)
		return nil, err
	}

	d.mu.Lock()
	d.conns[cc.ID()] = conn
	d.mu.Unlock()

	cc.SetPath("/")
	fs := newSessionFS(userRoot,
		func() { d.gw.Traffic(user) },
		func(localPath, fileName string) { d.gw.TransferComplete(user, localPath, fileName) },
	)
	return fs, nil
}

// GetTLSConfig is required by the MainDriver interface; TLS is not a
// surface this gateway offers.
func (d *mainDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, errors.New("tls not configured")
}

// PreAuthUser is called on the FTP USER command before PASS.
// It MUST always succeed to avoid leaking whether a username exists
// (user enumeration). The real auth check happens in AuthUser.
func (d *mainDriver) PreAuthUser(cc ftp.ClientContext, user string) error {
	return nil
}

// clientConn adapts the library's client context to the registry's Conn.
type clientConn struct {
	cc       ftp.ClientContext
	username string
	alive    atomic.Bool
}

func (c *clientConn) Close() error {
	c.alive.Store(false)
	return c.cc.Close()
}

func (c *clientConn) IsAlive() bool { return c.alive.Load() }

// Compile-time interface assertions.
var _ ftp.MainDriver = (*mainDriver)(nil)
var _ ftp.MainDriverExtensionUserVerifier = (*mainDriver)(nil)
var _ registry.Conn = (*clientConn)(nil)
