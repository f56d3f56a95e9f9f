// Package daemon is the composition root: it builds the credential
// directory, remote client, coordinator, registry, gateway, and FTP
// bridge from a loaded config and runs them until the context is done.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	ftp "github.com/fclairamb/ftpserverlib"

	"scangate/internal/config"
	"scangate/internal/creds"
	"scangate/internal/ftpbridge"
	"scangate/internal/gateway"
	"scangate/internal/registry"
	"scangate/internal/relay"
	"scangate/internal/remote"
)

// Options configures the daemon.
type Options struct {
	Config config.Config
	Logger *slog.Logger
}

// Run starts the gateway and blocks until a fatal listener error or ctx
// cancellation. Bootstrap failures (credential table, staging dir, remote
// endpoint) are fatal here, before any device can connect.
func Run(ctx context.Context, opt Options) error {
	cfg := opt.Config
	logger := opt.Logger
	if logger == nil {
		return errors.New("logger is required")
	}

	dir, err := creds.Load(cfg.CredentialsPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o700); err != nil {
		return err
	}

	client, err := remote.New(ctx, cfg.Remote)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.Session.Max, cfg.Session.IdleTimeout.Std(), logger)

	var onUploaded func(string)
	if cfg.Session.AutoDisconnect {
		grace := cfg.Session.AutoDisconnectGrace.Std()
		onUploaded = func(owner string) { reg.CloseAfter(owner, grace) }
	}
	coord := relay.New(relay.Options{
		Client:         client,
		Logger:         logger,
		PacingDelay:    cfg.Upload.PacingDelay.Std(),
		DebouncePeriod: cfg.Upload.DebouncePeriod.Std(),
		UploadTimeout:  cfg.Upload.Timeout.Std(),
		OnUploaded:     onUploaded,
	})

	gw := gateway.New(gateway.Options{
		Directory: dir,
		Registry:  reg,
		Relay:     coord,
		Logger:    logger,
	})

	passive, err := parsePortRange(cfg.FTP.PassivePorts)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go reg.RunSweeper(runCtx, cfg.Session.SweepInterval.Std())

	addr := cfg.FTP.Bind + ":" + strconv.Itoa(cfg.FTP.Port)
	logger.Info("gateway starting",
		"addr", addr,
		"staging", cfg.StagingDir,
		"users", dir.Len(),
		"backend", cfg.Remote.Backend,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ftpbridge.ListenAndServe(runCtx, ftpbridge.Options{
			Addr:         addr,
			Gateway:      gw,
			StagingDir:   cfg.StagingDir,
			PassivePorts: passive,
			PublicHostIP: cfg.FTP.PublicHost,
			Logger:       logger,
		})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parsePortRange(s string) (*ftp.PortRange, error) {
	// Format: start-end. Empty disables the range (ephemeral ports).
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, errors.New("invalid ftp.passive_ports")
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, errors.New("invalid ftp.passive_ports")
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, errors.New("invalid ftp.passive_ports")
	}
	if start <= 0 || end <= 0 || end < start {
		return nil, errors.New("invalid ftp.passive_ports")
	}
	return &ftp.PortRange{Start: start, End: end}, nil
}
