package server

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"scangate/internal/config"
	"scangate/internal/daemon"
	"scangate/internal/logging"
	"scangate/internal/version"
)

// Run starts the gateway daemon from a YAML config file.
func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var configPath, logLevel string
	var showVersion bool
	fs.StringVar(&configPath, "config", "./scangate.yaml", "path to scangate.yaml")
	fs.StringVar(&logLevel, "log-level", "", "override log level: debug|info|warning|error")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("scangate server %s\n", version.Version)
		return nil
	}

	// Tokens and keys may live in a .env next to the binary instead of
	// the YAML file; missing .env is fine.
	_ = godotenv.Load()

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := c.Log.Level
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	lg, _, err := logging.New(logging.Options{Level: level, JSON: c.Log.JSON, DefaultSlog: true})
	if err != nil {
		return err
	}

	return daemon.Run(context.Background(), daemon.Options{Config: c, Logger: lg})
}
