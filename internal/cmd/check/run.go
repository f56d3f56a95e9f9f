package check

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"scangate/internal/config"
	"scangate/internal/creds"
)

// Run is an operational preflight: it loads the config and credential
// table and verifies the staging directory is writable, without opening
// any listener.
func Run(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	var configPath string
	fs.StringVar(&configPath, "config", "./scangate.yaml", "path to scangate.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load()

	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dir, err := creds.Load(c.CredentialsPath)
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	if err := os.MkdirAll(c.StagingDir, 0o700); err != nil {
		return fmt.Errorf("staging dir: %w", err)
	}
	probe, err := os.CreateTemp(c.StagingDir, ".check-*")
	if err != nil {
		return fmt.Errorf("staging dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	fmt.Printf("ok: %d users, staging %s, remote backend %s\n",
		dir.Len(), c.StagingDir, c.Remote.Backend)
	return nil
}
