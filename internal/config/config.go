// Package config loads and validates scangate YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "500ms" or "2m".
type Duration time.Duration

// UnmarshalYAML parses a duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// FTPConfig holds the FTP listener settings.
type FTPConfig struct {
	Bind         string `yaml:"bind"`
	Port         int    `yaml:"port"`
	PassivePorts string `yaml:"passive_ports"`
	PublicHost   string `yaml:"public_host"`
}

// SessionConfig holds session registry settings.
type SessionConfig struct {
	Max                 int      `yaml:"max"`
	IdleTimeout         Duration `yaml:"idle_timeout"`
	SweepInterval       Duration `yaml:"sweep_interval"`
	AutoDisconnectGrace Duration `yaml:"auto_disconnect_grace"`
	AutoDisconnect      bool     `yaml:"auto_disconnect"`
}

// UploadConfig holds upload coordinator settings.
type UploadConfig struct {
	PacingDelay    Duration `yaml:"pacing_delay"`
	DebouncePeriod Duration `yaml:"debounce_period"`
	Timeout        Duration `yaml:"timeout"`
}

// S3Config holds settings for the S3 remote backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// RemoteConfig selects and configures the remote upload backend.
type RemoteConfig struct {
	Backend  string   `yaml:"backend"`
	Endpoint string   `yaml:"endpoint"`
	Token    string   `yaml:"token"`
	S3       S3Config `yaml:"s3"`
}

// Config mirrors the scangate.yaml schema.
type Config struct {
	Log             LogConfig     `yaml:"log"`
	StagingDir      string        `yaml:"staging_dir"`
	CredentialsPath string        `yaml:"credentials_path"`
	FTP             FTPConfig     `yaml:"ftp"`
	Session         SessionConfig `yaml:"session"`
	Upload          UploadConfig  `yaml:"upload"`
	Remote          RemoteConfig  `yaml:"remote"`
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates it. It returns a fully populated Config or a
// descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	applyEnv(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	// Make paths stable for the daemon.
	c.StagingDir = strings.TrimSpace(c.StagingDir)
	c.CredentialsPath = strings.TrimSpace(c.CredentialsPath)
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.StagingDir == "" {
		c.StagingDir = "./staging"
	}
	if c.CredentialsPath == "" {
		c.CredentialsPath = "./scangate-users.json"
	}
	if c.FTP.Bind == "" {
		c.FTP.Bind = "0.0.0.0"
	}
	if c.FTP.Port == 0 {
		c.FTP.Port = 2121
	}
	if c.FTP.PassivePorts == "" {
		c.FTP.PassivePorts = "50000-50100"
	}
	if c.Session.Max == 0 {
		c.Session.Max = 10
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = Duration(5 * time.Minute)
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = Duration(30 * time.Second)
	}
	if c.Session.AutoDisconnectGrace == 0 {
		c.Session.AutoDisconnectGrace = Duration(10 * time.Second)
	}
	if c.Upload.PacingDelay == 0 {
		c.Upload.PacingDelay = Duration(2 * time.Second)
	}
	if c.Upload.DebouncePeriod == 0 {
		c.Upload.DebouncePeriod = Duration(5 * time.Second)
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = Duration(2 * time.Minute)
	}
	if c.Remote.Backend == "" {
		c.Remote.Backend = "http"
	}
	if c.Remote.S3.Region == "" {
		c.Remote.S3.Region = "us-east-1"
	}
}

// applyEnv overrides secret material from the environment so tokens
// need not live in the YAML file.
func applyEnv(c *Config) {
	if v := os.Getenv("SCANGATE_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("SCANGATE_S3_ACCESS_KEY"); v != "" {
		c.Remote.S3.AccessKey = v
	}
	if v := os.Getenv("SCANGATE_S3_SECRET_KEY"); v != "" {
		c.Remote.S3.SecretKey = v
	}
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	if strings.TrimSpace(c.StagingDir) == "" {
		return errors.New("staging_dir is required")
	}
	if strings.TrimSpace(c.CredentialsPath) == "" {
		return errors.New("credentials_path is required")
	}
	if c.FTP.Port <= 0 || c.FTP.Port > 65535 {
		return errors.New("ftp.port is invalid")
	}
	if c.Session.Max < 1 || c.Session.Max > 10000 {
		return errors.New("session.max is invalid")
	}
	if c.Session.IdleTimeout.Std() < time.Second {
		return errors.New("session.idle_timeout is too small")
	}
	if c.Upload.Timeout.Std() < time.Second {
		return errors.New("upload.timeout is too small")
	}
	switch c.Remote.Backend {
	case "http":
		if strings.TrimSpace(c.Remote.Endpoint) == "" {
			return errors.New("remote.endpoint is required for the http backend")
		}
	case "s3":
		if strings.TrimSpace(c.Remote.S3.Bucket) == "" {
			return errors.New("remote.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown remote.backend: %s", c.Remote.Backend)
	}
	return nil
}
