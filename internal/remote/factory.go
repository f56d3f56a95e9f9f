package remote

import (
	"context"
	"fmt"

	"scangate/internal/config"
)

// New creates a Client from the remote config section.
func New(ctx context.Context, cfg config.RemoteConfig) (Client, error) {
	switch cfg.Backend {
	case "http":
		return NewHTTP(HTTPOptions{Endpoint: cfg.Endpoint, Token: cfg.Token})
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown remote backend: %s", cfg.Backend)
	}
}
