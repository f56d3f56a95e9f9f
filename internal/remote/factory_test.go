package remote

import (
	"context"
	"testing"

	"scangate/internal/config"
)

// TestNewRejectsUnknownBackend refuses backends the factory does not know.
func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), config.RemoteConfig{Backend: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

// TestNewHTTPRequiresEndpoint refuses an http backend with no endpoint.
func TestNewHTTPRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), config.RemoteConfig{Backend: "http"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}

// TestNewS3RequiresBucket refuses an s3 backend with no bucket.
func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), config.RemoteConfig{Backend: "s3"}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
