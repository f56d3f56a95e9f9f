// Package remote abstracts the remote object-storage API the gateway
// relays staged files to. A Client performs exactly one operation class:
// push the bytes at a local path to a remote path, returning metadata on
// success or a typed failure.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an upload failure for logging and operator remediation.
// The coordinator treats every kind the same way: the item failed, move on.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindTimeout
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// UploadError is a classified remote upload failure.
type UploadError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upload %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("upload %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Classify extracts the failure kind from an upload error.
func Classify(err error) Kind {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// Metadata describes a successfully stored remote object.
type Metadata struct {
	Path string
	Size int64
	ID   string
}

// Client is the remote upload abstraction consumed by the coordinator.
type Client interface {
	// Upload pushes the file at localPath to remotePath. It returns
	// Metadata on success or an *UploadError.
	Upload(ctx context.Context, localPath, remotePath string) (Metadata, error)

	// EnsureDir makes a best effort to create the remote directory.
	// Callers treat a failure as a warning and proceed with the upload
	// anyway; some remote stores create directories implicitly.
	EnsureDir(ctx context.Context, remoteDir string) error
}
