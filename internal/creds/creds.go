// Package creds loads the static device credential table.
// The table is read once at startup and is immutable for the process
// lifetime; the core only ever looks identities up by username.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
)

// usernameRe enforces a conservative username pattern.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Identity is one credential-table entry.
type Identity struct {
	Username string `json:"username"`
	// Secret is either a plaintext secret or an argon2id PHC string;
	// internal/auth distinguishes the two.
	Secret string `json:"secret"`
	// RemoteDir is the destination prefix on the remote store, e.g.
	// "/Shared/scans/office1".
	RemoteDir string `json:"remote_dir"`
	// Contact identifies the operator responsible for this device.
	Contact string `json:"contact"`
}

// Directory is a read-only username -> Identity mapping.
type Directory struct {
	byName map[string]Identity
}

type credFile struct {
	Users []Identity `json:"users"`
}

// Load reads and validates a JSON credential file.
func Load(path string) (*Directory, error) {
	if path == "" {
		return nil, errors.New("credentials path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse validates raw credential JSON into a Directory.
func Parse(b []byte) (*Directory, error) {
	var f credFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if len(f.Users) == 0 {
		return nil, errors.New("credentials: no users defined")
	}
	byName := make(map[string]Identity, len(f.Users))
	for i, u := range f.Users {
		if !usernameRe.MatchString(u.Username) {
			return nil, fmt.Errorf("credentials: user %d: invalid username %q", i, u.Username)
		}
		if u.Secret == "" {
			return nil, fmt.Errorf("credentials: user %q: secret is required", u.Username)
		}
		dir, err := cleanRemoteDir(u.RemoteDir)
		if err != nil {
			return nil, fmt.Errorf("credentials: user %q: %w", u.Username, err)
		}
		u.RemoteDir = dir
		if _, dup := byName[u.Username]; dup {
			return nil, fmt.Errorf("credentials: duplicate username %q", u.Username)
		}
		byName[u.Username] = u
	}
	return &Directory{byName: byName}, nil
}

// Lookup returns the identity for a username, if present.
func (d *Directory) Lookup(username string) (Identity, bool) {
	id, ok := d.byName[username]
	return id, ok
}

// Len returns the number of identities in the table.
func (d *Directory) Len() int { return len(d.byName) }

// cleanRemoteDir normalizes a remote destination prefix.
// Remote paths always use forward slashes.
func cleanRemoteDir(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("remote_dir is required")
	}
	if !strings.HasPrefix(p, "/") {
		return "", errors.New("remote_dir must be absolute")
	}
	clean := path.Clean(p)
	if clean == "/" {
		return "", errors.New("remote_dir cannot be the remote root")
	}
	return clean, nil
}
