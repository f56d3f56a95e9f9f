// Package creds tests cover credential-table parsing and lookup.
package creds

import "testing"

const sample = `{
  "users": [
    {"username": "scanner1", "secret": "s1", "remote_dir": "/Shared/scans/office1/", "contact": "ops@example.com"},
    {"username": "scanner2", "secret": "s2", "remote_dir": "/Shared/scans/office2", "contact": ""}
  ]
}`

// TestParseAndLookup loads a valid table and looks identities up.
func TestParseAndLookup(t *testing.T) {
	d, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", d.Len())
	}
	id, ok := d.Lookup("scanner1")
	if !ok {
		t.Fatalf("expected scanner1 to be present")
	}
	if id.RemoteDir != "/Shared/scans/office1" {
		t.Fatalf("expected trailing slash to be cleaned, got %q", id.RemoteDir)
	}
	if _, ok := d.Lookup("scanner9"); ok {
		t.Fatalf("expected scanner9 to be absent")
	}
}

// TestParseRejectsBadTables covers the validation failures.
func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty":         `{"users": []}`,
		"bad username":  `{"users": [{"username": "../x", "secret": "s", "remote_dir": "/a/b"}]}`,
		"no secret":     `{"users": [{"username": "scanner1", "remote_dir": "/a/b"}]}`,
		"relative dir":  `{"users": [{"username": "scanner1", "secret": "s", "remote_dir": "a/b"}]}`,
		"root dir":      `{"users": [{"username": "scanner1", "secret": "s", "remote_dir": "/"}]}`,
		"duplicate":     `{"users": [{"username": "scanner1", "secret": "a", "remote_dir": "/a"}, {"username": "scanner1", "secret": "b", "remote_dir": "/b"}]}`,
		"malformed":     `{"users": `,
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
