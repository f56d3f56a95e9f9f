// Package auth tests cover secret verification.
package auth

import "testing"

// TestVerifySecretPlaintext checks exact-match semantics for plaintext secrets.
func TestVerifySecretPlaintext(t *testing.T) {
	ok, err := VerifySecret("s1", "s1")
	if err != nil {
		t.Fatalf("VerifySecret: %v", err)
	}
	if !ok {
		t.Fatalf("expected exact match to verify")
	}

	// No case folding or trimming.
	for _, offered := range []string{"S1", " s1", "s1 ", "s11", ""} {
		ok, err := VerifySecret(offered, "s1")
		if err != nil {
			t.Fatalf("VerifySecret(%q): %v", offered, err)
		}
		if ok {
			t.Fatalf("expected %q to fail against stored s1", offered)
		}
	}
}

// TestHashAndVerifySecret validates positive and negative PHC checks.
func TestHashAndVerifySecret(t *testing.T) {
	h, err := HashSecret("secret", DefaultArgon2Params())
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	ok, err := VerifySecret("secret", h)
	if err != nil {
		t.Fatalf("VerifySecret: %v", err)
	}
	if !ok {
		t.Fatalf("expected secret to verify")
	}

	ok, err = VerifySecret("wrong", h)
	if err != nil {
		t.Fatalf("VerifySecret(wrong): %v", err)
	}
	if ok {
		t.Fatalf("expected wrong secret to fail")
	}
}

// TestVerifySecretBadPHC rejects malformed hash strings with an error.
func TestVerifySecretBadPHC(t *testing.T) {
	if _, err := VerifySecret("x", "argon2id$v=19$garbage"); err == nil {
		t.Fatalf("expected error for malformed PHC string")
	}
}

// TestDummyVerify just exercises the timing-equalization path.
func TestDummyVerify(t *testing.T) {
	DummyVerify("anything")
}
