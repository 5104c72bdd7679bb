package security

import "testing"

func testParams() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestPasswordHashVerify(t *testing.T) {
	hash, err := HashPassword("s3cret99", testParams())
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	ok, err := VerifyPassword("s3cret99", hash)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected password to fail")
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	cases := []struct {
		password string
		wantErr  bool
	}{
		{"pass1word", false},
		{"short1", true},
		{"allletters", true},
		{"12345678", true},
		{"Longenough1", false},
	}
	for _, tc := range cases {
		err := CheckPasswordPolicy(tc.password)
		if tc.wantErr && err == nil {
			t.Fatalf("expected policy error for %q", tc.password)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("unexpected policy error for %q: %v", tc.password, err)
		}
	}
}

func TestTokenGeneratorHashMatches(t *testing.T) {
	token, hash, err := DefaultTokenGenerator{}.New()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatalf("expected non-empty token and hash")
	}
	if HashToken(token) != hash {
		t.Fatalf("hash mismatch")
	}

	_, hash2, err := DefaultTokenGenerator{}.New()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if hash2 == hash {
		t.Fatalf("expected distinct tokens")
	}
}
