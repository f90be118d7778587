package security_test

import (
	"errors"
	"testing"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/security"
)

func cheapConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := security.NewHasher(cheapConfig())

	hash, err := hasher.Hash("lavender-2024")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := hasher.Verify("lavender-2024", hash)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("lavender-2025", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}

	other, err := hasher.Hash("lavender-2024")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if other == hash {
		t.Fatal("expected distinct salts per hash")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := security.NewHasher(cheapConfig())
	for _, encoded := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=19$garbage$c2FsdA$aGFzaA"} {
		if _, err := hasher.Verify("x", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := cheapConfig()
	hasher := security.NewHasher(cfg)
	hash, err := hasher.Hash("lavender-2024")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hasher.NeedsRehash(hash) {
		t.Fatal("fresh hash should not need rehash")
	}

	cfg.ArgonTime = 2
	if !security.NewHasher(cfg).NeedsRehash(hash) {
		t.Fatal("changed cost should require rehash")
	}
}

func TestCheckPolicy(t *testing.T) {
	cases := map[string]bool{
		"short1":        false,
		"onlyletters":   false,
		"1234567890":    false,
		"lavender-2024": true,
	}
	for pw, ok := range cases {
		err := security.CheckPolicy(pw)
		if ok && err != nil {
			t.Fatalf("expected %q to pass policy: %v", pw, err)
		}
		if !ok && err == nil {
			t.Fatalf("expected %q to fail policy", pw)
		}
	}
}
