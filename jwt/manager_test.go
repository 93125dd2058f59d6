package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "test",
	}
}

func TestCreateAndParseAccess(t *testing.T) {
	manager, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := manager.CreateAccess("u1", "Alice Smith")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := manager.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" {
		t.Fatalf("uid = %q, want %q", claims.UID, "u1")
	}
	if claims.Name != "Alice Smith" {
		t.Fatalf("name = %q, want %q", claims.Name, "Alice Smith")
	}
	if claims.Issuer != "test" {
		t.Fatalf("issuer = %q, want %q", claims.Issuer, "test")
	}
}

func TestParseAccessRejectsWrongSecret(t *testing.T) {
	signer, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	otherCfg := hs256Config()
	otherCfg.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	verifier, err := NewManager(otherCfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := signer.CreateAccess("u1", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestParseAccessRejectsExpiredToken(t *testing.T) {
	cfg := hs256Config()
	cfg.AccessTTL = time.Millisecond
	manager, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := manager.CreateAccess("u1", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := manager.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessRejectsWrongIssuer(t *testing.T) {
	signer, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	otherCfg := hs256Config()
	otherCfg.Issuer = "someone-else"
	verifier, err := NewManager(otherCfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := signer.CreateAccess("u1", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := verifier.ParseAccess(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestParseAccessRejectsGarbage(t *testing.T) {
	manager, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := manager.ParseAccess(token); err == nil {
			t.Fatalf("token %q should be rejected", token)
		}
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	cfg := hs256Config()
	cfg.PrivateKey = []byte("too-short")
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected a short HS256 secret to be rejected")
	}
}

func TestNewManagerRejectsUnknownMethod(t *testing.T) {
	cfg := hs256Config()
	cfg.SigningMethod = "none"
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected an unknown signing method to be rejected")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	manager, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := manager.CreateAccess("u1", "Alice")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := manager.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" {
		t.Fatalf("uid = %q, want %q", claims.UID, "u1")
	}
}

func TestHS256TokenRejectedByEd25519Verifier(t *testing.T) {
	hsManager, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	edManager, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := hsManager.CreateAccess("u1", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	// Algorithm confusion must fail on the method pin, not the key.
	if _, err := edManager.ParseAccess(token); err == nil {
		t.Fatal("expected a cross-algorithm token to be rejected")
	}
}
