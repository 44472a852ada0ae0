package token

import "testing"

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("secret", 1)

	tok, err := m.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.SessionID != "session-1" {
		t.Fatalf("SessionID = %q", claims.SessionID)
	}
}

func TestVerifyTokenRejectsOtherSecret(t *testing.T) {
	tok, err := NewJWTManager("secret-a", 1).GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := NewJWTManager("secret-b", 1).VerifyToken(tok); err == nil {
		t.Fatal("expected verification failure with a different secret")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	if _, err := NewJWTManager("secret", 1).VerifyToken("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestEmptySecretGeneratesRandomKey(t *testing.T) {
	a := NewJWTManager("", 1)
	b := NewJWTManager("", 1)
	tok, err := a.GenerateToken("s")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := b.VerifyToken(tok); err == nil {
		t.Fatal("random keys should differ between managers")
	}
}
