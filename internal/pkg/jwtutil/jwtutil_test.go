package jwtutil

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	tokenID := NewTokenID(1)
	token, err := GenerateToken("secret", time.Hour, tokenID, 42, "alice", "USER", []string{"DEFAULT", "ENG"}, "PRIVATE_alice")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.TokenID != tokenID {
		t.Errorf("token id mismatch: got %q want %q", claims.TokenID, tokenID)
	}
	if claims.UserID != 42 {
		t.Errorf("user id mismatch: got %d", claims.UserID)
	}
	if claims.Username != "alice" || claims.Role != "USER" {
		t.Errorf("unexpected username/role: %q/%q", claims.Username, claims.Role)
	}
	if claims.PrimaryOrgTag != "PRIVATE_alice" {
		t.Errorf("unexpected primary org tag: %q", claims.PrimaryOrgTag)
	}
	if len(claims.OrgTags) != 2 || claims.OrgTags[0] != "DEFAULT" || claims.OrgTags[1] != "ENG" {
		t.Errorf("unexpected org tags: %v", claims.OrgTags)
	}
}

func TestParseToken_WrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("secret-a", time.Hour, NewTokenID(1), 1, "bob", "USER", nil, "")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if _, err := ParseToken("secret-b", token); err == nil {
		t.Fatal("expected parse to fail with the wrong secret")
	}
}

func TestParseToken_ExpiredRejected(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, NewTokenID(1), 1, "bob", "USER", nil, "")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expected parse to fail for an expired token")
	}
}

func TestNewTokenID_Unique(t *testing.T) {
	a := NewTokenID(1)
	b := NewTokenID(2)
	if a == b {
		t.Fatalf("expected distinct token ids, got %q twice", a)
	}
}
