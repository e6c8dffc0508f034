package auth

import "testing"

func TestGenerateAndValidateClientToken(t *testing.T) {
	token, err := GenerateClientToken("client-123")
	if err != nil {
		t.Fatalf("Token generation failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if claims.ClientID != "client-123" {
		t.Errorf("Expected client-123, got %s", claims.ClientID)
	}
	if claims.Role != "client" {
		t.Errorf("Expected client role, got %s", claims.Role)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	token, err := GenerateClientToken("client-123")
	if err != nil {
		t.Fatalf("Token generation failed: %v", err)
	}

	if _, err := ValidateToken(token + "x"); err == nil {
		t.Error("Expected a tampered token to be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-token"); err == nil {
		t.Error("Expected garbage input to be rejected")
	}
}
