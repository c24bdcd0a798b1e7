package auth_test

import (
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/auth"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue("auditor@example.com", "auditor")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "auditor@example.com" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Role != "auditor" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestVerify_rejectsWrongSecret(t *testing.T) {
	token, err := auth.NewTokenIssuer("secret-a", time.Hour).Issue("op", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.NewTokenIssuer("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("token signed with a different secret verified")
	}
}

func TestVerify_rejectsGarbage(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := issuer.Verify(bad); err == nil {
			t.Errorf("garbage token %q verified", bad)
		}
	}
}
