package usecase

import (
	"errors"
	"testing"
	"time"

	"storefront-backend/internal/domain"
)

func TestAuthService_IssueVerifyRoundTrip(t *testing.T) {
	svc := &AuthService{JWTSecret: "test-secret"}
	tok, err := svc.Issue(domain.NewIdentity("user_42", "A@Example.com"), time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	id, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if id.UserID != "user_42" || id.Email != "a@example.com" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestAuthService_VerifyRejects(t *testing.T) {
	svc := &AuthService{JWTSecret: "test-secret"}
	other := &AuthService{JWTSecret: "other-secret"}
	foreign, _ := other.Issue(domain.NewIdentity("user_1", ""), time.Hour)
	expired, _ := svc.Issue(domain.NewIdentity("user_1", ""), -time.Minute)
	noSubject, _ := svc.Issue(domain.NewIdentity("", "a@example.com"), time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"no subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			var unauth ErrUnauthorized
			if !errors.As(err, &unauth) {
				t.Fatalf("want ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc.def"); got != "abc.def" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("bearer   xyz "); got != "xyz" {
		t.Fatalf("got %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("got %q", got)
	}
}
