package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"trade-signal-bot/config"
)

func testService(t *testing.T, password string) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return NewService(config.AuthConfig{
		JWTSecret:           "test-secret",
		AccessTokenDuration: time.Hour,
		AdminUsername:       "admin",
		AdminPasswordHash:   string(hash),
	})
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := testService(t, "correct horse battery staple")

	pair, err := svc.Login("admin", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", pair.TokenType)
	}

	claims, err := svc.JWTManager().ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if claims.Username != "admin" || !claims.IsAdmin {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := testService(t, "correct horse battery staple")

	if _, err := svc.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := svc.Login("root", "correct horse battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong username: got %v", err)
	}
}

func TestLoginRejectsUnconfiguredHash(t *testing.T) {
	svc := NewService(config.AuthConfig{
		JWTSecret:           "test-secret",
		AccessTokenDuration: time.Hour,
		AdminUsername:       "admin",
	})
	if _, err := svc.Login("admin", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v", err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc := testService(t, "pw-not-used-here")

	other := NewJWTManager("different-secret", time.Hour)
	token, err := other.GenerateAccessToken(UserClaims{UserID: "admin"})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := svc.JWTManager().ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token: got %v", err)
	}
}
