package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestGenerateAndParse(t *testing.T) {
	t.Run("round trip preserves principal", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "alice", time.Hour)
		if err != nil {
			t.Fatalf("generating token: %v", err)
		}

		claims, err := ParseToken(testSecret, token)
		if err != nil {
			t.Fatalf("parsing token: %v", err)
		}
		if claims.Principal() != "alice" {
			t.Errorf("principal = %q, want alice", claims.Principal())
		}
	})

	t.Run("empty principal is rejected", func(t *testing.T) {
		_, err := GenerateToken(testSecret, "", time.Hour)
		if !errors.Is(err, ErrMissingSubject) {
			t.Errorf("got %v, want ErrMissingSubject", err)
		}
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "alice", time.Hour)
		if err != nil {
			t.Fatalf("generating token: %v", err)
		}

		_, err = ParseToken("another-secret-also-32-characters-xx", token)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := GenerateToken(testSecret, "alice", -time.Minute)
		if err != nil {
			t.Fatalf("generating token: %v", err)
		}

		_, err = ParseToken(testSecret, token)
		if !errors.Is(err, ErrTokenExpired) {
			t.Errorf("got %v, want ErrTokenExpired", err)
		}
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ParseToken(testSecret, "not.a.token")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("got %v, want ErrInvalidToken", err)
		}
	})
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	if got := PrincipalFromContext(ctx); got != "" {
		t.Errorf("empty context principal = %q, want empty", got)
	}

	ctx = WithPrincipal(ctx, "alice")
	if got := PrincipalFromContext(ctx); got != "alice" {
		t.Errorf("principal = %q, want alice", got)
	}
}
