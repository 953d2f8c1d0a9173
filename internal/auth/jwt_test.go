package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/mmynk/plantid/internal/models"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: "u1", Email: "ana@example.com"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if claims.UserID != "u1" || claims.Email != "ana@example.com" || claims.Subject != "u1" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		later := NewJWTManager("test-secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := later.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := m.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("user id required", func(t *testing.T) {
		if _, err := m.Generate(&models.User{}); err == nil {
			t.Error("expected error for empty user id")
		}
	})
}
