package credentials

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "secret123" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := h.Verify(hash, "secret123"); err != nil {
		t.Errorf("Verify() correct password error = %v", err)
	}
	if err := h.Verify(hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Verify() wrong password error = %v, want ErrMismatch", err)
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	if got := NewBcryptHasher(0).cost; got != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", got, bcrypt.MinCost)
	}
	if got := NewBcryptHasher(99).cost; got != bcrypt.MaxCost {
		t.Errorf("cost = %d, want %d", got, bcrypt.MaxCost)
	}
}

func TestNewJWTIssuer_MissingSecret(t *testing.T) {
	if _, err := NewJWTIssuer("", time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("NewJWTIssuer() error = %v, want ErrMissingSecret", err)
	}
}

func TestJWTIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewJWTIssuer("test-secret", 0)
	if err != nil {
		t.Fatalf("NewJWTIssuer() error = %v", err)
	}
	if issuer.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want %v", issuer.ttl, DefaultTokenTTL)
	}

	token, err := issuer.Issue("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ada@example.com")
	}
}

func TestJWTIssuer_Rejects(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer, _ := NewJWTIssuer("test-secret", time.Hour)
	issuer.now = func() time.Time { return issued }

	valid, err := issuer.Issue("user-1", "ada@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, _ := NewJWTIssuer("other-secret", time.Hour)
	other.now = issuer.now
	forged, _ := other.Issue("user-1", "ada@example.com")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"garbage", "not-a-token", issued},
		{"wrong secret", forged, issued},
		{"alg none", none, issued},
		{"expired", valid, issued.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			issuer.now = func() time.Time { return at }
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
