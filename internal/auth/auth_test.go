package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifier_UserID(t *testing.T) {
	v := NewVerifier("secret")

	valid, err := v.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	expired, _ := v.Sign("user-1", -time.Hour)
	foreign, _ := NewVerifier("other").Sign("user-1", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"Valid", "Bearer " + valid, "user-1", nil},
		{"Missing", "", "", ErrMissingToken},
		{"WrongScheme", "Basic abc", "", ErrMissingToken},
		{"Expired", "Bearer " + expired, "", ErrInvalidToken},
		{"WrongSecret", "Bearer " + foreign, "", ErrInvalidToken},
		{"NoSubject", "Bearer " + noSubject, "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.UserID(tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UserID failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}
