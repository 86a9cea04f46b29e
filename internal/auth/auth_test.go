package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGuest_TokenRoundTrip(t *testing.T) {
	s, err := NewService("secret", "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Guest("  Ada  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.User.ID, "user_") || res.User.DisplayName != "Ada" {
		t.Errorf("unexpected user %+v", res.User)
	}

	u, err := s.ValidateToken(res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if *u != res.User {
		t.Errorf("expected %+v, got %+v", res.User, *u)
	}
}

func TestGuest_Passcode(t *testing.T) {
	s, err := NewService("secret", "open sesame")
	if err != nil {
		t.Fatal(err)
	}
	if !s.RequiresPasscode() {
		t.Fatal("expected passcode to be required")
	}

	tests := []struct {
		name     string
		passcode string
		wantErr  error
	}{
		{"correct", "open sesame", nil},
		{"wrong", "open", ErrInvalidPasscode},
		{"missing", "", ErrInvalidPasscode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Guest("", tt.passcode)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	s, _ := NewService("secret", "")
	other, _ := NewService("other", "")
	res, _ := other.Guest("x", "")

	if _, err := s.ValidateToken(res.Token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
	if _, err := s.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage must be rejected")
	}

	expired, _ := s.Guest("x", "")
	s.now = func() time.Time { return time.Now().Add(2 * tokenTTL) }
	if _, err := s.ValidateToken(expired.Token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "Guest"},
		{"   ", "Guest"},
		{"Bo", "Bo"},
		{strings.Repeat("é", 70), strings.Repeat("é", 64)},
	}
	for _, tt := range tests {
		if got := cleanName(tt.in); got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGuestHandler(t *testing.T) {
	s, _ := NewService("secret", "pass")
	h := NewHandler(s)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"displayName":"Ada","passcode":"pass"}`, http.StatusCreated},
		{"bad passcode", `{"passcode":"nope"}`, http.StatusUnauthorized},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Guest(rec, httptest.NewRequest(http.MethodPost, "/auth/guest", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := NewService("secret", "")
	res, _ := s.Guest("Ada", "")

	var seen *User
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/boards/b", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen == nil || seen.ID != res.User.ID {
		t.Errorf("expected user in context, got %d %+v", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boards/b", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}

	if UserFromContext(context.Background()) != nil {
		t.Error("empty context has no user")
	}
}
