package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inamate/canvas/internal/typeid"
)

var (
	ErrInvalidPasscode = errors.New("invalid board passcode")
	ErrInvalidToken    = errors.New("invalid token")
)

const (
	tokenTTL         = 24 * time.Hour
	maxDisplayName   = 64
	defaultGuestName = "Guest"
)

// Service issues guest session tokens. When a board passcode is configured
// a guest must present it to get a token.
type Service struct {
	jwtSecret    []byte
	passcodeHash []byte
	now          func() time.Time
}

// NewService creates the service. An empty passcode lets anyone join.
func NewService(jwtSecret, passcode string) (*Service, error) {
	s := &Service{jwtSecret: []byte(jwtSecret), now: time.Now}
	if passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash passcode: %w", err)
		}
		s.passcodeHash = hash
	}
	return s, nil
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// RequiresPasscode reports whether Guest checks a passcode.
func (s *Service) RequiresPasscode() bool {
	return s.passcodeHash != nil
}

// Guest creates a new guest user and a token for it.
func (s *Service) Guest(displayName, passcode string) (*AuthResult, error) {
	if s.passcodeHash != nil {
		if err := bcrypt.CompareHashAndPassword(s.passcodeHash, []byte(passcode)); err != nil {
			return nil, ErrInvalidPasscode
		}
	}

	user := User{ID: typeid.NewUserID(), DisplayName: cleanName(displayName)}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ValidateToken returns the user a token was issued for.
func (s *Service) ValidateToken(tokenString string) (*User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("token subject: %w", ErrInvalidToken)
	}
	if err := typeid.Validate(userID, typeid.PrefixUser); err != nil {
		return nil, fmt.Errorf("token subject: %w", err)
	}
	name, _ := claims["name"].(string)
	return &User{ID: userID, DisplayName: cleanName(name)}, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.DisplayName,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultGuestName
	}
	if r := []rune(name); len(r) > maxDisplayName {
		name = string(r[:maxDisplayName])
	}
	return name
}
