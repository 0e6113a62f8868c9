package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// AccessTokenTTL is the lifetime of a signed access token.
	AccessTokenTTL = 60 * time.Minute
	// RefreshTokenTTL is the lifetime of a stored refresh token.
	RefreshTokenTTL = 14 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Service signs and validates access tokens and hashes passwords.
type Service struct {
	jwtSecret []byte
}

func NewService(secret string) *Service {
	return &Service{jwtSecret: []byte(secret)}
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateAccessToken signs a short-lived HS256 token with the username
// as subject. The WebSocket layer and the REST middleware both resolve
// the caller from this subject.
func (s *Service) GenerateAccessToken(username string) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(AccessTokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses an access token and returns its subject username.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		username, ok := claims["sub"].(string)
		if !ok || username == "" {
			return "", ErrInvalidToken
		}
		return username, nil
	}

	return "", ErrInvalidToken
}

// GenerateRefreshToken returns an opaque random token. Refresh tokens are
// persisted server-side and rotated on use, so they carry no claims.
func (s *Service) GenerateRefreshToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
