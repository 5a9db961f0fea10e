package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatkaro-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs and verifies the HS256 tokens shared by REST and the
// realtime handshake.
type TokenService struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
}

func NewTokenService(jwtCfg config.JWTConfig, cookieName string) *TokenService {
	return &TokenService{
		secret:     []byte(jwtCfg.Secret),
		ttl:        jwtCfg.ExpirationTime,
		cookieName: cookieName,
	}
}

func (s *TokenService) CookieName() string {
	return s.cookieName
}

func (s *TokenService) Generate(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenString and returns the user id it carries.
func (s *TokenService) Parse(tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// TokenFromRequest reads the auth cookie, falling back to a bearer header.
func (s *TokenService) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
