package services

import (
	"context"
	"errors"
	"net/http"

	"chatkaro-service/internal/websocket"

	"gorm.io/gorm"
)

// SessionAuthenticator resolves the realtime handshake credential to a user.
type SessionAuthenticator struct {
	tokens *TokenService
	users  UserRepository
}

func NewSessionAuthenticator(tokens *TokenService, users UserRepository) *SessionAuthenticator {
	return &SessionAuthenticator{tokens: tokens, users: users}
}

func (a *SessionAuthenticator) Credential(r *http.Request) string {
	return a.tokens.TokenFromRequest(r)
}

func (a *SessionAuthenticator) Authenticate(ctx context.Context, credential string) (websocket.Identity, error) {
	userID, err := a.tokens.Parse(credential)
	if err != nil {
		return websocket.Identity{}, err
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return websocket.Identity{}, ErrUserNotFound
		}
		return websocket.Identity{}, err
	}
	return websocket.Identity{ID: websocket.FromUint(user.ID), Name: user.Name}, nil
}
