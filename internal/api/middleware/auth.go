package middleware

import (
	"net/http"

	"chatkaro-service/internal/models"
	"chatkaro-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier extracts and verifies the session token of a request.
type TokenVerifier interface {
	TokenFromRequest(r *http.Request) string
	Parse(token string) (uint, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
}

func NewAuthMiddleware(tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
	}
}

// RequireAuth sets "user_id" (uint) from the auth cookie or bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := am.tokens.TokenFromRequest(c.Request)
		if token == "" {
			abortUnauthorized(c, "missing token")
			return
		}

		userID, err := am.tokens.Parse(token)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: response.Msg(response.CodeUnauthenticated),
		Details: details,
	})
}
