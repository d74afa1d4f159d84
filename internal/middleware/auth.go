package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"uk-requests/internal/service"
	"uk-requests/internal/workflow"
	"uk-requests/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const actorKey = "actor"

// ErrInvalidToken covers every reason a presented token is not accepted.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier validates access tokens issued by the identity service and
// resolves their subject to an actor.
type TokenVerifier struct {
	secret   []byte
	resolver service.ActorResolver
}

func NewTokenVerifier(secret []byte, resolver service.ActorResolver) *TokenVerifier {
	return &TokenVerifier{secret: secret, resolver: resolver}
}

// Verify parses an HMAC-signed JWT and resolves its "sub" claim.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (workflow.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return workflow.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return workflow.Actor{}, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return workflow.Actor{}, fmt.Errorf("%w: subject not found", ErrInvalidToken)
	}

	return v.resolver.ResolveActor(ctx, sub)
}

// tokenFromRequest tries the access_token cookie first, then the Authorization header.
func tokenFromRequest(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// Authenticate resolves the caller into a workflow actor stored in the gin context.
// Credential problems are 401, known users without a usable role 403, and
// failures of the user lookup itself 500.
func Authenticate(v *TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		actor, err := v.Verify(c.Request.Context(), tokenString)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidToken), errors.Is(err, workflow.ErrNotFound), errors.Is(err, service.ErrValidation):
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		case errors.Is(err, service.ErrAccessDenied):
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
			return
		default:
			log.Error("actor resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// SetActor stores actor on the context the way Authenticate does.
func SetActor(c *gin.Context, actor workflow.Actor) {
	c.Set(actorKey, actor)
	c.Set("userID", actor.ID.String())
	c.Set("userRole", string(actor.Role))
}

// ActorFrom returns the actor set by Authenticate.
func ActorFrom(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}
