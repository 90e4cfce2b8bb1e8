// Package auth resolves the caller identity from bearer tokens and gates
// admin routes.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gallery-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const IdentityKey = "identity"

// RoleAdmin is the role claim value granting back-office access
const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

// Identity is an authenticated caller
type Identity struct {
	Subject string
	Email   string
	Admin   bool
}

// Provider turns a bearer token into an identity
type Provider interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// JWTProvider validates HS256 tokens signed with a shared secret
type JWTProvider struct {
	secret      []byte
	adminEmails map[string]struct{}
}

func NewJWTProvider(secret string, adminEmails []string) *JWTProvider {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &JWTProvider{secret: []byte(secret), adminEmails: admins}
}

// Authenticate verifies the token. Admin is granted by a role=admin claim or
// by an email listed in the admin set.
func (p *JWTProvider) Authenticate(ctx context.Context, tokenString string) (*Identity, error) {
	if len(p.secret) == 0 {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	email = strings.ToLower(email)
	role, _ := claims["role"].(string)

	_, listed := p.adminEmails[email]
	return &Identity{
		Subject: sub,
		Email:   email,
		Admin:   role == RoleAdmin || (email != "" && listed),
	}, nil
}

// Authenticate attaches the caller identity when a bearer token is present.
// Requests without a token pass through anonymously; a bad token is rejected.
func Authenticate(provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abort(c, apperr.Unauthenticated("invalid authorization header format"))
			return
		}

		identity, err := provider.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, apperr.Unauthenticated("invalid token"))
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			abort(c, apperr.Unauthenticated("authentication required"))
			return
		}
		if !identity.Admin {
			abort(c, apperr.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller identity, or nil when anonymous
func IdentityFrom(c *gin.Context) *Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*Identity)
	return identity
}

// IsAdmin reports whether the caller is an authenticated admin
func IsAdmin(c *gin.Context) bool {
	identity := IdentityFrom(c)
	return identity != nil && identity.Admin
}

func abort(c *gin.Context, err *apperr.Error) {
	status := http.StatusUnauthorized
	if err.Kind == apperr.KindForbidden {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Message, "code": err.Kind})
}
