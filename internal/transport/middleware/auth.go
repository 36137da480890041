package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const identityKey = "identity"

var errMissingSubject = errors.New("token has no subject")

// identityClaims are the claims the identity provider puts into its tokens
type identityClaims struct {
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier проверяет HS256 токены провайдера идентификации
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenVerifier(secret, issuer, audience string) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &TokenVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

func (v *TokenVerifier) Verify(tokenString string) (*entity.Identity, error) {
	claims := &identityClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	return &entity.Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Roles:         claims.Roles,
	}, nil
}

// Sign issues a token for the identity; used by tests and local tooling
func (v *TokenVerifier) Sign(identity *entity.Identity, issuer, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Roles:         identity.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if issuer != "" {
		claims.Issuer = issuer
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Authenticate кладет Identity в контекст, если передан валидный Bearer токен.
// Запрос без токена проходит анонимно, невалидный токен отклоняется с 401.
func Authenticate(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthenticated(c, "malformed authorization header")
			return
		}

		identity, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			logrus.WithError(err).WithField("path", c.Request.URL.Path).Warn("Invalid identity token")
			abortUnauthenticated(c, "invalid or expired token")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireIdentity rejects anonymous requests
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).Authenticated() {
			abortUnauthenticated(c, "authorization token missing")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller's identity or nil for anonymous requests
func IdentityFrom(c *gin.Context) *entity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*entity.Identity)
	return identity
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   fmt.Sprintf("%s: %s", entity.ErrUnauthenticated, msg),
		"kind":    entity.KindUnauthenticated,
	})
}
