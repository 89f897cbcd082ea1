package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionTokenKey is where the admin token lives in the cookie session.
const SessionTokenKey = "admin_token"

// ClaimsKey is the gin context key holding validated Claims.
const ClaimsKey = "claims"

// Verifier checks admin tokens. Now must be the clock tokens are issued
// with; nil means the wall clock.
type Verifier struct {
	SigningKey string
	Issuer     string
	Now        func() time.Time
}

// Verify parses token and requires the admin role.
func (v Verifier) Verify(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}
	claims, err := Parse(token, v.SigningKey, v.Issuer, v.Now)
	if err != nil || claims.Role != RoleAdmin {
		return Claims{}, false
	}
	return claims, true
}

// FromRequest finds an admin token in the session or the Authorization
// header and validates it. Requires the sessions middleware.
func (v Verifier) FromRequest(c *gin.Context) (Claims, bool) {
	if tok, _ := sessions.Default(c).Get(SessionTokenKey).(string); tok != "" {
		if claims, ok := v.Verify(tok); ok {
			return claims, true
		}
	}
	return v.Verify(bearer(c))
}

// RequireAdmin sends browsers without a valid token to loginPath.
func RequireAdmin(v Verifier, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := v.FromRequest(c)
		if !ok {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// BearerAuth enforces bearer JWT tokens signed with HS256 for JSON clients.
func BearerAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, ok := v.Verify(tok)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// CurrentAdmin returns the subject of the validated claims.
func CurrentAdmin(c *gin.Context) string {
	claims, _ := c.MustGet(ClaimsKey).(Claims)
	return claims.Subject
}

func bearer(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
