package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"checkin/internal/model"
	"checkin/internal/permissions"
)

const (
	identityKey     = "identity"
	capabilitiesKey = "capabilities"
)

// Profiles loads the account behind an identity.
type Profiles interface {
	EnsureUser(ctx context.Context, email, displayName string) (model.User, error)
	Capabilities(ctx context.Context, email string) (permissions.Capabilities, error)
}

// Authenticate enforces bearer tokens, makes sure a profile exists and stores
// the caller's identity and capabilities on the context.
func Authenticate(dir Directory, profiles Profiles) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		id, err := dir.Resolve(c.Request.Context(), tokenStr)
		if err != nil || !id.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if _, err := profiles.EnsureUser(c.Request.Context(), id.Email, id.Name); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "try again"})
			return
		}
		caps, err := profiles.Capabilities(c.Request.Context(), id.Email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "try again"})
			return
		}
		c.Set(identityKey, id)
		c.Set(capabilitiesKey, caps)
		c.Next()
	}
}

// RequirePermission rejects callers whose role lacks p.
func RequirePermission(p permissions.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		caps, ok := CapabilitiesFrom(c)
		if !ok || !caps.Has(p) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "permission": string(p)})
			return
		}
		c.Next()
	}
}

// RequirePrivileged rejects callers outside the privileged allow-list.
func RequirePrivileged(gate *permissions.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !gate.IsPrivileged(id.Email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireUserManager admits privileged callers and callers whose role grants
// user management.
func RequireUserManager(gate *permissions.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := IdentityFrom(c); ok && gate.IsPrivileged(id.Email) {
			c.Next()
			return
		}
		if caps, ok := CapabilitiesFrom(c); ok && caps.CanManageUsers {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "permission": string(permissions.UserManagement)})
	}
}

// IdentityFrom returns the identity set by Authenticate.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// CapabilitiesFrom returns the capabilities set by Authenticate.
func CapabilitiesFrom(c *gin.Context) (permissions.Capabilities, bool) {
	v, ok := c.Get(capabilitiesKey)
	if !ok {
		return permissions.Capabilities{}, false
	}
	caps, ok := v.(permissions.Capabilities)
	return caps, ok
}
