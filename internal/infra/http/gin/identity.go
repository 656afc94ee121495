package ginserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/middleware"
)

const (
	principalContextKey = "roomstay.principal"

	headerUserID        = "X-User-ID"
	headerUserRoles     = "X-User-Roles"
	headerCallbackToken = "X-Callback-Token"

	callbackPrincipalID = "payments-callback"
)

// Identity turns the headers set by the upstream identity gateway into a
// principal. A request carrying the configured callback token is treated as
// the payment gateway itself.
type Identity struct {
	CallbackToken string
}

func (m Identity) Handle(c *gin.Context) {
	if m.CallbackToken != "" {
		if token := c.GetHeader(headerCallbackToken); token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(m.CallbackToken)) == 1 {
			setPrincipal(c, middleware.Principal{ID: callbackPrincipalID, Roles: []string{middleware.RoleSystem}})
			c.Next()
			return
		}
	}
	id := strings.TrimSpace(c.GetHeader(headerUserID))
	if id == "" {
		c.Next()
		return
	}
	setPrincipal(c, middleware.Principal{ID: id, Roles: parseRoles(c.GetHeader(headerUserRoles))})
	c.Next()
}

// parseRoles drops the system role; it is only granted through the callback token.
func parseRoles(header string) []string {
	var roles []string
	for _, r := range strings.Split(header, ",") {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" || r == middleware.RoleSystem {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}

func setPrincipal(c *gin.Context, p middleware.Principal) {
	c.Set(principalContextKey, p)
	c.Request = c.Request.WithContext(middleware.WithPrincipal(c.Request.Context(), p))
}

func currentPrincipal(c *gin.Context) (middleware.Principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return middleware.Principal{}, false
	}
	p, ok := val.(middleware.Principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (middleware.Principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return middleware.Principal{}, false
	}
	if role != "" && !p.HasRole(role) && !p.HasRole(middleware.RoleSystem) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return middleware.Principal{}, false
	}
	return p, true
}

func isOperator(p middleware.Principal) bool {
	return p.HasRole(middleware.RoleOperator)
}
