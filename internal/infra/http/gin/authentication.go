package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "ecoexchange.principal"

// principal is the authenticated caller as resolved by the identity
// collaborator. This service never validates credentials itself; the identity
// layer in front of it asserts who the caller is.
type principal struct {
	ID   string
	Name string
}

// IdentityMiddleware lifts the identity assertion headers set by the upstream
// session layer into a principal. Requests without an identity pass through
// anonymous; handlers that need a caller reject them.
type IdentityMiddleware struct{}

func (m IdentityMiddleware) Handle(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if id == "" {
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:   id,
		Name: strings.TrimSpace(c.GetHeader("X-User-Name")),
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return principal{}, false
	}
	p, ok := v.(principal)
	if !ok || p.ID == "" {
		return principal{}, false
	}
	return p, true
}
