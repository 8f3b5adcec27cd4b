package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/gin-gonic/gin"
)

const nodeKey = "node"

type NodeAuthenticator interface {
	AuthorizeInbound(ctx context.Context, username, password string) (*domain.Node, bool)
}

// NodeMiddleware authenticates peers by their Basic credentials. With
// required unset, requests that carry no Basic header pass through, but bad
// credentials are still refused. Peers are refused with a bare 403 so an
// unknown node and a revoked one look the same.
func NodeMiddleware(gate NodeAuthenticator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsBasic(c) {
			if required {
				forbidden(c)
				return
			}
			c.Next()
			return
		}

		username, password, _ := c.Request.BasicAuth()
		node, ok := gate.AuthorizeInbound(c.Request.Context(), username, password)
		if !ok {
			forbidden(c)
			return
		}
		c.Set(nodeKey, node)
		c.Next()
	}
}

// Node returns the authenticated peer, or nil.
func Node(c *gin.Context) *domain.Node {
	v, ok := c.Get(nodeKey)
	if !ok {
		return nil
	}
	node, _ := v.(*domain.Node)
	return node
}

// IsBasic reports whether the request carries Basic credentials.
func IsBasic(c *gin.Context) bool {
	scheme, _, _ := strings.Cut(c.GetHeader("Authorization"), " ")
	return strings.EqualFold(scheme, "Basic")
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}
