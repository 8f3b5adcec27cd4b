package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/util"
	"github.com/gin-gonic/gin"
)

const accountKey = "account"

type AccountStore interface {
	ReadAccByTokenHash(ctx context.Context, tokenHash string) (*domain.Account, error)
}

// AuthorMiddleware resolves a bearer token to a local account. Requests
// without a token pass through anonymously unless required is set; a token
// that matches nobody is always rejected.
func AuthorMiddleware(store AccountStore, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			if required {
				unauthorized(c, `Bearer realm="authors"`)
				return
			}
			c.Next()
			return
		}

		acc, err := store.ReadAccByTokenHash(c.Request.Context(), util.TokenHash(token))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error("Failed to read account by token", "err", err)
			}
			unauthorized(c, `Bearer realm="authors"`)
			return
		}
		c.Set(accountKey, acc)
		c.Next()
	}
}

// StaffOnly must run after AuthorMiddleware.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc := Account(c)
		if acc == nil || !acc.IsStaff {
			forbidden(c)
			return
		}
		c.Next()
	}
}

// Account returns the authenticated author, or nil.
func Account(c *gin.Context) *domain.Account {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil
	}
	acc, _ := v.(*domain.Account)
	return acc
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, challenge string) {
	c.Header("WWW-Authenticate", challenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
