package web

import (
	"net/http"

	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/middleware"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleStream(scope federation.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := federation.Viewer{Account: middleware.Account(c)}
		page, size := s.pageParams(c)
		out, err := s.fed.Stream.Build(c.Request.Context(), viewer, scope, page, size)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
