package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type nodeView struct {
	Host       string    `json:"host"`
	Username   string    `json:"username"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleNodes(c *gin.Context) {
	nodes, err := s.fed.Gate.Nodes(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{Host: n.Host, Username: n.Username, Authorized: n.Authorized, CreatedAt: n.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"type": "nodes", "items": out})
}

type registerNodeRequest struct {
	Host       string `json:"host" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Authorized *bool  `json:"authorized"`
}

// handleRegisterNode stores the credentials a peer will present to this
// node. New nodes are authorized unless the request says otherwise.
func (s *Server) handleRegisterNode(c *gin.Context) {
	var req registerNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	authorized := req.Authorized == nil || *req.Authorized
	n, err := s.fed.Gate.RegisterNode(c.Request.Context(), req.Host, req.Username, req.Password, authorized)
	if err != nil {
		abortWithError(c, err)
		return
	}
	created(c, nodeView{Host: n.Host, Username: n.Username, Authorized: n.Authorized, CreatedAt: n.CreatedAt})
}

type authorizeNodeRequest struct {
	Host       string `json:"host" binding:"required"`
	Authorized bool   `json:"authorized"`
}

func (s *Server) handleAuthorizeNode(c *gin.Context) {
	var req authorizeNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.fed.Gate.SetAuthorized(c.Request.Context(), req.Host, req.Authorized); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"host": req.Host, "authorized": req.Authorized})
}

func (s *Server) handleMetrics(c *gin.Context) {
	if s.sink == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	summary, err := s.sink.DisplayMetrics(c.Writer, c.Request)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
