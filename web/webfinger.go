package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

// handleWebfinger maps acct:username@host to the author's FQID.
func (s *Server) handleWebfinger(c *gin.Context) {
	resource := c.Query("resource")
	if !strings.HasPrefix(resource, "acct:") {
		c.AbortWithStatusJSON(http.StatusNotFound, GetWebFingerNotFound())
		return
	}
	username, host, _ := strings.Cut(strings.TrimPrefix(resource, "acct:"), "@")
	if host != "" && !strings.EqualFold(host, s.webfingerHost()) {
		c.AbortWithStatusJSON(http.StatusNotFound, GetWebFingerNotFound())
		return
	}

	acc, err := s.store.ReadAccByUsername(c.Request.Context(), username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, GetWebFingerNotFound())
		return
	}
	author := s.fed.Directory.LocalAuthor(acc)
	c.JSON(http.StatusOK, webfingerResponse{
		Subject: "acct:" + acc.Username + "@" + s.webfingerHost(),
		Links: []webfingerLink{
			{Rel: "self", Type: "application/json", Href: author.ID},
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: author.Page},
		},
	})
}

func (s *Server) webfingerHost() string {
	u, err := url.Parse(s.fed.Classifier.Base())
	if err != nil {
		return ""
	}
	return u.Host
}

func GetWebFingerNotFound() gin.H {
	return gin.H{"detail": "Not Found"}
}
