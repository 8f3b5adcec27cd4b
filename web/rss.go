package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/util"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/gorilla/feeds"
)

// rssLimit caps the number of items in the feed.
const rssLimit = 50

// GetRSS renders the public stream as seen by an anonymous visitor.
func GetRSS(ctx context.Context, conf *util.AppConfig, stream *federation.Aggregator) (string, error) {
	items, err := stream.Collect(ctx, federation.Viewer{}, federation.ScopePublic)
	if err != nil {
		return "", err
	}
	if len(items) > rssLimit {
		items = items[:rssLimit]
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s public stream", util.Name),
		Link:        &feeds.Link{Href: conf.Conf.BaseUrl + "/api/stream/public.rss"},
		Description: fmt.Sprintf("Public posts seen by %s", conf.Conf.BaseUrl),
		Author:      &feeds.Author{Name: util.Name},
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, item := range items {
		link := item.Page
		if link == "" {
			link = item.ID
		}
		content := item.Content
		if item.ContentType != "" && item.ContentType != "text/plain" && item.ContentType != "text/markdown" {
			// binary content is only linked
			content = ""
		}
		title := item.Title
		if item.SharedBy != nil {
			title = fmt.Sprintf("%s (shared by %s)", title, item.SharedBy.DisplayName)
		}
		feedItems = append(feedItems,
			&feeds.Item{
				Id:          item.ID,
				Title:       title,
				Link:        &feeds.Link{Href: link},
				Description: item.Description,
				Content:     content,
				Author:      &feeds.Author{Name: item.Author.DisplayName},
				Created:     item.Published.Time,
			})
	}

	feed.Items = feedItems
	return feed.ToRss()
}

func (s *Server) handleRSS(c *gin.Context) {
	c.Header("Content-Type", "application/xml; charset=utf-8")
	rss, err := GetRSS(c.Request.Context(), s.conf, s.fed.Stream)
	if err != nil {
		s.logger.Error("Could not render public feed", "err", err)
		c.Render(http.StatusInternalServerError, render.String{Format: ""})
		return
	}
	c.Render(http.StatusOK, render.String{Format: rss})
}
