package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handlePush files an object pushed by an authenticated peer.
func (s *Server) handlePush(verb federation.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := s.author(c)
		if !ok {
			return
		}
		s.receive(c, acc, verb)
	}
}

func (s *Server) receive(c *gin.Context, owner *domain.Account, verb federation.Verb) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	report, err := s.fed.Inbox.Receive(c.Request.Context(), middleware.Node(c), owner.Id, verb, body)
	if err != nil {
		if node := middleware.Node(c); node != nil {
			s.logger.Warn("Refused push", "node", node.Host, "owner", owner.Id, "verb", verb, "err", err)
		}
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if verb == federation.VerbCreate {
		status = http.StatusCreated
	}
	c.JSON(status, report)
}

// handleInboxDelete is a delete push when a peer calls it and clears the
// inbox when its owner does.
func (s *Server) handleInboxDelete(c *gin.Context) {
	acc, ok := s.author(c)
	if !ok {
		return
	}
	if middleware.Node(c) != nil {
		s.receive(c, acc, federation.VerbDelete)
		return
	}

	viewer := middleware.Account(c)
	if viewer == nil {
		c.Header("WWW-Authenticate", `Bearer realm="authors"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if viewer.Id != acc.Id {
		abortWithError(c, domain.ErrForbidden)
		return
	}
	if err := s.store.ClearInbox(c.Request.Context(), acc.Id); err != nil {
		abortWithError(c, err)
		return
	}
	s.logger.Info("Cleared inbox", "owner", acc.Username)
	c.Status(http.StatusNoContent)
}

type inboxEntry struct {
	Id          uuid.UUID          `json:"id"`
	Kind        domain.ContentKind `json:"kind"`
	CanonicalId string             `json:"canonical_id"`
	Status      domain.PostStatus  `json:"status,omitempty"`
	LocalId     *uuid.UUID         `json:"local_id,omitempty"`
	Object      json.RawMessage    `json:"object,omitempty"`
	ReceivedAt  time.Time          `json:"received_at"`
}

type inboxPage struct {
	Type       string       `json:"type"`
	Author     string       `json:"author"`
	PageNumber int          `json:"page_number"`
	Size       int          `json:"size"`
	Count      int          `json:"count"`
	Items      []inboxEntry `json:"items"`
}

func (s *Server) handleReadInbox(c *gin.Context) {
	acc, ok := s.owner(c)
	if !ok {
		return
	}
	page, size := s.pageParams(c)
	items, total, err := s.store.ReadInboxItems(c.Request.Context(), acc.Id, size, (page-1)*size)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := inboxPage{
		Type:       "inbox",
		Author:     s.fed.Directory.AuthorFQID(acc.Id),
		PageNumber: page,
		Size:       size,
		Count:      total,
		Items:      make([]inboxEntry, 0, len(items)),
	}
	for _, item := range items {
		out.Items = append(out.Items, s.renderInboxItem(c, acc, item))
	}
	c.JSON(http.StatusOK, out)
}

// renderInboxItem renders an item for the inbox owner. Snapshots are shown as
// received; local posts are shown as they are now, and only while the owner
// may still see them.
func (s *Server) renderInboxItem(c *gin.Context, owner *domain.Account, item domain.InboxItem) inboxEntry {
	entry := inboxEntry{
		Id:          item.Id,
		Kind:        item.Kind(),
		CanonicalId: item.CanonicalId,
		Status:      item.Status,
		ReceivedAt:  item.CreatedAt,
	}
	switch content := item.Content.(type) {
	case domain.RemoteSnapshot:
		entry.Object = content.Payload
	case domain.Materialized:
		id := content.ObjectId
		entry.LocalId = &id
		if content.Kind == domain.KindPost {
			entry.Object = s.localPostJSON(c, owner, id)
		}
	}
	return entry
}

func (s *Server) localPostJSON(c *gin.Context, viewer *domain.Account, postId uuid.UUID) json.RawMessage {
	ctx := c.Request.Context()
	post, err := s.store.ReadPostById(ctx, postId)
	if err != nil {
		s.logger.Warn("Could not load inbox post", "post", postId, "err", err)
		return nil
	}
	if ok, err := s.mayView(ctx, viewer, post); err != nil || !ok {
		if err != nil {
			s.logger.Warn("Could not check inbox post visibility", "post", postId, "err", err)
		}
		return nil
	}
	author, err := s.store.ReadAccById(ctx, post.AuthorId)
	if err != nil {
		s.logger.Warn("Could not load inbox post author", "post", postId, "err", err)
		return nil
	}
	buf, err := json.Marshal(s.fed.Directory.LocalPost(post, author))
	if err != nil {
		s.logger.Error("Could not encode inbox post", "post", postId, "err", err)
		return nil
	}
	return buf
}

// pageParams reads ?page= and ?size=, applying the stream page limits.
func (s *Server) pageParams(c *gin.Context) (int, int) {
	page := ParsePageParam(c.Query("page"))
	if page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.Query("size"))
	if err != nil || size < 1 {
		size = s.conf.Conf.Stream.PageSize
	}
	if limit := s.conf.Conf.Stream.MaxPageSize; limit > 0 && size > limit {
		size = limit
	}
	if size < 1 {
		size = 5
	}
	return page, size
}
