package web

import (
	"net/http"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type postRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
	Visibility  string `json:"visibility"`
}

type postChangesRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ContentType *string `json:"contentType"`
	Content     *string `json:"content"`
	Visibility  *string `json:"visibility"`
}

type postResponse struct {
	Post     federation.PostObject     `json:"post"`
	Delivery federation.DeliveryReport `json:"delivery"`
}

func (s *Server) handleCreatePost(c *gin.Context) {
	acc, ok := s.owner(c)
	if !ok {
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}
	save := domain.SavePost{
		Title:       req.Title,
		Description: req.Description,
		ContentType: req.ContentType,
		Content:     req.Content,
	}
	if req.Visibility != "" {
		vis, err := domain.ParseVisibility(req.Visibility)
		if err != nil {
			abortWithError(c, err)
			return
		}
		save.Visibility = vis
	}

	post, report, err := s.fed.Outbox.CreatePost(c.Request.Context(), acc, save)
	if err != nil {
		abortWithError(c, err)
		return
	}
	created(c, postResponse{Post: s.fed.Directory.LocalPost(post, acc), Delivery: report})
}

func (s *Server) handleUpdatePost(c *gin.Context) {
	acc, ok := s.owner(c)
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post")
	if !ok {
		return
	}
	var req postChangesRequest
	if !bindJSON(c, &req) {
		return
	}
	changes := federation.PostChanges{
		Title:       req.Title,
		Description: req.Description,
		ContentType: req.ContentType,
		Content:     req.Content,
	}
	if req.Visibility != nil {
		vis, err := domain.ParseVisibility(*req.Visibility)
		if err != nil {
			abortWithError(c, err)
			return
		}
		changes.Visibility = &vis
	}

	post, report, err := s.fed.Outbox.UpdatePost(c.Request.Context(), acc, postId, changes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, postResponse{Post: s.fed.Directory.LocalPost(post, acc), Delivery: report})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	acc, ok := s.owner(c)
	if !ok {
		return
	}
	postId, ok := uuidParam(c, "post")
	if !ok {
		return
	}
	post, report, err := s.fed.Outbox.DeletePost(c.Request.Context(), acc, postId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, postResponse{Post: s.fed.Directory.LocalPost(post, acc), Delivery: report})
}

type commentRequest struct {
	Post        string `json:"post" binding:"required"`
	Comment     string `json:"comment" binding:"required"`
	ContentType string `json:"contentType"`
}

func (s *Server) handleComment(c *gin.Context) {
	acc := middleware.Account(c)
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, report, err := s.fed.Outbox.Comment(c.Request.Context(), acc, req.Post, req.Comment, req.ContentType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	created(c, gin.H{"comment": comment, "delivery": report})
}

type likeRequest struct {
	Object string `json:"object" binding:"required"`
}

func (s *Server) handleLike(c *gin.Context) {
	acc := middleware.Account(c)
	var req likeRequest
	if !bindJSON(c, &req) {
		return
	}
	like, report, err := s.fed.Outbox.Like(c.Request.Context(), acc, req.Object)
	if err != nil {
		abortWithError(c, err)
		return
	}
	created(c, gin.H{"like": like, "delivery": report})
}

type shareRequest struct {
	Post     string `json:"post" binding:"required"`
	Receiver string `json:"receiver"`
}

func (s *Server) handleShare(c *gin.Context) {
	acc := middleware.Account(c)
	var req shareRequest
	if !bindJSON(c, &req) {
		return
	}
	share, report, err := s.fed.Outbox.Share(c.Request.Context(), acc, req.Post, req.Receiver)
	if err != nil {
		abortWithError(c, err)
		return
	}
	created(c, gin.H{"share": share, "delivery": report})
}

type followRequest struct {
	Object string `json:"object" binding:"required"`
}

// handleFollow asks the target to accept the caller. A request the target's
// node refuses on trust grounds is reported as forbidden.
func (s *Server) handleFollow(c *gin.Context) {
	acc := middleware.Account(c)
	var req followRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := s.fed.Outbox.Follow(c.Request.Context(), acc, req.Object)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if report.IsForbidden() {
		abortWithError(c, domain.ErrForbidden)
		return
	}
	created(c, gin.H{"delivery": report})
}

func (s *Server) handleUnfollow(c *gin.Context) {
	acc := middleware.Account(c)
	var req followRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.fed.Outbox.Unfollow(c.Request.Context(), acc, req.Object); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type followRequestView struct {
	Id        uuid.UUID               `json:"id"`
	Actor     federation.AuthorObject `json:"actor"`
	Object    string                  `json:"object"`
	CreatedAt time.Time               `json:"created_at"`
}

func (s *Server) handleFollowRequests(c *gin.Context) {
	acc := middleware.Account(c)
	requests, err := s.store.ReadFollowRequestsFor(c.Request.Context(), acc.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]followRequestView, 0, len(requests))
	for _, r := range requests {
		out = append(out, followRequestView{
			Id:        r.Id,
			Actor:     decodeAuthor(r.ActorJSON, r.ActorFQID),
			Object:    s.fed.Directory.AuthorFQID(acc.Id),
			CreatedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"type": "follow-requests", "items": out})
}

type followView struct {
	Follower string `json:"follower"`
	Followee string `json:"followee"`
}

func (s *Server) handleAcceptFollow(c *gin.Context) {
	acc := middleware.Account(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	f, err := s.fed.Outbox.AcceptFollow(c.Request.Context(), acc, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, followView{Follower: s.refFQID(f.Follower()), Followee: s.refFQID(f.Followee())})
}

func (s *Server) handleRejectFollow(c *gin.Context) {
	acc := middleware.Account(c)
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := s.fed.Outbox.RejectFollow(c.Request.Context(), acc, id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, domain.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}
