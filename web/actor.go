package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/deemkeen/nodeweave/middleware"
	"github.com/deemkeen/nodeweave/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type registerRequest struct {
	Username     string `json:"username" binding:"required"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
}

type registerResponse struct {
	Author federation.AuthorObject `json:"author"`
	Token  string                  `json:"token"`
}

// handleRegister creates a local author and hands out its bearer token. The
// first author on a node becomes staff.
func (s *Server) handleRegister(c *gin.Context) {
	if s.conf.Conf.Closed {
		abortWithError(c, domain.ErrForbidden)
		return
	}
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.ContainsAny(username, " /@") {
		abortWithError(c, fmt.Errorf("%w: invalid username", domain.ErrInvalidPayload))
		return
	}

	token, err := util.NewToken(32)
	if err != nil {
		abortWithError(c, err)
		return
	}
	acc := &domain.Account{
		Username:     username,
		DisplayName:  req.DisplayName,
		Github:       req.Github,
		ProfileImage: req.ProfileImage,
		TokenHash:    util.TokenHash(token),
	}
	if err := s.store.CreateFirstAccount(c.Request.Context(), acc); err != nil {
		abortWithError(c, err)
		return
	}
	s.logger.Info("Registered author", "username", acc.Username, "staff", acc.IsStaff)
	created(c, registerResponse{Author: s.fed.Directory.LocalAuthor(acc), Token: token})
}

func (s *Server) handleGetAuthor(c *gin.Context) {
	acc, ok := s.author(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.fed.Directory.LocalAuthor(acc))
}

type authorList struct {
	Type  string                    `json:"type"`
	Items []federation.AuthorObject `json:"items"`
}

func (s *Server) handleFollowers(c *gin.Context) {
	s.listAuthors(c, "followers", s.fed.Relationships.Followers)
}

func (s *Server) handleFollowing(c *gin.Context) {
	s.listAuthors(c, "following", s.fed.Relationships.Following)
}

func (s *Server) handleFriends(c *gin.Context) {
	s.listAuthors(c, "friends", s.fed.Relationships.Friends)
}

func (s *Server) listAuthors(c *gin.Context, kind string, list func(ctx context.Context, ref domain.ActorRef) ([]federation.AuthorObject, error)) {
	acc, ok := s.author(c)
	if !ok {
		return
	}
	items, err := list(c.Request.Context(), domain.LocalRef(acc.Id))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorList{Type: kind, Items: items})
}

// handleFollowerCheck answers 200 when the actor named by the :fqid segment
// follows the author, 404 otherwise.
func (s *Server) handleFollowerCheck(c *gin.Context) {
	acc, ok := s.author(c)
	if !ok {
		return
	}
	follower, err := s.fed.Directory.RefFor(c.Param("fqid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	following, err := s.fed.Relationships.IsFollowing(c.Request.Context(), follower, domain.LocalRef(acc.Id))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !following {
		abortWithError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "follower", "follower": follower.String(), "author": s.fed.Directory.AuthorFQID(acc.Id)})
}

// visiblePost loads :post of :serial if the caller may see it. FRIENDS posts
// are shown to authenticated peers, the author and the author's friends;
// DELETED posts only to the author and staff.
func (s *Server) visiblePost(c *gin.Context) (*domain.Post, *domain.Account, bool) {
	acc, ok := s.author(c)
	if !ok {
		return nil, nil, false
	}
	postId, err := uuid.Parse(c.Param("post"))
	if err != nil {
		abortWithError(c, domain.ErrNotFound)
		return nil, nil, false
	}
	post, err := s.store.ReadPostById(c.Request.Context(), postId)
	if err != nil {
		abortWithError(c, err)
		return nil, nil, false
	}
	if post.AuthorId != acc.Id {
		abortWithError(c, domain.ErrNotFound)
		return nil, nil, false
	}

	if post.Visibility == domain.VisibilityFriends && middleware.Node(c) != nil {
		return post, acc, true
	}
	ok, err = s.mayView(c.Request.Context(), middleware.Account(c), post)
	if err != nil {
		abortWithError(c, err)
		return nil, nil, false
	}
	if !ok {
		if post.Visibility == domain.VisibilityDeleted {
			abortWithError(c, domain.ErrNotFound)
		} else {
			abortWithError(c, domain.ErrForbidden)
		}
		return nil, nil, false
	}
	return post, acc, true
}

// mayView applies post visibility to a local viewer, who may be nil.
func (s *Server) mayView(ctx context.Context, viewer *domain.Account, post *domain.Post) (bool, error) {
	if viewer != nil && viewer.Id == post.AuthorId {
		return true, nil
	}
	switch post.Visibility {
	case domain.VisibilityDeleted:
		return viewer != nil && viewer.IsStaff, nil
	case domain.VisibilityFriends:
		if viewer == nil {
			return false, nil
		}
		return s.fed.Relationships.IsFriend(ctx, domain.LocalRef(viewer.Id), domain.LocalRef(post.AuthorId))
	}
	return true, nil
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, acc, ok := s.visiblePost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.fed.Directory.LocalPost(post, acc))
}

type commentList struct {
	Type  string                     `json:"type"`
	Post  string                     `json:"post"`
	Count int                        `json:"count"`
	Src   []federation.CommentObject `json:"src"`
}

func (s *Server) handleComments(c *gin.Context) {
	post, _, ok := s.visiblePost(c)
	if !ok {
		return
	}
	comments, err := s.store.ReadCommentsByPost(c.Request.Context(), post.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	postFQID := s.fed.Directory.PostFQID(post)
	base := s.fed.Classifier.Base()
	out := commentList{Type: "comments", Post: postFQID, Count: len(comments), Src: make([]federation.CommentObject, 0, len(comments))}
	for _, cm := range comments {
		author := decodeAuthor(cm.AuthorJSON, cm.AuthorFQID)
		out.Src = append(out.Src, federation.CommentObject{
			Type:        "comment",
			ID:          fqid.CommentID(base, post.AuthorId.String(), post.Id.String(), cm.Id.String()),
			Author:      author,
			Comment:     cm.Comment,
			ContentType: cm.ContentType,
			Published:   federation.NewTimestamp(cm.CreatedAt),
			Post:        postFQID,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLikes(c *gin.Context) {
	post, _, ok := s.visiblePost(c)
	if !ok {
		return
	}
	postFQID := s.fed.Directory.PostFQID(post)
	count, err := s.store.CountLikes(c.Request.Context(), postFQID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "likes", "object": postFQID, "count": count})
}

// decodeAuthor reads a stored author snapshot, falling back to the bare FQID.
func decodeAuthor(raw, id string) federation.AuthorObject {
	var author federation.AuthorObject
	if err := json.Unmarshal([]byte(raw), &author); err != nil || author.ID == "" {
		return federation.AuthorObject{Type: "author", ID: id}
	}
	return author
}

func (s *Server) refFQID(ref domain.ActorRef) string {
	if ref.IsLocal() {
		return s.fed.Directory.AuthorFQID(ref.LocalId)
	}
	return ref.RemoteId
}
