package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/middleware"
	"github.com/deemkeen/nodeweave/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"golang.org/x/time/rate"
)

// Store is what the HTTP layer reads and writes directly; everything
// federated goes through the federation service.
type Store interface {
	middleware.AccountStore
	ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReadAccByUsername(ctx context.Context, username string) (*domain.Account, error)
	CreateFirstAccount(ctx context.Context, acc *domain.Account) error
	ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ReadCommentsByPost(ctx context.Context, postId uuid.UUID) ([]domain.Comment, error)
	CountLikes(ctx context.Context, objectFQID string) (int, error)
	ReadInboxItems(ctx context.Context, owner uuid.UUID, limit, offset int) ([]domain.InboxItem, int, error)
	ClearInbox(ctx context.Context, owner uuid.UUID) error
	ReadFollowRequestsFor(ctx context.Context, target uuid.UUID) ([]domain.FollowRequest, error)
}

type Server struct {
	conf   *util.AppConfig
	store  Store
	fed    *federation.Service
	sink   *metrics.InmemSink
	logger *log.Logger

	Limiter      *RateLimiter
	InboxLimiter *RateLimiter
}

// NewServer builds the HTTP front of a node. sink may be nil, in which case
// the metrics endpoint answers 404.
func NewServer(conf *util.AppConfig, store Store, fed *federation.Service, sink *metrics.InmemSink) *Server {
	limits := conf.Conf.Limits
	return &Server{
		conf:         conf,
		store:        store,
		fed:          fed,
		sink:         sink,
		logger:       log.WithPrefix("Web"),
		Limiter:      NewRateLimiter(limitOf(limits.RequestsPerSecond), limits.Burst),
		InboxLimiter: NewRateLimiter(limitOf(limits.InboxPerSecond), limits.InboxBurst),
	}
}

func (s *Server) Router() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(s.logger))
	g.Use(gzip.Gzip(gzip.DefaultCompression))
	g.Use(middleware.SecurityHeadersMiddleware())
	g.Use(RateLimitMiddleware(s.Limiter))

	// FQIDs travel percent-encoded inside single path segments
	g.UseRawPath = true
	g.UnescapePathValues = true

	maxBody := MaxBytesMiddleware(s.conf.MaxBodyBytes())
	optionalAuthor := middleware.AuthorMiddleware(s.store, false)
	author := middleware.AuthorMiddleware(s.store, true)
	optionalNode := middleware.NodeMiddleware(s.fed.Gate, false)
	node := middleware.NodeMiddleware(s.fed.Gate, true)
	staff := middleware.StaffOnly()
	inboxLimit := RateLimitMiddleware(s.InboxLimiter)

	g.GET("/.well-known/webfinger", s.handleWebfinger)

	api := g.Group("/api")
	api.POST("/register", maxBody, s.handleRegister)

	// authors, readable by peers and authors alike
	authors := api.Group("/authors/:serial", optionalNode, optionalAuthor)
	authors.GET("", s.handleGetAuthor)
	authors.GET("/followers", s.handleFollowers)
	authors.GET("/followers/:fqid", s.handleFollowerCheck)
	authors.GET("/following", s.handleFollowing)
	authors.GET("/friends", s.handleFriends)
	authors.GET("/posts/:post", s.handleGetPost)
	authors.GET("/posts/:post/comments", s.handleComments)
	authors.GET("/posts/:post/likes", s.handleLikes)

	// local writes
	api.POST("/authors/:serial/posts", author, maxBody, s.handleCreatePost)
	api.PUT("/authors/:serial/posts/:post", author, maxBody, s.handleUpdatePost)
	api.DELETE("/authors/:serial/posts/:post", author, s.handleDeletePost)
	api.POST("/comments", author, maxBody, s.handleComment)
	api.POST("/likes", author, maxBody, s.handleLike)
	api.POST("/shares", author, maxBody, s.handleShare)
	api.POST("/follows", author, maxBody, s.handleFollow)
	api.DELETE("/follows", author, maxBody, s.handleUnfollow)
	api.GET("/follow-requests", author, s.handleFollowRequests)
	api.POST("/follow-requests/:id/accept", author, s.handleAcceptFollow)
	api.DELETE("/follow-requests/:id", author, s.handleRejectFollow)

	// inbox: peers push, the owner reads and clears
	api.POST("/authors/:serial/inbox", inboxLimit, node, maxBody, s.handlePush(federation.VerbCreate))
	api.PUT("/authors/:serial/inbox", inboxLimit, node, maxBody, s.handlePush(federation.VerbUpdate))
	api.DELETE("/authors/:serial/inbox", inboxLimit, optionalNode, optionalAuthor, maxBody, s.handleInboxDelete)
	api.GET("/authors/:serial/inbox", author, s.handleReadInbox)

	api.GET("/stream/public", optionalAuthor, s.handleStream(federation.ScopePublic))
	api.GET("/stream/public.rss", s.handleRSS)
	api.GET("/stream", optionalAuthor, s.handleStream(federation.ScopeAuthenticatedOwn))

	admin := api.Group("", author, staff)
	admin.GET("/nodes", s.handleNodes)
	admin.POST("/nodes", maxBody, s.handleRegisterNode)
	admin.PUT("/nodes/authorization", maxBody, s.handleAuthorizeNode)
	admin.GET("/metrics", s.handleMetrics)

	return g
}

// limitOf treats a non-positive rate as no limit.
func limitOf(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("Request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "ip", c.ClientIP())
	}
}

// author resolves the :serial parameter to a local account.
func (s *Server) author(c *gin.Context) (*domain.Account, bool) {
	id, err := uuid.Parse(c.Param("serial"))
	if err != nil {
		abortWithError(c, domain.ErrNotFound)
		return nil, false
	}
	acc, err := s.store.ReadAccById(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return acc, true
}

// owner resolves :serial and requires it to be the authenticated author.
func (s *Server) owner(c *gin.Context) (*domain.Account, bool) {
	acc, ok := s.author(c)
	if !ok {
		return nil, false
	}
	viewer := middleware.Account(c)
	if viewer == nil || viewer.Id != acc.Id {
		abortWithError(c, domain.ErrForbidden)
		return nil, false
	}
	return viewer, true
}

// ParsePageParam extracts the page parameter from a query string
func ParsePageParam(pageStr string) int {
	if pageStr == "" {
		return 0
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 0 {
		return 0
	}
	return page
}

func created(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}
