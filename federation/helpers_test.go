package federation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/nodeweave/db"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testBase = "http://local.example"

func setupService(t *testing.T) (*Service, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations())
	t.Cleanup(func() { database.Close() })

	svc, err := New(database, Config{
		BaseURL:     testBase,
		Credentials: Credentials{Username: "local", Password: "local-secret"},
		Timeout:     2 * time.Second,
		Concurrency: 4,
		PageSize:    5,
		MaxPageSize: 100,
	})
	require.NoError(t, err)
	svc.Gate.hashCost = bcrypt.MinCost
	return svc, database
}

func createAccount(t *testing.T, database *db.DB, username string) *domain.Account {
	t.Helper()
	acc := &domain.Account{Username: username, DisplayName: strings.ToUpper(username[:1]) + username[1:]}
	require.NoError(t, database.CreateAccount(context.Background(), acc))
	return acc
}

type push struct {
	Method string
	Path   string
	User   string
	Pass   string
	Body   []byte
}

// fakePeer stands in for another node.
type fakePeer struct {
	srv *httptest.Server

	mu             sync.Mutex
	pushes         []push
	inboxStatus    int
	followerStatus int
	followers      map[string]bool
	posts          map[string]PostObject
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()
	p := &fakePeer{
		inboxStatus: http.StatusCreated,
		followers:   map[string]bool{},
		posts:       map[string]PostObject{},
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePeer) URL() string {
	return p.srv.URL
}

func (p *fakePeer) AuthorID(serial string) string {
	return p.srv.URL + "/api/authors/" + serial
}

func (p *fakePeer) Author(serial string) AuthorObject {
	return AuthorObject{Type: "author", ID: p.AuthorID(serial), Host: p.srv.URL + "/", DisplayName: serial}
}

func (p *fakePeer) Post(author, serial, vis string, published time.Time) PostObject {
	return PostObject{
		Type:        "post",
		ID:          p.AuthorID(author) + "/posts/" + serial,
		Title:       "post " + serial,
		ContentType: "text/plain",
		Content:     "content of " + serial,
		Author:      p.Author(author),
		Published:   NewTimestamp(published),
		Visibility:  vis,
	}
}

func (p *fakePeer) Serve(post PostObject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts[strings.TrimPrefix(post.ID, p.srv.URL)] = post
}

func (p *fakePeer) SetFollower(recipient, follower string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followers[recipient+"|"+follower] = true
}

// SetFollowerStatus makes every follower check answer code.
func (p *fakePeer) SetFollowerStatus(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followerStatus = code
}

func (p *fakePeer) SetInboxStatus(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inboxStatus = code
}

func (p *fakePeer) Pushes() []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]push(nil), p.pushes...)
}

func (p *fakePeer) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/inbox"):
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		p.pushes = append(p.pushes, push{Method: r.Method, Path: path, User: user, Pass: pass, Body: body})
		w.WriteHeader(p.inboxStatus)

	case strings.Contains(path, "/followers/"):
		if p.followerStatus != 0 {
			w.WriteHeader(p.followerStatus)
			return
		}
		idx := strings.Index(path, "/followers/")
		recipient := p.srv.URL + path[:idx]
		follower := path[idx+len("/followers/"):]
		if p.followers[recipient+"|"+follower] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)

	case strings.Contains(path, "/posts/"):
		post, ok := p.posts[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(post)

	case strings.HasPrefix(path, "/api/authors/"):
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Author(strings.TrimPrefix(path, "/api/authors/")))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// trustPeer registers p as an authorized node.
func trustPeer(t *testing.T, svc *Service, p *fakePeer) *domain.Node {
	t.Helper()
	node, err := svc.Gate.RegisterNode(context.Background(), p.URL(), "peer-"+strings.TrimPrefix(p.URL(), "http://"), "peer-secret", true)
	require.NoError(t, err)
	return node
}

func inboxOf(t *testing.T, database *db.DB, owner *domain.Account) []domain.InboxItem {
	t.Helper()
	items, _, err := database.ReadInboxItems(context.Background(), owner.Id, 100, 0)
	require.NoError(t, err)
	return items
}

func postStatuses(t *testing.T, database *db.DB, owner *domain.Account, canonical string) []domain.PostStatus {
	t.Helper()
	items, err := database.ReadInboxItemsFor(context.Background(), owner.Id, canonical, domain.KindPost)
	require.NoError(t, err)
	statuses := make([]domain.PostStatus, len(items))
	for i, it := range items {
		statuses[i] = it.Status
	}
	return statuses
}

func nullID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: true}
}
