package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/nodeweave/db"
	"github.com/deemkeen/nodeweave/federation"
	"github.com/deemkeen/nodeweave/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testBase = "http://local.example"

type testServer struct {
	srv    *Server
	router *gin.Engine
	db     *db.DB
	fed    *federation.Service
}

func newTestServer(t *testing.T, tweak ...func(*util.AppConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations())
	t.Cleanup(func() { database.Close() })

	conf := &util.AppConfig{}
	conf.Conf.BaseUrl = testBase
	conf.Conf.Node.Username = "local"
	conf.Conf.Node.Password = "local-secret"
	conf.Conf.Stream.PageSize = 5
	conf.Conf.Stream.MaxPageSize = 50
	for _, f := range tweak {
		f(conf)
	}

	fed, err := federation.New(database, federation.Config{
		BaseURL:     conf.Conf.BaseUrl,
		Credentials: federation.Credentials{Username: conf.Conf.Node.Username, Password: conf.Conf.Node.Password},
		Timeout:     2 * time.Second,
		Concurrency: 2,
		PageSize:    conf.Conf.Stream.PageSize,
		MaxPageSize: conf.Conf.Stream.MaxPageSize,
	})
	require.NoError(t, err)

	srv := NewServer(conf, database, fed, nil)
	return &testServer{srv: srv, router: srv.Router(), db: database, fed: fed}
}

type auth func(*http.Request)

func bearer(token string) auth {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func basic(user, pass string) auth {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, auths ...auth) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, a := range auths {
		a(req)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

type registered struct {
	Author federation.AuthorObject
	Token  string
}

// Serial is the last path segment of the author's FQID.
func (r registered) Serial() string {
	return r.Author.ID[strings.LastIndex(r.Author.ID, "/")+1:]
}

func (ts *testServer) register(t *testing.T, username string) registered {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "displayName": strings.ToUpper(username)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out registered
	decode(t, w, &out)
	require.NotEmpty(t, out.Token)
	return out
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func escaped(fqid string) string {
	return url.PathEscape(fqid)
}

// newPeer serves author documents the way another node would.
func newPeer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/authors/") || strings.Count(r.URL.Path, "/") != 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		serial := strings.TrimPrefix(r.URL.Path, "/api/authors/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(peerAuthor(srv.URL, serial))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func peerAuthor(base, serial string) federation.AuthorObject {
	return federation.AuthorObject{Type: "author", ID: base + "/api/authors/" + serial, Host: base + "/", DisplayName: serial}
}
