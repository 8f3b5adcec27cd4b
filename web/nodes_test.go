package web

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeAdmin(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.register(t, "admin")
	bob := ts.register(t, "bob")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/nodes", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/nodes", nil, bearer(bob.Token)).Code)

	trustNode(t, ts, admin, "http://peer.example", "peer", "secret")
	w := ts.do(t, http.MethodPost, "/api/nodes", gin.H{"host": "http://peer.example:80", "username": "other", "password": "x"}, bearer(admin.Token))
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPost, "/api/nodes", gin.H{"host": testBase, "username": "self", "password": "x"}, bearer(admin.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPost, "/api/nodes", gin.H{"host": "http://peer2.example"}, bearer(admin.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/nodes", nil, bearer(admin.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	var list struct {
		Items []nodeView `json:"items"`
	}
	decode(t, w, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "peer", list.Items[0].Username)
	assert.True(t, list.Items[0].Authorized)

	w = ts.do(t, http.MethodPut, "/api/nodes/authorization", gin.H{"host": "http://peer.example", "authorized": false}, bearer(admin.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, ts.do(t, http.MethodGet, "/api/nodes", nil, bearer(admin.Token)), &list)
	assert.False(t, list.Items[0].Authorized)

	w = ts.do(t, http.MethodPut, "/api/nodes/authorization", gin.H{"host": "http://nowhere.example", "authorized": true}, bearer(admin.Token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeauthorizedNodeCannotPush(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	peer := newPeer(t)
	trustNode(t, ts, alice, peer.URL, "peer", "peer-secret")
	inbox := "/api/authors/" + alice.Serial() + "/inbox"

	w := ts.do(t, http.MethodPut, "/api/nodes/authorization", gin.H{"host": peer.URL, "authorized": false}, bearer(alice.Token))
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, inbox, remotePost(peer.URL, "zed", "p1", "PUBLIC"), basic("peer", "peer-secret"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.register(t, "admin")

	// no sink configured
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/metrics", nil, bearer(admin.Token)).Code)

	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	sink.IncrCounter([]string{"inbox", "received"}, 1)
	ts.router = NewServer(ts.srv.conf, ts.db, ts.fed, sink).Router()

	w := ts.do(t, http.MethodGet, "/api/metrics", nil, bearer(admin.Token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inbox.received")
}
