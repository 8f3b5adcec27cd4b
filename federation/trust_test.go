package federation

import (
	"context"
	"testing"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeInbound(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Gate.RegisterNode(ctx, "http://peer.example:8000/", "peer", "hunter2", true)
	require.NoError(t, err)
	_, err = svc.Gate.RegisterNode(ctx, "http://blocked.example", "blocked", "hunter2", false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid", "peer", "hunter2", true},
		{"wrong password", "peer", "hunter3", false},
		{"unknown user", "nobody", "hunter2", false},
		{"empty user", "", "", false},
		{"not authorized", "blocked", "hunter2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, ok := svc.Gate.AuthorizeInbound(ctx, tt.username, tt.password)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "http://peer.example:8000", node.Host)
			}
		})
	}
}

func TestAuthorizeOutbound(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Gate.RegisterNode(ctx, "https://peer.example", "peer", "hunter2", true)
	require.NoError(t, err)

	creds, err := svc.Gate.AuthorizeOutbound(ctx, "https://PEER.example:443/api/authors/x")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "local", Password: "local-secret"}, creds)

	_, err = svc.Gate.AuthorizeOutbound(ctx, testBase+"/api/authors/me")
	require.NoError(t, err)
	assert.True(t, svc.Gate.Trusts(ctx, testBase))

	_, err = svc.Gate.AuthorizeOutbound(ctx, "http://peer.example")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Gate.AuthorizeOutbound(ctx, "not a host")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)

	require.NoError(t, svc.Gate.SetAuthorized(ctx, "https://peer.example", false))
	_, err = svc.Gate.AuthorizeOutbound(ctx, "https://peer.example")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.False(t, svc.Gate.Trusts(ctx, "https://peer.example"))

	require.NoError(t, svc.Gate.SetAuthorized(ctx, "https://peer.example", true))
	assert.True(t, svc.Gate.Trusts(ctx, "https://peer.example"))
}

func TestRegisterNode(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Gate.RegisterNode(ctx, testBase, "self", "pw", true)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = svc.Gate.RegisterNode(ctx, "http://peer.example", " ", "pw", true)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	node, err := svc.Gate.RegisterNode(ctx, "http://peer.example/", "peer", "pw", true)
	require.NoError(t, err)
	assert.NotEqual(t, "pw", node.PasswordHash)

	_, err = svc.Gate.RegisterNode(ctx, "http://peer.example", "peer2", "pw", true)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = svc.Gate.SetAuthorized(ctx, "http://unknown.example", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	nodes, err := svc.Gate.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "http://peer.example", nodes[0].Host)
}

func TestVouches(t *testing.T) {
	svc, _ := setupService(t)
	peer := &domain.Node{Host: "http://peer.example:8000", Username: "peer", Authorized: true}

	tests := []struct {
		name   string
		peer   *domain.Node
		origin string
		err    error
	}{
		{"own host", peer, "http://PEER.example:8000/api/authors/bob", nil},
		{"this node", peer, testBase + "/api/authors/alice", nil},
		{"another host", peer, "http://other.example/api/authors/carol", domain.ErrForbidden},
		{"same host other port", peer, "http://peer.example/api/authors/bob", domain.ErrForbidden},
		{"no peer", nil, "http://peer.example:8000/api/authors/bob", domain.ErrForbidden},
		{"no peer local origin", nil, testBase + "/api/authors/alice", nil},
		{"bad origin", peer, "::", domain.ErrInvalidIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Gate.Vouches(tt.peer, tt.origin)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
