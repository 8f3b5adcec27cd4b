package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"golang.org/x/crypto/bcrypt"
)

type TrustStore interface {
	CreateNode(ctx context.Context, n *domain.Node) error
	UpdateNodeAuthorized(ctx context.Context, host string, authorized bool) error
	ReadNodeByHost(ctx context.Context, host string) (*domain.Node, error)
	ReadNodeByUsername(ctx context.Context, username string) (*domain.Node, error)
	ReadNodes(ctx context.Context) ([]domain.Node, error)
}

// Credentials are what this node presents to peers.
type Credentials struct {
	Username string
	Password string
}

// TrustGate decides which peers may talk to this node and which peers this
// node talks to. A node record doubles as the peer's login on this node.
type TrustGate struct {
	store      TrustStore
	classifier fqid.HostClassifier
	outbound   Credentials
	hashCost   int
	logger     *log.Logger
}

func NewTrustGate(store TrustStore, classifier fqid.HostClassifier, outbound Credentials) *TrustGate {
	return &TrustGate{
		store:      store,
		classifier: classifier,
		outbound:   outbound,
		hashCost:   bcrypt.DefaultCost,
		logger:     log.WithPrefix("Trust"),
	}
}

// AuthorizeOutbound returns the credentials to present to host, or
// ErrForbidden when the host is unknown or not authorized.
func (g *TrustGate) AuthorizeOutbound(ctx context.Context, host string) (Credentials, error) {
	h, err := fqid.NormalizeHost(host)
	if err != nil {
		return Credentials{}, err
	}
	if g.classifier.Classify(h) == fqid.Local {
		return g.outbound, nil
	}
	node, err := g.store.ReadNodeByHost(ctx, h)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Credentials{}, fmt.Errorf("%w: %s", domain.ErrForbidden, h)
		}
		return Credentials{}, err
	}
	if !node.Authorized {
		return Credentials{}, fmt.Errorf("%w: %s", domain.ErrForbidden, h)
	}
	return g.outbound, nil
}

// AuthorizeInbound checks the Basic credentials of an incoming peer request.
func (g *TrustGate) AuthorizeInbound(ctx context.Context, username, password string) (*domain.Node, bool) {
	if username == "" {
		return nil, false
	}
	node, err := g.store.ReadNodeByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Error("Failed to read node", "username", username, "err", err)
		}
		return nil, false
	}
	if !node.Authorized {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(node.PasswordHash), []byte(password)) != nil {
		return nil, false
	}
	return node, true
}

// Trusts reports whether content originating at host is still accepted.
// This node always trusts itself.
func (g *TrustGate) Trusts(ctx context.Context, host string) bool {
	_, err := g.AuthorizeOutbound(ctx, host)
	return err == nil
}

// Vouches checks that peer may speak for content originating at origin:
// the origin is this node or the peer's own host.
func (g *TrustGate) Vouches(peer *domain.Node, origin string) error {
	h, err := fqid.NormalizeHost(origin)
	if err != nil {
		return err
	}
	if g.classifier.Classify(h) == fqid.Local {
		return nil
	}
	if peer == nil || peer.Host != h {
		return fmt.Errorf("%w: %s does not speak for %s", domain.ErrForbidden, peerHost(peer), h)
	}
	return nil
}

func peerHost(peer *domain.Node) string {
	if peer == nil {
		return "anonymous peer"
	}
	return peer.Host
}

// RegisterNode stores a peer. The password is what the peer will present.
func (g *TrustGate) RegisterNode(ctx context.Context, host, username, password string, authorized bool) (*domain.Node, error) {
	h, err := fqid.NormalizeHost(host)
	if err != nil {
		return nil, err
	}
	if g.classifier.Classify(h) == fqid.Local {
		return nil, fmt.Errorf("%w: %s is this node", domain.ErrInvalidPayload, h)
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: node username and password are required", domain.ErrInvalidPayload)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.hashCost)
	if err != nil {
		return nil, err
	}
	node := &domain.Node{
		Host:         h,
		Username:     username,
		PasswordHash: string(hash),
		Authorized:   authorized,
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	g.logger.Info("Registered node", "host", h, "authorized", authorized)
	return node, nil
}

func (g *TrustGate) SetAuthorized(ctx context.Context, host string, authorized bool) error {
	h, err := fqid.NormalizeHost(host)
	if err != nil {
		return err
	}
	if err := g.store.UpdateNodeAuthorized(ctx, h, authorized); err != nil {
		return err
	}
	g.logger.Info("Changed node authorization", "host", h, "authorized", authorized)
	return nil
}

func (g *TrustGate) Nodes(ctx context.Context) ([]domain.Node, error) {
	return g.store.ReadNodes(ctx)
}
