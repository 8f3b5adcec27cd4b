// Package federation moves authors, posts and reactions between this node and
// its peers.
package federation

import (
	"time"

	"github.com/deemkeen/nodeweave/fqid"
	"github.com/hashicorp/go-metrics"
)

// Store is everything the federation layer needs from persistence.
type Store interface {
	TrustStore
	DirectoryStore
	EngineStore
	FollowStore
	StreamStore
	OutboxStore
	InboundStore
}

type Config struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	Concurrency int
	PageSize    int
	MaxPageSize int
	MetricSink  metrics.MetricSink
}

// Service wires the federation components around one store.
type Service struct {
	Classifier    fqid.HostClassifier
	Gate          *TrustGate
	Client        *PeerClient
	Directory     *Directory
	Relationships *Relationships
	Engine        *Engine
	Outbox        *Outbox
	Inbox         *Inbox
	Stream        *Aggregator
}

func New(store Store, cfg Config) (*Service, error) {
	classifier, err := fqid.NewHostClassifier(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	gate := NewTrustGate(store, classifier, cfg.Credentials)
	client := NewPeerClient(gate, cfg.Timeout)
	directory := NewDirectory(store, classifier, client)
	relationships := NewRelationships(store, directory, cfg.Concurrency)
	engine := NewEngine(store, directory, gate, client, cfg.Concurrency, cfg.MetricSink)

	return &Service{
		Classifier:    classifier,
		Gate:          gate,
		Client:        client,
		Directory:     directory,
		Relationships: relationships,
		Engine:        engine,
		Outbox:        NewOutbox(store, directory, relationships, engine),
		Inbox:         NewInbox(store, directory, relationships, gate, engine, cfg.MetricSink),
		Stream:        NewAggregator(store, directory, relationships, cfg.Concurrency, cfg.PageSize, cfg.MaxPageSize, cfg.MetricSink),
	}, nil
}
