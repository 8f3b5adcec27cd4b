package federation

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
)

type InboundStore interface {
	ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	CreateComment(ctx context.Context, c *domain.Comment) error
	CreateLike(ctx context.Context, l *domain.Like) error
	CreateFollowRequest(ctx context.Context, r *domain.FollowRequest) error
}

// Inbox takes objects pushed by peers into a local author's inbox.
type Inbox struct {
	store         InboundStore
	directory     *Directory
	relationships *Relationships
	gate          *TrustGate
	engine        *Engine
	msink         metrics.MetricSink
	logger        *log.Logger
}

func NewInbox(store InboundStore, directory *Directory, relationships *Relationships, gate *TrustGate, engine *Engine, ms metrics.MetricSink) *Inbox {
	return &Inbox{
		store:         store,
		directory:     directory,
		relationships: relationships,
		gate:          gate,
		engine:        engine,
		msink:         sinkOrDefault(ms),
		logger:        log.WithPrefix("Inbox"),
	}
}

// Receive records the local side effects of body, pushed by peer, and files
// it in the owner's inbox under the same rules as any other delivery. A peer
// may only push objects that originate on its own host or on this node.
func (in *Inbox) Receive(ctx context.Context, peer *domain.Node, owner uuid.UUID, verb Verb, body []byte) (DeliveryReport, error) {
	if _, err := in.store.ReadAccById(ctx, owner); err != nil {
		return DeliveryReport{}, err
	}
	obj, err := DecodeObject(body)
	if err != nil {
		return DeliveryReport{}, err
	}

	in.msink.IncrCounterWithLabels(MetricInboxReceivedCount, 1, []metrics.Label{
		LabelKind.M(string(obj.Kind())),
		LabelVerb.M(verb.String()),
	})

	if !in.gate.Trusts(ctx, obj.Origin().ID) {
		in.logger.Warn("Rejected object from untrusted origin", "origin", obj.Origin().ID, "object", obj.CanonicalID())
		return DeliveryReport{}, domain.ErrForbidden
	}
	if err := in.gate.Vouches(peer, obj.Origin().ID); err != nil {
		in.logger.Warn("Rejected object from another host", "origin", obj.Origin().ID, "object", obj.CanonicalID(), "err", err)
		return DeliveryReport{}, err
	}

	if post, ok := obj.(*PostObject); ok {
		if vis, _ := post.Vis(); vis == domain.VisibilityDeleted {
			verb = VerbDelete
		}
	} else if verb != VerbCreate {
		return DeliveryReport{}, fmt.Errorf("%w: only posts can be updated or deleted", domain.ErrInvalidPayload)
	}

	localID, err := in.sideEffects(ctx, owner, obj)
	if err != nil {
		return DeliveryReport{}, err
	}

	in.logger.Info("Received object", "owner", owner, "kind", obj.Kind(), "verb", verb, "id", obj.CanonicalID())
	act := Activity{Verb: verb, Object: obj, LocalID: localID}
	return in.engine.Deliver(ctx, act, []domain.ActorRef{domain.LocalRef(owner)}), nil
}

// sideEffects stores what an inbound object creates on this node. It returns
// the id of the stored record when there is one.
func (in *Inbox) sideEffects(ctx context.Context, owner uuid.UUID, obj Object) (uuid.NullUUID, error) {
	switch o := obj.(type) {
	case *PostObject:
		if in.directory.classifier.IsLocal(o.ID) {
			id, err := localSerial(o.ID)
			if err != nil {
				return uuid.NullUUID{}, err
			}
			if _, err := in.store.ReadPostById(ctx, id); err != nil {
				return uuid.NullUUID{}, err
			}
			return uuid.NullUUID{UUID: id, Valid: true}, nil
		}

	case *CommentObject:
		if !in.directory.classifier.IsLocal(o.Post) {
			return uuid.NullUUID{}, nil
		}
		postId, err := localSerial(o.Post)
		if err != nil {
			return uuid.NullUUID{}, err
		}
		if _, err := in.store.ReadPostById(ctx, postId); err != nil {
			return uuid.NullUUID{}, err
		}
		c := &domain.Comment{
			Id:          uuid.New(),
			PostId:      postId,
			AuthorFQID:  o.Author.ID,
			AuthorJSON:  mustJSON(o.Author),
			Comment:     o.Comment,
			ContentType: o.ContentType,
		}
		if !o.Published.IsZero() {
			c.CreatedAt = o.Published.Time
		}
		if err := in.store.CreateComment(ctx, c); err != nil {
			return uuid.NullUUID{}, err
		}
		return uuid.NullUUID{UUID: c.Id, Valid: true}, nil

	case *LikeObject:
		l := &domain.Like{
			Id:         uuid.New(),
			AuthorFQID: o.Author.ID,
			AuthorJSON: mustJSON(o.Author),
			ObjectFQID: o.Object,
		}
		if err := in.store.CreateLike(ctx, l); err != nil {
			return uuid.NullUUID{}, err
		}
		return uuid.NullUUID{UUID: l.Id, Valid: true}, nil

	case *FollowObject:
		target, err := in.directory.RefFor(o.Object.ID)
		if err != nil {
			return uuid.NullUUID{}, err
		}
		if !target.IsLocal() || target.LocalId != owner {
			return uuid.NullUUID{}, fmt.Errorf("%w: follow is not addressed to this inbox", domain.ErrInvalidPayload)
		}
		follower, err := in.directory.RefFor(o.Actor.ID)
		if err != nil {
			return uuid.NullUUID{}, err
		}
		following, err := in.relationships.IsFollowing(ctx, follower, target)
		if err != nil {
			return uuid.NullUUID{}, err
		}
		if following {
			return uuid.NullUUID{}, fmt.Errorf("%w: already following", domain.ErrConflict)
		}
		req := &domain.FollowRequest{
			Id:        uuid.New(),
			ActorFQID: o.Actor.ID,
			ActorJSON: mustJSON(o.Actor),
			TargetId:  owner,
		}
		if err := in.store.CreateFollowRequest(ctx, req); err != nil {
			return uuid.NullUUID{}, err
		}
		return uuid.NullUUID{UUID: req.Id, Valid: true}, nil
	}
	return uuid.NullUUID{}, nil
}

func localSerial(raw string) (uuid.UUID, error) {
	id, err := fqid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	serial, err := uuid.Parse(id.Serial)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, raw)
	}
	return serial, nil
}
