package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/google/uuid"
)

type OutboxStore interface {
	CreatePost(ctx context.Context, save domain.SavePost) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) error
	ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	CreateComment(ctx context.Context, c *domain.Comment) error
	CreateLike(ctx context.Context, l *domain.Like) error
	CreateShare(ctx context.Context, s *domain.Share) error
	CreateFollowRequest(ctx context.Context, r *domain.FollowRequest) error
	ReadFollowRequest(ctx context.Context, id uuid.UUID) (*domain.FollowRequest, error)
	AcceptFollowRequest(ctx context.Context, r *domain.FollowRequest, f *domain.Follow) error
	RejectFollowRequest(ctx context.Context, r *domain.FollowRequest) error
}

// PostChanges is a partial post edit; nil fields stay as they are.
type PostChanges struct {
	Title       *string
	Description *string
	ContentType *string
	Content     *string
	Visibility  *domain.Visibility
}

// Outbox performs writes by local authors. The local write always happens
// first and stands whatever delivery does afterwards.
type Outbox struct {
	store         OutboxStore
	directory     *Directory
	relationships *Relationships
	engine        *Engine
	logger        *log.Logger
}

func NewOutbox(store OutboxStore, directory *Directory, relationships *Relationships, engine *Engine) *Outbox {
	return &Outbox{
		store:         store,
		directory:     directory,
		relationships: relationships,
		engine:        engine,
		logger:        log.WithPrefix("Outbox"),
	}
}

func (o *Outbox) CreatePost(ctx context.Context, author *domain.Account, save domain.SavePost) (*domain.Post, DeliveryReport, error) {
	save.AuthorId = author.Id
	if save.Visibility == "" {
		save.Visibility = domain.VisibilityPublic
	}
	if _, err := domain.ParseVisibility(string(save.Visibility)); err != nil {
		return nil, DeliveryReport{}, err
	}
	if save.Visibility == domain.VisibilityDeleted {
		return nil, DeliveryReport{}, fmt.Errorf("%w: cannot create a deleted post", domain.ErrInvalidPayload)
	}
	if strings.TrimSpace(save.Title) == "" && strings.TrimSpace(save.Content) == "" {
		return nil, DeliveryReport{}, fmt.Errorf("%w: post needs a title or content", domain.ErrInvalidPayload)
	}
	post, err := o.store.CreatePost(ctx, save)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	o.logger.Info("Created post", "post", post.Id, "author", author.Username, "visibility", post.Visibility)
	report, err := o.publish(ctx, VerbCreate, author, post, post.Visibility)
	return post, report, err
}

func (o *Outbox) UpdatePost(ctx context.Context, author *domain.Account, postId uuid.UUID, changes PostChanges) (*domain.Post, DeliveryReport, error) {
	post, err := o.ownPost(ctx, author, postId)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	before := post.Visibility
	if changes.Title != nil {
		post.Title = *changes.Title
	}
	if changes.Description != nil {
		post.Description = *changes.Description
	}
	if changes.ContentType != nil {
		post.ContentType = *changes.ContentType
	}
	if changes.Content != nil {
		post.Content = *changes.Content
	}
	if changes.Visibility != nil {
		vis, err := domain.ParseVisibility(string(*changes.Visibility))
		if err != nil {
			return nil, DeliveryReport{}, err
		}
		post.Visibility = vis
	}
	verb, audience := VerbUpdate, post.Visibility
	if post.Visibility == domain.VisibilityDeleted {
		verb, audience = VerbDelete, before
	}
	post.ModifiedAt = time.Now().UTC()
	if err := o.store.UpdatePost(ctx, post); err != nil {
		return nil, DeliveryReport{}, err
	}
	report, err := o.publish(ctx, verb, author, post, audience)
	return post, report, err
}

// DeletePost marks the post DELETED; the row stays for staff.
func (o *Outbox) DeletePost(ctx context.Context, author *domain.Account, postId uuid.UUID) (*domain.Post, DeliveryReport, error) {
	post, err := o.ownPost(ctx, author, postId)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	audience := post.Visibility
	post.Visibility = domain.VisibilityDeleted
	post.ModifiedAt = time.Now().UTC()
	if err := o.store.UpdatePost(ctx, post); err != nil {
		return nil, DeliveryReport{}, err
	}
	o.logger.Info("Deleted post", "post", post.Id, "author", author.Username)
	report, err := o.publish(ctx, VerbDelete, author, post, audience)
	return post, report, err
}

func (o *Outbox) ownPost(ctx context.Context, author *domain.Account, postId uuid.UUID) (*domain.Post, error) {
	post, err := o.store.ReadPostById(ctx, postId)
	if err != nil {
		return nil, err
	}
	if post.AuthorId != author.Id {
		return nil, domain.ErrNotFound
	}
	if post.Visibility == domain.VisibilityDeleted {
		return nil, fmt.Errorf("%w: post is deleted", domain.ErrConflict)
	}
	return post, nil
}

// publish sends a post to the author's own inbox and to the audience of a
// post with the given visibility: friends for FRIENDS, followers otherwise.
// A delete goes to the audience the post had before it was deleted.
func (o *Outbox) publish(ctx context.Context, verb Verb, author *domain.Account, post *domain.Post, audience domain.Visibility) (DeliveryReport, error) {
	me := domain.LocalRef(author.Id)
	var set RefSet
	var err error
	if audience == domain.VisibilityFriends {
		set, err = o.relationships.FriendRefs(ctx, me)
	} else {
		set, err = o.relationships.FollowerRefs(ctx, me)
	}
	if err != nil {
		return DeliveryReport{}, err
	}
	set.Add(me)

	obj := o.directory.LocalPost(post, author)
	act := Activity{Verb: verb, Object: &obj, LocalID: uuid.NullUUID{UUID: post.Id, Valid: true}}
	return o.engine.Deliver(ctx, act, set.Refs()), nil
}

// Comment writes on a post anywhere. Comments on local posts are stored here;
// either way the post's author is told.
func (o *Outbox) Comment(ctx context.Context, author *domain.Account, postFQID, text, contentType string) (*CommentObject, DeliveryReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, DeliveryReport{}, fmt.Errorf("%w: empty comment", domain.ErrInvalidPayload)
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	post, err := o.directory.GetPost(ctx, postFQID)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	if vis, _ := post.Vis(); vis == domain.VisibilityDeleted {
		return nil, DeliveryReport{}, domain.ErrNotFound
	}

	me := o.directory.LocalAuthor(author)
	obj := &CommentObject{
		Type:        "comment",
		Author:      me,
		Comment:     text,
		ContentType: contentType,
		Published:   NewTimestamp(time.Now()),
		Post:        post.ID,
	}
	var localID uuid.NullUUID
	if o.directory.classifier.IsLocal(post.ID) {
		postId, err := localSerial(post.ID)
		if err != nil {
			return nil, DeliveryReport{}, err
		}
		c := &domain.Comment{
			PostId:      postId,
			AuthorFQID:  me.ID,
			AuthorJSON:  mustJSON(me),
			Comment:     text,
			ContentType: contentType,
		}
		if err := o.store.CreateComment(ctx, c); err != nil {
			return nil, DeliveryReport{}, err
		}
		localID = uuid.NullUUID{UUID: c.Id, Valid: true}
		obj.ID = post.ID + "/comments/" + c.Id.String()
		obj.Published = NewTimestamp(c.CreatedAt)
	} else {
		obj.ID = strings.TrimRight(post.ID, "/") + "/comments/" + uuid.NewString()
	}

	target, err := o.directory.RefFor(post.Author.ID)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	report := o.engine.Deliver(ctx, Activity{Verb: VerbCreate, Object: obj, LocalID: localID}, []domain.ActorRef{target})
	return obj, report, nil
}

// Like records one like per author and object; a second like is ErrConflict.
func (o *Outbox) Like(ctx context.Context, author *domain.Account, objectFQID string) (*LikeObject, DeliveryReport, error) {
	owner, err := fqid.AuthorOf(objectFQID)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	target, err := o.directory.RefFor(owner)
	if err != nil {
		return nil, DeliveryReport{}, err
	}

	me := o.directory.LocalAuthor(author)
	like := &domain.Like{
		Id:         uuid.New(),
		AuthorFQID: me.ID,
		AuthorJSON: mustJSON(me),
		ObjectFQID: objectFQID,
	}
	if err := o.store.CreateLike(ctx, like); err != nil {
		return nil, DeliveryReport{}, err
	}
	obj := &LikeObject{
		Type:      "like",
		ID:        fqid.LikeID(o.directory.classifier.Base(), author.Id.String(), like.Id.String()),
		Summary:   author.Name() + " likes your post",
		Author:    me,
		Published: NewTimestamp(like.CreatedAt),
		Object:    objectFQID,
	}
	act := Activity{Verb: VerbCreate, Object: obj, LocalID: uuid.NullUUID{UUID: like.Id, Valid: true}}
	return obj, o.engine.Deliver(ctx, act, []domain.ActorRef{target}), nil
}

// Share passes a post on to one receiver, or to the sharer's followers when
// receiver is empty.
func (o *Outbox) Share(ctx context.Context, author *domain.Account, postFQID, receiver string) (*ShareObject, DeliveryReport, error) {
	post, err := o.directory.GetPost(ctx, postFQID)
	if err != nil {
		return nil, DeliveryReport{}, err
	}
	if vis, _ := post.Vis(); vis != domain.VisibilityPublic && vis != domain.VisibilityUnlisted {
		return nil, DeliveryReport{}, fmt.Errorf("%w: only public posts can be shared", domain.ErrForbidden)
	}

	var recipients []domain.ActorRef
	var receiverObj *AuthorObject
	if receiver != "" {
		ref, err := o.directory.RefFor(receiver)
		if err != nil {
			return nil, DeliveryReport{}, err
		}
		r, err := o.directory.GetActor(ctx, ref)
		if err != nil {
			return nil, DeliveryReport{}, err
		}
		receiverObj = &r
		recipients = []domain.ActorRef{ref}
	} else {
		followers, err := o.relationships.FollowerRefs(ctx, domain.LocalRef(author.Id))
		if err != nil {
			return nil, DeliveryReport{}, err
		}
		recipients = followers.Refs()
	}

	share := &domain.Share{
		Id:           uuid.New(),
		SharerId:     author.Id,
		PostFQID:     post.ID,
		ReceiverFQID: receiver,
	}
	if err := o.store.CreateShare(ctx, share); err != nil {
		return nil, DeliveryReport{}, err
	}
	obj := &ShareObject{
		Type:      "share",
		ID:        fqid.ShareID(o.directory.classifier.Base(), author.Id.String(), share.Id.String()),
		Author:    o.directory.LocalAuthor(author),
		Post:      post.ID,
		Receiver:  receiverObj,
		Published: NewTimestamp(share.CreatedAt),
	}
	act := Activity{Verb: VerbCreate, Object: obj, LocalID: uuid.NullUUID{UUID: share.Id, Valid: true}}
	return obj, o.engine.Deliver(ctx, act, recipients), nil
}

// Follow asks target to accept author as a follower. Local targets get a
// request to accept; remote targets are told and the edge is recorded once
// their node takes the request.
func (o *Outbox) Follow(ctx context.Context, author *domain.Account, targetFQID string) (DeliveryReport, error) {
	me := domain.LocalRef(author.Id)
	target, err := o.directory.RefFor(targetFQID)
	if err != nil {
		return DeliveryReport{}, err
	}
	if target.Key() == me.Key() {
		return DeliveryReport{}, fmt.Errorf("%w: cannot follow yourself", domain.ErrInvalidPayload)
	}
	following, err := o.relationships.IsFollowing(ctx, me, target)
	if err != nil {
		return DeliveryReport{}, err
	}
	if following {
		return DeliveryReport{}, fmt.Errorf("%w: already following", domain.ErrConflict)
	}
	targetObj, err := o.directory.GetActor(ctx, target)
	if err != nil {
		return DeliveryReport{}, err
	}

	actor := o.directory.LocalAuthor(author)
	requestId := uuid.New()
	obj := &FollowObject{
		Type:    "follow",
		ID:      fqid.FollowID(o.directory.classifier.Base(), author.Id.String(), requestId.String()),
		Summary: actor.DisplayName + " wants to follow " + targetObj.DisplayName,
		Actor:   actor,
		Object:  targetObj,
	}

	if target.IsLocal() {
		req := &domain.FollowRequest{
			Id:        requestId,
			ActorFQID: actor.ID,
			ActorJSON: mustJSON(actor),
			TargetId:  target.LocalId,
		}
		if err := o.store.CreateFollowRequest(ctx, req); err != nil {
			return DeliveryReport{}, err
		}
		act := Activity{Verb: VerbCreate, Object: obj, LocalID: uuid.NullUUID{UUID: req.Id, Valid: true}}
		return o.engine.Deliver(ctx, act, []domain.ActorRef{target}), nil
	}

	report := o.engine.Deliver(ctx, Activity{Verb: VerbCreate, Object: obj}, []domain.ActorRef{target})
	if report.Count(OutcomeDelivered) == 1 {
		if _, err := o.relationships.Follow(ctx, me, target); err != nil && !errors.Is(err, domain.ErrConflict) {
			return report, err
		}
		o.logger.Info("Following remote author", "author", author.Username, "target", target)
	}
	return report, nil
}

func (o *Outbox) Unfollow(ctx context.Context, author *domain.Account, targetFQID string) error {
	target, err := o.directory.RefFor(targetFQID)
	if err != nil {
		return err
	}
	return o.relationships.Unfollow(ctx, domain.LocalRef(author.Id), target)
}

// AcceptFollow turns a pending request addressed to owner into an edge.
func (o *Outbox) AcceptFollow(ctx context.Context, owner *domain.Account, requestId uuid.UUID) (*domain.Follow, error) {
	req, err := o.pendingRequest(ctx, owner, requestId)
	if err != nil {
		return nil, err
	}
	follower, err := o.directory.RefFor(req.ActorFQID)
	if err != nil {
		return nil, err
	}
	f := domain.NewFollow(follower, domain.LocalRef(owner.Id))
	if err := o.store.AcceptFollowRequest(ctx, req, f); err != nil {
		return nil, err
	}
	o.logger.Info("Accepted follow request", "owner", owner.Username, "follower", follower)
	return f, nil
}

func (o *Outbox) RejectFollow(ctx context.Context, owner *domain.Account, requestId uuid.UUID) error {
	req, err := o.pendingRequest(ctx, owner, requestId)
	if err != nil {
		return err
	}
	return o.store.RejectFollowRequest(ctx, req)
}

func (o *Outbox) pendingRequest(ctx context.Context, owner *domain.Account, requestId uuid.UUID) (*domain.FollowRequest, error) {
	req, err := o.store.ReadFollowRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if req.TargetId != owner.Id {
		return nil, domain.ErrNotFound
	}
	return req, nil
}

func mustJSON(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(buf)
}
