package federation

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/google/uuid"
)

type DirectoryStore interface {
	ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error)
}

// Directory resolves actors and posts to their wire form, from the local
// store or from the owning node.
type Directory struct {
	store      DirectoryStore
	classifier fqid.HostClassifier
	client     *PeerClient
	logger     *log.Logger
}

func NewDirectory(store DirectoryStore, classifier fqid.HostClassifier, client *PeerClient) *Directory {
	return &Directory{
		store:      store,
		classifier: classifier,
		client:     client,
		logger:     log.WithPrefix("Directory"),
	}
}

// Normalize turns an FQID that names an account on this node into a local ref.
func (d *Directory) Normalize(ref domain.ActorRef) domain.ActorRef {
	if ref.IsLocal() || !d.classifier.IsLocal(ref.RemoteId) {
		return ref
	}
	id, err := fqid.Parse(ref.RemoteId)
	if err != nil {
		return ref
	}
	serial, ok := id.Segment("authors")
	if !ok {
		serial = id.Serial
	}
	local, err := uuid.Parse(serial)
	if err != nil {
		return ref
	}
	return domain.LocalRef(local)
}

// RefFor resolves a raw author FQID into a normalized ref.
func (d *Directory) RefFor(raw string) (domain.ActorRef, error) {
	if _, err := fqid.Parse(raw); err != nil {
		return domain.ActorRef{}, err
	}
	return d.Normalize(domain.RemoteRef(raw)), nil
}

func (d *Directory) AuthorFQID(id uuid.UUID) string {
	return fqid.AuthorID(d.classifier.Base(), id.String())
}

func (d *Directory) PostFQID(post *domain.Post) string {
	return fqid.PostID(d.classifier.Base(), post.AuthorId.String(), post.Id.String())
}

func (d *Directory) LocalAuthor(acc *domain.Account) AuthorObject {
	base := d.classifier.Base()
	return AuthorObject{
		Type:         "author",
		ID:           d.AuthorFQID(acc.Id),
		Host:         base + "/",
		DisplayName:  acc.Name(),
		Github:       acc.Github,
		ProfileImage: acc.ProfileImage,
		Page:         base + "/authors/" + acc.Id.String(),
	}
}

func (d *Directory) LocalPost(post *domain.Post, author *domain.Account) PostObject {
	id := d.PostFQID(post)
	return PostObject{
		Type:        "post",
		ID:          id,
		Title:       post.Title,
		Page:        d.classifier.Base() + "/authors/" + post.AuthorId.String() + "/posts/" + post.Id.String(),
		Description: post.Description,
		ContentType: post.ContentType,
		Content:     post.Content,
		Author:      d.LocalAuthor(author),
		Published:   NewTimestamp(post.CreatedAt),
		Visibility:  string(post.Visibility),
	}
}

// GetActor returns the author snapshot for ref. Remote failures of any kind
// are reported as ErrUnavailable; unknown local accounts as ErrNotFound.
func (d *Directory) GetActor(ctx context.Context, ref domain.ActorRef) (AuthorObject, error) {
	ref = d.Normalize(ref)
	if ref.IsLocal() {
		acc, err := d.store.ReadAccById(ctx, ref.LocalId)
		if err != nil {
			return AuthorObject{}, err
		}
		return d.LocalAuthor(acc), nil
	}

	var author AuthorObject
	if err := d.client.Get(ctx, ref.RemoteId, &author); err != nil {
		d.logger.Warn("Failed to fetch actor", "fqid", ref.RemoteId, "err", err)
		return AuthorObject{}, unavailable(err)
	}
	if author.ID == "" {
		author.ID = ref.RemoteId
	}
	return author, nil
}

// GetPost returns the current wire form of a post.
func (d *Directory) GetPost(ctx context.Context, postFQID string) (PostObject, error) {
	id, err := fqid.Parse(postFQID)
	if err != nil {
		return PostObject{}, err
	}
	if d.classifier.Classify(id.Host) == fqid.Local {
		serial, err := uuid.Parse(id.Serial)
		if err != nil {
			return PostObject{}, fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, postFQID)
		}
		post, err := d.store.ReadPostById(ctx, serial)
		if err != nil {
			return PostObject{}, err
		}
		author, err := d.store.ReadAccById(ctx, post.AuthorId)
		if err != nil {
			return PostObject{}, err
		}
		return d.LocalPost(post, author), nil
	}

	var post PostObject
	if err := d.client.Get(ctx, postFQID, &post); err != nil {
		d.logger.Warn("Failed to fetch post", "fqid", postFQID, "err", err)
		return PostObject{}, unavailable(err)
	}
	if post.ID == "" {
		post.ID = postFQID
	}
	if _, err := post.Vis(); err != nil {
		return PostObject{}, unavailable(err)
	}
	return post, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}
