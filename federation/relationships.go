package federation

import (
	"context"
	"errors"
	"sort"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type FollowStore interface {
	CreateFollow(ctx context.Context, f *domain.Follow) error
	DeleteFollow(ctx context.Context, follower, followee domain.ActorRef) error
	ReadFollowsByFollower(ctx context.Context, ref domain.ActorRef) ([]domain.Follow, error)
	ReadFollowsByFollowee(ctx context.Context, ref domain.ActorRef) ([]domain.Follow, error)
}

// RefSet is a set of actors keyed by ActorRef.Key.
type RefSet map[string]domain.ActorRef

func (s RefSet) Add(ref domain.ActorRef) {
	s[ref.Key()] = ref
}

func (s RefSet) Has(ref domain.ActorRef) bool {
	_, ok := s[ref.Key()]
	return ok
}

// Refs lists the members ordered by key.
func (s RefSet) Refs() []domain.ActorRef {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	refs := make([]domain.ActorRef, len(keys))
	for i, k := range keys {
		refs[i] = s[k]
	}
	return refs
}

// LocalIds returns the local members.
func (s RefSet) LocalIds() []uuid.UUID {
	var ids []uuid.UUID
	for _, ref := range s.Refs() {
		if ref.IsLocal() {
			ids = append(ids, ref.LocalId)
		}
	}
	return ids
}

// Intersect keeps refs present in both sets. Local and remote refs never
// match each other, so the two subsets are compared separately.
func (s RefSet) Intersect(other RefSet) RefSet {
	out := RefSet{}
	for k, ref := range s {
		if _, ok := other[k]; ok {
			out[k] = ref
		}
	}
	return out
}

type Relationships struct {
	store       FollowStore
	directory   *Directory
	concurrency int
}

func NewRelationships(store FollowStore, directory *Directory, concurrency int) *Relationships {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Relationships{store: store, directory: directory, concurrency: concurrency}
}

// aliases lists every form an actor's edges may have been stored under.
func (r *Relationships) aliases(actor domain.ActorRef) []domain.ActorRef {
	actor = r.directory.Normalize(actor)
	if !actor.IsLocal() {
		return []domain.ActorRef{actor}
	}
	return []domain.ActorRef{actor, domain.RemoteRef(r.directory.AuthorFQID(actor.LocalId))}
}

func (r *Relationships) FollowingRefs(ctx context.Context, actor domain.ActorRef) (RefSet, error) {
	set := RefSet{}
	for _, alias := range r.aliases(actor) {
		follows, err := r.store.ReadFollowsByFollower(ctx, alias)
		if err != nil {
			return nil, err
		}
		for _, f := range follows {
			set.Add(r.directory.Normalize(f.Followee()))
		}
	}
	return set, nil
}

func (r *Relationships) FollowerRefs(ctx context.Context, actor domain.ActorRef) (RefSet, error) {
	set := RefSet{}
	for _, alias := range r.aliases(actor) {
		follows, err := r.store.ReadFollowsByFollowee(ctx, alias)
		if err != nil {
			return nil, err
		}
		for _, f := range follows {
			set.Add(r.directory.Normalize(f.Follower()))
		}
	}
	return set, nil
}

// FriendRefs are the actors that follow actor and are followed back.
func (r *Relationships) FriendRefs(ctx context.Context, actor domain.ActorRef) (RefSet, error) {
	following, err := r.FollowingRefs(ctx, actor)
	if err != nil {
		return nil, err
	}
	followers, err := r.FollowerRefs(ctx, actor)
	if err != nil {
		return nil, err
	}
	return following.Intersect(followers), nil
}

func (r *Relationships) IsFollowing(ctx context.Context, follower, followee domain.ActorRef) (bool, error) {
	following, err := r.FollowingRefs(ctx, follower)
	if err != nil {
		return false, err
	}
	return following.Has(r.directory.Normalize(followee)), nil
}

func (r *Relationships) IsFriend(ctx context.Context, a, b domain.ActorRef) (bool, error) {
	ab, err := r.IsFollowing(ctx, a, b)
	if err != nil || !ab {
		return false, err
	}
	return r.IsFollowing(ctx, b, a)
}

func (r *Relationships) Following(ctx context.Context, actor domain.ActorRef) ([]AuthorObject, error) {
	set, err := r.FollowingRefs(ctx, actor)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, set), nil
}

func (r *Relationships) Followers(ctx context.Context, actor domain.ActorRef) ([]AuthorObject, error) {
	set, err := r.FollowerRefs(ctx, actor)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, set), nil
}

func (r *Relationships) Friends(ctx context.Context, actor domain.ActorRef) ([]AuthorObject, error) {
	set, err := r.FriendRefs(ctx, actor)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, set), nil
}

// resolve fetches the author of every ref, leaving out the ones that cannot
// be reached.
func (r *Relationships) resolve(ctx context.Context, set RefSet) []AuthorObject {
	refs := set.Refs()
	found := make([]*AuthorObject, len(refs))
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			author, err := r.directory.GetActor(ctx, ref)
			if err == nil {
				found[i] = &author
			}
			return nil
		})
	}
	_ = g.Wait()

	authors := make([]AuthorObject, 0, len(refs))
	for _, a := range found {
		if a != nil {
			authors = append(authors, *a)
		}
	}
	return authors
}

// Follow records an edge between two normalized refs.
func (r *Relationships) Follow(ctx context.Context, follower, followee domain.ActorRef) (*domain.Follow, error) {
	f := domain.NewFollow(r.directory.Normalize(follower), r.directory.Normalize(followee))
	if err := r.store.CreateFollow(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Unfollow removes the edge under whichever form it was stored.
func (r *Relationships) Unfollow(ctx context.Context, follower, followee domain.ActorRef) error {
	removed := false
	for _, from := range r.aliases(follower) {
		for _, to := range r.aliases(followee) {
			err := r.store.DeleteFollow(ctx, from, to)
			switch {
			case err == nil:
				removed = true
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}
	}
	if !removed {
		return domain.ErrNotFound
	}
	return nil
}
