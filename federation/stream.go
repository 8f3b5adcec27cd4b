package federation

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"golang.org/x/sync/errgroup"
)

type Scope int

const (
	ScopePublic Scope = iota
	ScopeAuthenticatedOwn
)

func (s Scope) String() string {
	if s == ScopeAuthenticatedOwn {
		return "own"
	}
	return "public"
}

// Viewer is who asks for a stream. A nil Account is an anonymous viewer.
type Viewer struct {
	Account *domain.Account
}

func (v Viewer) Authenticated() bool {
	return v.Account != nil
}

func (v Viewer) Staff() bool {
	return v.Account != nil && v.Account.IsStaff
}

type StreamItem struct {
	PostObject
	SharedBy *AuthorObject `json:"shared_by,omitempty"`
}

type Page struct {
	Type       string       `json:"type"`
	PageNumber int          `json:"page_number"`
	Size       int          `json:"size"`
	Count      int          `json:"count"`
	Src        []StreamItem `json:"src"`
}

type StreamStore interface {
	ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ReadPostsByVisibility(ctx context.Context, visibilities []domain.Visibility) ([]domain.Post, error)
	ReadPostsByAuthors(ctx context.Context, authors []uuid.UUID, visibilities []domain.Visibility) ([]domain.Post, error)
	ReadPostSnapshots(ctx context.Context, owner uuid.NullUUID) ([]domain.InboxItem, error)
	ReadSharesBySharers(ctx context.Context, sharers []uuid.UUID) ([]domain.Share, error)
}

type Aggregator struct {
	store         StreamStore
	directory     *Directory
	relationships *Relationships
	concurrency   int
	pageSize      int
	maxPageSize   int
	msink         metrics.MetricSink
	logger        *log.Logger
}

func NewAggregator(store StreamStore, directory *Directory, relationships *Relationships, concurrency, pageSize, maxPageSize int, ms metrics.MetricSink) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	if pageSize < 1 {
		pageSize = 5
	}
	if maxPageSize < pageSize {
		maxPageSize = pageSize
	}
	return &Aggregator{
		store:         store,
		directory:     directory,
		relationships: relationships,
		concurrency:   concurrency,
		pageSize:      pageSize,
		maxPageSize:   maxPageSize,
		msink:         sinkOrDefault(ms),
		logger:        log.WithPrefix("Stream"),
	}
}

// Build returns one page of the stream for viewer. A page past the end is
// empty; page numbers below one mean the first page.
func (a *Aggregator) Build(ctx context.Context, viewer Viewer, scope Scope, page, size int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = a.pageSize
	}
	if size > a.maxPageSize {
		size = a.maxPageSize
	}

	items, err := a.Collect(ctx, viewer, scope)
	if err != nil {
		return Page{}, err
	}

	src := []StreamItem{}
	start := (page - 1) * size
	if start < len(items) {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		src = items[start:end]
	}
	return Page{Type: "posts", PageNumber: page, Size: size, Count: len(items), Src: src}, nil
}

// filter holds what one build may show.
type filter struct {
	local    []domain.Visibility
	snapshot map[domain.Visibility]bool
	owner    uuid.NullUUID
	friends  RefSet
}

// Collect returns the whole stream for viewer, newest first.
func (a *Aggregator) Collect(ctx context.Context, viewer Viewer, scope Scope) ([]StreamItem, error) {
	defer func(start time.Time) {
		a.msink.AddSampleWithLabels(MetricStreamBuildTime, float32(time.Since(start).Milliseconds()), []metrics.Label{LabelScope.M(scope.String())})
	}(time.Now())

	var (
		posts     []domain.Post
		following RefSet
		f         filter
	)
	switch scope {
	case ScopePublic:
		f.local = []domain.Visibility{domain.VisibilityPublic}
		if viewer.Staff() {
			f.local = append(f.local, domain.VisibilityDeleted)
		}
		f.snapshot = map[domain.Visibility]bool{domain.VisibilityPublic: true}
		var err error
		if posts, err = a.store.ReadPostsByVisibility(ctx, f.local); err != nil {
			return nil, err
		}
	case ScopeAuthenticatedOwn:
		if !viewer.Authenticated() {
			return []StreamItem{}, nil
		}
		me := domain.LocalRef(viewer.Account.Id)
		var err error
		if following, err = a.relationships.FollowingRefs(ctx, me); err != nil {
			return nil, err
		}
		if f.friends, err = a.relationships.FriendRefs(ctx, me); err != nil {
			return nil, err
		}
		f.snapshot = map[domain.Visibility]bool{domain.VisibilityFriends: true, domain.VisibilityUnlisted: true}
		f.owner = uuid.NullUUID{UUID: viewer.Account.Id, Valid: true}
		if posts, err = a.ownLocalPosts(ctx, viewer.Account.Id, following, f.friends); err != nil {
			return nil, err
		}
	}

	direct, err := a.localItems(ctx, posts)
	if err != nil {
		return nil, err
	}
	remote, err := a.snapshotItems(ctx, scope, f)
	if err != nil {
		return nil, err
	}
	direct = append(direct, remote...)

	var shared []StreamItem
	if scope == ScopeAuthenticatedOwn {
		if shared, err = a.sharedItems(ctx, following); err != nil {
			return nil, err
		}
	}
	return mergeItems(direct, shared), nil
}

func (a *Aggregator) ownLocalPosts(ctx context.Context, me uuid.UUID, following, friends RefSet) ([]domain.Post, error) {
	own, err := a.store.ReadPostsByAuthors(ctx, []uuid.UUID{me}, []domain.Visibility{domain.VisibilityFriends, domain.VisibilityUnlisted})
	if err != nil {
		return nil, err
	}
	unlisted, err := a.store.ReadPostsByAuthors(ctx, following.LocalIds(), []domain.Visibility{domain.VisibilityUnlisted})
	if err != nil {
		return nil, err
	}
	friendly, err := a.store.ReadPostsByAuthors(ctx, friends.LocalIds(), []domain.Visibility{domain.VisibilityFriends})
	if err != nil {
		return nil, err
	}
	posts := append(own, unlisted...)
	return append(posts, friendly...), nil
}

func (a *Aggregator) localItems(ctx context.Context, posts []domain.Post) ([]StreamItem, error) {
	authors := map[uuid.UUID]*domain.Account{}
	items := make([]StreamItem, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		author, ok := authors[p.AuthorId]
		if !ok {
			acc, err := a.store.ReadAccById(ctx, p.AuthorId)
			if err != nil {
				return nil, err
			}
			authors[p.AuthorId] = acc
			author = acc
		}
		items = append(items, StreamItem{PostObject: a.directory.LocalPost(p, author)})
	}
	return items, nil
}

// snapshotItems reduces the remote snapshots in scope to one current version
// per post and refreshes each from its origin.
func (a *Aggregator) snapshotItems(ctx context.Context, scope Scope, f filter) ([]StreamItem, error) {
	snapshots, err := a.store.ReadPostSnapshots(ctx, f.owner)
	if err != nil {
		return nil, err
	}

	type version struct {
		status domain.PostStatus
		post   PostObject
	}
	retained := map[string]*version{}
	blocked := map[string]bool{}
	var order []string

	for i := range snapshots {
		item := &snapshots[i]
		id := item.CanonicalId
		if blocked[id] || item.Status.Superseded() {
			continue
		}
		snap, ok := item.Remote()
		if !ok {
			continue
		}
		var post PostObject
		if err := json.Unmarshal(snap.Payload, &post); err != nil {
			a.dropped(scope, "malformed")
			continue
		}
		vis, err := post.Vis()
		if err != nil {
			a.dropped(scope, "malformed")
			continue
		}
		if item.Status == domain.StatusDelete || vis == domain.VisibilityDeleted {
			delete(retained, id)
			blocked[id] = true
			continue
		}
		if !a.allowed(f, post, vis) {
			continue
		}
		cur, ok := retained[id]
		if ok && cur.status == domain.StatusUpdate && item.Status == domain.StatusNone {
			continue
		}
		if !ok {
			order = append(order, id)
		}
		retained[id] = &version{status: item.Status, post: post}
	}

	var candidates []string
	for _, id := range order {
		if _, ok := retained[id]; ok {
			candidates = append(candidates, id)
		}
	}

	fresh := make([]*StreamItem, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, id := range candidates {
		g.Go(func() error {
			post, err := a.directory.GetPost(ctx, id)
			if err != nil {
				a.dropped(scope, "unavailable")
				return nil
			}
			vis, _ := post.Vis()
			if vis == domain.VisibilityDeleted || !a.allowed(f, post, vis) {
				a.dropped(scope, "filtered")
				return nil
			}
			fresh[i] = &StreamItem{PostObject: post}
			return nil
		})
	}
	_ = g.Wait()

	items := make([]StreamItem, 0, len(fresh))
	for _, it := range fresh {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (a *Aggregator) allowed(f filter, post PostObject, vis domain.Visibility) bool {
	if !f.snapshot[vis] {
		return false
	}
	if vis != domain.VisibilityFriends {
		return true
	}
	author, err := a.directory.RefFor(post.Author.ID)
	if err != nil {
		return false
	}
	return f.friends.Has(author)
}

// sharedItems are posts shared by local followees, each fetched fresh.
func (a *Aggregator) sharedItems(ctx context.Context, following RefSet) ([]StreamItem, error) {
	sharers := following.LocalIds()
	if len(sharers) == 0 {
		return nil, nil
	}
	shares, err := a.store.ReadSharesBySharers(ctx, sharers)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var unique []domain.Share
	for _, s := range shares {
		key := s.PostFQID + "|" + s.SharerId.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}

	out := make([]*StreamItem, len(unique))
	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, s := range unique {
		g.Go(func() error {
			post, err := a.directory.GetPost(ctx, s.PostFQID)
			if err != nil {
				a.dropped(ScopeAuthenticatedOwn, "unavailable")
				return nil
			}
			vis, _ := post.Vis()
			if vis != domain.VisibilityPublic && vis != domain.VisibilityUnlisted {
				a.dropped(ScopeAuthenticatedOwn, "filtered")
				return nil
			}
			sharer, err := a.directory.GetActor(ctx, domain.LocalRef(s.SharerId))
			if err != nil {
				return nil
			}
			out[i] = &StreamItem{PostObject: post, SharedBy: &sharer}
			return nil
		})
	}
	_ = g.Wait()

	items := make([]StreamItem, 0, len(out))
	for _, it := range out {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (a *Aggregator) dropped(scope Scope, reason string) {
	a.msink.IncrCounterWithLabels(MetricStreamDroppedCount, 1, []metrics.Label{
		LabelScope.M(scope.String()),
		LabelReason.M(reason),
	})
}

// mergeItems keeps the first item per post id, direct items before shares,
// and orders the result newest first.
func mergeItems(direct, shared []StreamItem) []StreamItem {
	seen := map[string]bool{}
	merged := make([]StreamItem, 0, len(direct)+len(shared))
	for _, group := range [][]StreamItem{direct, shared} {
		for _, it := range group {
			if seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			merged = append(merged, it)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ti, tj := merged[i].Published.Time, merged[j].Published.Time
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
