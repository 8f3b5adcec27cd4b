package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ContentKind string

const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
	KindLike    ContentKind = "like"
	KindShare   ContentKind = "share"
	KindFollow  ContentKind = "follow"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindPost, KindComment, KindLike, KindShare, KindFollow:
		return true
	}
	return false
}

// PostStatus is the version tag of a post-kind inbox item.
type PostStatus string

const (
	StatusNone      PostStatus = ""
	StatusUpdate    PostStatus = "update"
	StatusEdited    PostStatus = "edited"
	StatusUpdateOld PostStatus = "update-old"
	StatusDelete    PostStatus = "delete"
)

// Superseded reports whether an item with this status is an older version.
func (s PostStatus) Superseded() bool {
	return s == StatusEdited || s == StatusUpdateOld
}

// InboxContent is either Materialized or RemoteSnapshot.
type InboxContent interface {
	ContentKind() ContentKind
	isInboxContent()
}

// Materialized references a record stored on this node.
type Materialized struct {
	Kind     ContentKind
	ObjectId uuid.UUID
}

func (m Materialized) ContentKind() ContentKind { return m.Kind }
func (Materialized) isInboxContent() {}

// RemoteSnapshot is the wire object as it was received. It is never mutated.
type RemoteSnapshot struct {
	Kind    ContentKind
	Payload json.RawMessage
}

func (r RemoteSnapshot) ContentKind() ContentKind { return r.Kind }
func (RemoteSnapshot) isInboxContent() {}

type InboxItem struct {
	Id          uuid.UUID
	OwnerId     uuid.UUID
	CanonicalId string
	Content     InboxContent
	Status      PostStatus
	CreatedAt   time.Time
}

func NewInboxItem(owner uuid.UUID, canonicalId string, content InboxContent) *InboxItem {
	return &InboxItem{
		Id:          uuid.New(),
		OwnerId:     owner,
		CanonicalId: canonicalId,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
}

func (item *InboxItem) Kind() ContentKind {
	if item.Content == nil {
		return ""
	}
	return item.Content.ContentKind()
}

// Remote returns the snapshot if the item carries one.
func (item *InboxItem) Remote() (RemoteSnapshot, bool) {
	r, ok := item.Content.(RemoteSnapshot)
	return r, ok
}

// InboxPlan is the set of changes one reconcile step applies to the items of
// a single logical post in one inbox.
type InboxPlan struct {
	Retag        map[uuid.UUID]PostStatus
	Remove       []uuid.UUID
	Insert       bool
	InsertStatus PostStatus
}
