package domain

import (
	"time"

	"github.com/google/uuid"
)

// Node is a trust record for a peer instance.
type Node struct {
	Host         string
	Username     string
	PasswordHash string
	Authorized   bool
	CreatedAt    time.Time
}

// ActorRef points at exactly one of a local account or a remote FQID.
type ActorRef struct {
	LocalId  uuid.UUID
	RemoteId string
}

func LocalRef(id uuid.UUID) ActorRef {
	return ActorRef{LocalId: id}
}

func RemoteRef(fqid string) ActorRef {
	return ActorRef{RemoteId: fqid}
}

func (r ActorRef) IsLocal() bool {
	return r.RemoteId == "" && r.LocalId != uuid.Nil
}

func (r ActorRef) IsZero() bool {
	return r.RemoteId == "" && r.LocalId == uuid.Nil
}

// Key is a stable map key for the ref.
func (r ActorRef) Key() string {
	if r.IsLocal() {
		return "local:" + r.LocalId.String()
	}
	return "remote:" + r.RemoteId
}

func (r ActorRef) String() string {
	if r.IsLocal() {
		return r.LocalId.String()
	}
	return r.RemoteId
}

func (r ActorRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Follow is a directed edge. Each endpoint has exactly one of the local id
// or the remote FQID set.
type Follow struct {
	Id             uuid.UUID
	LocalFollower  uuid.NullUUID
	RemoteFollower string
	LocalFollowee  uuid.NullUUID
	RemoteFollowee string
	CreatedAt      time.Time
}

func (f *Follow) Follower() ActorRef {
	if f.LocalFollower.Valid {
		return LocalRef(f.LocalFollower.UUID)
	}
	return RemoteRef(f.RemoteFollower)
}

func (f *Follow) Followee() ActorRef {
	if f.LocalFollowee.Valid {
		return LocalRef(f.LocalFollowee.UUID)
	}
	return RemoteRef(f.RemoteFollowee)
}

// NewFollow builds an edge from two refs.
func NewFollow(follower, followee ActorRef) *Follow {
	f := &Follow{Id: uuid.New(), CreatedAt: time.Now().UTC()}
	if follower.IsLocal() {
		f.LocalFollower = uuid.NullUUID{UUID: follower.LocalId, Valid: true}
	} else {
		f.RemoteFollower = follower.RemoteId
	}
	if followee.IsLocal() {
		f.LocalFollowee = uuid.NullUUID{UUID: followee.LocalId, Valid: true}
	} else {
		f.RemoteFollowee = followee.RemoteId
	}
	return f
}

// FollowRequest waits in the target's inbox until accepted or rejected.
type FollowRequest struct {
	Id        uuid.UUID
	ActorFQID string
	ActorJSON string
	TargetId  uuid.UUID
	CreatedAt time.Time
}
