package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityFriends  Visibility = "FRIENDS"
	VisibilityUnlisted Visibility = "UNLISTED"
	VisibilityDeleted  Visibility = "DELETED"
)

// ParseVisibility accepts any casing of the four visibility names.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case VisibilityPublic, VisibilityFriends, VisibilityUnlisted, VisibilityDeleted:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown visibility %q", ErrInvalidPayload, s)
}

type SavePost struct {
	AuthorId    uuid.UUID
	Title       string
	Description string
	ContentType string
	Content     string
	Visibility  Visibility
}

type Post struct {
	Id          uuid.UUID
	AuthorId    uuid.UUID
	Title       string
	Description string
	ContentType string
	Content     string
	Visibility  Visibility
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

func (post *Post) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tAuthor: %s \n\tTitle: %s \n\tVisibility: %s \n\tCreatedAt: %s)", post.Id, post.AuthorId, post.Title, post.Visibility, post.CreatedAt)
}

// Comment on a local post. The author may live on any node, so it is kept
// as an FQID plus the author snapshot received with the comment.
type Comment struct {
	Id          uuid.UUID
	PostId      uuid.UUID
	AuthorFQID  string
	AuthorJSON  string
	Comment     string
	ContentType string
	CreatedAt   time.Time
}

// Like is unique per (AuthorFQID, ObjectFQID).
type Like struct {
	Id         uuid.UUID
	AuthorFQID string
	AuthorJSON string
	ObjectFQID string
	CreatedAt  time.Time
}

// Share of a post by a local author, optionally addressed to one receiver.
type Share struct {
	Id           uuid.UUID
	SharerId     uuid.UUID
	PostFQID     string
	ReceiverFQID string
	CreatedAt    time.Time
}
