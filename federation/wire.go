package federation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
)

// Object is anything that can travel between nodes.
type Object interface {
	Kind() domain.ContentKind
	CanonicalID() string
	// Origin is the actor the object is attributed to.
	Origin() AuthorObject
}

// Timestamp accepts the handful of layouts peers emit and always writes RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type AuthorObject struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	Host         string `json:"host"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Page         string `json:"page,omitempty"`
}

type PostObject struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Page        string       `json:"page,omitempty"`
	Description string       `json:"description"`
	ContentType string       `json:"contentType"`
	Content     string       `json:"content"`
	Author      AuthorObject `json:"author"`
	Published   Timestamp    `json:"published"`
	Visibility  string       `json:"visibility"`
}

func (p *PostObject) Kind() domain.ContentKind { return domain.KindPost }
func (p *PostObject) CanonicalID() string      { return p.ID }
func (p *PostObject) Origin() AuthorObject     { return p.Author }

// Vis parses the visibility field.
func (p *PostObject) Vis() (domain.Visibility, error) {
	return domain.ParseVisibility(p.Visibility)
}

type CommentObject struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	Author      AuthorObject `json:"author"`
	Comment     string       `json:"comment"`
	ContentType string       `json:"contentType"`
	Published   Timestamp    `json:"published"`
	Post        string       `json:"post"`
}

func (c *CommentObject) Kind() domain.ContentKind { return domain.KindComment }
func (c *CommentObject) CanonicalID() string      { return c.ID }
func (c *CommentObject) Origin() AuthorObject     { return c.Author }

type LikeObject struct {
	Type      string       `json:"type"`
	ID        string       `json:"id"`
	Summary   string       `json:"summary,omitempty"`
	Author    AuthorObject `json:"author"`
	Published Timestamp    `json:"published"`
	Object    string       `json:"object"`
}

func (l *LikeObject) Kind() domain.ContentKind { return domain.KindLike }
func (l *LikeObject) CanonicalID() string      { return l.ID }
func (l *LikeObject) Origin() AuthorObject     { return l.Author }

type ShareObject struct {
	Type      string        `json:"type"`
	ID        string        `json:"id"`
	Author    AuthorObject  `json:"author"`
	Post      string        `json:"post"`
	Receiver  *AuthorObject `json:"receiver,omitempty"`
	Published Timestamp     `json:"published"`
}

func (s *ShareObject) Kind() domain.ContentKind { return domain.KindShare }
func (s *ShareObject) CanonicalID() string      { return s.ID }
func (s *ShareObject) Origin() AuthorObject     { return s.Author }

type FollowObject struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Summary string       `json:"summary,omitempty"`
	Actor   AuthorObject `json:"actor"`
	Object  AuthorObject `json:"object"`
}

func (f *FollowObject) Kind() domain.ContentKind { return domain.KindFollow }
func (f *FollowObject) CanonicalID() string      { return f.ID }
func (f *FollowObject) Origin() AuthorObject     { return f.Actor }

// DecodeObject reads a wire object, dispatching on its type field.
func DecodeObject(body []byte) (Object, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	var obj Object
	switch domain.ContentKind(strings.ToLower(envelope.Type)) {
	case domain.KindPost:
		obj = &PostObject{}
	case domain.KindComment:
		obj = &CommentObject{}
	case domain.KindLike:
		obj = &LikeObject{}
	case domain.KindShare:
		obj = &ShareObject{}
	case domain.KindFollow:
		obj = &FollowObject{}
	default:
		return nil, fmt.Errorf("%w: unknown object type %q", domain.ErrInvalidPayload, envelope.Type)
	}
	if err := json.Unmarshal(body, obj); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func validate(obj Object) error {
	if _, err := fqid.Parse(obj.CanonicalID()); err != nil {
		return err
	}
	if _, err := fqid.Parse(obj.Origin().ID); err != nil {
		return err
	}
	switch o := obj.(type) {
	case *PostObject:
		if _, err := o.Vis(); err != nil {
			return err
		}
	case *CommentObject:
		if _, err := fqid.Parse(o.Post); err != nil {
			return err
		}
	case *LikeObject:
		if _, err := fqid.Parse(o.Object); err != nil {
			return err
		}
	case *ShareObject:
		if _, err := fqid.Parse(o.Post); err != nil {
			return err
		}
	case *FollowObject:
		if _, err := fqid.Parse(o.Object.ID); err != nil {
			return err
		}
	}
	return nil
}
