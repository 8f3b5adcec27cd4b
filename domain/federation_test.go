package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestActorRef(t *testing.T) {
	id := uuid.New()

	local := LocalRef(id)
	if !local.IsLocal() {
		t.Error("LocalRef should be local")
	}
	if local.Key() != "local:"+id.String() {
		t.Errorf("Unexpected key %s", local.Key())
	}

	remote := RemoteRef("http://other.example/api/authors/abc")
	if remote.IsLocal() {
		t.Error("RemoteRef should not be local")
	}
	if remote.String() != "http://other.example/api/authors/abc" {
		t.Errorf("Unexpected string %s", remote.String())
	}

	if !(ActorRef{}).IsZero() {
		t.Error("Empty ref should be zero")
	}
}

func TestNewFollowEndpoints(t *testing.T) {
	a := uuid.New()
	remote := "http://other.example/api/authors/b"

	f := NewFollow(LocalRef(a), RemoteRef(remote))

	if !f.LocalFollower.Valid || f.LocalFollower.UUID != a {
		t.Errorf("Expected local follower %s, got %+v", a, f.LocalFollower)
	}
	if f.RemoteFollower != "" {
		t.Errorf("Remote follower should be empty, got %s", f.RemoteFollower)
	}
	if f.LocalFollowee.Valid {
		t.Error("Local followee should be unset")
	}
	if f.Followee() != RemoteRef(remote) {
		t.Errorf("Expected followee %s, got %s", remote, f.Followee())
	}
	if f.Follower() != LocalRef(a) {
		t.Errorf("Expected follower %s, got %s", a, f.Follower())
	}
}

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		in      string
		want    Visibility
		wantErr bool
	}{
		{"PUBLIC", VisibilityPublic, false},
		{"friends", VisibilityFriends, false},
		{" Unlisted ", VisibilityUnlisted, false},
		{"deleted", VisibilityDeleted, false},
		{"private", "", true},
	}

	for _, tt := range tests {
		got, err := ParseVisibility(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("ParseVisibility(%q) expected ErrInvalidPayload, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVisibility(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
