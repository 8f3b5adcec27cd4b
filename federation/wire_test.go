package federation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	author := `{"type":"author","id":"http://peer.example/api/authors/bob","host":"http://peer.example/","displayName":"Bob"}`

	tests := []struct {
		body string
		kind domain.ContentKind
		id   string
	}{
		{
			`{"type":"Post","id":"http://peer.example/api/authors/bob/posts/1","title":"t","author":` + author + `,"visibility":"friends"}`,
			domain.KindPost, "http://peer.example/api/authors/bob/posts/1",
		},
		{
			`{"type":"comment","id":"http://local.example/api/authors/a/posts/p/comments/c","author":` + author + `,"comment":"hi","post":"http://local.example/api/authors/a/posts/p"}`,
			domain.KindComment, "http://local.example/api/authors/a/posts/p/comments/c",
		},
		{
			`{"type":"like","id":"http://peer.example/api/authors/bob/liked/1","author":` + author + `,"object":"http://local.example/api/authors/a/posts/p"}`,
			domain.KindLike, "http://peer.example/api/authors/bob/liked/1",
		},
		{
			`{"type":"share","id":"http://peer.example/api/authors/bob/shares/1","author":` + author + `,"post":"http://local.example/api/authors/a/posts/p"}`,
			domain.KindShare, "http://peer.example/api/authors/bob/shares/1",
		},
		{
			`{"type":"follow","id":"http://peer.example/api/authors/bob/follows/1","actor":` + author + `,"object":{"id":"http://local.example/api/authors/a"}}`,
			domain.KindFollow, "http://peer.example/api/authors/bob/follows/1",
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			obj, err := DecodeObject([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, obj.Kind())
			assert.Equal(t, tt.id, obj.CanonicalID())
			assert.Equal(t, "http://peer.example/api/authors/bob", obj.Origin().ID)
		})
	}
}

func TestDecodeObjectInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"empty", ``, domain.ErrInvalidPayload},
		{"no type", `{"id":"http://peer.example/api/authors/bob/posts/1"}`, domain.ErrInvalidPayload},
		{"relative id", `{"type":"post","id":"/posts/1","author":{"id":"http://peer.example/api/authors/bob"},"visibility":"PUBLIC"}`, domain.ErrInvalidIdentifier},
		{"no author", `{"type":"post","id":"http://peer.example/api/authors/bob/posts/1","visibility":"PUBLIC"}`, domain.ErrInvalidIdentifier},
		{"like without object", `{"type":"like","id":"http://peer.example/api/authors/bob/liked/1","author":{"id":"http://peer.example/api/authors/bob"}}`, domain.ErrInvalidIdentifier},
		{"bad timestamp", `{"type":"post","id":"http://peer.example/api/authors/bob/posts/1","author":{"id":"http://peer.example/api/authors/bob"},"published":"yesterday","visibility":"PUBLIC"}`, domain.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObject([]byte(tt.body))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 3, 9, 17, 30, 5, 0, time.UTC)

	for _, raw := range []string{
		`"2024-03-09T17:30:05Z"`,
		`"2024-03-09T18:30:05+01:00"`,
		`"2024-03-09T17:30:05"`,
		`"2024-03-09 17:30:05+00:00"`,
		`"2024-03-09 17:30:05"`,
	} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), raw)
		assert.True(t, want.Equal(ts.Time), raw)
	}

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	out, err = json.Marshal(NewTimestamp(want.In(time.FixedZone("X", 3600))))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09T17:30:05Z"`, string(out))
}
