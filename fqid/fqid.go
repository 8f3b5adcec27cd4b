// Package fqid parses fully-qualified identifiers and tells local ones from
// remote ones.
package fqid

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/deemkeen/nodeweave/domain"
)

// ID is a parsed identifier: Host + Prefix + Serial reproduces it.
type ID struct {
	Host   string
	Prefix string
	Serial string
}

// Parse resolves an absolute identifier into host and serial. The serial is
// the final path segment; trailing slashes, query and fragment are ignored.
func Parse(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") && strings.Contains(raw, "%") {
		if decoded, err := url.PathUnescape(raw); err == nil {
			raw = decoded
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidIdentifier, raw, err)
	}
	host, err := normalize(u)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, raw)
	}

	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || idx == len(path)-1 {
		return ID{}, fmt.Errorf("%w: %q has no serial", domain.ErrInvalidIdentifier, raw)
	}

	return ID{Host: host, Prefix: path[:idx+1], Serial: path[idx+1:]}, nil
}

func (id ID) String() string {
	return id.Host + id.Prefix + id.Serial
}

// Segment returns the path segment following name, e.g. the author serial
// for name "authors".
func (id ID) Segment(name string) (string, bool) {
	parts := strings.Split(strings.Trim(id.Prefix+id.Serial, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == name && parts[i+1] != "" {
			return parts[i+1], true
		}
	}
	return "", false
}

// NormalizeHost reduces any URL to its lowercased scheme and authority with
// default ports removed.
func NormalizeHost(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", domain.ErrInvalidIdentifier, raw, err)
	}
	host, err := normalize(u)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, raw)
	}
	return host, nil
}

func normalize(u *url.URL) (string, error) {
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not absolute")
	}
	scheme := strings.ToLower(u.Scheme)
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if port != "" {
		return scheme + "://" + hostname + ":" + port, nil
	}
	return scheme + "://" + hostname, nil
}

func AuthorID(host, author string) string {
	return strings.TrimRight(host, "/") + "/api/authors/" + author
}

func PostID(host, author, post string) string {
	return AuthorID(host, author) + "/posts/" + post
}

func CommentID(host, author, post, comment string) string {
	return PostID(host, author, post) + "/comments/" + comment
}

func LikeID(host, author, like string) string {
	return AuthorID(host, author) + "/liked/" + like
}

func ShareID(host, author, share string) string {
	return AuthorID(host, author) + "/shares/" + share
}

func FollowID(host, author, request string) string {
	return AuthorID(host, author) + "/follows/" + request
}

// AuthorOf returns the author FQID embedded in a post, comment or like id.
func AuthorOf(raw string) (string, error) {
	id, err := Parse(raw)
	if err != nil {
		return "", err
	}
	author, ok := id.Segment("authors")
	if !ok {
		return "", fmt.Errorf("%w: %q names no author", domain.ErrInvalidIdentifier, raw)
	}
	return AuthorID(id.Host, author), nil
}
