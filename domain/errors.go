package domain

import "errors"

var (
	ErrInvalidIdentifier = errors.New("identifier: malformed fqid")
	ErrInvalidPayload    = errors.New("payload: malformed activity")

	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: already exists")
	ErrForbidden   = errors.New("trust: forbidden")
	ErrUnavailable = errors.New("peer: unavailable")
)
