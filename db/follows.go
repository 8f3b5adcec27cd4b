package db

import (
	"context"
	"database/sql"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
)

// Follows and follow requests
const (
	sqlFollowColumns = `id, local_follower, remote_follower, local_followee, remote_followee, created_at`

	sqlInsertFollow            = `INSERT INTO follows(id, local_follower, remote_follower, local_followee, remote_followee, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlDeleteFollow            = `DELETE FROM follows WHERE coalesce(local_follower, '') = ? AND remote_follower = ? AND coalesce(local_followee, '') = ? AND remote_followee = ?`
	sqlSelectFollow            = `SELECT ` + sqlFollowColumns + ` FROM follows WHERE coalesce(local_follower, '') = ? AND remote_follower = ? AND coalesce(local_followee, '') = ? AND remote_followee = ?`
	sqlSelectFollowsByFollower = `SELECT ` + sqlFollowColumns + ` FROM follows WHERE coalesce(local_follower, '') = ? AND remote_follower = ? ORDER BY created_at`
	sqlSelectFollowsByFollowee = `SELECT ` + sqlFollowColumns + ` FROM follows WHERE coalesce(local_followee, '') = ? AND remote_followee = ? ORDER BY created_at`
	sqlInsertFollowRequest     = `INSERT INTO follow_requests(id, actor_fqid, actor_json, target_id, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectFollowRequest     = `SELECT id, actor_fqid, actor_json, target_id, created_at FROM follow_requests WHERE id = ?`
	sqlSelectFollowRequestsFor = `SELECT id, actor_fqid, actor_json, target_id, created_at FROM follow_requests WHERE target_id = ? ORDER BY created_at`
	sqlDeleteFollowRequest     = `DELETE FROM follow_requests WHERE id = ?`
	sqlDeleteFollowNotices     = `DELETE FROM inbox_items WHERE owner_id = ? AND content_kind = 'follow' AND object_id = ?`
)

// refArgs renders a ref as the (local, remote) pair used by the edge index.
func refArgs(ref domain.ActorRef) (string, string) {
	if ref.IsLocal() {
		return ref.LocalId.String(), ""
	}
	return "", ref.RemoteId
}

// CreateFollow fails with domain.ErrConflict if the edge already exists.
func (db *DB) CreateFollow(ctx context.Context, f *domain.Follow) error {
	fillIdentity(&f.Id, &f.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return insertFollow(ctx, tx, f)
	})
}

func insertFollow(ctx context.Context, tx *sql.Tx, f *domain.Follow) error {
	_, err := tx.ExecContext(ctx, sqlInsertFollow, f.Id, f.LocalFollower, f.RemoteFollower, f.LocalFollowee, f.RemoteFollowee, f.CreatedAt)
	return err
}

func (db *DB) DeleteFollow(ctx context.Context, follower, followee domain.ActorRef) error {
	lf, rf := refArgs(follower)
	le, re := refArgs(followee)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRows(tx.ExecContext(ctx, sqlDeleteFollow, lf, rf, le, re))
	})
}

func (db *DB) ReadFollow(ctx context.Context, follower, followee domain.ActorRef) (*domain.Follow, error) {
	lf, rf := refArgs(follower)
	le, re := refArgs(followee)
	return scanFollow(db.db.QueryRowContext(ctx, sqlSelectFollow, lf, rf, le, re))
}

// ReadFollowsByFollower returns the edges going out of ref.
func (db *DB) ReadFollowsByFollower(ctx context.Context, ref domain.ActorRef) ([]domain.Follow, error) {
	l, r := refArgs(ref)
	return db.queryFollows(ctx, sqlSelectFollowsByFollower, l, r)
}

// ReadFollowsByFollowee returns the edges pointing at ref.
func (db *DB) ReadFollowsByFollowee(ctx context.Context, ref domain.ActorRef) ([]domain.Follow, error) {
	l, r := refArgs(ref)
	return db.queryFollows(ctx, sqlSelectFollowsByFollowee, l, r)
}

func (db *DB) queryFollows(ctx context.Context, query string, args ...interface{}) ([]domain.Follow, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}

func scanFollow(row scanner) (*domain.Follow, error) {
	var f domain.Follow
	if err := row.Scan(&f.Id, &f.LocalFollower, &f.RemoteFollower, &f.LocalFollowee, &f.RemoteFollowee, &f.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &f, nil
}

// CreateFollowRequest fails with domain.ErrConflict when the actor already
// asked to follow the target.
func (db *DB) CreateFollowRequest(ctx context.Context, r *domain.FollowRequest) error {
	fillIdentity(&r.Id, &r.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertFollowRequest, r.Id, r.ActorFQID, jsonOrEmpty(r.ActorJSON), r.TargetId, r.CreatedAt)
		return err
	})
}

func (db *DB) ReadFollowRequest(ctx context.Context, id uuid.UUID) (*domain.FollowRequest, error) {
	return scanFollowRequest(db.db.QueryRowContext(ctx, sqlSelectFollowRequest, id))
}

func (db *DB) ReadFollowRequestsFor(ctx context.Context, target uuid.UUID) ([]domain.FollowRequest, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectFollowRequestsFor, target)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.FollowRequest
	for rows.Next() {
		r, err := scanFollowRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func scanFollowRequest(row scanner) (*domain.FollowRequest, error) {
	var r domain.FollowRequest
	if err := row.Scan(&r.Id, &r.ActorFQID, &r.ActorJSON, &r.TargetId, &r.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

// AcceptFollowRequest records the edge, drops the request and clears the
// request's inbox notice in one transaction.
func (db *DB) AcceptFollowRequest(ctx context.Context, r *domain.FollowRequest, f *domain.Follow) error {
	fillIdentity(&f.Id, &f.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if err := expectRows(tx.ExecContext(ctx, sqlDeleteFollowRequest, r.Id)); err != nil {
			return err
		}
		if err := insertFollow(ctx, tx, f); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, sqlDeleteFollowNotices, r.TargetId, r.Id)
		return err
	})
}

// RejectFollowRequest drops the request and its inbox notice.
func (db *DB) RejectFollowRequest(ctx context.Context, r *domain.FollowRequest) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if err := expectRows(tx.ExecContext(ctx, sqlDeleteFollowRequest, r.Id)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, sqlDeleteFollowNotices, r.TargetId, r.Id)
		return err
	})
}
