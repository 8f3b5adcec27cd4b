package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
)

// Comments, likes and shares
const (
	sqlInsertComment        = `INSERT INTO comments(id, post_id, author_fqid, author_json, comment, content_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectCommentById    = `SELECT id, post_id, author_fqid, author_json, comment, content_type, created_at FROM comments WHERE id = ?`
	sqlSelectCommentsByPost = `SELECT id, post_id, author_fqid, author_json, comment, content_type, created_at FROM comments WHERE post_id = ? ORDER BY created_at DESC`

	sqlInsertLike          = `INSERT INTO likes(id, author_fqid, author_json, object_fqid, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectLikesByObject = `SELECT id, author_fqid, author_json, object_fqid, created_at FROM likes WHERE object_fqid = ? ORDER BY created_at DESC`
	sqlCountLikesByObject  = `SELECT count(*) FROM likes WHERE object_fqid = ?`

	sqlInsertShare  = `INSERT INTO shares(id, sharer_id, post_fqid, receiver_fqid, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlShareColumns = `id, sharer_id, post_fqid, receiver_fqid, created_at`
)

func (db *DB) CreateComment(ctx context.Context, c *domain.Comment) error {
	fillIdentity(&c.Id, &c.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertComment, c.Id, c.PostId, c.AuthorFQID, jsonOrEmpty(c.AuthorJSON), c.Comment, c.ContentType, c.CreatedAt)
		return err
	})
}

func (db *DB) ReadCommentById(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	return scanComment(db.db.QueryRowContext(ctx, sqlSelectCommentById, id))
}

func (db *DB) ReadCommentsByPost(ctx context.Context, postId uuid.UUID) ([]domain.Comment, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectCommentsByPost, postId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func scanComment(row scanner) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.Id, &c.PostId, &c.AuthorFQID, &c.AuthorJSON, &c.Comment, &c.ContentType, &c.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// CreateLike fails with domain.ErrConflict when the author already liked the object.
func (db *DB) CreateLike(ctx context.Context, l *domain.Like) error {
	fillIdentity(&l.Id, &l.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertLike, l.Id, l.AuthorFQID, jsonOrEmpty(l.AuthorJSON), l.ObjectFQID, l.CreatedAt)
		return err
	})
}

func (db *DB) ReadLikesByObject(ctx context.Context, objectFQID string) ([]domain.Like, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectLikesByObject, objectFQID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var likes []domain.Like
	for rows.Next() {
		var l domain.Like
		if err := rows.Scan(&l.Id, &l.AuthorFQID, &l.AuthorJSON, &l.ObjectFQID, &l.CreatedAt); err != nil {
			return nil, err
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}

func (db *DB) CountLikes(ctx context.Context, objectFQID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, sqlCountLikesByObject, objectFQID).Scan(&n)
	return n, err
}

// CreateShare fails with domain.ErrConflict on a repeated (sharer, post, receiver).
func (db *DB) CreateShare(ctx context.Context, s *domain.Share) error {
	fillIdentity(&s.Id, &s.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertShare, s.Id, s.SharerId, s.PostFQID, s.ReceiverFQID, s.CreatedAt)
		return err
	})
}

// ReadSharesBySharers returns shares made by any of sharers, newest first.
func (db *DB) ReadSharesBySharers(ctx context.Context, sharers []uuid.UUID) ([]domain.Share, error) {
	if len(sharers) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(sharers))
	for _, s := range sharers {
		args = append(args, s)
	}
	rows, err := db.db.QueryContext(ctx, `SELECT `+sqlShareColumns+` FROM shares WHERE sharer_id IN (`+placeholders(len(sharers))+`) ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []domain.Share
	for rows.Next() {
		var s domain.Share
		if err := rows.Scan(&s.Id, &s.SharerId, &s.PostFQID, &s.ReceiverFQID, &s.CreatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

func fillIdentity(id *uuid.UUID, createdAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

func jsonOrEmpty(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
