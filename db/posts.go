package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
)

// Posts
const (
	sqlPostColumns = `id, author_id, title, description, content_type, content, visibility, created_at, modified_at`

	sqlInsertPost     = `INSERT INTO posts(id, author_id, title, description, content_type, content, visibility, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdatePost     = `UPDATE posts SET title = ?, description = ?, content_type = ?, content = ?, visibility = ?, modified_at = ? WHERE id = ?`
	sqlSelectPostById = `SELECT ` + sqlPostColumns + ` FROM posts WHERE id = ?`
)

func (db *DB) CreatePost(ctx context.Context, save domain.SavePost) (*domain.Post, error) {
	now := time.Now().UTC()
	post := &domain.Post{
		Id:          uuid.New(),
		AuthorId:    save.AuthorId,
		Title:       save.Title,
		Description: save.Description,
		ContentType: save.ContentType,
		Content:     save.Content,
		Visibility:  save.Visibility,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if post.ContentType == "" {
		post.ContentType = "text/plain"
	}
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertPost, post.Id, post.AuthorId, post.Title, post.Description, post.ContentType, post.Content, string(post.Visibility), post.CreatedAt, post.ModifiedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost writes the mutable fields of post and bumps its modification time.
func (db *DB) UpdatePost(ctx context.Context, post *domain.Post) error {
	post.ModifiedAt = time.Now().UTC()
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRows(tx.ExecContext(ctx, sqlUpdatePost, post.Title, post.Description, post.ContentType, post.Content, string(post.Visibility), post.ModifiedAt, post.Id))
	})
}

func (db *DB) ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return scanPost(db.db.QueryRowContext(ctx, sqlSelectPostById, id))
}

// ReadPostsByVisibility returns every post with one of the given visibilities,
// newest first.
func (db *DB) ReadPostsByVisibility(ctx context.Context, visibilities []domain.Visibility) ([]domain.Post, error) {
	if len(visibilities) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(visibilities))
	for _, v := range visibilities {
		args = append(args, string(v))
	}
	query := `SELECT ` + sqlPostColumns + ` FROM posts WHERE visibility IN (` + placeholders(len(visibilities)) + `) ORDER BY created_at DESC`
	return db.queryPosts(ctx, query, args...)
}

// ReadPostsByAuthors returns posts written by any of authors with one of the
// given visibilities, newest first.
func (db *DB) ReadPostsByAuthors(ctx context.Context, authors []uuid.UUID, visibilities []domain.Visibility) ([]domain.Post, error) {
	if len(authors) == 0 || len(visibilities) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(authors)+len(visibilities))
	for _, a := range authors {
		args = append(args, a)
	}
	for _, v := range visibilities {
		args = append(args, string(v))
	}
	query := `SELECT ` + sqlPostColumns + ` FROM posts WHERE author_id IN (` + placeholders(len(authors)) +
		`) AND visibility IN (` + placeholders(len(visibilities)) + `) ORDER BY created_at DESC`
	return db.queryPosts(ctx, query, args...)
}

func (db *DB) queryPosts(ctx context.Context, query string, args ...interface{}) ([]domain.Post, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func scanPost(row scanner) (*domain.Post, error) {
	var post domain.Post
	var visibility string
	err := row.Scan(&post.Id, &post.AuthorId, &post.Title, &post.Description, &post.ContentType, &post.Content, &visibility, &post.CreatedAt, &post.ModifiedAt)
	if err != nil {
		return nil, mapError(err)
	}
	post.Visibility = domain.Visibility(visibility)
	return &post, nil
}
