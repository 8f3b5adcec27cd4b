package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/nodeweave/domain"
)

// Nodes
const (
	sqlInsertNode           = `INSERT INTO nodes(host, username, password_hash, authorized, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlUpdateNodeAuthorized = `UPDATE nodes SET authorized = ? WHERE host = ?`
	sqlSelectNodeByHost     = `SELECT host, username, password_hash, authorized, created_at FROM nodes WHERE host = ?`
	sqlSelectNodeByUsername = `SELECT host, username, password_hash, authorized, created_at FROM nodes WHERE username = ?`
	sqlSelectNodes          = `SELECT host, username, password_hash, authorized, created_at FROM nodes ORDER BY host`
)

// CreateNode fails with domain.ErrConflict for a known host or username.
func (db *DB) CreateNode(ctx context.Context, n *domain.Node) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertNode, n.Host, n.Username, n.PasswordHash, n.Authorized, n.CreatedAt)
		return err
	})
}

func (db *DB) UpdateNodeAuthorized(ctx context.Context, host string, authorized bool) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRows(tx.ExecContext(ctx, sqlUpdateNodeAuthorized, authorized, host))
	})
}

func (db *DB) ReadNodeByHost(ctx context.Context, host string) (*domain.Node, error) {
	return scanNode(db.db.QueryRowContext(ctx, sqlSelectNodeByHost, host))
}

func (db *DB) ReadNodeByUsername(ctx context.Context, username string) (*domain.Node, error) {
	return scanNode(db.db.QueryRowContext(ctx, sqlSelectNodeByUsername, username))
}

func (db *DB) ReadNodes(ctx context.Context) ([]domain.Node, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func scanNode(row scanner) (*domain.Node, error) {
	var n domain.Node
	if err := row.Scan(&n.Host, &n.Username, &n.PasswordHash, &n.Authorized, &n.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &n, nil
}
