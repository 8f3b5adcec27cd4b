package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
)

// Inbox items
const (
	sqlInboxColumns = `id, owner_id, canonical_id, content_kind, object_id, remote_payload, post_status, created_at`

	sqlInsertInboxItem         = `INSERT INTO inbox_items(id, owner_id, canonical_id, content_kind, object_id, remote_payload, post_status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateInboxItemStatus   = `UPDATE inbox_items SET post_status = ? WHERE id = ?`
	sqlDeleteInboxItem         = `DELETE FROM inbox_items WHERE id = ?`
	sqlDeleteInboxItemsByOwner = `DELETE FROM inbox_items WHERE owner_id = ?`
	sqlCountInboxItems         = `SELECT count(*) FROM inbox_items WHERE owner_id = ?`
	sqlSelectInboxPage         = `SELECT ` + sqlInboxColumns + ` FROM inbox_items WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	sqlSelectInboxByCanonical  = `SELECT ` + sqlInboxColumns + ` FROM inbox_items WHERE owner_id = ? AND canonical_id = ? AND content_kind = ? ORDER BY created_at, rowid`
	sqlSelectPostSnapshots     = `SELECT ` + sqlInboxColumns + ` FROM inbox_items WHERE content_kind = 'post' AND remote_payload IS NOT NULL ORDER BY created_at, rowid`
	sqlSelectOwnPostSnapshots  = `SELECT ` + sqlInboxColumns + ` FROM inbox_items WHERE owner_id = ? AND content_kind = 'post' AND remote_payload IS NOT NULL ORDER BY created_at, rowid`
)

// AppendInboxItem adds item to its owner's inbox.
func (db *DB) AppendInboxItem(ctx context.Context, item *domain.InboxItem) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return insertInboxItem(ctx, tx, item)
	})
}

// ReconcileInboxItem loads the owner's items for item's logical object, asks
// plan what to change, and applies the result in the same transaction.
// It reports whether item was inserted.
func (db *DB) ReconcileInboxItem(ctx context.Context, item *domain.InboxItem, plan func(existing []domain.InboxItem) domain.InboxPlan) (bool, error) {
	inserted := false
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		inserted = false
		rows, err := tx.QueryContext(ctx, sqlSelectInboxByCanonical, item.OwnerId, item.CanonicalId, string(item.Kind()))
		if err != nil {
			return err
		}
		existing, err := scanInboxItems(rows)
		if err != nil {
			return err
		}

		p := plan(existing)
		for _, id := range p.Remove {
			if _, err := tx.ExecContext(ctx, sqlDeleteInboxItem, id); err != nil {
				return err
			}
		}
		for id, status := range p.Retag {
			if _, err := tx.ExecContext(ctx, sqlUpdateInboxItemStatus, string(status), id); err != nil {
				return err
			}
		}
		if !p.Insert {
			return nil
		}
		item.Status = p.InsertStatus
		if err := insertInboxItem(ctx, tx, item); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func insertInboxItem(ctx context.Context, tx *sql.Tx, item *domain.InboxItem) error {
	var objectId uuid.NullUUID
	var payload interface{}
	switch c := item.Content.(type) {
	case domain.Materialized:
		objectId = uuid.NullUUID{UUID: c.ObjectId, Valid: true}
	case domain.RemoteSnapshot:
		payload = string(c.Payload)
	default:
		return fmt.Errorf("%w: inbox item without content", domain.ErrInvalidPayload)
	}
	fillIdentity(&item.Id, &item.CreatedAt)
	_, err := tx.ExecContext(ctx, sqlInsertInboxItem, item.Id, item.OwnerId, item.CanonicalId, string(item.Kind()), objectId, payload, string(item.Status), item.CreatedAt)
	return err
}

// ReadInboxItems returns one page of the owner's inbox, newest first, and
// the total number of items.
func (db *DB) ReadInboxItems(ctx context.Context, owner uuid.UUID, limit, offset int) ([]domain.InboxItem, int, error) {
	var total int
	if err := db.db.QueryRowContext(ctx, sqlCountInboxItems, owner).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.db.QueryContext(ctx, sqlSelectInboxPage, owner, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanInboxItems(rows)
	return items, total, err
}

// ReadInboxItemsFor returns the owner's items for one logical object, oldest first.
func (db *DB) ReadInboxItemsFor(ctx context.Context, owner uuid.UUID, canonicalId string, kind domain.ContentKind) ([]domain.InboxItem, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectInboxByCanonical, owner, canonicalId, string(kind))
	if err != nil {
		return nil, err
	}
	return scanInboxItems(rows)
}

// ReadPostSnapshots returns remote post snapshots oldest first, from every
// inbox when owner is not valid and from the owner's inbox otherwise.
func (db *DB) ReadPostSnapshots(ctx context.Context, owner uuid.NullUUID) ([]domain.InboxItem, error) {
	var rows *sql.Rows
	var err error
	if owner.Valid {
		rows, err = db.db.QueryContext(ctx, sqlSelectOwnPostSnapshots, owner.UUID)
	} else {
		rows, err = db.db.QueryContext(ctx, sqlSelectPostSnapshots)
	}
	if err != nil {
		return nil, err
	}
	return scanInboxItems(rows)
}

func (db *DB) ClearInbox(ctx context.Context, owner uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlDeleteInboxItemsByOwner, owner)
		return err
	})
}

func scanInboxItems(rows *sql.Rows) ([]domain.InboxItem, error) {
	defer rows.Close()

	var items []domain.InboxItem
	for rows.Next() {
		var item domain.InboxItem
		var kind, status string
		var objectId uuid.NullUUID
		var payload sql.NullString
		if err := rows.Scan(&item.Id, &item.OwnerId, &item.CanonicalId, &kind, &objectId, &payload, &status, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Status = domain.PostStatus(status)
		if payload.Valid {
			item.Content = domain.RemoteSnapshot{Kind: domain.ContentKind(kind), Payload: json.RawMessage(payload.String)}
		} else {
			item.Content = domain.Materialized{Kind: domain.ContentKind(kind), ObjectId: objectId.UUID}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
