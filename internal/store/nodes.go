package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Node is a logical track whose locations are ordered by timestamp.
type Node struct {
	ID        string
	Name      string
	CreatedAt int64
}

// EnsureNode creates the node if it does not exist yet and returns it.
// An empty id gets a generated one.
func (db *DB) EnsureNode(ctx context.Context, id, name string) (*Node, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO nodes (id, name, created_at) VALUES (?, ?, ?)
	`, id, name, now)
	if err != nil {
		return nil, unavailable("ensure node", err)
	}
	return db.GetNode(ctx, id)
}

// GetNode returns a node by id, or ErrNotFound.
func (db *DB) GetNode(ctx context.Context, id string) (*Node, error) {
	var n Node
	err := db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM nodes WHERE id = ?
	`, id).Scan(&n.ID, &n.Name, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get node", err)
	}
	return &n, nil
}

// ListNodes returns all nodes ordered by creation time.
func (db *DB) ListNodes(ctx context.Context) ([]Node, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, created_at FROM nodes ORDER BY created_at, id
	`)
	if err != nil {
		return nil, unavailable("list nodes", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Name, &n.CreatedAt); err != nil {
			return nil, unavailable("scan node", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list nodes", err)
	}
	return nodes, nil
}

// CountLocations returns how many locations are stored for a node.
func (db *DB) CountLocations(ctx context.Context, nodeID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM locations WHERE node_id = ?", nodeID).Scan(&count)
	if err != nil {
		return 0, unavailable("count locations", err)
	}
	return count, nil
}
