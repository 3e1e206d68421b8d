package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Location is a timestamped position belonging to a node.
type Location struct {
	ID        string  `json:"id" validate:"required"`
	NodeID    string  `json:"node" validate:"required"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lon       float64 `json:"lon" validate:"longitude"`
	Timestamp int64   `json:"ts" validate:"gt=0"` // unix milliseconds
	Score     Score   `json:"-" validate:"-"`
}

const locationColumns = `id, node_id, lat, lon, ts, score_kind, score_area`

// InsertLocation stores a new location. An empty ID gets a generated one.
func (db *DB) InsertLocation(ctx context.Context, loc *Location) error {
	return db.InsertLocations(ctx, []*Location{loc})
}

// InsertLocations stores locations in a single transaction.
func (db *DB) InsertLocations(ctx context.Context, locs []*Location) error {
	if len(locs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin insert locations", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations (id, node_id, lat, lon, ts, score_kind, score_area, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return unavailable("prepare insert location", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, loc := range locs {
		if loc.ID == "" {
			loc.ID = uuid.NewString()
		}
		kind, area := loc.Score.columns()
		if _, err := stmt.ExecContext(ctx, loc.ID, loc.NodeID, loc.Lat, loc.Lon, loc.Timestamp, kind, area, now); err != nil {
			return insertError(loc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit insert locations", err)
	}
	return nil
}

// GetLocation returns a location by id, or ErrNotFound.
func (db *DB) GetLocation(ctx context.Context, id string) (*Location, error) {
	row := db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get location", err)
	}
	return loc, nil
}

// RecentLocations returns up to limit locations for a node, newest first.
// Equal timestamps are ordered by insertion, latest insert first. A known
// node without locations yields an empty slice; an unknown node ErrNotFound.
func (db *DB) RecentLocations(ctx context.Context, nodeID string, limit int) ([]Location, error) {
	if _, err := db.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+locationColumns+`
		FROM locations WHERE node_id = ?
		ORDER BY ts DESC, seq DESC LIMIT ?
	`, nodeID, limit)
	if err != nil {
		return nil, unavailable("recent locations", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// ListLocations returns up to limit locations for a node in timestamp order.
// A limit <= 0 returns all of them.
func (db *DB) ListLocations(ctx context.Context, nodeID string, limit int) ([]Location, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+locationColumns+`
		FROM locations WHERE node_id = ?
		ORDER BY ts, seq LIMIT ?
	`, nodeID, limit)
	if err != nil {
		return nil, unavailable("list locations", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// UpdateScore persists the score of a single location.
func (db *DB) UpdateScore(ctx context.Context, locationID string, score Score) error {
	return db.UpdateScores(ctx, map[string]Score{locationID: score})
}

// UpdateScores persists many scores in one transaction. If any location is
// missing, nothing is written and ErrConflictOrMissing is returned.
func (db *DB) UpdateScores(ctx context.Context, scores map[string]Score) error {
	if len(scores) == 0 {
		return nil
	}

	// Stable write order keeps lock acquisition and error messages deterministic.
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin update scores", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE locations SET score_kind = ?, score_area = ?, scored_at = ? WHERE id = ?
	`)
	if err != nil {
		return unavailable("prepare update score", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, id := range ids {
		kind, area := scores[id].columns()
		result, err := stmt.ExecContext(ctx, kind, area, now, id)
		if err != nil {
			return unavailable(fmt.Sprintf("update score %s", id), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return unavailable("rows affected", err)
		}
		if n == 0 {
			return fmt.Errorf("update score %s: %w", id, ErrConflictOrMissing)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit update scores", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var kind sql.NullString
	var area sql.NullFloat64
	if err := row.Scan(&loc.ID, &loc.NodeID, &loc.Lat, &loc.Lon, &loc.Timestamp, &kind, &area); err != nil {
		return nil, err
	}
	loc.Score = scoreFromColumns(kind, area)
	return &loc, nil
}

func scanLocations(rows *sql.Rows) ([]Location, error) {
	locs := []Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, unavailable("scan location", err)
		}
		locs = append(locs, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("scan locations", err)
	}
	return locs, nil
}
