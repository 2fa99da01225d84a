package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tilesheet/internal/model"
	"tilesheet/internal/repository"
)

// TilePostgres is a PostgreSQL implementation of repository.TileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type TilePostgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewTilePostgres creates a new TilePostgres repository.
func NewTilePostgres(db *sql.DB) *TilePostgres {
	return &TilePostgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.TileRepository = (*TilePostgres)(nil)

// SyncTiles rewrites the tile rows of a sheet inside one transaction.
func (r *TilePostgres) SyncTiles(ctx context.Context, sheet string, tiles []model.Tile) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	const qSheet = `
		INSERT INTO tilesheets (name, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`
	if _, err = tx.ExecContext(ctx, qSheet, sheet, now); err != nil {
		return fmt.Errorf("upsert tilesheet: %w", err)
	}

	const qClear = `DELETE FROM tiles WHERE sheet = $1`
	if _, err = tx.ExecContext(ctx, qClear, sheet); err != nil {
		return fmt.Errorf("clear tiles: %w", err)
	}

	const qInsert = `
		INSERT INTO tiles (id, sheet, name, x, y, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, t := range tiles {
		if _, err = tx.ExecContext(ctx, qInsert, t.ID, sheet, t.Name, t.X, t.Y, now); err != nil {
			return fmt.Errorf("insert tile %q: %w", t.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindTile fetches a single tile. sql.ErrNoRows is returned unwrapped when absent.
func (r *TilePostgres) FindTile(ctx context.Context, sheet, name string) (*model.Tile, error) {
	const q = `
		SELECT id, sheet, name, x, y, updated_at
		FROM tiles
		WHERE sheet = $1 AND name = $2
	`
	var t model.Tile
	if err := r.db.QueryRowContext(ctx, q, sheet, name).Scan(
		&t.ID,
		&t.Sheet,
		&t.Name,
		&t.X,
		&t.Y,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTiles returns tiles using LIMIT/OFFSET pagination in slot order and a total count.
func (r *TilePostgres) ListTiles(ctx context.Context, sheet string, pq repository.PageQuery) (*repository.PageResult[model.Tile], error) {
	const qCount = `SELECT COUNT(*) FROM tiles WHERE sheet = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, sheet).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, sheet, name, x, y, updated_at
		FROM tiles
		WHERE sheet = $1
		ORDER BY y, x
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, sheet, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Tile, 0)
	for rows.Next() {
		var t model.Tile
		if err := rows.Scan(
			&t.ID,
			&t.Sheet,
			&t.Name,
			&t.X,
			&t.Y,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Tile]{
		Items: items,
		Total: total,
	}, nil
}

// DeleteSheet drops the sheet row; tiles go with it through ON DELETE CASCADE.
func (r *TilePostgres) DeleteSheet(ctx context.Context, sheet string) error {
	const q = `DELETE FROM tilesheets WHERE name = $1`
	if _, err := r.db.ExecContext(ctx, q, sheet); err != nil {
		return fmt.Errorf("delete tilesheet: %w", err)
	}
	return nil
}
