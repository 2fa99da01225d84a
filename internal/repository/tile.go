// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	"context"

	"tilesheet/internal/model"
)

// TileRepository mirrors tilesheet indexes into a queryable store.
// Persistence only; no business logic.
type TileRepository interface {
	// SyncTiles replaces every stored tile of sheet with tiles, creating the sheet row when needed.
	SyncTiles(ctx context.Context, sheet string, tiles []model.Tile) error

	// FindTile returns one tile by sheet and tile name.
	FindTile(ctx context.Context, sheet, name string) (*model.Tile, error)

	// ListTiles returns a page of a sheet's tiles in slot order and the total count.
	ListTiles(ctx context.Context, sheet string, pq PageQuery) (*PageResult[model.Tile], error)

	// DeleteSheet removes the sheet row and, by cascade, its tiles. A missing sheet is not an error.
	DeleteSheet(ctx context.Context, sheet string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
