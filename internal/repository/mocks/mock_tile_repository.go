package mocks

import (
	"context"

	"tilesheet/internal/model"
	"tilesheet/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockTileRepository struct {
	mock.Mock
}

func (m *MockTileRepository) SyncTiles(ctx context.Context, sheet string, tiles []model.Tile) error {
	args := m.Called(ctx, sheet, tiles)
	return args.Error(0)
}

func (m *MockTileRepository) FindTile(ctx context.Context, sheet, name string) (*model.Tile, error) {
	args := m.Called(ctx, sheet, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tile), args.Error(1)
}

func (m *MockTileRepository) ListTiles(ctx context.Context, sheet string, pq repository.PageQuery) (*repository.PageResult[model.Tile], error) {
	args := m.Called(ctx, sheet, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Tile]), args.Error(1)
}

func (m *MockTileRepository) DeleteSheet(ctx context.Context, sheet string) error {
	args := m.Called(ctx, sheet)
	return args.Error(0)
}
