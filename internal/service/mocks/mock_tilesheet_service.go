package mocks

import (
	"context"
	"io"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"

	"tilesheet/internal/model"
	"tilesheet/internal/service"
	"tilesheet/internal/storage"
)

type MockTilesheetService struct {
	mock.Mock
}

func (m *MockTilesheetService) Update(ctx context.Context, name string, src afero.Fs, root string) (*service.UpdateResult, error) {
	args := m.Called(ctx, name, src, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UpdateResult), args.Error(1)
}

func (m *MockTilesheetService) AddTile(ctx context.Context, sheet, tile string, r io.Reader) (*model.Tile, error) {
	args := m.Called(ctx, sheet, tile, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tile), args.Error(1)
}

func (m *MockTilesheetService) RemoveTile(ctx context.Context, sheet, tile string) error {
	args := m.Called(ctx, sheet, tile)
	return args.Error(0)
}

func (m *MockTilesheetService) DeleteTilesheet(ctx context.Context, sheet string) error {
	args := m.Called(ctx, sheet)
	return args.Error(0)
}

func (m *MockTilesheetService) ListTiles(ctx context.Context, sheet string, limit, offset int) (*service.TileListResult, error) {
	args := m.Called(ctx, sheet, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TileListResult), args.Error(1)
}

func (m *MockTilesheetService) GetTile(ctx context.Context, sheet, tile string) (*model.Tile, error) {
	args := m.Called(ctx, sheet, tile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tile), args.Error(1)
}

func (m *MockTilesheetService) OpenSheet(ctx context.Context, sheet string, size int) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, sheet, size)
	if args.Get(0) == nil {
		return nil, storage.ObjectInfo{}, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockTilesheetService) SheetURL(ctx context.Context, sheet string, size int) (string, error) {
	args := m.Called(ctx, sheet, size)
	return args.String(0), args.Error(1)
}

func (m *MockTilesheetService) Index(ctx context.Context, sheet string) (io.ReadCloser, error) {
	args := m.Called(ctx, sheet)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}
