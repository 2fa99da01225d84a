package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tilesheet/internal/model"
	"tilesheet/internal/repository"
	repoMocks "tilesheet/internal/repository/mocks"
	"tilesheet/internal/storage"
	storeMocks "tilesheet/internal/storage/mocks"
	"tilesheet/internal/tilesheet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	green = color.NRGBA{G: 0xff, A: 0xff}
	red   = color.NRGBA{R: 0xff, A: 0xff}
)

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func readSheet(t *testing.T, store storage.Storage, name string, size int) *image.NRGBA {
	t.Helper()
	rc, _, err := store.Get(context.Background(), tilesheet.SheetFileName(name, size))
	require.NoError(t, err)
	defer rc.Close()
	img, err := png.Decode(rc)
	require.NoError(t, err)
	sh, err := tilesheet.LoadSheet(size, img)
	require.NoError(t, err)
	return sh.Image
}

func tileNames(tiles []model.Tile) []string {
	out := make([]string, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, fmt.Sprintf("%d %d %s", t.X, t.Y, t.Name))
	}
	return out
}

func TestTilesheetService_Update(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	src := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(src, "/work/Blocks/grass.png", pngBytes(t, 8, 8, green), 0o644))
	require.NoError(t, afero.WriteFile(src, "/work/Blocks/sub/stone.png", pngBytes(t, 8, 8, red), 0o644))
	require.NoError(t, afero.WriteFile(src, "/work/Blocks/readme.txt", []byte("not a tile"), 0o644))

	mRepo := new(repoMocks.MockTileRepository)
	mRepo.On("SyncTiles", ctx, "Blocks", mock.MatchedBy(func(tiles []model.Tile) bool {
		return assert.ObjectsAreEqual([]string{"0 0 grass", "1 0 stone"}, tileNames(tiles)) &&
			tiles[0].ID == tileID("Blocks", "grass")
	})).Return(nil).Once()

	svc := NewTilesheetService(store, mRepo, Options{Sizes: []int{4, 8}})

	res, err := svc.Update(ctx, "Blocks", src, "/work/Blocks")
	require.NoError(t, err)
	assert.Equal(t, &UpdateResult{Sheet: "Blocks", Tiles: 2, Added: 2, Total: 2}, res)

	rc, err := svc.Index(ctx, "Blocks")
	require.NoError(t, err)
	assert.Equal(t, "0 0 grass\n1 0 stone\n", readAll(t, rc))

	for _, size := range []int{4, 8} {
		img := readSheet(t, store, "Blocks", size)
		assert.Equal(t, image.Rect(0, 0, size*tilesheet.Columns, size), img.Bounds())
		assert.Equal(t, green, img.NRGBAAt(size/2, size/2))
		assert.Equal(t, red, img.NRGBAAt(size+size/2, size/2))
	}
	mRepo.AssertExpectations(t)

	t.Run("second run keeps slots and appends new tiles", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(src, "/work/Blocks/dirt.png", pngBytes(t, 4, 4, red), 0o644))
		mRepo.On("SyncTiles", ctx, "Blocks", mock.Anything).Return(nil).Once()

		res, err := svc.Update(ctx, "Blocks", src, "/work/Blocks")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Tiles)
		assert.Equal(t, 1, res.Added)
		assert.Equal(t, 3, res.Total)

		rc, err := svc.Index(ctx, "Blocks")
		require.NoError(t, err)
		assert.Equal(t, "0 0 grass\n1 0 stone\n2 0 dirt\n", readAll(t, rc))
		mRepo.AssertExpectations(t)
	})
}

func TestTilesheetService_UpdateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing source", func(t *testing.T) {
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{4}})
		_, err := svc.Update(ctx, "Blocks", afero.NewMemMapFs(), "/nowhere")
		assert.Error(t, err)
	})

	t.Run("non square tile", func(t *testing.T) {
		src := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(src, "/t/wide.png", pngBytes(t, 8, 4, green), 0o644))
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{4}})

		_, err := svc.Update(ctx, "Blocks", src, "/t")
		assert.ErrorIs(t, err, ErrInvalidImage)
		assert.ErrorIs(t, err, tilesheet.ErrTileNotSquare)
	})

	t.Run("corrupt png", func(t *testing.T) {
		src := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(src, "/t/bad.png", []byte("nope"), 0o644))
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{4}})

		_, err := svc.Update(ctx, "Blocks", src, "/t")
		assert.ErrorIs(t, err, ErrInvalidImage)
	})

	t.Run("invalid sheet name", func(t *testing.T) {
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{4}})
		_, err := svc.Update(ctx, "../etc", afero.NewMemMapFs(), "/")
		assert.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("repository failure", func(t *testing.T) {
		src := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(src, "/t/grass.png", pngBytes(t, 4, 4, green), 0o644))
		mRepo := new(repoMocks.MockTileRepository)
		mRepo.On("SyncTiles", ctx, "Blocks", mock.Anything).Return(errors.New("db fail"))
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), mRepo, Options{Sizes: []int{4}})

		_, err := svc.Update(ctx, "Blocks", src, "/t")
		assert.ErrorContains(t, err, "sync index: db fail")
	})
}

func TestTilesheetService_AddTile(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		sheet   string
		tile    string
		body    func(t *testing.T) io.Reader
		wantErr error
	}{
		{
			name:  "happy path",
			sheet: "Blocks",
			tile:  "Grass Block",
			body:  func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 16, 16, green)) },
		},
		{
			name:    "validation error - empty tile name",
			sheet:   "Blocks",
			tile:    "",
			body:    func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 4, 4, green)) },
			wantErr: ErrNameRequired,
		},
		{
			name:    "validation error - line break in name",
			sheet:   "Blocks",
			tile:    "a\nb",
			body:    func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 4, 4, green)) },
			wantErr: ErrInvalidName,
		},
		{
			name:    "validation error - name too long",
			sheet:   "Blocks",
			tile:    strings.Repeat("a", MaxNameLength+1),
			body:    func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 4, 4, green)) },
			wantErr: ErrInvalidName,
		},
		{
			name:  "longest accepted name",
			sheet: "Blocks",
			tile:  strings.Repeat("a", MaxNameLength),
			body:  func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 4, 4, green)) },
		},
		{
			name:    "validation error - nil reader",
			sheet:   "Blocks",
			tile:    "grass",
			body:    func(t *testing.T) io.Reader { return nil },
			wantErr: ErrReaderNil,
		},
		{
			name:    "not a png",
			sheet:   "Blocks",
			tile:    "grass",
			body:    func(t *testing.T) io.Reader { return strings.NewReader("hello") },
			wantErr: ErrInvalidImage,
		},
		{
			name:    "not square",
			sheet:   "Blocks",
			tile:    "grass",
			body:    func(t *testing.T) io.Reader { return bytes.NewReader(pngBytes(t, 4, 2, green)) },
			wantErr: ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewFromFs(afero.NewMemMapFs())
			svc := NewTilesheetService(store, nil, Options{Sizes: []int{8}})

			tile, err := svc.AddTile(ctx, tt.sheet, tt.tile, tt.body(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tile, tile.Name)
			assert.Equal(t, 0, tile.X)
			assert.Equal(t, 0, tile.Y)
			assert.Equal(t, green, readSheet(t, store, tt.sheet, 8).NRGBAAt(3, 3))
		})
	}
}

func TestTilesheetService_AddTileConcurrent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	svc := NewTilesheetService(store, nil, Options{Sizes: []int{2}})
	data := pngBytes(t, 2, 2, green)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddTile(ctx, "Blocks", fmt.Sprintf("tile-%02d", i), bytes.NewReader(data))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rc, err := svc.Index(ctx, "Blocks")
	require.NoError(t, err)
	entries, err := tilesheet.ParseIndex(strings.NewReader(readAll(t, rc)))
	require.NoError(t, err)
	assert.Len(t, entries, n)

	img := readSheet(t, store, "Blocks", 2)
	assert.Equal(t, 2*((n+tilesheet.Columns-1)/tilesheet.Columns), img.Bounds().Dy())
}

func TestTilesheetService_RemoveTile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	svc := NewTilesheetService(store, nil, Options{Sizes: []int{4}})

	err := svc.RemoveTile(ctx, "Blocks", "grass")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddTile(ctx, "Blocks", "grass", bytes.NewReader(pngBytes(t, 4, 4, green)))
	require.NoError(t, err)
	_, err = svc.AddTile(ctx, "Blocks", "stone", bytes.NewReader(pngBytes(t, 4, 4, red)))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTile(ctx, "Blocks", "grass"))

	rc, err := svc.Index(ctx, "Blocks")
	require.NoError(t, err)
	assert.Equal(t, "1 0 stone\n", readAll(t, rc))
	assert.Equal(t, color.NRGBA{}, readSheet(t, store, "Blocks", 4).NRGBAAt(1, 1))

	err = svc.RemoveTile(ctx, "Blocks", "grass")
	assert.ErrorIs(t, err, ErrNotFound)

	// The freed slot is reused by the next new tile.
	tile, err := svc.AddTile(ctx, "Blocks", "dirt", bytes.NewReader(pngBytes(t, 4, 4, red)))
	require.NoError(t, err)
	assert.Equal(t, 0, tile.X)
}

func TestTilesheetService_ListTiles(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockTileRepository)
		wantErr    bool
		checkRes   func(t *testing.T, res *TileListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {
				mRepo.On("ListTiles", ctx, "Blocks", repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Tile]{
						Items: []model.Tile{{Name: "grass"}, {Name: "stone", X: 1}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *TileListResult) {
				assert.Len(t, res.Items, 2)
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {
				mRepo.On("ListTiles", ctx, "Blocks", repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Tile]{Items: []model.Tile{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {
				mRepo.On("ListTiles", ctx, "Blocks", mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockTileRepository)
			svc := NewTilesheetService(nil, mRepo, Options{Sizes: []int{16}})

			tt.setupMocks(mRepo)

			res, err := svc.ListTiles(ctx, "Blocks", tt.limit, tt.offset)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}

	t.Run("without repository", func(t *testing.T) {
		svc := NewTilesheetService(nil, nil, Options{Sizes: []int{16}})
		_, err := svc.ListTiles(ctx, "Blocks", 10, 0)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})
}

func TestTilesheetService_GetTile(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		tile       string
		setupMocks func(mRepo *repoMocks.MockTileRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			tile: "grass",
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {
				mRepo.On("FindTile", ctx, "Blocks", "grass").Return(&model.Tile{Name: "grass", X: 2}, nil)
			},
		},
		{
			name:       "validation - empty name",
			tile:       "",
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {},
			wantErr:    ErrNameRequired,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			tile: "missing",
			setupMocks: func(mRepo *repoMocks.MockTileRepository) {
				mRepo.On("FindTile", ctx, "Blocks", "missing").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockTileRepository)
			svc := NewTilesheetService(nil, mRepo, Options{Sizes: []int{16}})

			tt.setupMocks(mRepo)

			tile, err := svc.GetTile(ctx, "Blocks", tt.tile)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tile)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.tile, tile.Name)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestTilesheetService_OpenSheet(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	svc := NewTilesheetService(store, nil, Options{Sizes: []int{4}})

	_, _, err := svc.OpenSheet(ctx, "Blocks", 4)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.OpenSheet(ctx, "Blocks", 5)
	assert.ErrorIs(t, err, ErrUnknownSize)

	_, err = svc.AddTile(ctx, "Blocks", "grass", bytes.NewReader(pngBytes(t, 4, 4, green)))
	require.NoError(t, err)

	rc, info, err := svc.OpenSheet(ctx, "Blocks", 4)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", info.ContentType)
	img, err := png.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, 4*tilesheet.Columns, img.Bounds().Dx())
}

func TestTilesheetService_SheetURL(t *testing.T) {
	ctx := context.Background()

	t.Run("presigned", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("PresignGet", ctx, "Tilesheet Blocks 16.png", 15*time.Minute).Return("https://s3/x", nil)
		svc := NewTilesheetService(mStore, nil, Options{Sizes: []int{16}})

		u, err := svc.SheetURL(ctx, "Blocks", 16)
		require.NoError(t, err)
		assert.Equal(t, "https://s3/x", u)
		mStore.AssertExpectations(t)
	})

	t.Run("local backend", func(t *testing.T) {
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{16}})
		_, err := svc.SheetURL(ctx, "Blocks", 16)
		assert.ErrorIs(t, err, ErrNotSupported)
	})
}

func TestTilesheetService_SaveFailure(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	mStore := new(storeMocks.MockStorage)
	mStore.On("Get", ctx, mock.Anything).Return(nil, storage.ObjectInfo{}, storage.ErrNotFound)
	mStore.On("Put", ctx, "Tilesheet Blocks 4.png", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("bucket gone"))

	svc := NewTilesheetService(mStore, nil, Options{Sizes: []int{4}, Metrics: metrics})

	_, err = svc.AddTile(ctx, "Blocks", "grass", bytes.NewReader(pngBytes(t, 4, 4, green)))
	assert.ErrorContains(t, err, "bucket gone")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tilesInserted.WithLabelValues("Blocks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.saves.WithLabelValues("Blocks", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.saves.WithLabelValues("Blocks", "success")))
	mStore.AssertExpectations(t)
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestTilesheetService_LongNameKeepsSheetLoadable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	svc := NewTilesheetService(store, nil, Options{Sizes: []int{4}})

	_, err := svc.AddTile(ctx, "s", strings.Repeat("a", 70000), bytes.NewReader(pngBytes(t, 4, 4, green)))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.AddTile(ctx, "s", "b", bytes.NewReader(pngBytes(t, 4, 4, green)))
	require.NoError(t, err)
	require.NoError(t, svc.RemoveTile(ctx, "s", "b"))
}

func TestTilesheetService_LoadsIndexWithLongLines(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFromFs(afero.NewMemMapFs())
	index := "0 0 " + strings.Repeat("x", 70000) + "\n"
	_, err := store.Put(ctx, tilesheet.IndexFileName("s"), strings.NewReader(index), storage.PutObjectOptions{Size: int64(len(index))})
	require.NoError(t, err)

	svc := NewTilesheetService(store, nil, Options{Sizes: []int{4}})
	tile, err := svc.AddTile(ctx, "s", "b", bytes.NewReader(pngBytes(t, 4, 4, green)))
	require.NoError(t, err)
	assert.Equal(t, 1, tile.X)
}

func TestTilesheetService_DeleteTilesheet(t *testing.T) {
	ctx := context.Background()

	t.Run("removes index, sheets and mirror", func(t *testing.T) {
		store := storage.NewFromFs(afero.NewMemMapFs())
		mRepo := new(repoMocks.MockTileRepository)
		mRepo.On("SyncTiles", ctx, "Blocks", mock.Anything).Return(nil)
		mRepo.On("DeleteSheet", ctx, "Blocks").Return(nil).Once()
		svc := NewTilesheetService(store, mRepo, Options{Sizes: []int{4, 8}})

		_, err := svc.AddTile(ctx, "Blocks", "grass", bytes.NewReader(pngBytes(t, 4, 4, green)))
		require.NoError(t, err)

		require.NoError(t, svc.DeleteTilesheet(ctx, "Blocks"))

		_, err = svc.Index(ctx, "Blocks")
		assert.ErrorIs(t, err, ErrNotFound)
		for _, size := range []int{4, 8} {
			_, _, err := svc.OpenSheet(ctx, "Blocks", size)
			assert.ErrorIs(t, err, ErrNotFound)
		}
		mRepo.AssertExpectations(t)

		assert.ErrorIs(t, svc.DeleteTilesheet(ctx, "Blocks"), ErrNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Get", ctx, "Tilesheet Blocks.txt").
			Return(io.NopCloser(strings.NewReader("0 0 grass\n")), storage.ObjectInfo{}, nil)
		mStore.On("Delete", ctx, "Tilesheet Blocks 4.png").Return(errors.New("bucket gone"))
		svc := NewTilesheetService(mStore, nil, Options{Sizes: []int{4}})

		err := svc.DeleteTilesheet(ctx, "Blocks")
		assert.ErrorContains(t, err, "bucket gone")
		mStore.AssertExpectations(t)
		mStore.AssertNotCalled(t, "Delete", ctx, "Tilesheet Blocks.txt")
	})

	t.Run("invalid name", func(t *testing.T) {
		svc := NewTilesheetService(storage.NewFromFs(afero.NewMemMapFs()), nil, Options{Sizes: []int{4}})
		assert.ErrorIs(t, svc.DeleteTilesheet(ctx, "a/b"), ErrInvalidName)
	})
}
