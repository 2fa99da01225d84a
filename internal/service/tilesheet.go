package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tilesheet/internal/model"
	"tilesheet/internal/repository"
	"tilesheet/internal/storage"
	"tilesheet/internal/tilesheet"
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidName      = errors.New("invalid name")
	ErrReaderNil        = errors.New("reader is nil")
	ErrInvalidImage     = errors.New("tile is not a valid square PNG image")
	ErrNotFound         = errors.New("tilesheet or tile not found")
	ErrUnknownSize      = errors.New("tile size is not configured")
	ErrIndexUnavailable = errors.New("tile index is not available")
	ErrNotSupported     = errors.New("not supported by storage backend")
)

const tileExt = ".png"

// MaxNameLength caps tile and sheet names in bytes.
const MaxNameLength = 255

// TileListResult is the service-level DTO for paginated tiles.
type TileListResult struct {
	Items []model.Tile `json:"data"`
	Total int          `json:"total"`
}

// UpdateResult summarises a batch update.
type UpdateResult struct {
	Sheet string `json:"sheet"`
	Tiles int    `json:"tiles"`
	Added int    `json:"added"`
	// Total is the number of tiles in the tilesheet after the update.
	Total int `json:"total"`
}

// TilesheetService defines the use cases for building and reading tilesheets.
type TilesheetService interface {
	// Update inserts every *.png below root in src into the named tilesheet.
	// The file name without extension is the tile name.
	Update(ctx context.Context, name string, src afero.Fs, root string) (*UpdateResult, error)

	// AddTile inserts or replaces a single tile from PNG data.
	AddTile(ctx context.Context, sheet, tile string, r io.Reader) (*model.Tile, error)

	// RemoveTile frees the slot of a tile and clears its pixels.
	RemoveTile(ctx context.Context, sheet, tile string) error

	// DeleteTilesheet removes the index, every sheet image and the mirrored rows.
	DeleteTilesheet(ctx context.Context, sheet string) error

	// ListTiles returns tiles using limit/offset and a total count.
	ListTiles(ctx context.Context, sheet string, limit, offset int) (*TileListResult, error)

	// GetTile returns the position of a single tile.
	GetTile(ctx context.Context, sheet, tile string) (*model.Tile, error)

	// OpenSheet streams the sheet image for one tile size.
	OpenSheet(ctx context.Context, sheet string, size int) (io.ReadCloser, storage.ObjectInfo, error)

	// SheetURL returns a time-limited download URL for the sheet image.
	SheetURL(ctx context.Context, sheet string, size int) (string, error)

	// Index streams the "x y name" index of a tilesheet.
	Index(ctx context.Context, sheet string) (io.ReadCloser, error)
}

// Options configure a TilesheetService.
type Options struct {
	// Sizes are the tile sizes kept for every tilesheet.
	Sizes         []int
	PresignExpiry time.Duration
	Logger        *zap.Logger
	Metrics       *Metrics
}

// tilesheetService is a concrete implementation of TilesheetService.
type tilesheetService struct {
	store         storage.Storage
	repo          repository.TileRepository
	sizes         []int
	presignExpiry time.Duration
	log           *zap.Logger
	metrics       *Metrics
	tracer        trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTilesheetService constructs a new TilesheetService. repo may be nil, in
// which case indexes are not mirrored and ListTiles/GetTile report ErrIndexUnavailable.
func NewTilesheetService(store storage.Storage, repo repository.TileRepository, opts Options) TilesheetService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &tilesheetService{
		store:         store,
		repo:          repo,
		sizes:         slices.Clone(opts.Sizes),
		presignExpiry: expiry,
		log:           logger.With(zap.String("component", "tilesheet")),
		metrics:       opts.Metrics,
		tracer:        otel.Tracer("tilesheet/internal/service"),
		locks:         make(map[string]*sync.Mutex),
	}
}

func (s *tilesheetService) Update(ctx context.Context, name string, src afero.Fs, root string) (_ *UpdateResult, err error) {
	ctx, span := s.start(ctx, "Update", name)
	defer func() { endSpan(span, err) }()

	if err := validateSheetName(name); err != nil {
		return nil, err
	}
	unlock := s.lockSheet(name)
	defer unlock()

	log := s.log.With(zap.String("tilesheet", name))
	log.Info("loading tilesheet")
	m, _, err := s.load(ctx, name)
	if err != nil {
		return nil, err
	}

	log.Info("updating tilesheet", zap.String("source", root))
	res := &UpdateResult{Sheet: name}
	err = afero.Walk(src, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != tileExt {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tile := strings.TrimSuffix(filepath.Base(path), tileExt)
		if err := validateTileName(tile); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		img, err := decodeFile(src, path)
		if err != nil {
			return err
		}
		_, created, err := m.Insert(tile, img)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidImage, path, err)
		}
		res.Tiles++
		if created {
			res.Added++
		}
		s.metrics.tileInserted(name)
		log.Debug("tile inserted", zap.String("tile", tile), zap.Bool("created", created))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update tiles: %w", err)
	}

	log.Info("saving tilesheet")
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	if err := s.sync(ctx, m); err != nil {
		return nil, err
	}
	res.Total = m.Layout.Len()
	log.Info("done", zap.Int("tiles", res.Tiles), zap.Int("added", res.Added), zap.Int("total", res.Total))
	return res, nil
}

func (s *tilesheetService) AddTile(ctx context.Context, sheet, tile string, r io.Reader) (_ *model.Tile, err error) {
	ctx, span := s.start(ctx, "AddTile", sheet)
	defer func() { endSpan(span, err) }()

	if err := validateSheetName(sheet); err != nil {
		return nil, err
	}
	if err := validateTileName(tile); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() != b.Dy() {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}

	unlock := s.lockSheet(sheet)
	defer unlock()

	m, _, err := s.load(ctx, sheet)
	if err != nil {
		return nil, err
	}
	pos, created, err := m.Insert(tile, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	s.metrics.tileInserted(sheet)
	if err := s.save(ctx, m); err != nil {
		return nil, err
	}
	if err := s.sync(ctx, m); err != nil {
		return nil, err
	}
	s.log.Info("tile stored",
		zap.String("tilesheet", sheet),
		zap.String("tile", tile),
		zap.Int("x", pos.X),
		zap.Int("y", pos.Y),
		zap.Bool("created", created),
	)
	return &model.Tile{
		ID:        tileID(sheet, tile),
		Sheet:     sheet,
		Name:      tile,
		X:         pos.X,
		Y:         pos.Y,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *tilesheetService) RemoveTile(ctx context.Context, sheet, tile string) (err error) {
	ctx, span := s.start(ctx, "RemoveTile", sheet)
	defer func() { endSpan(span, err) }()

	if err := validateSheetName(sheet); err != nil {
		return err
	}
	if err := validateTileName(tile); err != nil {
		return err
	}

	unlock := s.lockSheet(sheet)
	defer unlock()

	m, exists, err := s.load(ctx, sheet)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, ok := m.Layout.Position(tile); !ok {
		return ErrNotFound
	}
	if _, err := m.Remove(tile); err != nil {
		return err
	}
	if err := s.save(ctx, m); err != nil {
		return err
	}
	if err := s.sync(ctx, m); err != nil {
		return err
	}
	s.log.Info("tile removed", zap.String("tilesheet", sheet), zap.String("tile", tile))
	return nil
}

// DeleteTilesheet removes every sheet image, then the index, then the
// mirrored rows.
func (s *tilesheetService) DeleteTilesheet(ctx context.Context, sheet string) (err error) {
	ctx, span := s.start(ctx, "DeleteTilesheet", sheet)
	defer func() { endSpan(span, err) }()

	if err := validateSheetName(sheet); err != nil {
		return err
	}

	unlock := s.lockSheet(sheet)
	defer unlock()

	key := tilesheet.IndexFileName(sheet)
	rc, _, err := s.store.Get(ctx, key)
	if err != nil {
		return mapStorageError(err)
	}
	rc.Close()

	// Sheets go first so a failed delete keeps the index and can be retried.
	for _, size := range s.sizes {
		key := tilesheet.SheetFileName(sheet, size)
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if s.repo != nil {
		if err := s.repo.DeleteSheet(ctx, sheet); err != nil {
			return fmt.Errorf("delete mirrored index: %w", err)
		}
	}
	s.log.Info("tilesheet deleted", zap.String("tilesheet", sheet))
	return nil
}

// ListTiles returns paginated tiles without exposing repository types.
func (s *tilesheetService) ListTiles(ctx context.Context, sheet string, limit, offset int) (*TileListResult, error) {
	if err := validateSheetName(sheet); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, ErrIndexUnavailable
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListTiles(ctx, sheet, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &TileListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *tilesheetService) GetTile(ctx context.Context, sheet, tile string) (*model.Tile, error) {
	if err := validateSheetName(sheet); err != nil {
		return nil, err
	}
	if err := validateTileName(tile); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, ErrIndexUnavailable
	}
	t, err := s.repo.FindTile(ctx, sheet, tile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *tilesheetService) OpenSheet(ctx context.Context, sheet string, size int) (io.ReadCloser, storage.ObjectInfo, error) {
	if err := s.validateSheetSize(sheet, size); err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	rc, info, err := s.store.Get(ctx, tilesheet.SheetFileName(sheet, size))
	if err != nil {
		return nil, storage.ObjectInfo{}, mapStorageError(err)
	}
	return rc, info, nil
}

func (s *tilesheetService) SheetURL(ctx context.Context, sheet string, size int) (string, error) {
	if err := s.validateSheetSize(sheet, size); err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, tilesheet.SheetFileName(sheet, size), s.presignExpiry)
	if err != nil {
		return "", mapStorageError(err)
	}
	return u, nil
}

func (s *tilesheetService) Index(ctx context.Context, sheet string) (io.ReadCloser, error) {
	if err := validateSheetName(sheet); err != nil {
		return nil, err
	}
	rc, _, err := s.store.Get(ctx, tilesheet.IndexFileName(sheet))
	if err != nil {
		return nil, mapStorageError(err)
	}
	return rc, nil
}

// load reads the index and every configured sheet. A missing index means a new
// tilesheet; a missing sheet image starts blank.
func (s *tilesheetService) load(ctx context.Context, name string) (*tilesheet.Manager, bool, error) {
	exists := true
	var entries []tilesheet.Entry
	rc, _, err := s.store.Get(ctx, tilesheet.IndexFileName(name))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		exists = false
		s.log.Info("no tilesheet found, creating new tilesheet", zap.String("tilesheet", name))
	case err != nil:
		return nil, false, fmt.Errorf("read index: %w", err)
	default:
		entries, err = tilesheet.ParseIndex(rc)
		rc.Close()
		if err != nil {
			return nil, false, err
		}
	}

	layout, err := tilesheet.NewLayout(entries)
	if err != nil {
		return nil, false, fmt.Errorf("load index of %q: %w", name, err)
	}

	sheets := make([]*tilesheet.Sheet, 0, len(s.sizes))
	for _, size := range s.sizes {
		sh, err := s.loadSheet(ctx, name, size)
		if err != nil {
			return nil, false, err
		}
		sheets = append(sheets, sh)
	}
	return tilesheet.NewManager(name, layout, sheets), exists, nil
}

func (s *tilesheetService) loadSheet(ctx context.Context, name string, size int) (*tilesheet.Sheet, error) {
	key := tilesheet.SheetFileName(name, size)
	rc, _, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return tilesheet.NewSheet(size)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()
	img, err := png.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	sh, err := tilesheet.LoadSheet(size, img)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return sh, nil
}

// save writes every sheet image and then the index, which is written last so
// that a failed save never leaves an index pointing at unwritten pixels.
func (s *tilesheetService) save(ctx context.Context, m *tilesheet.Manager) (err error) {
	defer func() { s.metrics.saved(m.Name, err) }()

	for _, sh := range m.Sheets {
		var buf bytes.Buffer
		if err := png.Encode(&buf, sh.Image); err != nil {
			return fmt.Errorf("encode %dpx sheet: %w", sh.Size, err)
		}
		key := tilesheet.SheetFileName(m.Name, sh.Size)
		if _, err := s.store.Put(ctx, key, &buf, storage.PutObjectOptions{
			Size:        int64(buf.Len()),
			ContentType: "image/png",
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	if err := tilesheet.FormatIndex(&buf, m.Entries()); err != nil {
		return fmt.Errorf("format index: %w", err)
	}
	key := tilesheet.IndexFileName(m.Name)
	if _, err := s.store.Put(ctx, key, &buf, storage.PutObjectOptions{
		Size:        int64(buf.Len()),
		ContentType: "text/plain; charset=utf-8",
	}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *tilesheetService) sync(ctx context.Context, m *tilesheet.Manager) error {
	if s.repo == nil {
		return nil
	}
	entries := m.Entries()
	tiles := make([]model.Tile, 0, len(entries))
	for _, e := range entries {
		tiles = append(tiles, model.Tile{
			ID:    tileID(m.Name, e.Name),
			Sheet: m.Name,
			Name:  e.Name,
			X:     e.X,
			Y:     e.Y,
		})
	}
	if err := s.repo.SyncTiles(ctx, m.Name, tiles); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	return nil
}

func (s *tilesheetService) lockSheet(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[strings.Clone(name)] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *tilesheetService) validateSheetSize(sheet string, size int) error {
	if err := validateSheetName(sheet); err != nil {
		return err
	}
	if !slices.Contains(s.sizes, size) {
		return fmt.Errorf("%w: %d", ErrUnknownSize, size)
	}
	return nil
}

func (s *tilesheetService) start(ctx context.Context, op, sheet string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "TilesheetService."+op,
		trace.WithAttributes(attribute.String("tilesheet.name", sheet)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func decodeFile(src afero.Fs, path string) (image.Image, error) {
	f, err := src.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidImage, path, err)
	}
	return img, nil
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrNotSupported):
		return ErrNotSupported
	}
	return err
}

// tileID is stable for a sheet/tile pair so mirrored rows keep their IDs across syncs.
func tileID(sheet, tile string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tilesheet:"+sheet+"/"+tile)).String()
}

func validateTileName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Sheet names become part of object keys, so path separators are rejected too.
func validateSheetName(name string) error {
	if err := validateTileName(name); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
