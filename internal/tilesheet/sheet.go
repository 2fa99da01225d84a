package tilesheet

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// Columns is the number of tiles in every sheet row.
const Columns = 16

// MaxRows bounds how tall a sheet may grow.
const MaxRows = 4096

var (
	ErrTileNotSquare     = errors.New("tile image is not square")
	ErrColumnOutOfRange  = errors.New("tile column out of range")
	ErrRowOutOfRange     = errors.New("tile row out of range")
	ErrSheetWidth        = errors.New("sheet width does not match tile size")
	ErrInvalidSize       = errors.New("tile size must be positive")
	ErrDuplicatePosition = errors.New("two tiles share one position")
	ErrTileNotFound      = errors.New("tile not found")
)

// Position is a tile slot. Slot number is Y*Columns + X.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func positionOf(i int) Position {
	return Position{X: i % Columns, Y: i / Columns}
}

func (p Position) index() int {
	return p.Y*Columns + p.X
}

// Sheet is the image holding every tile of a tilesheet at one tile size.
type Sheet struct {
	Size  int
	Image *image.NRGBA
}

// NewSheet returns an empty sheet one row tall.
func NewSheet(size int) (*Sheet, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Sheet{
		Size:  size,
		Image: image.NewNRGBA(image.Rect(0, 0, size*Columns, size)),
	}, nil
}

// LoadSheet adopts a previously saved sheet image.
func LoadSheet(size int, img image.Image) (*Sheet, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	b := img.Bounds()
	if b.Dx() != size*Columns {
		return nil, fmt.Errorf("%w: width %d, want %d", ErrSheetWidth, b.Dx(), size*Columns)
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(nrgba, nrgba.Bounds(), img, b.Min, xdraw.Src)
	return &Sheet{Size: size, Image: nrgba}, nil
}

// Rows reports how many tile rows the sheet image currently holds.
func (s *Sheet) Rows() int {
	return s.Image.Bounds().Dy() / s.Size
}

// Insert scales tile to the sheet's tile size and writes it over the cell at pos,
// growing the sheet when pos lies below the last row.
func (s *Sheet) Insert(pos Position, tile *image.RGBA64) error {
	b := tile.Bounds()
	if b.Dx() != b.Dy() {
		return fmt.Errorf("%w: %dx%d", ErrTileNotSquare, b.Dx(), b.Dy())
	}
	if pos.X < 0 || pos.X >= Columns {
		return fmt.Errorf("%w: (%d, %d)", ErrColumnOutOfRange, pos.X, pos.Y)
	}
	if pos.Y < 0 || pos.Y >= MaxRows {
		return fmt.Errorf("%w: (%d, %d)", ErrRowOutOfRange, pos.X, pos.Y)
	}
	px := ToSRGB(Resize(tile, s.Size))
	s.grow(pos.Y + 1)
	xdraw.Draw(s.Image, s.cell(pos), px, image.Point{}, xdraw.Src)
	return nil
}

// Clear makes the cell at pos fully transparent.
func (s *Sheet) Clear(pos Position) {
	if pos.Y >= s.Rows() {
		return
	}
	xdraw.Draw(s.Image, s.cell(pos), image.Transparent, image.Point{}, xdraw.Src)
}

func (s *Sheet) cell(pos Position) image.Rectangle {
	return image.Rect(pos.X*s.Size, pos.Y*s.Size, (pos.X+1)*s.Size, (pos.Y+1)*s.Size)
}

func (s *Sheet) grow(rows int) {
	if rows <= s.Rows() {
		return
	}
	img := image.NewNRGBA(image.Rect(0, 0, s.Size*Columns, rows*s.Size))
	xdraw.Draw(img, s.Image.Bounds(), s.Image, image.Point{}, xdraw.Src)
	s.Image = img
}
