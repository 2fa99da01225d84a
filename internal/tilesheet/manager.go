package tilesheet

import (
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"
)

// Manager holds a tilesheet in memory: its layout and one sheet per tile size.
type Manager struct {
	Name   string
	Layout *Layout
	Sheets []*Sheet
}

// NewManager assembles a manager from a layout and sheets loaded by the caller.
func NewManager(name string, layout *Layout, sheets []*Sheet) *Manager {
	if layout == nil {
		layout, _ = NewLayout(nil)
	}
	return &Manager{Name: name, Layout: layout, Sheets: sheets}
}

// Insert places img under name in every sheet and returns its slot. created is
// true when name did not have a slot before.
func (m *Manager) Insert(name string, img image.Image) (pos Position, created bool, err error) {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return Position{}, false, fmt.Errorf("%w: %q is %dx%d", ErrTileNotSquare, name, b.Dx(), b.Dy())
	}
	lin := ToLinear(img)
	pos, created = m.Layout.Lookup(name)

	var g errgroup.Group
	for _, s := range m.Sheets {
		g.Go(func() error {
			if err := s.Insert(pos, lin); err != nil {
				return fmt.Errorf("insert %q into %dpx sheet: %w", name, s.Size, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Position{}, false, err
	}
	return pos, created, nil
}

// Remove frees the slot of name and clears its cell in every sheet.
func (m *Manager) Remove(name string) (Position, error) {
	pos, ok := m.Layout.Remove(name)
	if !ok {
		return Position{}, fmt.Errorf("%w: %q", ErrTileNotFound, name)
	}
	for _, s := range m.Sheets {
		s.Clear(pos)
	}
	return pos, nil
}

// Entries lists the tiles of the tilesheet in slot order.
func (m *Manager) Entries() []Entry {
	return m.Layout.Entries()
}
