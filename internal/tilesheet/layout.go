package tilesheet

import "fmt"

// Entry is one named slot of a tilesheet index.
type Entry struct {
	Name string
	Position
}

// Layout assigns tile names to slots.
//
// Slots are handed out first-fit starting at the cursor left by the previous
// allocation, so a run of new tiles fills holes in order instead of rescanning
// from the top every time.
type Layout struct {
	lookup  map[string]Position
	entries []string
	unused  int
}

// NewLayout rebuilds a layout from index entries. When a name appears more than
// once the last entry wins.
func NewLayout(entries []Entry) (*Layout, error) {
	l := &Layout{lookup: make(map[string]Position, len(entries))}
	for _, e := range entries {
		if e.X < 0 || e.X >= Columns {
			return nil, fmt.Errorf("%w: %q at (%d, %d)", ErrColumnOutOfRange, e.Name, e.X, e.Y)
		}
		if e.Y < 0 || e.Y >= MaxRows {
			return nil, fmt.Errorf("%w: %q at (%d, %d)", ErrRowOutOfRange, e.Name, e.X, e.Y)
		}
		l.lookup[e.Name] = e.Position
	}
	for name, pos := range l.lookup {
		i := pos.index()
		if i >= len(l.entries) {
			l.entries = append(l.entries, make([]string, i+1-len(l.entries))...)
		}
		if l.entries[i] != "" {
			return nil, fmt.Errorf("%w: %q and %q at (%d, %d)", ErrDuplicatePosition, l.entries[i], name, pos.X, pos.Y)
		}
		l.entries[i] = name
	}
	return l, nil
}

// Position returns the slot of name, if any.
func (l *Layout) Position(name string) (Position, bool) {
	pos, ok := l.lookup[name]
	return pos, ok
}

// Lookup returns the slot for name, allocating one when name is new.
func (l *Layout) Lookup(name string) (Position, bool) {
	if pos, ok := l.lookup[name]; ok {
		return pos, false
	}
	i := l.unused
	for ; i < len(l.entries); i++ {
		if l.entries[i] == "" {
			break
		}
	}
	if i == len(l.entries) {
		l.entries = append(l.entries, "")
	}
	l.entries[i] = name
	l.unused = i
	pos := positionOf(i)
	l.lookup[name] = pos
	return pos, true
}

// Remove frees the slot held by name.
func (l *Layout) Remove(name string) (Position, bool) {
	pos, ok := l.lookup[name]
	if !ok {
		return Position{}, false
	}
	delete(l.lookup, name)
	i := pos.index()
	l.entries[i] = ""
	if i < l.unused {
		l.unused = i
	}
	return pos, true
}

// Len is the number of named tiles.
func (l *Layout) Len() int {
	return len(l.lookup)
}

// Entries lists occupied slots in slot order.
func (l *Layout) Entries() []Entry {
	out := make([]Entry, 0, len(l.lookup))
	for i, name := range l.entries {
		if name == "" {
			continue
		}
		out = append(out, Entry{Name: name, Position: positionOf(i)})
	}
	return out
}
